package repository

import (
	"context"
	"errors"

	"github.com/forgo/rotativos/api/internal/database"
	"github.com/forgo/rotativos/api/internal/model"
)

// RuleConfigRepository stores one override record per rule config key
type RuleConfigRepository struct {
	db database.Database
}

// NewRuleConfigRepository creates a new rule config repository
func NewRuleConfigRepository(db database.Database) *RuleConfigRepository {
	return &RuleConfigRepository{db: db}
}

// LoadAll returns every stored override keyed by config key
func (r *RuleConfigRepository) LoadAll(ctx context.Context) (map[string]*model.RuleConfigValue, error) {
	result, err := r.db.Query(ctx, `SELECT * FROM rule_config`, nil)
	if err != nil {
		return nil, err
	}

	rows := extractRecords(result)
	configs := make(map[string]*model.RuleConfigValue, len(rows))
	for _, row := range rows {
		cfg := parseRuleConfig(row)
		configs[cfg.ConfigKey] = cfg
	}
	return configs, nil
}

// GetRuleConfig returns the override for one key, or nil when the rule runs
// with its defaults
func (r *RuleConfigRepository) GetRuleConfig(ctx context.Context, configKey string) (*model.RuleConfigValue, error) {
	query := `SELECT * FROM rule_config WHERE config_key = $config_key LIMIT 1`
	vars := map[string]interface{}{"config_key": configKey}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected result format")
	}
	return parseRuleConfig(data), nil
}

// Upsert writes the override for cfg.ConfigKey. The record id is derived
// from the key, so concurrent writers converge on one record.
func (r *RuleConfigRepository) Upsert(ctx context.Context, cfg *model.RuleConfigValue) error {
	query := `
		UPSERT type::thing("rule_config", $config_key) CONTENT {
			config_key: $config_key,
			enabled: $enabled,
			value: $value ?? NONE,
			priority: $priority,
			updated_on: time::now()
		}
	`
	var value interface{}
	if cfg.Value != nil {
		value = cfg.Value
	}
	vars := map[string]interface{}{
		"config_key": cfg.ConfigKey,
		"enabled":    cfg.Enabled,
		"value":      value,
		"priority":   cfg.Priority,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}
	cfg.UpdatedOn = created.UpdatedOn
	return nil
}

// Count returns the number of stored overrides
func (r *RuleConfigRepository) Count(ctx context.Context) (int, error) {
	return queryCount(ctx, r.db, `SELECT count() AS count FROM rule_config GROUP ALL`, nil)
}

func parseRuleConfig(data map[string]interface{}) *model.RuleConfigValue {
	cfg := &model.RuleConfigValue{
		ConfigKey: getString(data, "config_key"),
		Enabled:   getBool(data, "enabled"),
		Value:     getMap(data, "value"),
		Priority:  getInt(data, "priority"),
	}
	if t := getTime(data, "updated_on"); t != nil {
		cfg.UpdatedOn = *t
	}
	return cfg
}
