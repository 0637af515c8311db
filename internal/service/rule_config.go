package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/forgo/rotativos/api/internal/model"
	"github.com/forgo/rotativos/api/internal/rules"
)

// RuleConfigRepository defines the interface for rule config storage
type RuleConfigRepository interface {
	GetRuleConfig(ctx context.Context, configKey string) (*model.RuleConfigValue, error)
	Upsert(ctx context.Context, cfg *model.RuleConfigValue) error
	Count(ctx context.Context) (int, error)
}

// RuleDescriber lists the registered rules with their effective config
type RuleDescriber interface {
	Describe(ctx context.Context) ([]model.RuleInfo, error)
	Catalog() *rules.Catalog
}

// CacheInvalidator drops cached config derived values
type CacheInvalidator interface {
	Invalidate()
}

// RuleConfigService lets administrators inspect and change rule settings
type RuleConfigService struct {
	repo   RuleConfigRepository
	engine RuleDescriber
	caches []CacheInvalidator
	fx     sideEffects
}

// RuleConfigServiceConfig holds configuration for the rule config service
type RuleConfigServiceConfig struct {
	ConfigRepo RuleConfigRepository
	Engine     RuleDescriber
	Caches     []CacheInvalidator // invalidated after every write
	Auditor    Auditor
}

// NewRuleConfigService creates a new rule config service
func NewRuleConfigService(cfg RuleConfigServiceConfig) *RuleConfigService {
	return &RuleConfigService{
		repo:   cfg.ConfigRepo,
		engine: cfg.Engine,
		caches: cfg.Caches,
		fx:     newSideEffects(nil, cfg.Auditor, nil),
	}
}

// List returns every rule with its effective config, in evaluation order
func (s *RuleConfigService) List(ctx context.Context) ([]model.RuleInfo, error) {
	return s.engine.Describe(ctx)
}

// Update changes the stored config of one rule. Omitted fields keep their
// stored value, or the rule default when nothing is stored.
func (s *RuleConfigService) Update(ctx context.Context, configKey string, req *model.UpdateRuleConfigRequest, actorID string) (*model.RuleConfigValue, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, model.NewValidationError(errs)
	}

	rule, ok := s.ruleFor(configKey)
	if !ok {
		return nil, ErrUnknownConfigKey
	}
	if req.Value != nil && rule.CheckValue != nil {
		if err := rule.CheckValue(req.Value); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRuleConfig, err.Error())
		}
	}

	current, err := s.repo.GetRuleConfig(ctx, configKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get rule config: %w", err)
	}
	cfg := current
	if cfg == nil {
		cfg = &model.RuleConfigValue{ConfigKey: configKey, Enabled: rule.Enabled, Priority: rule.Priority}
		if rule.Defaults != nil {
			cfg.Value = rule.Defaults()
		}
	}
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.Priority != nil {
		cfg.Priority = *req.Priority
	}
	if req.Value != nil {
		cfg.Value = req.Value
	}

	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to store rule config: %w", err)
	}
	s.invalidate()

	s.fx.audit(ctx, model.AuditRuleConfigUpdated, model.EntityRuleConfig, configKey, actorID, map[string]interface{}{
		"enabled":  cfg.Enabled,
		"priority": cfg.Priority,
		"value":    cfg.Value,
	})
	slog.Info("rule config updated",
		slog.String("config_key", configKey),
		slog.Bool("enabled", cfg.Enabled),
		slog.Int("priority", cfg.Priority),
	)
	return cfg, nil
}

// Seed stores the given records. Unless overwrite is set, a store that
// already holds any record is left alone and 0 is returned.
func (s *RuleConfigService) Seed(ctx context.Context, records map[string]*model.RuleConfigValue, overwrite bool) (int, error) {
	if !overwrite {
		n, err := s.repo.Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count rule configs: %w", err)
		}
		if n > 0 {
			return 0, nil
		}
	}

	written := 0
	for key, rec := range records {
		if _, ok := s.ruleFor(key); !ok {
			return written, fmt.Errorf("%w: %s", ErrUnknownConfigKey, key)
		}
		rec.ConfigKey = key
		if err := s.repo.Upsert(ctx, rec); err != nil {
			return written, fmt.Errorf("failed to seed %s: %w", key, err)
		}
		written++
	}
	s.invalidate()

	slog.Info("rule configs seeded", slog.Int("count", written))
	return written, nil
}

func (s *RuleConfigService) ruleFor(configKey string) (rules.Rule, bool) {
	for _, r := range s.engine.Catalog().Rules() {
		if r.ConfigKey == configKey {
			return r, true
		}
	}
	return rules.Rule{}, false
}

func (s *RuleConfigService) invalidate() {
	for _, c := range s.caches {
		c.Invalidate()
	}
}
