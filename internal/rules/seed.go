package rules

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/forgo/rotativos/api/internal/model"
)

// SeedFile is the YAML layout of a rule config seed:
//
//	rules:
//	  fines_semana:
//	    enabled: true
//	    priority: 5
//	    value:
//	      maxPorMes: 2
type SeedFile struct {
	Rules map[string]SeedRule `yaml:"rules"`
}

// SeedRule is one entry of a seed file. Omitted fields take the rule defaults.
type SeedRule struct {
	Enabled  *bool                  `yaml:"enabled"`
	Priority *int                   `yaml:"priority"`
	Value    map[string]interface{} `yaml:"value"`
}

// ParseSeedYAML decodes a seed payload into config records keyed by config
// key. Keys must belong to a registered rule.
func ParseSeedYAML(data []byte, catalog *Catalog) (map[string]*model.RuleConfigValue, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("rules seed: payload is empty")
	}
	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("rules seed: decode: %w", err)
	}

	byKey := make(map[string]Rule, catalog.Len())
	for _, r := range catalog.Rules() {
		byKey[r.ConfigKey] = r
	}

	keys := make([]string, 0, len(file.Rules))
	for k := range file.Rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]*model.RuleConfigValue, len(keys))
	for _, key := range keys {
		r, ok := byKey[key]
		if !ok {
			return nil, fmt.Errorf("rules seed: unknown config key %q", key)
		}
		entry := file.Rules[key]
		rec := defaultRecord(r)
		if entry.Enabled != nil {
			rec.Enabled = *entry.Enabled
		}
		if entry.Priority != nil {
			if *entry.Priority < 0 {
				return nil, fmt.Errorf("rules seed: %s: negative priority", key)
			}
			rec.Priority = *entry.Priority
		}
		if entry.Value != nil {
			rec.Value = entry.Value
		}
		out[key] = rec
	}
	return out, nil
}

// LoadSeedFile reads and parses a YAML seed file.
func LoadSeedFile(path string, catalog *Catalog) (map[string]*model.RuleConfigValue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules seed: read %s: %w", path, err)
	}
	records, err := ParseSeedYAML(data, catalog)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// DefaultSeed returns a config record per registered rule holding its defaults.
func DefaultSeed(catalog *Catalog) map[string]*model.RuleConfigValue {
	out := make(map[string]*model.RuleConfigValue, catalog.Len())
	for _, r := range catalog.Rules() {
		out[r.ConfigKey] = defaultRecord(r)
	}
	return out
}

func defaultRecord(r Rule) *model.RuleConfigValue {
	rec := &model.RuleConfigValue{
		ConfigKey: r.ConfigKey,
		Enabled:   r.Enabled,
		Priority:  r.Priority,
	}
	if r.Defaults != nil {
		rec.Value = r.Defaults()
	}
	return rec
}
