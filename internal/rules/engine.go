package rules

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/forgo/rotativos/api/internal/model"
)

var tracer = otel.Tracer("github.com/forgo/rotativos/api/internal/rules")

// ErrCupoRuleMissing is returned by ValidateCupoOnly when the catalog has no capacity rule.
var ErrCupoRuleMissing = errors.New("capacity rule not registered")

// ConfigSource loads the persisted rule overrides keyed by config key.
type ConfigSource interface {
	LoadAll(ctx context.Context) (map[string]*model.RuleConfigValue, error)
}

// Recorder receives validation metrics
type Recorder interface {
	ObserveValidation(action model.SuggestedAction, blocked bool, duration time.Duration)
	ObserveRuleFailure(ruleID string, blocking bool)
}

type nopRecorder struct{}

func (nopRecorder) ObserveValidation(model.SuggestedAction, bool, time.Duration) {}
func (nopRecorder) ObserveRuleFailure(string, bool)                              {}

// Engine runs the catalog against a validation context
type Engine struct {
	catalog *Catalog
	configs ConfigSource
	metrics Recorder
}

// EngineConfig holds the engine collaborators
type EngineConfig struct {
	Catalog *Catalog
	Configs ConfigSource // nil means no overrides
	Metrics Recorder     // optional
}

// NewEngine creates a new validation engine
func NewEngine(cfg EngineConfig) *Engine {
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = NewCatalog()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Engine{
		catalog: catalog,
		configs: cfg.Configs,
		metrics: metrics,
	}
}

// Catalog returns the engine's rule catalog
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// resolvedRule is a rule with its effective config
type resolvedRule struct {
	rule       Rule
	cfg        Config
	overridden bool
}

func (e *Engine) loadOverrides(ctx context.Context) (map[string]*model.RuleConfigValue, error) {
	if e.configs == nil {
		return nil, nil
	}
	overrides, err := e.configs.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading rule config: %w", err)
	}
	return overrides, nil
}

func effective(r Rule, overrides map[string]*model.RuleConfigValue) resolvedRule {
	if ov, ok := overrides[r.ConfigKey]; ok && ov != nil {
		return resolvedRule{
			rule:       r,
			cfg:        Config{Enabled: ov.Enabled, Priority: ov.Priority, Value: ov.Value},
			overridden: true,
		}
	}
	return resolvedRule{rule: r, cfg: Config{Enabled: r.Enabled, Priority: r.Priority}}
}

// resolve returns the enabled rules ordered by effective priority. The sort
// is stable, so equal priorities keep registration order.
func (e *Engine) resolve(ctx context.Context, exclude map[string]bool) ([]resolvedRule, error) {
	overrides, err := e.loadOverrides(ctx)
	if err != nil {
		return nil, err
	}

	var active []resolvedRule
	for _, r := range e.catalog.Rules() {
		if exclude[r.ID] {
			continue
		}
		rr := effective(r, overrides)
		if !rr.cfg.Enabled {
			continue
		}
		active = append(active, rr)
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].cfg.Priority < active[j].cfg.Priority
	})
	return active, nil
}

// ValidateRequest runs every enabled rule in priority order
func (e *Engine) ValidateRequest(ctx context.Context, vc *model.ValidationContext) (*model.ValidationSummary, error) {
	return e.run(ctx, "rules.ValidateRequest", vc, nil)
}

// ValidateExcluding runs the pipeline without the named rules
func (e *Engine) ValidateExcluding(ctx context.Context, vc *model.ValidationContext, ruleIDs ...string) (*model.ValidationSummary, error) {
	exclude := make(map[string]bool, len(ruleIDs))
	for _, id := range ruleIDs {
		exclude[id] = true
	}
	return e.run(ctx, "rules.ValidateExcluding", vc, exclude)
}

func (e *Engine) run(ctx context.Context, spanName string, vc *model.ValidationContext, exclude map[string]bool) (*model.ValidationSummary, error) {
	ctx, span := tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("rotativos.user_id", vc.UserID),
		attribute.String("rotativos.event_id", vc.EventID),
		attribute.String("rotativos.request_type", vc.RequestType),
	))
	defer span.End()
	start := time.Now()

	active, err := e.resolve(ctx, exclude)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	summary := &model.ValidationSummary{
		CanProceed:      true,
		Results:         make([]*model.ValidationResult, 0, len(active)),
		SuggestedAction: model.ActionApprove,
	}

	for _, rr := range active {
		result, err := rr.rule.Validate(ctx, vc, rr.cfg)
		if err != nil {
			err = fmt.Errorf("rule %s: %w", rr.rule.ID, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		summary.Results = append(summary.Results, result)

		if result.Blocking {
			e.metrics.ObserveRuleFailure(rr.rule.ID, true)
			summary.CanProceed = false
			summary.BlockingRule = rr.rule.ID
			summary.SuggestedAction = model.ActionReject
			if result.SuggestedAction != nil {
				summary.SuggestedAction = *result.SuggestedAction
			}
			break
		}

		if !result.Passed {
			e.metrics.ObserveRuleFailure(rr.rule.ID, false)
			suggested := model.ActionPendingAdmin
			if result.SuggestedAction != nil {
				suggested = *result.SuggestedAction
			}
			summary.SuggestedAction = Escalate(summary.SuggestedAction, suggested)
		}
	}

	span.SetAttributes(
		attribute.String("rotativos.suggested_action", string(summary.SuggestedAction)),
		attribute.String("rotativos.blocking_rule", summary.BlockingRule),
	)
	e.metrics.ObserveValidation(summary.SuggestedAction, !summary.CanProceed, time.Since(start))
	return summary, nil
}

// Escalate applies the precedence ladder REJECT > PENDING_ADMIN >
// WAITING_LIST > APPROVE to the current aggregate.
func Escalate(current, suggested model.SuggestedAction) model.SuggestedAction {
	switch suggested {
	case model.ActionReject:
		return model.ActionReject
	case model.ActionPendingAdmin:
		if current != model.ActionReject {
			return model.ActionPendingAdmin
		}
	case model.ActionWaitingList:
		if current == model.ActionApprove {
			return model.ActionWaitingList
		}
	}
	return current
}

// ValidateCupoOnly runs the capacity rule alone with its effective config.
// It runs even when the rule is disabled for the full pipeline.
func (e *Engine) ValidateCupoOnly(ctx context.Context, vc *model.ValidationContext) (*model.ValidationResult, error) {
	ctx, span := tracer.Start(ctx, "rules.ValidateCupoOnly", trace.WithAttributes(
		attribute.String("rotativos.event_id", vc.EventID),
	))
	defer span.End()

	rule, ok := e.catalog.Get(RuleCupoDiario)
	if !ok {
		return nil, ErrCupoRuleMissing
	}
	overrides, err := e.loadOverrides(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result, err := rule.Validate(ctx, vc, effective(rule, overrides).cfg)
	if err != nil {
		err = fmt.Errorf("rule %s: %w", rule.ID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

// Describe lists every registered rule with its effective config
func (e *Engine) Describe(ctx context.Context) ([]model.RuleInfo, error) {
	overrides, err := e.loadOverrides(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]model.RuleInfo, 0, e.catalog.Len())
	for _, r := range e.catalog.Rules() {
		rr := effective(r, overrides)
		value := rr.cfg.Value
		if value == nil && r.Defaults != nil {
			value = r.Defaults()
		}
		infos = append(infos, model.RuleInfo{
			ID:            r.ID,
			Name:          r.Name,
			Description:   r.Description,
			Category:      r.Category,
			ConfigKey:     r.ConfigKey,
			Informational: r.Informational,
			Enabled:       rr.cfg.Enabled,
			Priority:      rr.cfg.Priority,
			Value:         value,
			Overridden:    rr.overridden,
		})
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Priority < infos[j].Priority
	})
	return infos, nil
}
