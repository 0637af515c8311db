package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/rotativos/api/internal/model"
)

type recordedValidation struct {
	action  model.SuggestedAction
	blocked bool
}

type fakeRecorder struct {
	validations []recordedValidation
	failures    []string
}

func (f *fakeRecorder) ObserveValidation(action model.SuggestedAction, blocked bool, _ time.Duration) {
	f.validations = append(f.validations, recordedValidation{action: action, blocked: blocked})
}

func (f *fakeRecorder) ObserveRuleFailure(ruleID string, _ bool) {
	f.failures = append(f.failures, ruleID)
}

func ruleIDs(results []*model.ValidationResult) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.RuleID)
	}
	return ids
}

func TestEngine_AllPass(t *testing.T) {
	engine := NewEngine(EngineConfig{Catalog: NewCatalog(passing("a", 1), passing("b", 2))})

	summary, err := engine.ValidateRequest(context.Background(), newContext())
	require.NoError(t, err)
	assert.True(t, summary.CanProceed)
	assert.Equal(t, model.ActionApprove, summary.SuggestedAction)
	assert.Empty(t, summary.BlockingRule)
	assert.Equal(t, []string{"a", "b"}, ruleIDs(summary.Results))
	assert.Empty(t, summary.Failed())
}

func TestEngine_EmptyCatalogApproves(t *testing.T) {
	summary, err := NewEngine(EngineConfig{}).ValidateRequest(context.Background(), newContext())
	require.NoError(t, err)
	assert.True(t, summary.CanProceed)
	assert.Equal(t, model.ActionApprove, summary.SuggestedAction)
	assert.Empty(t, summary.Results)
}

func TestEngine_BlockingShortCircuits(t *testing.T) {
	engine := NewEngine(EngineConfig{Catalog: NewCatalog(
		passing("a", 1),
		blocking("b", 2, model.ActionWaitingList),
		passing("c", 3),
	)})

	summary, err := engine.ValidateRequest(context.Background(), newContext())
	require.NoError(t, err)
	assert.False(t, summary.CanProceed)
	assert.Equal(t, "b", summary.BlockingRule)
	assert.Equal(t, model.ActionWaitingList, summary.SuggestedAction)
	assert.Equal(t, []string{"a", "b"}, ruleIDs(summary.Results))
}

func TestEngine_BlockingWithoutSuggestionRejects(t *testing.T) {
	rule := staticRule("b", 1, model.ValidationResult{Blocking: true})
	engine := NewEngine(EngineConfig{Catalog: NewCatalog(rule)})

	summary, err := engine.ValidateRequest(context.Background(), newContext())
	require.NoError(t, err)
	assert.Equal(t, model.ActionReject, summary.SuggestedAction)
}

func TestEngine_SoftFailuresLadder(t *testing.T) {
	tests := []struct {
		name    string
		actions []model.SuggestedAction
		want    model.SuggestedAction
	}{
		{"waiting list then pending", []model.SuggestedAction{model.ActionWaitingList, model.ActionPendingAdmin}, model.ActionPendingAdmin},
		{"pending then waiting list", []model.SuggestedAction{model.ActionPendingAdmin, model.ActionWaitingList}, model.ActionPendingAdmin},
		{"waiting list only", []model.SuggestedAction{model.ActionWaitingList}, model.ActionWaitingList},
		{"reject wins", []model.SuggestedAction{model.ActionPendingAdmin, model.ActionReject, model.ActionWaitingList}, model.ActionReject},
		{"approve suggestion is ignored", []model.SuggestedAction{model.ActionApprove}, model.ActionApprove},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := NewCatalog()
			for i, a := range tt.actions {
				catalog.Register(softFailing(string(rune('a'+i)), i+1, a))
			}
			summary, err := NewEngine(EngineConfig{Catalog: catalog}).ValidateRequest(context.Background(), newContext())
			require.NoError(t, err)
			assert.True(t, summary.CanProceed)
			assert.Equal(t, tt.want, summary.SuggestedAction)
			assert.Len(t, summary.Results, len(tt.actions))
		})
	}
}

func TestEngine_SoftFailureWithoutSuggestionNeedsAdmin(t *testing.T) {
	engine := NewEngine(EngineConfig{Catalog: NewCatalog(staticRule("a", 1, model.ValidationResult{}))})

	summary, err := engine.ValidateRequest(context.Background(), newContext())
	require.NoError(t, err)
	assert.Equal(t, model.ActionPendingAdmin, summary.SuggestedAction)
}

func TestEscalate(t *testing.T) {
	assert.Equal(t, model.ActionReject, Escalate(model.ActionPendingAdmin, model.ActionReject))
	assert.Equal(t, model.ActionReject, Escalate(model.ActionReject, model.ActionPendingAdmin))
	assert.Equal(t, model.ActionPendingAdmin, Escalate(model.ActionWaitingList, model.ActionPendingAdmin))
	assert.Equal(t, model.ActionPendingAdmin, Escalate(model.ActionPendingAdmin, model.ActionWaitingList))
	assert.Equal(t, model.ActionWaitingList, Escalate(model.ActionApprove, model.ActionWaitingList))
	assert.Equal(t, model.ActionWaitingList, Escalate(model.ActionWaitingList, model.ActionApprove))
}

func TestEngine_PriorityOrdering(t *testing.T) {
	t.Run("lower priority runs first", func(t *testing.T) {
		engine := NewEngine(EngineConfig{Catalog: NewCatalog(passing("late", 9), passing("early", 1))})
		summary, err := engine.ValidateRequest(context.Background(), newContext())
		require.NoError(t, err)
		assert.Equal(t, []string{"early", "late"}, ruleIDs(summary.Results))
	})

	t.Run("ties keep registration order", func(t *testing.T) {
		engine := NewEngine(EngineConfig{Catalog: NewCatalog(passing("x", 5), passing("y", 5), passing("z", 5))})
		summary, err := engine.ValidateRequest(context.Background(), newContext())
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "y", "z"}, ruleIDs(summary.Results))
	})

	t.Run("override reorders", func(t *testing.T) {
		configs := &mockConfigSource{configs: map[string]*model.RuleConfigValue{
			"a": {ConfigKey: "a", Enabled: true, Priority: 20},
		}}
		engine := NewEngine(EngineConfig{
			Catalog: NewCatalog(passing("a", 1), passing("b", 2)),
			Configs: configs,
		})
		summary, err := engine.ValidateRequest(context.Background(), newContext())
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, ruleIDs(summary.Results))
	})
}

func TestEngine_DisabledRulesAreSkipped(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		off := blocking("off", 1, model.ActionReject)
		off.Enabled = false
		engine := NewEngine(EngineConfig{Catalog: NewCatalog(off, passing("on", 2))})

		summary, err := engine.ValidateRequest(context.Background(), newContext())
		require.NoError(t, err)
		assert.True(t, summary.CanProceed)
		assert.Equal(t, []string{"on"}, ruleIDs(summary.Results))
	})

	t.Run("disabled by override", func(t *testing.T) {
		configs := &mockConfigSource{configs: map[string]*model.RuleConfigValue{
			"gate": {ConfigKey: "gate", Enabled: false, Priority: 1},
		}}
		engine := NewEngine(EngineConfig{
			Catalog: NewCatalog(blocking("gate", 1, model.ActionReject), passing("on", 2)),
			Configs: configs,
		})

		summary, err := engine.ValidateRequest(context.Background(), newContext())
		require.NoError(t, err)
		assert.True(t, summary.CanProceed)
		assert.Equal(t, model.ActionApprove, summary.SuggestedAction)
	})
}

func TestEngine_Errors(t *testing.T) {
	t.Run("rule error aborts", func(t *testing.T) {
		engine := NewEngine(EngineConfig{Catalog: NewCatalog(passing("a", 1), failingWith("b", 2, errBoom))})
		summary, err := engine.ValidateRequest(context.Background(), newContext())
		assert.Nil(t, summary)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errBoom))
		assert.Contains(t, err.Error(), "rule b")
	})

	t.Run("config source error aborts", func(t *testing.T) {
		engine := NewEngine(EngineConfig{
			Catalog: NewCatalog(passing("a", 1)),
			Configs: &mockConfigSource{err: errBoom},
		})
		_, err := engine.ValidateRequest(context.Background(), newContext())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errBoom))
	})
}

func TestEngine_ValidateExcluding(t *testing.T) {
	engine := NewEngine(EngineConfig{Catalog: NewCatalog(
		blocking("gate", 1, model.ActionWaitingList),
		softFailing("info", 2, model.ActionWaitingList),
		passing("c", 3),
	)})

	summary, err := engine.ValidateExcluding(context.Background(), newContext(), "gate", "info")
	require.NoError(t, err)
	assert.True(t, summary.CanProceed)
	assert.Equal(t, model.ActionApprove, summary.SuggestedAction)
	assert.Equal(t, []string{"c"}, ruleIDs(summary.Results))
}

func TestEngine_ValidateCupoOnly(t *testing.T) {
	t.Run("runs even when disabled", func(t *testing.T) {
		configs := &mockConfigSource{configs: map[string]*model.RuleConfigValue{
			RuleCupoDiario: {ConfigKey: RuleCupoDiario, Enabled: false, Priority: 3},
		}}
		engine := NewEngine(EngineConfig{Catalog: DefaultCatalog(Deps{}), Configs: configs})

		vc := newContext()
		vc.EventData.CurrentApproved = 4
		result, err := engine.ValidateCupoOnly(context.Background(), vc)
		require.NoError(t, err)
		assert.False(t, result.Passed)
		assert.True(t, result.Blocking)
		assert.Equal(t, RuleCupoDiario, result.RuleID)

		cupo, ok := CupoFromResult(result)
		assert.True(t, ok)
		assert.Equal(t, 4, cupo)
	})

	t.Run("missing rule", func(t *testing.T) {
		engine := NewEngine(EngineConfig{Catalog: NewCatalog(passing("a", 1))})
		_, err := engine.ValidateCupoOnly(context.Background(), newContext())
		assert.ErrorIs(t, err, ErrCupoRuleMissing)
	})
}

func TestEngine_Metrics(t *testing.T) {
	rec := &fakeRecorder{}
	engine := NewEngine(EngineConfig{
		Catalog: NewCatalog(softFailing("a", 1, model.ActionPendingAdmin), blocking("b", 2, model.ActionReject)),
		Metrics: rec,
	})

	_, err := engine.ValidateRequest(context.Background(), newContext())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rec.failures)
	require.Len(t, rec.validations, 1)
	assert.Equal(t, model.ActionReject, rec.validations[0].action)
	assert.True(t, rec.validations[0].blocked)
}

func TestEngine_Describe(t *testing.T) {
	configs := &mockConfigSource{configs: map[string]*model.RuleConfigValue{
		RuleFinesDeSemana: {
			ConfigKey: RuleFinesDeSemana,
			Enabled:   false,
			Priority:  0,
			Value:     map[string]interface{}{"maxPorMes": 2},
		},
	}}
	engine := NewEngine(EngineConfig{Catalog: DefaultCatalog(Deps{}), Configs: configs})

	infos, err := engine.Describe(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 13)

	first := infos[0]
	assert.Equal(t, RuleFinesDeSemana, first.ID)
	assert.False(t, first.Enabled)
	assert.True(t, first.Overridden)
	assert.Equal(t, 2, first.Value["maxPorMes"])

	assert.Equal(t, RulePlazoSolicitud, infos[1].ID)
	assert.False(t, infos[1].Overridden)
	assert.Equal(t, "PENDING_ADMIN", infos[1].Value["accionMismoDia"])

	var informational int
	for _, info := range infos {
		if info.Informational {
			informational++
		}
	}
	assert.Equal(t, 5, informational)
}

func TestDefaultCatalog_Order(t *testing.T) {
	engine := NewEngine(EngineConfig{Catalog: DefaultCatalog(Deps{})})

	summary, err := engine.ValidateRequest(context.Background(), newContext())
	require.NoError(t, err)
	assert.True(t, summary.CanProceed)
	assert.Equal(t, model.ActionApprove, summary.SuggestedAction)
	assert.Equal(t, []string{
		RulePlazoSolicitud,
		RuleBloqueExclusivo,
		RuleCupoDiario,
		RuleMaximoProyectado,
		RuleFinesDeSemana,
		RuleEnsayosDobles,
		RuleFuncionesPorTitulo,
		RuleListaEspera,
		RuleAlertaCercania,
		RuleRotacionObligatoria,
		RuleCoberturaExterna,
		RuleLicencias,
		RuleIntegranteNuevo,
	}, ruleIDs(summary.Results))
}
