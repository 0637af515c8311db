package rules

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/forgo/rotativos/api/internal/model"
)

// Rule ids. The config key of every built-in rule equals its id.
const (
	RuleCupoDiario          = "cupo_diario"
	RuleMaximoProyectado    = "maximo_proyectado"
	RuleFinesDeSemana       = "fines_semana"
	RuleBloqueExclusivo     = "bloque_exclusivo"
	RuleListaEspera         = "lista_espera"
	RulePlazoSolicitud      = "plazo_solicitud"
	RuleRotacionObligatoria = "rotacion_obligatoria"
	RuleCoberturaExterna    = "cobertura_externa"
	RuleLicencias           = "licencias"
	RuleIntegranteNuevo     = "integrante_nuevo"
	RuleAlertaCercania      = "alerta_cercania"
	RuleEnsayosDobles       = "ensayos_dobles"
	RuleFuncionesPorTitulo  = "funciones_por_titulo"
)

// Config is the effective configuration handed to a rule: the persisted
// override when one exists, else the rule defaults.
type Config struct {
	Enabled  bool
	Priority int
	Value    map[string]interface{}
}

// ValidateFunc evaluates one rule. Business outcomes are reported in the
// result; only infrastructure failures are returned as errors.
type ValidateFunc func(ctx context.Context, vc *model.ValidationContext, cfg Config) (*model.ValidationResult, error)

// Rule is a registered eligibility check.
type Rule struct {
	ID          string
	Name        string
	Description string
	Category    model.RuleCategory
	Priority    int
	Enabled     bool
	ConfigKey   string

	// Informational rules never block a request; admin listings filter on it.
	Informational bool

	Validate ValidateFunc

	// Defaults returns the default config value, for admin listings.
	Defaults func() map[string]interface{}

	// CheckValue reports whether a config value decodes into a usable
	// config. Administrator writes are checked with it.
	CheckValue func(value map[string]interface{}) error
}

// ErrConfigOutOfRange is reported by CheckValue for values that decode but
// fail the rule's range checks.
var ErrConfigOutOfRange = errors.New("config value out of range")

// validatable is implemented by config structs that can reject a decoded value.
type validatable interface {
	valid() bool
}

// define wires a typed check into a Rule. The persisted value is decoded
// over defaults() here and nowhere else.
func define[C any](r Rule, defaults func() C, check func(ctx context.Context, vc *model.ValidationContext, c C) (*model.ValidationResult, error)) Rule {
	if r.ConfigKey == "" {
		r.ConfigKey = r.ID
	}
	id := r.ID
	r.Validate = func(ctx context.Context, vc *model.ValidationContext, cfg Config) (*model.ValidationResult, error) {
		c := decodeConfig(id, cfg.Value, defaults)
		res, err := check(ctx, vc, c)
		if err != nil {
			return nil, err
		}
		res.RuleID = id
		return res, nil
	}
	r.Defaults = func() map[string]interface{} {
		return toMap(defaults())
	}
	r.CheckValue = func(value map[string]interface{}) error {
		_, err := checkConfig(value, defaults)
		return err
	}
	return r
}

func decodeConfig[C any](ruleID string, value map[string]interface{}, defaults func() C) C {
	c, err := checkConfig(value, defaults)
	if err != nil {
		slog.Warn("invalid rule config, using defaults",
			slog.String("rule", ruleID),
			slog.String("error", err.Error()),
		)
	}
	return c
}

// checkConfig decodes value over defaults. On failure the defaults are
// returned with the error.
func checkConfig[C any](value map[string]interface{}, defaults func() C) (C, error) {
	c := defaults()
	if len(value) == 0 {
		return c, nil
	}

	data, err := json.Marshal(value)
	if err == nil {
		err = json.Unmarshal(data, &c)
	}
	if err != nil {
		return defaults(), err
	}

	if v, ok := any(c).(validatable); ok && !v.valid() {
		return defaults(), ErrConfigOutOfRange
	}
	return c, nil
}

func toMap(v interface{}) map[string]interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

// noConfig is the config type of rules without settings.
type noConfig struct{}

func noDefaults() noConfig { return noConfig{} }

func pass(message string, details map[string]interface{}) *model.ValidationResult {
	return &model.ValidationResult{
		Passed:          true,
		Message:         message,
		Details:         details,
		SuggestedAction: model.ActionPtr(model.ActionApprove),
	}
}

func block(action model.SuggestedAction, message string, details map[string]interface{}) *model.ValidationResult {
	return &model.ValidationResult{
		Passed:          false,
		Blocking:        true,
		Message:         message,
		Details:         details,
		SuggestedAction: model.ActionPtr(action),
	}
}

func soft(action model.SuggestedAction, message string, details map[string]interface{}) *model.ValidationResult {
	return &model.ValidationResult{
		Passed:          false,
		Message:         message,
		Details:         details,
		SuggestedAction: model.ActionPtr(action),
	}
}
