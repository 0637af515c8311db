package rules

import (
	"context"
	"fmt"
	"math"

	"github.com/forgo/rotativos/api/internal/model"
)

// Alert levels
const (
	AlertaNinguna  = "NINGUNA"
	AlertaCercania = "CERCANIA"
	AlertaLimite   = "LIMITE"
	AlertaExceso   = "EXCESO"
)

type alertaConfig struct {
	Umbral         float64 `json:"umbral"`
	MargenCercania float64 `json:"margenCercania"`
}

func (c alertaConfig) valid() bool {
	return c.Umbral > 0 && c.Umbral <= 100 && c.MargenCercania >= 0
}

// NewAlertaCercaniaRule warns how close the request takes the member to the
// quota. It never fails.
func NewAlertaCercaniaRule() Rule {
	return define(Rule{
		ID:          RuleAlertaCercania,
		Name:        "Alerta de cercanía",
		Description: "Alerta cuando el integrante se acerca a su máximo anual.",
		Category:    model.RuleCategoryAlerta,
		Priority:    9,
		Enabled:     true,
	}, func() alertaConfig {
		return alertaConfig{Umbral: 90, MargenCercania: 10}
	}, func(_ context.Context, vc *model.ValidationContext, c alertaConfig) (*model.ValidationResult, error) {
		quota := vc.UserBalance.Quota()
		taken := vc.UserBalance.RotativosTomados
		if quota <= 0 {
			return pass("Sin cupo anual definido", map[string]interface{}{
				"nivelAlerta": AlertaNinguna,
				"umbral":      c.Umbral,
			}), nil
		}

		current := percent(taken, quota)
		withNew := percent(taken+vc.Requested(), quota)
		level := AlertLevel(withNew, c.Umbral, c.MargenCercania)

		details := map[string]interface{}{
			"porcentajeActual":   current,
			"porcentajeConNuevo": withNew,
			"nivelAlerta":        level,
			"umbral":             c.Umbral,
		}
		if level == AlertaNinguna {
			return pass("Uso del cupo anual dentro de lo normal", details), nil
		}
		return pass(fmt.Sprintf("Con esta solicitud alcanzarías el %.1f%% de tu máximo anual", withNew), details), nil
	})
}

// AlertLevel classifies a usage percentage against the threshold.
func AlertLevel(pct, umbral, margen float64) string {
	switch {
	case pct > 100:
		return AlertaExceso
	case pct >= umbral:
		return AlertaLimite
	case pct >= umbral-margen:
		return AlertaCercania
	default:
		return AlertaNinguna
	}
}

func percent(n, of int) float64 {
	return math.Round(float64(n)/float64(of)*1000) / 10
}
