package rules

import (
	"context"
	"fmt"
	"math"

	"github.com/forgo/rotativos/api/internal/model"
)

type funcionesConfig struct {
	UmbralFunciones int     `json:"umbralFunciones"`
	MaxFijo         int     `json:"maxFijo"`
	Porcentaje      float64 `json:"porcentaje"`
}

func (c funcionesConfig) valid() bool {
	return c.UmbralFunciones >= 0 && c.MaxFijo >= 1 && c.Porcentaje > 0 && c.Porcentaje <= 100
}

// PerformanceCap returns how many performances of a title a member may
// skip: a fixed cap up to the threshold, a percentage (at least 1) above it.
func PerformanceCap(total, umbral, maxFijo int, porcentaje float64) int {
	if total <= umbral {
		return maxFijo
	}
	return max(1, int(math.Floor(float64(total)*porcentaje/100)))
}

// NewFuncionesPorTituloRule caps performances skipped per title.
func NewFuncionesPorTituloRule(events EventLookup) Rule {
	return define(Rule{
		ID:          RuleFuncionesPorTitulo,
		Name:        "Funciones por título",
		Description: "Limita los rotativos en funciones de un mismo título.",
		Category:    model.RuleCategoryRestriccion,
		Priority:    7,
		Enabled:     true,
	}, func() funcionesConfig {
		return funcionesConfig{UmbralFunciones: 10, MaxFijo: 1, Porcentaje: 30}
	}, func(ctx context.Context, vc *model.ValidationContext, c funcionesConfig) (*model.ValidationResult, error) {
		if events == nil || vc.TitleID == "" || vc.IsBlock || vc.EventType != model.EventTypeFuncion {
			return pass("No aplica", nil), nil
		}

		total, err := events.CountTitleEvents(ctx, vc.TitleID, model.EventTypeFuncion)
		if err != nil {
			return nil, fmt.Errorf("title performances: %w", err)
		}
		taken, err := events.CountActiveTitleRotativos(ctx, vc.UserID, vc.TitleID, model.EventTypeFuncion)
		if err != nil {
			return nil, fmt.Errorf("title rotations: %w", err)
		}

		limit := PerformanceCap(total, c.UmbralFunciones, c.MaxFijo, c.Porcentaje)
		details := map[string]interface{}{
			"funcionesTitulo": total,
			"tomadas":         taken,
			"maximo":          limit,
		}
		if taken+1 > limit {
			return soft(model.ActionPendingAdmin,
				fmt.Sprintf("Superás el máximo de %d función(es) para este título", limit), details), nil
		}
		return pass(fmt.Sprintf("Funciones del título: %d de %d", taken+1, limit), details), nil
	})
}
