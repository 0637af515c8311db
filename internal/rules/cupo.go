package rules

import (
	"context"
	"fmt"

	"github.com/forgo/rotativos/api/internal/model"
)

// Detail keys reported by the capacity rule
const (
	DetailCupoTotal  = "cupoTotal"
	DetailAprobados  = "aprobados"
	DetailDisponible = "disponibles"
)

type cupoConfig struct {
	CuposPorTipo map[string]int `json:"cuposPorTipo"`
}

func (c cupoConfig) valid() bool {
	for _, v := range c.CuposPorTipo {
		if v < 0 {
			return false
		}
	}
	return true
}

// NewCupoDiarioRule limits simultaneous absences per event. The capacity is
// the event override, else the configured capacity for the event type, else
// the event's own capacity from the context. capacities is consulted before
// the decoded config when set.
func NewCupoDiarioRule(capacities CapacityProvider) Rule {
	return define(Rule{
		ID:          RuleCupoDiario,
		Name:        "Cupo diario",
		Description: "Limita la cantidad de rotativos aprobados por evento según su tipo.",
		Category:    model.RuleCategoryCupo,
		Priority:    3,
		Enabled:     true,
	}, func() cupoConfig {
		return cupoConfig{CuposPorTipo: map[string]int{}}
	}, func(ctx context.Context, vc *model.ValidationContext, c cupoConfig) (*model.ValidationResult, error) {
		cupo, err := resolveCupo(ctx, capacities, c, vc)
		if err != nil {
			return nil, err
		}

		approved := vc.EventData.CurrentApproved
		details := map[string]interface{}{
			DetailCupoTotal:  cupo,
			DetailAprobados:  approved,
			DetailDisponible: max(cupo-approved, 0),
			"tipoEvento":     vc.EventType,
		}

		if approved < cupo {
			return pass(fmt.Sprintf("Cupo disponible: %d de %d ocupados", approved, cupo), details), nil
		}
		return block(model.ActionWaitingList,
			fmt.Sprintf("Cupo completo para este evento (%d de %d)", approved, cupo), details), nil
	})
}

func resolveCupo(ctx context.Context, capacities CapacityProvider, c cupoConfig, vc *model.ValidationContext) (int, error) {
	if vc.CupoOverride != nil {
		return *vc.CupoOverride, nil
	}
	if capacities != nil && vc.EventType != "" {
		cupo, ok, err := capacities.CupoForEventType(ctx, vc.EventType)
		if err != nil {
			return 0, fmt.Errorf("capacity for %s: %w", vc.EventType, err)
		}
		if ok {
			return cupo, nil
		}
	} else if cupo, ok := c.CuposPorTipo[vc.EventType]; ok {
		return cupo, nil
	}
	return vc.EventData.CupoTotal, nil
}

// CupoFromResult extracts the evaluated capacity from a capacity rule result.
func CupoFromResult(r *model.ValidationResult) (int, bool) {
	if r == nil || r.Details == nil {
		return 0, false
	}
	cupo, ok := r.Details[DetailCupoTotal].(int)
	return cupo, ok
}
