package rules

import (
	"context"
	"fmt"

	"github.com/forgo/rotativos/api/internal/model"
)

type finesDeSemanaConfig struct {
	MaxPorMes int `json:"maxPorMes"`
}

func (c finesDeSemanaConfig) valid() bool { return c.MaxPorMes >= 0 }

// NewFinesDeSemanaRule caps weekend rotations per calendar month. Requests
// that are part of a block are exempt.
func NewFinesDeSemanaRule() Rule {
	return define(Rule{
		ID:          RuleFinesDeSemana,
		Name:        "Fines de semana",
		Description: "Limita los rotativos en fin de semana por mes calendario.",
		Category:    model.RuleCategoryRestriccion,
		Priority:    5,
		Enabled:     true,
	}, func() finesDeSemanaConfig {
		return finesDeSemanaConfig{MaxPorMes: 1}
	}, func(_ context.Context, vc *model.ValidationContext, c finesDeSemanaConfig) (*model.ValidationResult, error) {
		if !vc.IsWeekend {
			return pass("El evento no es en fin de semana", nil), nil
		}
		if vc.IsBlock {
			return pass("Los bloques están exentos del límite de fines de semana", map[string]interface{}{
				"exento": true,
			}), nil
		}

		month := model.MonthKey(vc.EventDate)
		used := vc.UserBalance.FinesDeSemanaMes[month]
		details := map[string]interface{}{
			"mes":       month,
			"usados":    used,
			"maxPorMes": c.MaxPorMes,
		}

		if used >= c.MaxPorMes {
			return block(model.ActionReject,
				fmt.Sprintf("Ya usaste %d de %d fines de semana permitidos en %s", used, c.MaxPorMes, month), details), nil
		}
		return pass(fmt.Sprintf("Fines de semana en %s: %d de %d", month, used, c.MaxPorMes), details), nil
	})
}
