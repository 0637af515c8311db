package rules

import (
	"context"
	"fmt"

	"github.com/forgo/rotativos/api/internal/model"
)

type ensayosDoblesConfig struct {
	MaxPorDia int `json:"maxPorDia"`
}

func (c ensayosDoblesConfig) valid() bool { return c.MaxPorDia >= 1 }

var rehearsalTypes = []string{model.EventTypeEnsayo, model.EventTypeEnsayoGeneral}

// NewEnsayosDoblesRule caps how many rehearsals of the same title a member
// may skip on a day that has more than one.
func NewEnsayosDoblesRule(events EventLookup) Rule {
	return define(Rule{
		ID:          RuleEnsayosDobles,
		Name:        "Ensayos dobles",
		Description: "Limita los rotativos en días con más de un ensayo del mismo título.",
		Category:    model.RuleCategoryRestriccion,
		Priority:    6,
		Enabled:     true,
	}, func() ensayosDoblesConfig {
		return ensayosDoblesConfig{MaxPorDia: 1}
	}, func(ctx context.Context, vc *model.ValidationContext, c ensayosDoblesConfig) (*model.ValidationResult, error) {
		if events == nil || vc.TitleID == "" || vc.IsBlock || !isRehearsal(vc.EventType) {
			return pass("No aplica", nil), nil
		}

		others, err := events.SameDayEvents(ctx, vc.TitleID, vc.EventDate, rehearsalTypes, vc.EventID)
		if err != nil {
			return nil, fmt.Errorf("same-day rehearsals: %w", err)
		}
		if len(others) == 0 {
			return pass("Único ensayo del título en el día", nil), nil
		}

		ids := make([]string, 0, len(others))
		for _, e := range others {
			ids = append(ids, e.ID)
		}
		taken, err := events.CountActiveRotativos(ctx, vc.UserID, ids)
		if err != nil {
			return nil, fmt.Errorf("same-day rotations: %w", err)
		}

		details := map[string]interface{}{
			"ensayosDelDia": len(others) + 1,
			"tomados":       taken,
			"maxPorDia":     c.MaxPorDia,
		}
		if taken+1 > c.MaxPorDia {
			return soft(model.ActionPendingAdmin,
				fmt.Sprintf("Superás el máximo de %d rotativo(s) en ensayos dobles del mismo día", c.MaxPorDia), details), nil
		}
		return pass("Dentro del límite de ensayos dobles", details), nil
	})
}

func isRehearsal(eventType string) bool {
	return eventType == model.EventTypeEnsayo || eventType == model.EventTypeEnsayoGeneral
}
