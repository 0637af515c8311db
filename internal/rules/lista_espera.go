package rules

import (
	"context"
	"fmt"

	"github.com/forgo/rotativos/api/internal/model"
)

// NewListaEsperaRule reports the member's place in the FIFO queue. It never
// decides on its own and only recommends the queue once capacity is full.
// Capacity resolves the same way as in cupo_diario.
func NewListaEsperaRule(queue WaitingListLookup, capacities CapacityProvider) Rule {
	return define(Rule{
		ID:            RuleListaEspera,
		Name:          "Lista de espera",
		Description:   "Informa la posición en la lista de espera del evento.",
		Category:      model.RuleCategoryCupo,
		Priority:      8,
		Enabled:       true,
		Informational: true,
	}, noDefaults, func(ctx context.Context, vc *model.ValidationContext, _ noConfig) (*model.ValidationResult, error) {
		position := 0
		if queue != nil {
			var err error
			position, err = queue.Position(ctx, vc.UserID, vc.EventID)
			if err != nil {
				return nil, fmt.Errorf("waiting list position: %w", err)
			}
		}

		cupo, err := resolveCupo(ctx, capacities, cupoConfig{}, vc)
		if err != nil {
			return nil, err
		}

		size := vc.EventData.WaitingListCount
		details := map[string]interface{}{
			"posicion":      position,
			"tamanoLista":   size,
			DetailCupoTotal: cupo,
		}

		if vc.EventData.CurrentApproved < cupo {
			return pass(fmt.Sprintf("Hay cupo disponible; %d en lista de espera", size), details), nil
		}

		next := position
		if next == 0 {
			next = size + 1
		}
		details["posicionEstimada"] = next
		return soft(model.ActionWaitingList,
			fmt.Sprintf("Sin cupo disponible; ingresarías a la lista de espera en la posición %d", next), details), nil
	})
}
