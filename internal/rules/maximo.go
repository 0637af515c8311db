package rules

import (
	"context"
	"fmt"

	"github.com/forgo/rotativos/api/internal/model"
)

// NewMaximoProyectadoRule enforces the annual quota. A member already at or
// over quota is rejected outright; a request that would cross the quota goes
// to an administrator. Mandatory rotations are never counted against it.
func NewMaximoProyectadoRule() Rule {
	return define(Rule{
		ID:          RuleMaximoProyectado,
		Name:        "Máximo proyectado",
		Description: "Controla el cupo anual de rotativos de cada integrante.",
		Category:    model.RuleCategoryCupo,
		Priority:    4,
		Enabled:     true,
	}, noDefaults, func(_ context.Context, vc *model.ValidationContext, _ noConfig) (*model.ValidationResult, error) {
		if vc.RequestType == model.RequestTypeObligatorio {
			return pass("Las rotaciones obligatorias no consumen cupo anual", map[string]interface{}{
				"exento": true,
			}), nil
		}

		quota := vc.UserBalance.Quota()
		taken := vc.UserBalance.RotativosTomados
		after := taken + vc.Requested()
		details := map[string]interface{}{
			"rotativosTomados": taken,
			"maximo":           quota,
			"conSolicitud":     after,
			"ajusteManual":     vc.UserBalance.MaxAjustadoManual != nil,
		}

		switch {
		case taken >= quota:
			return block(model.ActionReject,
				fmt.Sprintf("Ya alcanzaste tu máximo anual de rotativos (%d de %d)", taken, quota), details), nil
		case after <= quota:
			return pass(fmt.Sprintf("Dentro del máximo anual (%d de %d)", after, quota), details), nil
		default:
			return soft(model.ActionPendingAdmin,
				fmt.Sprintf("La solicitud supera el máximo anual (%d de %d)", after, quota), details), nil
		}
	})
}
