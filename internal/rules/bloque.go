package rules

import (
	"context"
	"fmt"

	"github.com/forgo/rotativos/api/internal/model"
)

// NewBloqueExclusivoRule allows one full-production block per member and
// season. A block held by someone else, or already in progress, cannot be
// taken.
func NewBloqueExclusivoRule(blocks BlockLookup) Rule {
	return define(Rule{
		ID:          RuleBloqueExclusivo,
		Name:        "Bloque exclusivo",
		Description: "Un bloque completo de un título por integrante y temporada.",
		Category:    model.RuleCategoryBloque,
		Priority:    2,
		Enabled:     true,
	}, noDefaults, func(ctx context.Context, vc *model.ValidationContext, _ noConfig) (*model.ValidationResult, error) {
		if !vc.IsBlock {
			return pass("La solicitud no es un bloque", nil), nil
		}
		if vc.UserBalance.BloqueUsado {
			return block(model.ActionReject, "Ya utilizaste tu bloque de esta temporada", map[string]interface{}{
				"bloqueUsado": true,
			}), nil
		}
		if blocks == nil || vc.BlockID == "" {
			return pass("Bloque disponible", nil), nil
		}

		b, err := blocks.GetBlock(ctx, vc.BlockID)
		if err != nil {
			return nil, fmt.Errorf("block %s: %w", vc.BlockID, err)
		}
		if b == nil {
			return block(model.ActionReject, "El bloque no existe", map[string]interface{}{
				"bloqueId": vc.BlockID,
			}), nil
		}

		details := map[string]interface{}{
			"bloqueId": b.ID,
			"estado":   b.Status,
		}
		if b.AssignedUserID != nil && *b.AssignedUserID != vc.UserID {
			return block(model.ActionReject, "El bloque ya está asignado a otro integrante", details), nil
		}
		if b.IsLocked() {
			return block(model.ActionReject, "El bloque está en curso y no puede reasignarse", details), nil
		}
		return pass(fmt.Sprintf("Bloque %s disponible", b.Name), details), nil
	})
}
