package rules

import (
	"context"
	"time"

	"github.com/forgo/rotativos/api/internal/model"
)

type plazoConfig struct {
	AccionMismoDia   model.SuggestedAction `json:"accionMismoDia"`
	AccionAnticipada model.SuggestedAction `json:"accionAnticipada"`
}

func (c plazoConfig) valid() bool {
	return c.AccionMismoDia.IsValid() && c.AccionAnticipada.IsValid()
}

// NewPlazoSolicitudRule applies the lead-time policy. Past dates are always
// rejected; same-day and earlier requests map to configurable outcomes.
func NewPlazoSolicitudRule() Rule {
	return define(Rule{
		ID:          RulePlazoSolicitud,
		Name:        "Plazo de solicitud",
		Description: "Define el tratamiento según la anticipación de la solicitud.",
		Category:    model.RuleCategoryRestriccion,
		Priority:    1,
		Enabled:     true,
	}, func() plazoConfig {
		return plazoConfig{
			AccionMismoDia:   model.ActionPendingAdmin,
			AccionAnticipada: model.ActionApprove,
		}
	}, func(_ context.Context, vc *model.ValidationContext, c plazoConfig) (*model.ValidationResult, error) {
		days := daysBetween(vc.RequestDate, vc.EventDate)
		details := map[string]interface{}{
			"diasAnticipacion": days,
		}

		switch {
		case days < 0:
			return block(model.ActionReject, "No se pueden solicitar rotativos para fechas pasadas", details), nil
		case days == 0:
			return leadTimeOutcome(c.AccionMismoDia, "Solicitud para el mismo día", details), nil
		default:
			return leadTimeOutcome(c.AccionAnticipada, "Solicitud con anticipación", details), nil
		}
	})
}

func leadTimeOutcome(action model.SuggestedAction, message string, details map[string]interface{}) *model.ValidationResult {
	details["accion"] = string(action)
	if action == model.ActionApprove {
		return pass(message, details)
	}
	return soft(action, message+": requiere "+describeAction(action), details)
}

func describeAction(a model.SuggestedAction) string {
	switch a {
	case model.ActionPendingAdmin:
		return "aprobación de la administración"
	case model.ActionWaitingList:
		return "pasar por lista de espera"
	case model.ActionReject:
		return "rechazo"
	}
	return "aprobación"
}

// daysBetween counts calendar days from request to event, in the event's location.
func daysBetween(request, event time.Time) int {
	loc := event.Location()
	r := request.In(loc)
	rd := time.Date(r.Year(), r.Month(), r.Day(), 0, 0, 0, 0, time.UTC)
	ed := time.Date(event.Year(), event.Month(), event.Day(), 0, 0, 0, 0, time.UTC)
	return int(ed.Sub(rd).Hours() / 24)
}
