package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/forgo/rotativos/api/internal/model"
	"github.com/forgo/rotativos/api/internal/service"
)

// MapServiceError converts a service error to a ProblemDetails response.
// Rule outcomes are never errors; they travel in the validation summary.
func MapServiceError(err error) *model.ProblemDetails {
	if err == nil {
		return nil
	}

	var problem *model.ProblemDetails
	if errors.As(err, &problem) {
		return problem
	}

	switch {
	// ===== Not Found Errors → 404 =====
	case errors.Is(err, service.ErrEventNotFound):
		return model.NewNotFoundError("event")
	case errors.Is(err, service.ErrSeasonNotFound):
		return model.NewNotFoundError("season")
	case errors.Is(err, service.ErrBlockNotFound):
		return model.NewNotFoundError("block")
	case errors.Is(err, service.ErrRotativoNotFound):
		return model.NewNotFoundError("rotativo")
	case errors.Is(err, service.ErrEntryNotFound):
		return model.NewNotFoundError("waiting list entry")
	case errors.Is(err, service.ErrMemberNotFound):
		return model.NewNotFoundError("member")
	case errors.Is(err, service.ErrUnknownConfigKey):
		return model.NewNotFoundError("rule config")

	// ===== Conflict Errors → 409 =====
	case errors.Is(err, service.ErrAlreadyRequested),
		errors.Is(err, service.ErrAlreadyQueued):
		return model.NewAlreadyExistsError(err.Error())
	case errors.Is(err, service.ErrBlockTaken),
		errors.Is(err, service.ErrBlockLocked),
		errors.Is(err, service.ErrEventFull),
		errors.Is(err, service.ErrInvalidTransition):
		return model.NewConflictError(err.Error())

	// ===== Domain Validation Errors → 422 =====
	case errors.Is(err, service.ErrBlockMismatch),
		errors.Is(err, service.ErrInvalidRuleConfig),
		errors.Is(err, service.ErrInvalidManualMax):
		return model.NewUnprocessableError(err.Error())
	}

	slog.Error("unhandled service error", slog.String("error", err.Error()))
	return model.NewInternalError("")
}

// writeServiceError maps err and writes it
func writeServiceError(w http.ResponseWriter, err error) {
	WriteError(w, MapServiceError(err))
}
