package handler

import (
	"context"
	"net/http"

	"github.com/forgo/rotativos/api/internal/middleware"
	"github.com/forgo/rotativos/api/internal/model"
)

// BalanceService is the balance surface exposed over HTTP
type BalanceService interface {
	GetBalance(ctx context.Context, userID, seasonID string) (*model.UserSeasonBalance, error)
	RecalculateBalance(ctx context.Context, userID, seasonID string) (*model.BalanceRecalculation, error)
	SetManualMax(ctx context.Context, userID, seasonID string, manualMax *int, actorID string) (*model.UserSeasonBalance, error)
}

// BalanceHandler handles balance HTTP requests
type BalanceHandler struct {
	svc BalanceService
}

// NewBalanceHandler creates a new balance handler
func NewBalanceHandler(svc BalanceService) *BalanceHandler {
	return &BalanceHandler{svc: svc}
}

// Get handles GET /v1/seasons/{seasonId}/balances/{userId}
func (h *BalanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userId")

	if userID != middleware.GetUserID(ctx) && !middleware.IsAdmin(ctx) {
		WriteError(w, model.NewForbiddenError("cannot read another member's balance"))
		return
	}

	balance, err := h.svc.GetBalance(ctx, userID, r.PathValue("seasonId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusOK, balance, nil)
}

// Recalculate handles POST /v1/seasons/{seasonId}/balances/{userId}/recalculate (admin)
func (h *BalanceHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.RecalculateBalance(r.Context(), r.PathValue("userId"), r.PathValue("seasonId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusOK, rec, nil)
}

// SetManualMax handles PUT /v1/seasons/{seasonId}/balances/{userId}/manual-max (admin).
// A null value clears the override.
func (h *BalanceHandler) SetManualMax(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ManualMaxRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		WriteError(w, model.NewValidationError(errs))
		return
	}

	balance, err := h.svc.SetManualMax(ctx, r.PathValue("userId"), r.PathValue("seasonId"), req.MaxAjustadoManual, middleware.GetUserID(ctx))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusOK, balance, nil)
}
