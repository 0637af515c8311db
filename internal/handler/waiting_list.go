package handler

import (
	"context"
	"net/http"

	"github.com/forgo/rotativos/api/internal/middleware"
	"github.com/forgo/rotativos/api/internal/model"
)

// WaitingListService is the queue surface exposed over HTTP
type WaitingListService interface {
	List(ctx context.Context, eventID string) (*model.WaitingListView, error)
	Withdraw(ctx context.Context, userID, eventID, actorID string) error
	PromoteAll(ctx context.Context, eventID string) ([]*model.PromotionResult, error)
	Purge(ctx context.Context, seasonID, actorID string) (int, error)
}

// WaitingListHandler handles waiting list HTTP requests
type WaitingListHandler struct {
	svc WaitingListService
}

// NewWaitingListHandler creates a new waiting list handler
func NewWaitingListHandler(svc WaitingListService) *WaitingListHandler {
	return &WaitingListHandler{svc: svc}
}

// List handles GET /v1/events/{eventId}/waiting-list
func (h *WaitingListHandler) List(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.List(r.Context(), r.PathValue("eventId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteCollection(w, http.StatusOK, view.Entries, view.Total, nil)
}

// Withdraw handles DELETE /v1/events/{eventId}/waiting-list/{userId}
func (h *WaitingListHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID := middleware.GetUserID(ctx)
	userID := r.PathValue("userId")

	if userID != actorID && !middleware.IsAdmin(ctx) {
		WriteError(w, model.NewForbiddenError("cannot withdraw another member from the waiting list"))
		return
	}

	if err := h.svc.Withdraw(ctx, userID, r.PathValue("eventId"), actorID); err != nil {
		writeServiceError(w, err)
		return
	}

	WriteNoContent(w)
}

// Promote handles POST /v1/events/{eventId}/waiting-list/promote (admin).
// It fills every free seat and stops at the first pending promotion.
func (h *WaitingListHandler) Promote(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.PromoteAll(r.Context(), r.PathValue("eventId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if results == nil {
		results = []*model.PromotionResult{}
	}

	WriteCollection(w, http.StatusOK, results, len(results), nil)
}

// Purge handles DELETE /v1/seasons/{seasonId}/waiting-list (admin)
func (h *WaitingListHandler) Purge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := h.svc.Purge(ctx, r.PathValue("seasonId"), middleware.GetUserID(ctx))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusOK, map[string]int{"removed": n}, nil)
}
