package handler

import (
	"context"
	"net/http"

	"github.com/forgo/rotativos/api/internal/middleware"
	"github.com/forgo/rotativos/api/internal/model"
)

// RotativoService is the rotation workflow the handler drives
type RotativoService interface {
	Get(ctx context.Context, rotativoID string) (*model.Rotativo, error)
	Validate(ctx context.Context, req *model.RotativoRequest) (*model.ValidationSummary, error)
	Request(ctx context.Context, req *model.RotativoRequest) (*model.RequestOutcome, error)
	Cancel(ctx context.Context, rotativoID, actorID string) (*model.Rotativo, error)
	ResolvePending(ctx context.Context, rotativoID string, req *model.ResolvePendingRequest, actorID string) (*model.Rotativo, error)
}

// RotativoHandler handles rotation HTTP requests
type RotativoHandler struct {
	svc RotativoService
}

// NewRotativoHandler creates a new rotation handler
func NewRotativoHandler(svc RotativoService) *RotativoHandler {
	return &RotativoHandler{svc: svc}
}

// Request handles POST /v1/rotativos
func (h *RotativoHandler) Request(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRotativoRequest(w, r)
	if !ok {
		return
	}

	outcome, err := h.svc.Request(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusCreated, outcome, map[string]string{
		"self": "/v1/rotativos/" + outcome.Rotativo.ID,
	})
}

// Validate handles POST /v1/validate. Nothing is stored.
func (h *RotativoHandler) Validate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRotativoRequest(w, r)
	if !ok {
		return
	}

	summary, err := h.svc.Validate(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusOK, summary, nil)
}

// Cancel handles DELETE /v1/rotativos/{id}
func (h *RotativoHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID := middleware.GetUserID(ctx)
	rotativoID := r.PathValue("id")

	if !middleware.IsAdmin(ctx) {
		rot, err := h.svc.Get(ctx, rotativoID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if rot.UserID != actorID {
			WriteError(w, model.NewForbiddenError("cannot cancel another member's rotativo"))
			return
		}
	}

	rot, err := h.svc.Cancel(ctx, rotativoID, actorID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusOK, rot, nil)
}

// Resolve handles POST /v1/rotativos/{id}/resolve (admin)
func (h *RotativoHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ResolvePendingRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	rot, err := h.svc.ResolvePending(ctx, r.PathValue("id"), &req, middleware.GetUserID(ctx))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusOK, rot, nil)
}

// decodeRotativoRequest reads a request body and applies the actor: members
// act for themselves, administrators may act for anyone.
func decodeRotativoRequest(w http.ResponseWriter, r *http.Request) (*model.RotativoRequest, bool) {
	var req model.RotativoRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return nil, false
	}

	actorID := middleware.GetUserID(r.Context())
	if req.UserID == "" {
		req.UserID = actorID
	}
	if req.UserID != actorID && !middleware.IsAdmin(r.Context()) {
		WriteError(w, model.NewForbiddenError("members may only request rotativos for themselves"))
		return nil, false
	}
	return &req, true
}
