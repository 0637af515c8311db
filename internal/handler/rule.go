package handler

import (
	"context"
	"net/http"

	"github.com/forgo/rotativos/api/internal/middleware"
	"github.com/forgo/rotativos/api/internal/model"
)

// RuleConfigService is the rule administration surface
type RuleConfigService interface {
	List(ctx context.Context) ([]model.RuleInfo, error)
	Update(ctx context.Context, configKey string, req *model.UpdateRuleConfigRequest, actorID string) (*model.RuleConfigValue, error)
}

// RuleHandler handles rule listing and configuration (admin)
type RuleHandler struct {
	svc RuleConfigService
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(svc RuleConfigService) *RuleHandler {
	return &RuleHandler{svc: svc}
}

// List handles GET /v1/rules
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	infos, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteCollection(w, http.StatusOK, infos, len(infos), nil)
}

// Update handles PUT /v1/rules/{configKey}
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.UpdateRuleConfigRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	cfg, err := h.svc.Update(ctx, r.PathValue("configKey"), &req, middleware.GetUserID(ctx))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusOK, cfg, nil)
}
