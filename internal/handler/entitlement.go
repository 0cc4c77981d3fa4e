package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/hearth/internal/service"
)

// EntitlementHandler serves the caller's resolved capabilities.
type EntitlementHandler struct {
	entitlements service.EntitlementService
	logger       *slog.Logger
}

// NewEntitlementHandler creates a new EntitlementHandler.
func NewEntitlementHandler(entitlements service.EntitlementService, logger *slog.Logger) *EntitlementHandler {
	return &EntitlementHandler{
		entitlements: entitlements,
		logger:       logger,
	}
}

// RegisterRoutes registers entitlement routes on the provided mux.
func (h *EntitlementHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /api/me/entitlements", requireUser(http.HandlerFunc(h.Me)))
}

// Me returns the caller's flags, quotas and permitted actions.
func (h *EntitlementHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r, h.logger)
	if !ok {
		return
	}

	ent, err := h.entitlements.ForUser(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newEntitlementsView(ent))
}
