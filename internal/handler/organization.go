package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/DukeRupert/hearth/internal/service"
	"github.com/google/uuid"
)

// OrganizationHandler serves team, routing and queue management for an
// organization.
type OrganizationHandler struct {
	capGuard service.CapGuard
	routing  service.RoutingConfigService
	leads    service.LeadService
	logger   *slog.Logger
}

// NewOrganizationHandler creates a new OrganizationHandler.
func NewOrganizationHandler(
	capGuard service.CapGuard,
	routing service.RoutingConfigService,
	leads service.LeadService,
	logger *slog.Logger,
) *OrganizationHandler {
	return &OrganizationHandler{
		capGuard: capGuard,
		routing:  routing,
		leads:    leads,
		logger:   logger,
	}
}

// RegisterRoutes registers organization routes on the provided mux.
func (h *OrganizationHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/organizations/{id}/members", requireUser(http.HandlerFunc(h.AddMember)))
	mux.Handle("DELETE /api/organizations/{id}/members/{userID}", requireUser(http.HandlerFunc(h.RemoveMember)))
	mux.Handle("GET /api/organizations/{id}/routing", requireUser(http.HandlerFunc(h.GetRouting)))
	mux.Handle("PUT /api/organizations/{id}/routing", requireUser(http.HandlerFunc(h.PutRouting)))
	mux.Handle("PUT /api/organizations/{id}/agents/{agentID}/availability", requireUser(http.HandlerFunc(h.SetAvailability)))
	mux.Handle("PUT /api/organizations/{id}/agents/{agentID}/limits", requireUser(http.HandlerFunc(h.SetLimits)))
	mux.Handle("GET /api/organizations/{id}/leads/unassigned", requireUser(http.HandlerFunc(h.ListUnassigned)))
}

// =============================================================================
// Members
// =============================================================================

type addMemberRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}

// AddMember takes a seat for a user. 402 when every seat is in use.
func (h *OrganizationHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r, h.logger)
	if !ok {
		return
	}

	orgID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req addMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if req.Role == "" {
		req.Role = string(domain.MemberRoleAgent)
	}

	member, err := h.capGuard.ReserveSeat(r.Context(), domain.AddMemberParams{
		OrganizationID: orgID,
		ActorID:        user.ID,
		UserID:         req.UserID,
		Role:           domain.MemberRole(req.Role),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, memberView{
		OrganizationID: member.OrganizationID,
		UserID:         member.UserID,
		Role:           string(member.Role),
		CreatedAt:      member.CreatedAt,
	})
}

// RemoveMember frees a seat.
func (h *OrganizationHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r, h.logger)
	if !ok {
		return
	}

	orgID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	memberID, err := pathUUID(r, "userID")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.capGuard.RemoveMember(r.Context(), orgID, user.ID, memberID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Routing config
// =============================================================================

type routingConfigRequest struct {
	RoutingType      string               `json:"routing_type"`
	IsActive         bool                 `json:"is_active"`
	MaxLeadsPerAgent int                  `json:"max_leads_per_agent"`
	WorkingHours     *domain.WorkingHours `json:"working_hours"`
}

// GetRouting returns the stored or default routing config.
func (h *OrganizationHandler) GetRouting(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r, h.logger)
	if !ok {
		return
	}

	orgID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	cfg, err := h.routing.Get(r.Context(), orgID, user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newRoutingConfigBody(cfg))
}

// PutRouting overwrites the routing config.
func (h *OrganizationHandler) PutRouting(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r, h.logger)
	if !ok {
		return
	}

	orgID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req routingConfigRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	cfg, err := h.routing.Put(r.Context(), user.ID, domain.RoutingConfig{
		OrganizationID:   orgID,
		RoutingType:      domain.RoutingType(req.RoutingType),
		IsActive:         req.IsActive,
		MaxLeadsPerAgent: req.MaxLeadsPerAgent,
		WorkingHours:     req.WorkingHours,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newRoutingConfigBody(cfg))
}

// =============================================================================
// Agents
// =============================================================================

type availabilityRequest struct {
	Available *bool `json:"available"`
}

// SetAvailability toggles whether an agent receives routed leads.
func (h *OrganizationHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r, h.logger)
	if !ok {
		return
	}

	orgID, agentID, err := orgAndAgent(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req availabilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if req.Available == nil {
		ValidationErrorResponse(w, r, h.logger, domain.NewValidationError("handler.set_availability", "available", "available is required"))
		return
	}

	tracking, err := h.routing.SetAgentAvailability(r.Context(), orgID, user.ID, agentID, *req.Available)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newTrackingView(tracking))
}

type limitsRequest struct {
	MaxLeadsPerDay int `json:"max_leads_per_day"`
	Weight         int `json:"weight"`
}

// SetLimits sets an agent's daily cap and routing weight.
func (h *OrganizationHandler) SetLimits(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r, h.logger)
	if !ok {
		return
	}

	orgID, agentID, err := orgAndAgent(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req limitsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	tracking, err := h.routing.SetAgentLimits(r.Context(), orgID, user.ID, agentID, req.MaxLeadsPerDay, req.Weight)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newTrackingView(tracking))
}

func orgAndAgent(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	orgID, err := pathUUID(r, "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	agentID, err := pathUUID(r, "agentID")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return orgID, agentID, nil
}

// =============================================================================
// Manual queue
// =============================================================================

// ListUnassigned returns the organization's unassigned leads, oldest first.
// An optional ?limit= bounds the page.
func (h *OrganizationHandler) ListUnassigned(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r, h.logger)
	if !ok {
		return
	}

	orgID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			ErrorResponse(w, r, h.logger, domain.Invalid("handler.list_unassigned", "limit must be a non-negative integer"))
			return
		}
	}

	leads, err := h.leads.ListUnassigned(r.Context(), orgID, user.ID, limit)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]leadView, len(leads))
	for i := range leads {
		out[i] = newLeadView(&leads[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": out})
}
