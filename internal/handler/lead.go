package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/DukeRupert/hearth/internal/service"
	"github.com/google/uuid"
)

// LeadHandler serves lead intake and the agent-facing lead operations.
type LeadHandler struct {
	leads  service.LeadService
	router service.LeadRouter
	logger *slog.Logger
}

// NewLeadHandler creates a new LeadHandler.
func NewLeadHandler(leads service.LeadService, router service.LeadRouter, logger *slog.Logger) *LeadHandler {
	return &LeadHandler{
		leads:  leads,
		router: router,
		logger: logger,
	}
}

// RegisterRoutes registers lead routes on the provided mux. Intake is public
// and wrapped in limitIntake instead of requireUser.
func (h *LeadHandler) RegisterRoutes(mux *http.ServeMux, requireUser, limitIntake func(http.Handler) http.Handler) {
	mux.Handle("POST /api/leads", limitIntake(http.HandlerFunc(h.Intake)))
	mux.Handle("POST /api/leads/{id}/assign", requireUser(http.HandlerFunc(h.Assign)))
	mux.Handle("POST /api/leads/{id}/reassign", requireUser(http.HandlerFunc(h.Reassign)))
	mux.Handle("PATCH /api/leads/{id}/status", requireUser(http.HandlerFunc(h.UpdateStatus)))
	mux.Handle("GET /api/leads/{id}/history", requireUser(http.HandlerFunc(h.History)))
}

type intakeRequest struct {
	ListingID uuid.UUID `json:"listing_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Message   string    `json:"message"`
}

// Intake records a buyer inquiry. The lead is stored even when routing fails,
// so the buyer always gets 202.
func (h *LeadHandler) Intake(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.leads.Intake(r.Context(), domain.CreateLeadParams{
		ListingID: req.ListingID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Message:   req.Message,
	})
	if err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, intakeView{
		LeadID: result.Lead.ID,
		Status: result.Lead.Status.String(),
	})
}

type assignRequest struct {
	AgentID uuid.UUID `json:"agent_id"`
}

// Assign hands an unassigned lead to an agent from the manual queue.
func (h *LeadHandler) Assign(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r, h.logger)
	if !ok {
		return
	}

	leadID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req assignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	lead, err := h.router.AssignLead(r.Context(), leadID, req.AgentID, user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newLeadView(lead))
}

type reassignRequest struct {
	AgentID uuid.UUID `json:"agent_id"`
	Reason  string    `json:"reason"`
}

// Reassign moves an assigned lead to another agent.
func (h *LeadHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r, h.logger)
	if !ok {
		return
	}

	leadID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req reassignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	lead, err := h.router.ReassignLead(r.Context(), leadID, req.AgentID, user.ID, req.Reason)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newLeadView(lead))
}

// UpdateStatus moves a lead through new, contacted, qualified and its
// terminal states.
func (h *LeadHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r, h.logger)
	if !ok {
		return
	}

	leadID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	lead, err := h.leads.UpdateStatus(r.Context(), leadID, user.ID, domain.LeadStatus(req.Status))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newLeadView(lead))
}

// History returns the lead's assignment audit trail.
func (h *LeadHandler) History(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r, h.logger)
	if !ok {
		return
	}

	leadID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	rows, err := h.leads.History(r.Context(), leadID, user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]assignmentView, len(rows))
	for i, a := range rows {
		out[i] = newAssignmentView(a)
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignments": out})
}
