package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/DukeRupert/hearth/internal/service"
	"github.com/google/uuid"
)

// ListingHandler creates listings and moves them through their lifecycle.
// Every write goes through the cap guard.
type ListingHandler struct {
	capGuard service.CapGuard
	logger   *slog.Logger
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(capGuard service.CapGuard, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{
		capGuard: capGuard,
		logger:   logger,
	}
}

// RegisterRoutes registers listing routes on the provided mux.
func (h *ListingHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/listings", requireUser(http.HandlerFunc(h.Create)))
	mux.Handle("PATCH /api/listings/{id}/status", requireUser(http.HandlerFunc(h.UpdateStatus)))
}

type createListingRequest struct {
	OrganizationID *uuid.UUID `json:"organization_id"`
	Title          string     `json:"title"`
	Address        string     `json:"address"`
	City           string     `json:"city"`
	State          string     `json:"state"`
	PostalCode     string     `json:"postal_code"`
	PriceCents     int64      `json:"price_cents"`
}

// Create reserves a listing slot for the caller. A body with organization_id
// counts against that organization's cap instead of the caller's own.
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r, h.logger)
	if !ok {
		return
	}

	var req createListingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	listing, err := h.capGuard.ReserveListing(r.Context(), domain.CreateListingParams{
		AgentID:        user.ID,
		OrganizationID: req.OrganizationID,
		Title:          req.Title,
		Address:        req.Address,
		City:           req.City,
		State:          req.State,
		PostalCode:     req.PostalCode,
		PriceCents:     req.PriceCents,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, newListingView(listing))
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus changes a listing's status. Reactivating takes a fresh slot.
func (h *ListingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r, h.logger)
	if !ok {
		return
	}

	listingID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	listing, err := h.capGuard.SetListingStatus(r.Context(), user.ID, listingID, domain.ListingStatus(req.Status))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newListingView(listing))
}
