package service

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/DukeRupert/hearth/internal/repository"
	"github.com/google/uuid"
)

// LeadService handles lead intake and the lead lifecycle.
type LeadService interface {
	// Intake records an inquiry against an active listing and routes it.
	// A routing failure does not lose the lead: it is kept unassigned and
	// the result's outcome is OutcomeUnrouted.
	Intake(ctx context.Context, params domain.CreateLeadParams) (*RouteResult, error)

	// UpdateStatus moves a lead through its lifecycle. Only the assigned
	// agent or an organization manager may do this.
	UpdateStatus(ctx context.Context, leadID, actorID uuid.UUID, status domain.LeadStatus) (*domain.Lead, error)

	// ListUnassigned returns the manual assignment queue of an organization.
	ListUnassigned(ctx context.Context, organizationID, actorID uuid.UUID, limit int) ([]domain.Lead, error)

	// History returns the lead's assignment audit trail, oldest first.
	History(ctx context.Context, leadID, actorID uuid.UUID) ([]domain.LeadAssignment, error)
}

const (
	defaultUnassignedLimit = 50
	maxUnassignedLimit     = 200
)

type leadService struct {
	queries repository.Querier
	router  LeadRouter
	logger  *slog.Logger
}

// NewLeadService creates a new LeadService.
func NewLeadService(queries repository.Querier, router LeadRouter, logger *slog.Logger) LeadService {
	return &leadService{
		queries: queries,
		router:  router,
		logger:  logger,
	}
}

// Intake creates the lead and hands it to the router.
func (s *leadService) Intake(ctx context.Context, params domain.CreateLeadParams) (*RouteResult, error) {
	const op = "lead.intake"

	if err := validateLeadParams(op, &params); err != nil {
		return nil, err
	}

	listing, err := s.queries.GetListing(ctx, params.ListingID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NotFound(op, "listing", params.ListingID.String())
		}
		return nil, domain.Internal(err, op, "failed to get listing")
	}
	if domain.ListingStatus(listing.Status) != domain.ListingStatusActive {
		return nil, domain.Conflict(op, "listing is not accepting inquiries")
	}

	row, err := s.queries.InsertLead(ctx, repository.InsertLeadParams{
		ListingID:      listing.ID,
		OwnerAgentID:   listing.AgentID,
		OrganizationID: listing.OrganizationID,
		Name:           params.Name,
		Email:          params.Email,
		Phone:          domain.ToNullString(params.Phone),
		Message:        domain.ToNullString(params.Message),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create lead")
	}

	s.logger.Info("Lead received",
		"lead_id", row.ID,
		"listing_id", listing.ID,
		"organization_id", domain.NullUUIDValue(listing.OrganizationID),
	)

	result, err := s.router.Route(ctx, row.ID)
	if err != nil {
		s.logger.Error("Lead routing failed, left unassigned",
			"op", op,
			"lead_id", row.ID,
			"error", err,
		)
		return &RouteResult{Lead: toDomainLead(row), Outcome: OutcomeUnrouted}, nil
	}
	return result, nil
}

// UpdateStatus applies a lifecycle transition.
func (s *leadService) UpdateStatus(ctx context.Context, leadID, actorID uuid.UUID, status domain.LeadStatus) (*domain.Lead, error) {
	const op = "lead.update_status"

	if !status.IsValid() {
		return nil, domain.Invalid(op, "unknown lead status")
	}

	row, err := s.getLead(ctx, op, leadID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeLead(ctx, op, row, actorID); err != nil {
		return nil, err
	}

	lead := toDomainLead(row)
	from := lead.Status
	if err := lead.TransitionTo(status); err != nil {
		return nil, domain.Conflict(op, err.Error())
	}

	updated, err := s.queries.UpdateLeadStatus(ctx, repository.UpdateLeadStatusParams{
		ID:         leadID,
		Status:     string(status),
		FromStatus: string(from),
	})
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.Conflict(op, "lead status changed concurrently")
		}
		return nil, domain.Internal(err, op, "failed to update lead status")
	}

	s.logger.Info("Lead status changed",
		"lead_id", leadID,
		"actor_id", actorID,
		"from", from,
		"to", status,
	)
	return toDomainLead(updated), nil
}

// ListUnassigned returns unassigned organization leads, oldest first.
func (s *leadService) ListUnassigned(ctx context.Context, organizationID, actorID uuid.UUID, limit int) ([]domain.Lead, error) {
	const op = "lead.list_unassigned"

	org, err := s.queries.GetOrganization(ctx, organizationID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NotFound(op, "organization", organizationID.String())
		}
		return nil, domain.Internal(err, op, "failed to get organization")
	}
	if err := requireManager(ctx, s.queries, org, actorID, op); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultUnassignedLimit
	}
	if limit > maxUnassignedLimit {
		limit = maxUnassignedLimit
	}

	rows, err := s.queries.ListUnassignedLeads(ctx, repository.ListUnassignedLeadsParams{
		OrganizationID: domain.ToNullUUID(&organizationID),
		Limit:          int32(limit),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list unassigned leads")
	}

	leads := make([]domain.Lead, len(rows))
	for i, row := range rows {
		leads[i] = *toDomainLead(row)
	}
	return leads, nil
}

// History returns the assignment audit rows for a lead.
func (s *leadService) History(ctx context.Context, leadID, actorID uuid.UUID) ([]domain.LeadAssignment, error) {
	const op = "lead.history"

	row, err := s.getLead(ctx, op, leadID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeLead(ctx, op, row, actorID); err != nil {
		return nil, err
	}

	rows, err := s.queries.ListLeadAssignments(ctx, leadID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list assignments")
	}

	history := make([]domain.LeadAssignment, len(rows))
	for i, a := range rows {
		history[i] = toDomainAssignment(a)
	}
	return history, nil
}

func (s *leadService) getLead(ctx context.Context, op string, leadID uuid.UUID) (repository.Lead, error) {
	row, err := s.queries.GetLead(ctx, leadID)
	if err != nil {
		if repository.IsNotFound(err) {
			return row, domain.NotFound(op, "lead", leadID.String())
		}
		return row, domain.Internal(err, op, "failed to get lead")
	}
	return row, nil
}

// authorizeLead allows the assigned agent, the listing agent of a personal
// lead, or a manager of the lead's organization.
func (s *leadService) authorizeLead(ctx context.Context, op string, lead repository.Lead, actorID uuid.UUID) error {
	if lead.AssignedTo.Valid && lead.AssignedTo.UUID == actorID {
		return nil
	}
	if !lead.OrganizationID.Valid {
		if lead.OwnerAgentID == actorID {
			return nil
		}
		return domain.Forbidden(op, "only the assigned agent can update this lead")
	}

	org, err := s.queries.GetOrganization(ctx, lead.OrganizationID.UUID)
	if err != nil {
		return domain.Internal(err, op, "failed to get organization")
	}
	return requireManager(ctx, s.queries, org, actorID, op)
}

func validateLeadParams(op string, params *domain.CreateLeadParams) error {
	params.Name = strings.TrimSpace(params.Name)
	params.Email = strings.TrimSpace(params.Email)
	params.Phone = strings.TrimSpace(params.Phone)
	params.Message = strings.TrimSpace(params.Message)

	if params.ListingID == uuid.Nil {
		return domain.Invalid(op, "listing is required")
	}
	if params.Name == "" {
		return domain.Invalid(op, "name is required")
	}
	if len(params.Name) > 200 {
		return domain.Invalid(op, "name must be 200 characters or less")
	}
	if params.Email == "" {
		return domain.Invalid(op, "email is required")
	}
	if _, err := mail.ParseAddress(params.Email); err != nil {
		return domain.Invalid(op, "email address is not valid")
	}
	if len(params.Message) > 5000 {
		return domain.Invalid(op, "message must be 5000 characters or less")
	}
	return nil
}
