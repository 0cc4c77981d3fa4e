// Package service contains the business logic layer.
//
// This file implements lead routing: picking an agent for a new lead under
// the organization's routing policy, plus manual assignment and reassignment.
// The organization row lock serializes every assignment inside one
// organization, so two concurrent leads never see the same ledger snapshot.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/DukeRupert/hearth/internal/metrics"
	"github.com/DukeRupert/hearth/internal/notify"
	"github.com/DukeRupert/hearth/internal/repository"
	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// =============================================================================
// Interface Definition
// =============================================================================

// RouteOutcome says what Route did with a lead.
type RouteOutcome string

const (
	// OutcomeAssigned means the routing policy picked an agent.
	OutcomeAssigned RouteOutcome = "assigned"
	// OutcomeNoEligibleAgent means nobody could take the lead; it stays
	// unassigned for manual assignment.
	OutcomeNoEligibleAgent RouteOutcome = "no_eligible_agent"
	// OutcomeOwner means the lead went to the listing agent because routing
	// is off or the lead is not organization-scoped.
	OutcomeOwner RouteOutcome = "owner"
	// OutcomeUnrouted means routing failed with an error after intake.
	OutcomeUnrouted RouteOutcome = "unrouted"
)

// RouteResult is the outcome of routing one lead.
type RouteResult struct {
	Lead     *domain.Lead
	Outcome  RouteOutcome
	Decision domain.Decision
	Config   *domain.RoutingConfig
}

// LeadRouter assigns leads to agents.
type LeadRouter interface {
	// Route assigns an unassigned lead. Organization leads go through the
	// organization's routing policy; personal leads go to the listing agent.
	// Finding no eligible agent is an outcome, not an error.
	Route(ctx context.Context, leadID uuid.UUID) (*RouteResult, error)

	// AssignLead manually assigns an unassigned organization lead, bypassing
	// the policy. The actor must manage the organization.
	AssignLead(ctx context.Context, leadID, agentID, actorID uuid.UUID) (*domain.Lead, error)

	// ReassignLead moves an assigned lead to a different agent.
	ReassignLead(ctx context.Context, leadID, agentID, actorID uuid.UUID, reason string) (*domain.Lead, error)
}

// =============================================================================
// Implementation
// =============================================================================

type leadRouter struct {
	store    repository.Store
	tx       txRunner
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewLeadRouter creates a new LeadRouter.
func NewLeadRouter(store repository.Store, notifier notify.Notifier, attempts int, logger *slog.Logger) LeadRouter {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &leadRouter{
		store:    store,
		tx:       newTxRunner(store, attempts, logger),
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Route picks an agent for the lead and commits the assignment, the ledger
// bump and the audit row together.
func (s *leadRouter) Route(ctx context.Context, leadID uuid.UUID) (*RouteResult, error) {
	const op = "router.route"

	// Scope never changes after intake, so it can be read unlocked.
	peek, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NotFound(op, "lead", leadID.String())
		}
		return nil, domain.Internal(err, op, "failed to get lead")
	}

	var result *RouteResult
	err = s.tx.run(ctx, op, func(q repository.Querier) error {
		result = &RouteResult{}
		now := s.now().UTC()

		if !peek.OrganizationID.Valid {
			lead, err := s.lockUnassignedLead(ctx, q, op, leadID)
			if err != nil {
				return err
			}
			assigned, err := s.commitAssignment(ctx, q, op, assignment{
				lead:    lead,
				agentID: lead.OwnerAgentID,
				kind:    domain.AssignmentOwner,
				reason:  "personal listing",
				at:      now,
			})
			if err != nil {
				return err
			}
			result.Lead = assigned
			result.Outcome = OutcomeOwner
			return nil
		}

		orgID := peek.OrganizationID.UUID
		orgRow, err := lockOrganization(ctx, q, orgID, op)
		if err != nil {
			return err
		}
		lead, err := s.lockUnassignedLead(ctx, q, op, leadID)
		if err != nil {
			return err
		}

		cfg, err := s.loadConfig(ctx, q, op, orgID)
		if err != nil {
			return err
		}
		result.Config = &cfg

		org := toDomainOrganization(orgRow)
		if !org.Flags().LeadRouting || !cfg.IsActive {
			reason := "routing disabled"
			if !org.Flags().LeadRouting {
				reason = "plan does not include lead routing"
			}
			assigned, err := s.commitAssignment(ctx, q, op, assignment{
				lead:    lead,
				agentID: lead.OwnerAgentID,
				kind:    domain.AssignmentOwner,
				reason:  reason,
				at:      now,
			})
			if err != nil {
				return err
			}
			result.Lead = assigned
			result.Outcome = OutcomeOwner
			return nil
		}

		candidates, err := s.listCandidates(ctx, q, op, cfg, now)
		if err != nil {
			return err
		}

		decision := domain.SelectAgent(cfg, candidates, now)
		result.Decision = decision
		if !decision.Found {
			result.Lead = toDomainLead(lead)
			result.Outcome = OutcomeNoEligibleAgent
			s.logger.Info("No eligible agent for lead",
				"lead_id", leadID,
				"organization_id", orgID,
				"policy", decision.Policy,
				"reason", decision.Reason,
				"candidates", len(candidates),
			)
			return nil
		}

		assigned, err := s.commitAssignment(ctx, q, op, assignment{
			lead:    lead,
			agentID: decision.AgentID,
			kind:    domain.AssignmentAuto,
			policy:  decision.Policy,
			reason:  "routed",
			meta: map[string]any{
				"eligible":   decision.Eligible,
				"candidates": len(candidates),
			},
			at: now,
		})
		if err != nil {
			return err
		}
		result.Lead = assigned
		result.Outcome = OutcomeAssigned
		return nil
	})
	if err != nil {
		metrics.LeadRouted("", "error")
		return nil, err
	}

	metrics.LeadRouted(string(result.Decision.Policy), string(result.Outcome))
	if result.Lead.AssignedTo != nil {
		s.logger.Info("Lead routed",
			"lead_id", leadID,
			"agent_id", *result.Lead.AssignedTo,
			"outcome", result.Outcome,
			"policy", result.Decision.Policy,
		)
		s.notifier.NotifyAgentOfLead(ctx, *result.Lead.AssignedTo, leadID)
	}
	return result, nil
}

// AssignLead assigns an unassigned lead to a chosen agent.
func (s *leadRouter) AssignLead(ctx context.Context, leadID, agentID, actorID uuid.UUID) (*domain.Lead, error) {
	const op = "router.assign_lead"

	peek, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NotFound(op, "lead", leadID.String())
		}
		return nil, domain.Internal(err, op, "failed to get lead")
	}
	if !peek.OrganizationID.Valid {
		return nil, domain.Invalid(op, "only organization leads can be assigned manually")
	}

	var assigned *domain.Lead
	err = s.tx.run(ctx, op, func(q repository.Querier) error {
		orgRow, err := lockOrganization(ctx, q, peek.OrganizationID.UUID, op)
		if err != nil {
			return err
		}
		if err := requireManager(ctx, q, orgRow, actorID, op); err != nil {
			return err
		}
		if _, err := requireMember(ctx, q, orgRow, agentID, op); err != nil {
			return err
		}

		lead, err := s.lockUnassignedLead(ctx, q, op, leadID)
		if err != nil {
			return err
		}

		assigned, err = s.commitAssignment(ctx, q, op, assignment{
			lead:    lead,
			agentID: agentID,
			actorID: &actorID,
			kind:    domain.AssignmentManual,
			reason:  "manual assignment",
			at:      s.now().UTC(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Lead assigned manually",
		"lead_id", leadID,
		"agent_id", agentID,
		"actor_id", actorID,
	)
	metrics.LeadRouted("", string(domain.AssignmentManual))
	s.notifier.NotifyAgentOfLead(ctx, agentID, leadID)
	return assigned, nil
}

// ReassignLead moves a lead to another agent. The previous agent keeps their
// total_assigned count; it records leads ever received.
func (s *leadRouter) ReassignLead(ctx context.Context, leadID, agentID, actorID uuid.UUID, reason string) (*domain.Lead, error) {
	const op = "router.reassign_lead"

	peek, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NotFound(op, "lead", leadID.String())
		}
		return nil, domain.Internal(err, op, "failed to get lead")
	}
	if !peek.OrganizationID.Valid {
		return nil, domain.Invalid(op, "only organization leads can be reassigned")
	}
	if reason == "" {
		reason = "reassigned"
	}

	var reassigned *domain.Lead
	err = s.tx.run(ctx, op, func(q repository.Querier) error {
		orgRow, err := lockOrganization(ctx, q, peek.OrganizationID.UUID, op)
		if err != nil {
			return err
		}
		if err := requireManager(ctx, q, orgRow, actorID, op); err != nil {
			return err
		}
		if _, err := requireMember(ctx, q, orgRow, agentID, op); err != nil {
			return err
		}

		lead, err := q.GetLeadForUpdate(ctx, leadID)
		if err != nil {
			return domain.Internal(err, op, "failed to lock lead")
		}
		if !lead.AssignedTo.Valid {
			return domain.Conflict(op, "lead is not assigned; assign it instead")
		}
		previous := lead.AssignedTo.UUID
		if previous == agentID {
			return domain.Conflict(op, "lead is already assigned to this agent")
		}
		if domain.LeadStatus(lead.Status).IsTerminal() {
			return domain.Conflict(op, "closed leads cannot be reassigned")
		}

		now := s.now().UTC()
		row, err := q.ReassignLead(ctx, repository.ReassignLeadParams{
			ID:              leadID,
			AssignedTo:      agentID,
			AssignedAt:      now,
			PreviousAgentID: previous,
		})
		if err != nil {
			if repository.IsNotFound(err) {
				return domain.Conflict(op, "lead assignment changed concurrently")
			}
			return domain.Internal(err, op, "failed to reassign lead")
		}

		if err := s.recordAssignment(ctx, q, op, row, assignment{
			agentID:  agentID,
			previous: &previous,
			actorID:  &actorID,
			kind:     domain.AssignmentReassign,
			reason:   reason,
			at:       now,
		}); err != nil {
			return err
		}

		reassigned = toDomainLead(row)
		s.logger.Info("Lead reassigned",
			"lead_id", leadID,
			"from", previous,
			"to", agentID,
			"actor_id", actorID,
			"reason", reason,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.LeadRouted("", string(domain.AssignmentReassign))
	s.notifier.NotifyAgentOfLead(ctx, agentID, leadID)
	return reassigned, nil
}

// =============================================================================
// Helpers
// =============================================================================

type assignment struct {
	lead     repository.Lead
	agentID  uuid.UUID
	previous *uuid.UUID
	actorID  *uuid.UUID
	kind     domain.AssignmentKind
	policy   domain.RoutingType
	reason   string
	meta     map[string]any
	at       time.Time
}

// lockUnassignedLead locks the lead row and fails with ECONFLICT if it
// already has an agent or is closed.
func (s *leadRouter) lockUnassignedLead(ctx context.Context, q repository.Querier, op string, leadID uuid.UUID) (repository.Lead, error) {
	lead, err := q.GetLeadForUpdate(ctx, leadID)
	if err != nil {
		if repository.IsNotFound(err) {
			return lead, domain.NotFound(op, "lead", leadID.String())
		}
		return lead, domain.Internal(err, op, "failed to lock lead")
	}
	if lead.AssignedTo.Valid {
		return lead, domain.Conflict(op, "lead is already assigned")
	}
	if domain.LeadStatus(lead.Status).IsTerminal() {
		return lead, domain.Conflict(op, "closed leads cannot be assigned")
	}
	return lead, nil
}

// commitAssignment sets the lead's agent and records the ledger bump and
// audit row in the caller's transaction.
func (s *leadRouter) commitAssignment(ctx context.Context, q repository.Querier, op string, a assignment) (*domain.Lead, error) {
	row, err := q.AssignLead(ctx, repository.AssignLeadParams{
		ID:         a.lead.ID,
		AssignedTo: a.agentID,
		AssignedAt: a.at,
	})
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.Conflict(op, "lead is already assigned")
		}
		return nil, domain.Internal(err, op, "failed to assign lead")
	}

	if err := s.recordAssignment(ctx, q, op, row, a); err != nil {
		return nil, err
	}
	return toDomainLead(row), nil
}

// recordAssignment bumps the agent's ledger (organization leads only) and
// appends the audit row.
func (s *leadRouter) recordAssignment(ctx context.Context, q repository.Querier, op string, lead repository.Lead, a assignment) error {
	if lead.OrganizationID.Valid {
		if _, err := q.BumpAssignmentTracking(ctx, repository.BumpAssignmentTrackingParams{
			OrganizationID: lead.OrganizationID.UUID,
			AgentID:        a.agentID,
			AssignedAt:     a.at,
		}); err != nil {
			return domain.Internal(err, op, "failed to update assignment tracking")
		}
	}

	var meta pqtype.NullRawMessage
	if len(a.meta) > 0 {
		var err error
		if meta, err = marshalNullJSON(a.meta); err != nil {
			return domain.Internal(err, op, "failed to encode assignment metadata")
		}
	}

	if _, err := q.InsertLeadAssignment(ctx, repository.InsertLeadAssignmentParams{
		LeadID:          lead.ID,
		OrganizationID:  lead.OrganizationID,
		AgentID:         a.agentID,
		PreviousAgentID: domain.ToNullUUID(a.previous),
		ActorID:         domain.ToNullUUID(a.actorID),
		Kind:            string(a.kind),
		Policy:          domain.ToNullString(string(a.policy)),
		Reason:          a.reason,
		Meta:            meta,
		AssignedAt:      a.at,
	}); err != nil {
		return domain.Internal(err, op, "failed to record assignment")
	}
	return nil
}

// loadConfig returns the organization's routing config, or the default when
// none has been saved.
func (s *leadRouter) loadConfig(ctx context.Context, q repository.Querier, op string, orgID uuid.UUID) (domain.RoutingConfig, error) {
	row, err := q.GetRoutingConfig(ctx, orgID)
	if err != nil {
		if repository.IsNotFound(err) {
			s.logger.Info("No routing config, using default", "organization_id", orgID)
			return domain.DefaultRoutingConfig(orgID), nil
		}
		return domain.RoutingConfig{}, domain.Internal(err, op, "failed to get routing config")
	}
	return toDomainRoutingConfig(row, s.logger), nil
}

// listCandidates loads the organization's agents with their ledger and lead
// statistics. Members whose personal plan cannot receive leads are skipped.
func (s *leadRouter) listCandidates(ctx context.Context, q repository.Querier, op string, cfg domain.RoutingConfig, now time.Time) ([]domain.Candidate, error) {
	open := make([]string, len(domain.OpenLeadStatuses))
	for i, st := range domain.OpenLeadStatuses {
		open[i] = string(st)
	}

	rows, err := q.ListRoutingCandidates(ctx, repository.ListRoutingCandidatesParams{
		OrganizationID: cfg.OrganizationID,
		DayStart:       cfg.DayStart(now),
		OpenStatuses:   open,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list routing candidates")
	}

	candidates := make([]domain.Candidate, 0, len(rows))
	for _, row := range rows {
		role, ok := domain.ParseRole(row.UserRole)
		if !ok {
			metrics.UnknownRole()
			s.logger.Warn("Unknown role on routing candidate, using free entitlements",
				"agent_id", row.AgentID,
				"stored_role", row.UserRole,
			)
		}
		if !domain.CanPerform(domain.PersonalFlags(role), domain.ActionReceiveLeads) {
			continue
		}
		candidates = append(candidates, toCandidate(row))
	}
	return candidates, nil
}
