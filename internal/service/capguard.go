// Package service contains the business logic layer.
//
// This file implements the usage cap guard. Every mutation that consumes a
// capped resource (an active listing, a team seat) goes through here: the
// subject row is locked, usage is counted, the cap is resolved and the
// insert happens, all in one transaction.
package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/DukeRupert/hearth/internal/metrics"
	"github.com/DukeRupert/hearth/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// CapGuard enforces listing and seat caps at the point of mutation.
type CapGuard interface {
	// ReserveListing creates an active listing if the relevant cap allows it.
	// Organization listings count against the organization's cap; personal
	// listings count against the agent's own cap.
	// Returns domain.EPAYMENT (CapExceeded) when the cap is reached.
	ReserveListing(ctx context.Context, params domain.CreateListingParams) (*domain.Listing, error)

	// SetListingStatus changes a listing's status. Moving back into active
	// takes a fresh reservation; leaving active frees a slot.
	SetListingStatus(ctx context.Context, actorID, listingID uuid.UUID, status domain.ListingStatus) (*domain.Listing, error)

	// ReserveSeat adds a member to an organization if a seat is free.
	// Returns domain.EPAYMENT (CapExceeded) when every seat is taken.
	ReserveSeat(ctx context.Context, params domain.AddMemberParams) (*domain.Member, error)

	// RemoveMember frees a seat. Members may remove themselves; otherwise
	// the actor must manage the organization. The owner cannot be removed.
	RemoveMember(ctx context.Context, organizationID, actorID, userID uuid.UUID) error
}

// =============================================================================
// Implementation
// =============================================================================

type capGuard struct {
	store  repository.Store
	tx     txRunner
	logger *slog.Logger
}

// NewCapGuard creates a new CapGuard. attempts bounds how many times a
// transaction is repeated after a serialization failure.
func NewCapGuard(store repository.Store, attempts int, logger *slog.Logger) CapGuard {
	return &capGuard{
		store:  store,
		tx:     newTxRunner(store, attempts, logger),
		logger: logger,
	}
}

// ReserveListing checks the listing cap and inserts the listing atomically.
func (s *capGuard) ReserveListing(ctx context.Context, params domain.CreateListingParams) (*domain.Listing, error) {
	const op = "capguard.reserve_listing"

	if err := validateListingParams(op, &params); err != nil {
		return nil, err
	}

	var created repository.Listing
	err := s.tx.run(ctx, op, func(q repository.Querier) error {
		subject, err := s.lockListingSubject(ctx, q, op, params.AgentID, params.OrganizationID)
		if err != nil {
			return err
		}
		used, limit, err := s.checkListingQuota(ctx, q, op, subject)
		if err != nil {
			return err
		}

		created, err = q.InsertListing(ctx, repository.InsertListingParams{
			AgentID:        params.AgentID,
			OrganizationID: domain.ToNullUUID(params.OrganizationID),
			Title:          params.Title,
			Address:        params.Address,
			City:           params.City,
			State:          params.State,
			PostalCode:     params.PostalCode,
			PriceCents:     params.PriceCents,
		})
		if err != nil {
			return domain.Internal(err, op, "failed to insert listing")
		}

		s.logger.Info("Listing reserved",
			"listing_id", created.ID,
			"agent_id", params.AgentID,
			"organization_id", params.OrganizationID,
			"used", used+1,
			"limit", limit.String(),
		)
		return nil
	})
	if err != nil {
		s.recordOutcome(domain.CounterListings, err)
		return nil, err
	}

	metrics.CapReserved(string(domain.CounterListings))
	return toDomainListing(created), nil
}

// SetListingStatus applies a status change, re-checking the cap when the
// listing becomes active again.
func (s *capGuard) SetListingStatus(ctx context.Context, actorID, listingID uuid.UUID, status domain.ListingStatus) (*domain.Listing, error) {
	const op = "capguard.set_listing_status"

	if !status.IsValid() {
		return nil, domain.Invalid(op, "unknown listing status")
	}

	// The scope (agent, organization) of a listing never changes, so it is
	// safe to read it before taking the subject lock.
	current, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NotFound(op, "listing", listingID.String())
		}
		return nil, domain.Internal(err, op, "failed to get listing")
	}

	var updated repository.Listing
	err = s.tx.run(ctx, op, func(q repository.Querier) error {
		if err := s.authorizeListingChange(ctx, q, op, current, actorID); err != nil {
			return err
		}

		// Subject lock first, then the listing, same order as every other
		// listing mutation.
		subject, err := s.lockListingSubject(ctx, q, op, current.AgentID, domain.NullUUIDValue(current.OrganizationID))
		if err != nil {
			return err
		}

		row, err := q.GetListingForUpdate(ctx, listingID)
		if err != nil {
			return domain.Internal(err, op, "failed to lock listing")
		}
		listing := toDomainListing(row)
		from := listing.Status
		if err := listing.TransitionTo(status); err != nil {
			return domain.Conflict(op, err.Error())
		}

		if status.CountsAgainstCap() {
			if _, _, err := s.checkListingQuota(ctx, q, op, subject); err != nil {
				return err
			}
		}

		updated, err = q.UpdateListingStatus(ctx, repository.UpdateListingStatusParams{
			ID:     listingID,
			Status: string(status),
		})
		if err != nil {
			return domain.Internal(err, op, "failed to update listing status")
		}

		s.logger.Info("Listing status changed",
			"listing_id", listingID,
			"actor_id", actorID,
			"from", from,
			"to", status,
		)
		return nil
	})
	if err != nil {
		if status.CountsAgainstCap() {
			s.recordOutcome(domain.CounterListings, err)
		}
		return nil, err
	}

	if status.CountsAgainstCap() {
		metrics.CapReserved(string(domain.CounterListings))
	}
	return toDomainListing(updated), nil
}

// listingSubject is whoever owns the cap a listing counts against.
type listingSubject struct {
	agentID uuid.UUID
	org     *repository.Organization
	ent     domain.Entitlements
}

// lockListingSubject takes the row lock that serializes listing-cap checks:
// the organization for organization listings, the agent otherwise.
func (s *capGuard) lockListingSubject(ctx context.Context, q repository.Querier, op string, agentID uuid.UUID, orgID *uuid.UUID) (listingSubject, error) {
	subject := listingSubject{agentID: agentID}

	if orgID != nil {
		orgRow, err := lockOrganization(ctx, q, *orgID, op)
		if err != nil {
			return subject, err
		}
		userRow, err := q.GetUser(ctx, agentID)
		if err != nil {
			if repository.IsNotFound(err) {
				return subject, domain.NotFound(op, "user", agentID.String())
			}
			return subject, domain.Internal(err, op, "failed to get agent")
		}
		subject.org = &orgRow
		subject.ent = resolveEntitlements(s.logger, toDomainUser(userRow), toDomainOrganization(orgRow))
		return subject, nil
	}

	userRow, err := q.LockUserForUpdate(ctx, agentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return subject, domain.NotFound(op, "user", agentID.String())
		}
		return subject, domain.Internal(err, op, "failed to lock agent")
	}
	subject.ent = resolveEntitlements(s.logger, toDomainUser(userRow), nil)
	return subject, nil
}

// checkListingQuota counts the subject's active listings and returns
// CapExceeded if one more would not fit. Organization listings are governed
// by the organization's aggregate cap; the agent still needs the personal
// create_listings gate and a seat in the organization.
func (s *capGuard) checkListingQuota(ctx context.Context, q repository.Querier, op string, subject listingSubject) (int64, domain.Limit, error) {
	if !domain.CanPerform(subject.ent.Personal, domain.ActionCreateListing) {
		return 0, 0, domain.CapExceeded(op, domain.CounterListings, 0, 0)
	}

	var (
		used  int64
		quota domain.Quota
		err   error
	)
	if subject.org != nil {
		if _, err := requireMember(ctx, q, *subject.org, subject.agentID, op); err != nil {
			return 0, 0, err
		}
		used, err = q.CountActiveOrganizationListings(ctx, subject.org.ID)
		if err != nil {
			return 0, 0, domain.Internal(err, op, "failed to count organization listings")
		}
		quota = domain.RemainingOrgQuota(*subject.ent.Org, domain.FeatureOrgMaxActiveListings, used)
	} else {
		used, err = q.CountActivePersonalListings(ctx, subject.agentID)
		if err != nil {
			return 0, 0, domain.Internal(err, op, "failed to count listings")
		}
		quota = domain.RemainingQuota(subject.ent.Personal, domain.FeatureMaxActiveListings, used)
	}

	if !quota.Allowed() {
		return used, quota.Limit, domain.CapExceeded(op, domain.CounterListings, int64(quota.Limit), used)
	}
	return used, quota.Limit, nil
}

// authorizeListingChange allows the owning agent, or a manager of the
// listing's organization.
func (s *capGuard) authorizeListingChange(ctx context.Context, q repository.Querier, op string, listing repository.Listing, actorID uuid.UUID) error {
	if listing.AgentID == actorID {
		return nil
	}
	if !listing.OrganizationID.Valid {
		return domain.Forbidden(op, "only the listing agent can change this listing")
	}
	org, err := q.GetOrganization(ctx, listing.OrganizationID.UUID)
	if err != nil {
		return domain.Internal(err, op, "failed to get organization")
	}
	return requireManager(ctx, q, org, actorID, op)
}

// ReserveSeat checks the seat cap and inserts the member atomically.
func (s *capGuard) ReserveSeat(ctx context.Context, params domain.AddMemberParams) (*domain.Member, error) {
	const op = "capguard.reserve_seat"

	if params.Role == "" {
		params.Role = domain.MemberRoleAgent
	}
	if !params.Role.IsValid() || params.Role == domain.MemberRoleOwner {
		return nil, domain.Invalid(op, "member role must be manager or agent")
	}

	var member repository.OrganizationMember
	err := s.tx.run(ctx, op, func(q repository.Querier) error {
		orgRow, err := lockOrganization(ctx, q, params.OrganizationID, op)
		if err != nil {
			return err
		}
		if err := requireManager(ctx, q, orgRow, params.ActorID, op); err != nil {
			return err
		}

		userRow, err := q.GetUser(ctx, params.UserID)
		if err != nil {
			if repository.IsNotFound(err) {
				return domain.NotFound(op, "user", params.UserID.String())
			}
			return domain.Internal(err, op, "failed to get user")
		}
		if userRow.OrganizationID.Valid {
			return domain.Conflict(op, "user already belongs to an organization")
		}

		used, err := q.CountOrganizationMembers(ctx, orgRow.ID)
		if err != nil {
			return domain.Internal(err, op, "failed to count members")
		}

		flags := toDomainOrganization(orgRow).Flags()
		quota := domain.RemainingOrgQuota(flags, domain.FeatureOrgSeats, used)
		if !quota.Allowed() {
			return domain.CapExceeded(op, domain.CounterSeats, int64(quota.Limit), used)
		}

		member, err = q.InsertMember(ctx, repository.InsertMemberParams{
			OrganizationID: orgRow.ID,
			UserID:         params.UserID,
			Role:           string(params.Role),
		})
		if err != nil {
			if repository.IsUniqueViolation(err) {
				return domain.Conflict(op, "user already holds a seat")
			}
			return domain.Internal(err, op, "failed to insert member")
		}

		if err := q.SetUserOrganization(ctx, repository.SetUserOrganizationParams{
			ID:             params.UserID,
			OrganizationID: domain.ToNullUUID(&orgRow.ID),
		}); err != nil {
			return domain.Internal(err, op, "failed to link user to organization")
		}

		if err := q.SetOrganizationSeatsUsed(ctx, repository.SetOrganizationSeatsUsedParams{
			ID:        orgRow.ID,
			SeatsUsed: used + 1,
		}); err != nil {
			return domain.Internal(err, op, "failed to update seat count")
		}

		s.logger.Info("Seat reserved",
			"organization_id", orgRow.ID,
			"user_id", params.UserID,
			"actor_id", params.ActorID,
			"seats_used", used+1,
			"seat_limit", quota.Limit.String(),
		)
		return nil
	})
	if err != nil {
		s.recordOutcome(domain.CounterSeats, err)
		return nil, err
	}

	metrics.CapReserved(string(domain.CounterSeats))
	return toDomainMember(member), nil
}

// RemoveMember deletes a seat and recounts seats_used.
func (s *capGuard) RemoveMember(ctx context.Context, organizationID, actorID, userID uuid.UUID) error {
	const op = "capguard.remove_member"

	return s.tx.run(ctx, op, func(q repository.Querier) error {
		orgRow, err := lockOrganization(ctx, q, organizationID, op)
		if err != nil {
			return err
		}
		if orgRow.OwnerID == userID {
			return domain.Conflict(op, "the organization owner cannot be removed")
		}
		if actorID != userID {
			if err := requireManager(ctx, q, orgRow, actorID, op); err != nil {
				return err
			}
		}

		n, err := q.DeleteMember(ctx, repository.DeleteMemberParams{
			OrganizationID: organizationID,
			UserID:         userID,
		})
		if err != nil {
			return domain.Internal(err, op, "failed to delete member")
		}
		if n == 0 {
			return domain.NotFound(op, "member", userID.String())
		}

		if err := q.SetUserOrganization(ctx, repository.SetUserOrganizationParams{ID: userID}); err != nil {
			return domain.Internal(err, op, "failed to unlink user")
		}

		remaining, err := q.CountOrganizationMembers(ctx, organizationID)
		if err != nil {
			return domain.Internal(err, op, "failed to count members")
		}
		if err := q.SetOrganizationSeatsUsed(ctx, repository.SetOrganizationSeatsUsedParams{
			ID:        organizationID,
			SeatsUsed: remaining,
		}); err != nil {
			return domain.Internal(err, op, "failed to update seat count")
		}

		s.logger.Info("Seat released",
			"organization_id", organizationID,
			"user_id", userID,
			"actor_id", actorID,
			"seats_used", remaining,
		)
		return nil
	})
}

func (s *capGuard) recordOutcome(counter domain.Counter, err error) {
	if _, ok := domain.AsCapExceeded(err); ok {
		metrics.CapRejected(string(counter))
		s.logger.Info("Cap reservation rejected", "counter", counter, "error", err)
		return
	}
	metrics.CapErrored(string(counter))
}

func validateListingParams(op string, p *domain.CreateListingParams) error {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return domain.NewValidationError(op, "title", "Title is required")
	}
	if len(p.Title) > 200 {
		return domain.NewValidationError(op, "title", "Title must be 200 characters or fewer")
	}
	if p.PriceCents < 0 {
		return domain.NewValidationError(op, "price_cents", "Price cannot be negative")
	}
	if p.AgentID == uuid.Nil {
		return domain.Invalid(op, "agent is required")
	}
	return nil
}
