package service

import (
	"context"
	"log/slog"

	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/DukeRupert/hearth/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EntitlementService answers "what may this user do" questions from the
// user's current role, organization and usage.
type EntitlementService interface {
	// ForUser returns the user's entitlements with current usage and
	// remaining quotas, for upgrade prompts and dashboards.
	// Returns domain.ENOTFOUND if the user does not exist.
	ForUser(ctx context.Context, userID uuid.UUID) (*UserEntitlements, error)

	// Can reports whether the user's personal flags permit the action.
	Can(ctx context.Context, userID uuid.UUID, action domain.Action) (bool, error)
}

// UserEntitlements is a read-only snapshot. It is stale the moment it is
// returned; enforcement always happens again inside CapGuard.
type UserEntitlements struct {
	User         *domain.User
	Organization *domain.Organization
	Entitlements domain.Entitlements

	PersonalListings domain.Quota
	OrgListings      *domain.Quota
	OrgSeats         *domain.Quota

	Actions map[string]bool
}

// =============================================================================
// Implementation
// =============================================================================

type entitlementService struct {
	queries repository.Querier
	logger  *slog.Logger
}

// NewEntitlementService creates a new EntitlementService.
func NewEntitlementService(queries repository.Querier, logger *slog.Logger) EntitlementService {
	return &entitlementService{
		queries: queries,
		logger:  logger,
	}
}

// ForUser resolves entitlements and usage for a user.
func (s *entitlementService) ForUser(ctx context.Context, userID uuid.UUID) (*UserEntitlements, error) {
	const op = "entitlement.for_user"

	user, org, err := s.load(ctx, op, userID)
	if err != nil {
		return nil, err
	}

	ent := resolveEntitlements(s.logger, user, org)

	personalUsed, err := s.queries.CountActivePersonalListings(ctx, user.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count listings")
	}

	out := &UserEntitlements{
		User:             user,
		Organization:     org,
		Entitlements:     ent,
		PersonalListings: domain.RemainingQuota(ent.Personal, domain.FeatureMaxActiveListings, personalUsed),
		Actions:          make(map[string]bool),
	}

	for _, action := range domain.Actions() {
		out.Actions[action.Name] = domain.CanPerform(ent.Personal, action)
	}

	if org != nil {
		orgListings, err := s.queries.CountActiveOrganizationListings(ctx, org.ID)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to count organization listings")
		}
		members, err := s.queries.CountOrganizationMembers(ctx, org.ID)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to count organization members")
		}

		listings := domain.RemainingOrgQuota(*ent.Org, domain.FeatureOrgMaxActiveListings, orgListings)
		seats := domain.RemainingOrgQuota(*ent.Org, domain.FeatureOrgSeats, members)
		out.OrgListings = &listings
		out.OrgSeats = &seats
	}

	return out, nil
}

// Can checks a single action against the user's personal flags.
func (s *entitlementService) Can(ctx context.Context, userID uuid.UUID, action domain.Action) (bool, error) {
	const op = "entitlement.can"

	user, org, err := s.load(ctx, op, userID)
	if err != nil {
		return false, err
	}

	ent := resolveEntitlements(s.logger, user, org)
	return domain.CanPerform(ent.Personal, action), nil
}

func (s *entitlementService) load(ctx context.Context, op string, userID uuid.UUID) (*domain.User, *domain.Organization, error) {
	row, err := s.queries.GetUser(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, domain.NotFound(op, "user", userID.String())
		}
		return nil, nil, domain.Internal(err, op, "failed to get user")
	}
	user := toDomainUser(row)

	if user.OrganizationID == nil {
		return user, nil, nil
	}

	orgRow, err := s.queries.GetOrganization(ctx, *user.OrganizationID)
	if err != nil {
		if repository.IsNotFound(err) {
			// Dangling membership; treat as no organization.
			s.logger.Warn("User references missing organization",
				"user_id", user.ID,
				"organization_id", *user.OrganizationID,
			)
			return user, nil, nil
		}
		return nil, nil, domain.Internal(err, op, "failed to get organization")
	}

	return user, toDomainOrganization(orgRow), nil
}
