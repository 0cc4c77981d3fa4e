package service

import (
	"encoding/json"
	"log/slog"

	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/DukeRupert/hearth/internal/metrics"
	"github.com/DukeRupert/hearth/internal/repository"
	"github.com/sqlc-dev/pqtype"
)

// =============================================================================
// Repository -> domain conversion
// =============================================================================

func toDomainUser(u repository.User) *domain.User {
	role, _ := domain.ParseRole(u.Role)
	return &domain.User{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name,
		Phone:              domain.NullStringValue(u.Phone),
		Role:               role,
		StoredRole:         u.Role,
		OrganizationID:     domain.NullUUIDValue(u.OrganizationID),
		StripeCustomerID:   domain.NullStringValue(u.StripeCustomerID),
		SubscriptionStatus: domain.SubscriptionStatus(domain.NullStringValue(u.SubscriptionStatus)),
		SubscriptionID:     domain.NullStringValue(u.SubscriptionID),
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func toDomainOrganization(o repository.Organization) *domain.Organization {
	tier, _ := domain.ParseRole(o.Tier)
	return &domain.Organization{
		ID:         o.ID,
		Name:       o.Name,
		Tier:       tier,
		StoredTier: o.Tier,
		ListingCap: domain.NullInt64Value(o.ListingCap),
		SeatLimit:  domain.NullInt64Value(o.SeatLimit),
		SeatsUsed:  o.SeatsUsed,
		OwnerID:    o.OwnerID,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

func toDomainMember(m repository.OrganizationMember) *domain.Member {
	return &domain.Member{
		OrganizationID: m.OrganizationID,
		UserID:         m.UserID,
		Role:           domain.MemberRole(m.Role),
		CreatedAt:      m.CreatedAt,
	}
}

func toDomainListing(l repository.Listing) *domain.Listing {
	return &domain.Listing{
		ID:             l.ID,
		AgentID:        l.AgentID,
		OrganizationID: domain.NullUUIDValue(l.OrganizationID),
		Title:          l.Title,
		Address:        l.Address,
		City:           l.City,
		State:          l.State,
		PostalCode:     l.PostalCode,
		PriceCents:     l.PriceCents,
		Status:         domain.ListingStatus(l.Status),
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

func toDomainLead(l repository.Lead) *domain.Lead {
	return &domain.Lead{
		ID:             l.ID,
		ListingID:      l.ListingID,
		OwnerAgentID:   l.OwnerAgentID,
		OrganizationID: domain.NullUUIDValue(l.OrganizationID),
		Name:           l.Name,
		Email:          l.Email,
		Phone:          domain.NullStringValue(l.Phone),
		Message:        domain.NullStringValue(l.Message),
		Status:         domain.LeadStatus(l.Status),
		AssignedTo:     domain.NullUUIDValue(l.AssignedTo),
		AssignedAt:     domain.NullTimeValue(l.AssignedAt),
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

func toDomainAssignment(a repository.LeadAssignment) domain.LeadAssignment {
	return domain.LeadAssignment{
		ID:              a.ID,
		LeadID:          a.LeadID,
		OrganizationID:  domain.NullUUIDValue(a.OrganizationID),
		AgentID:         a.AgentID,
		PreviousAgentID: domain.NullUUIDValue(a.PreviousAgentID),
		ActorID:         domain.NullUUIDValue(a.ActorID),
		Kind:            domain.AssignmentKind(a.Kind),
		Policy:          domain.RoutingType(domain.NullStringValue(a.Policy)),
		Reason:          a.Reason,
		AssignedAt:      a.AssignedAt,
	}
}

func toDomainTracking(t repository.AssignmentTracking) *domain.AssignmentTracking {
	return &domain.AssignmentTracking{
		OrganizationID: t.OrganizationID,
		AgentID:        t.AgentID,
		LastAssignedAt: domain.NullTimeValue(t.LastAssignedAt),
		TotalAssigned:  t.TotalAssigned,
		IsAvailable:    t.IsAvailable,
		MaxLeadsPerDay: int(t.MaxLeadsPerDay),
		Weight:         int(t.Weight),
		UpdatedAt:      t.UpdatedAt,
	}
}

// toDomainRoutingConfig decodes a stored config. A working-hours value that
// no longer decodes is dropped with a warning rather than blocking intake.
func toDomainRoutingConfig(c repository.RoutingConfig, logger *slog.Logger) domain.RoutingConfig {
	cfg := domain.RoutingConfig{
		OrganizationID:   c.OrganizationID,
		RoutingType:      domain.RoutingType(c.RoutingType),
		IsActive:         c.IsActive,
		MaxLeadsPerAgent: int(c.MaxLeadsPerAgent),
		UpdatedAt:        c.UpdatedAt,
	}
	if c.WorkingHours.Valid {
		var wh domain.WorkingHours
		if err := json.Unmarshal(c.WorkingHours.RawMessage, &wh); err != nil {
			logger.Warn("Ignoring undecodable working hours",
				"organization_id", c.OrganizationID,
				"error", err,
			)
		} else {
			cfg.WorkingHours = &wh
		}
	}
	return cfg
}

func toCandidate(row repository.ListRoutingCandidatesRow) domain.Candidate {
	return domain.Candidate{
		AgentID:        row.AgentID,
		IsAvailable:    row.IsAvailable,
		MaxLeadsPerDay: int(row.MaxLeadsPerDay),
		TodaysAssigned: int(row.TodaysAssigned),
		LastAssignedAt: domain.NullTimeValue(row.LastAssignedAt),
		TotalAssigned:  row.TotalAssigned,
		OpenLeads:      int(row.OpenLeads),
		Weight:         int(row.Weight),
		Converted:      int(row.ConvertedLeads),
		Closed:         int(row.ClosedLeads),
	}
}

func marshalNullJSON(v any) (pqtype.NullRawMessage, error) {
	if v == nil {
		return pqtype.NullRawMessage{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}, nil
}

// =============================================================================
// Entitlement resolution with integrity logging
// =============================================================================

// resolveEntitlements derives a user's entitlements, logging stored roles or
// tiers that did not parse. Those fall back to free inside the catalog.
func resolveEntitlements(logger *slog.Logger, user *domain.User, org *domain.Organization) domain.Entitlements {
	if !user.HasKnownRole() {
		metrics.UnknownRole()
		logger.Warn("Unknown role, using free entitlements",
			"user_id", user.ID,
			"stored_role", user.StoredRole,
		)
	}

	if org == nil {
		return domain.Resolve(user.Role, nil)
	}

	if _, ok := domain.ParseRole(org.StoredTier); !ok {
		metrics.UnknownRole()
		logger.Warn("Unknown organization tier, using free caps",
			"organization_id", org.ID,
			"stored_tier", org.StoredTier,
		)
	}

	ent := domain.Resolve(user.Role, &org.Tier)
	flags := org.Flags()
	ent.Org = &flags
	return ent
}
