package handler

import (
	"time"

	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/DukeRupert/hearth/internal/service"
	"github.com/google/uuid"
)

// =============================================================================
// Response bodies
// =============================================================================

type quotaView struct {
	Limit     int64 `json:"limit"`
	Used      int64 `json:"used"`
	Remaining int64 `json:"remaining"`
	Unlimited bool  `json:"unlimited"`
}

func newQuotaView(q domain.Quota) quotaView {
	v := quotaView{Used: q.Used, Unlimited: q.Unlimited}
	if !q.Unlimited {
		v.Limit = int64(q.Limit)
		v.Remaining = q.Remaining
	}
	return v
}

type personalFlagsView struct {
	ViewContactInfo   bool   `json:"view_contact_info"`
	SaveSearches      bool   `json:"save_searches"`
	CreateListings    bool   `json:"create_listings"`
	FeaturedListings  bool   `json:"featured_listings"`
	ReceiveLeads      bool   `json:"receive_leads"`
	ManageTeam        bool   `json:"manage_team"`
	AdminPanel        bool   `json:"admin_panel"`
	MaxActiveListings string `json:"max_active_listings"`
	MaxSavedSearches  string `json:"max_saved_searches"`
	Analytics         string `json:"analytics"`
	MarketData        string `json:"market_data"`
}

type orgView struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Tier              string    `json:"tier"`
	MaxActiveListings string    `json:"max_active_listings"`
	Seats             string    `json:"seats"`
	LeadRouting       bool      `json:"lead_routing"`
	Listings          quotaView `json:"listings"`
	SeatUsage         quotaView `json:"seat_usage"`
	OwnerID           uuid.UUID `json:"owner_id"`
}

type entitlementsView struct {
	UserID       uuid.UUID         `json:"user_id"`
	Role         string            `json:"role"`
	Personal     personalFlagsView `json:"personal"`
	Listings     quotaView         `json:"listings"`
	Organization *orgView          `json:"organization,omitempty"`
	Actions      map[string]bool   `json:"actions"`
}

func newEntitlementsView(e *service.UserEntitlements) entitlementsView {
	p := e.Entitlements.Personal
	v := entitlementsView{
		UserID: e.User.ID,
		Role:   e.User.Role.String(),
		Personal: personalFlagsView{
			ViewContactInfo:   p.ViewContactInfo,
			SaveSearches:      p.SaveSearches,
			CreateListings:    p.CreateListings,
			FeaturedListings:  p.FeaturedListings,
			ReceiveLeads:      p.ReceiveLeads,
			ManageTeam:        p.ManageTeam,
			AdminPanel:        p.AdminPanel,
			MaxActiveListings: p.MaxActiveListings.String(),
			MaxSavedSearches:  p.MaxSavedSearches.String(),
			Analytics:         p.Analytics.String(),
			MarketData:        p.MarketData.String(),
		},
		Listings: newQuotaView(e.PersonalListings),
		Actions:  e.Actions,
	}

	if e.Organization != nil && e.Entitlements.Org != nil {
		o := e.Entitlements.Org
		ov := &orgView{
			ID:                e.Organization.ID,
			Name:              e.Organization.Name,
			Tier:              o.Tier.String(),
			MaxActiveListings: o.MaxActiveListings.String(),
			Seats:             o.Seats.String(),
			LeadRouting:       o.LeadRouting,
			OwnerID:           e.Organization.OwnerID,
		}
		if e.OrgListings != nil {
			ov.Listings = newQuotaView(*e.OrgListings)
		}
		if e.OrgSeats != nil {
			ov.SeatUsage = newQuotaView(*e.OrgSeats)
		}
		v.Organization = ov
	}
	return v
}

type listingView struct {
	ID             uuid.UUID  `json:"id"`
	AgentID        uuid.UUID  `json:"agent_id"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	Title          string     `json:"title"`
	Address        string     `json:"address"`
	City           string     `json:"city"`
	State          string     `json:"state"`
	PostalCode     string     `json:"postal_code"`
	PriceCents     int64      `json:"price_cents"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func newListingView(l *domain.Listing) listingView {
	return listingView{
		ID:             l.ID,
		AgentID:        l.AgentID,
		OrganizationID: l.OrganizationID,
		Title:          l.Title,
		Address:        l.Address,
		City:           l.City,
		State:          l.State,
		PostalCode:     l.PostalCode,
		PriceCents:     l.PriceCents,
		Status:         l.Status.String(),
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

type memberView struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

type leadView struct {
	ID             uuid.UUID  `json:"id"`
	ListingID      uuid.UUID  `json:"listing_id"`
	OwnerAgentID   uuid.UUID  `json:"owner_agent_id"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone,omitempty"`
	Message        string     `json:"message,omitempty"`
	Status         string     `json:"status"`
	AssignedTo     *uuid.UUID `json:"assigned_to,omitempty"`
	AssignedAt     *time.Time `json:"assigned_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func newLeadView(l *domain.Lead) leadView {
	return leadView{
		ID:             l.ID,
		ListingID:      l.ListingID,
		OwnerAgentID:   l.OwnerAgentID,
		OrganizationID: l.OrganizationID,
		Name:           l.Name,
		Email:          l.Email,
		Phone:          l.Phone,
		Message:        l.Message,
		Status:         l.Status.String(),
		AssignedTo:     l.AssignedTo,
		AssignedAt:     l.AssignedAt,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

// intakeView is returned to the public intake caller. It never reveals who
// the lead was assigned to.
type intakeView struct {
	LeadID uuid.UUID `json:"lead_id"`
	Status string    `json:"status"`
}

type assignmentView struct {
	ID              uuid.UUID  `json:"id"`
	AgentID         uuid.UUID  `json:"agent_id"`
	PreviousAgentID *uuid.UUID `json:"previous_agent_id,omitempty"`
	ActorID         *uuid.UUID `json:"actor_id,omitempty"`
	Kind            string     `json:"kind"`
	Policy          string     `json:"policy,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	AssignedAt      time.Time  `json:"assigned_at"`
}

func newAssignmentView(a domain.LeadAssignment) assignmentView {
	return assignmentView{
		ID:              a.ID,
		AgentID:         a.AgentID,
		PreviousAgentID: a.PreviousAgentID,
		ActorID:         a.ActorID,
		Kind:            string(a.Kind),
		Policy:          string(a.Policy),
		Reason:          a.Reason,
		AssignedAt:      a.AssignedAt,
	}
}

// routingConfigBody is the routing config as served by GET and PUT.
type routingConfigBody struct {
	RoutingType      string               `json:"routing_type"`
	IsActive         bool                 `json:"is_active"`
	MaxLeadsPerAgent int                  `json:"max_leads_per_agent"`
	WorkingHours     *domain.WorkingHours `json:"working_hours,omitempty"`
	IsDefault        bool                 `json:"is_default"`
	UpdatedAt        *time.Time           `json:"updated_at,omitempty"`
}

func newRoutingConfigBody(c *domain.RoutingConfig) routingConfigBody {
	b := routingConfigBody{
		RoutingType:      string(c.RoutingType),
		IsActive:         c.IsActive,
		MaxLeadsPerAgent: c.MaxLeadsPerAgent,
		WorkingHours:     c.WorkingHours,
		IsDefault:        c.IsDefault,
	}
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		b.UpdatedAt = &t
	}
	return b
}

type trackingView struct {
	OrganizationID uuid.UUID  `json:"organization_id"`
	AgentID        uuid.UUID  `json:"agent_id"`
	IsAvailable    bool       `json:"is_available"`
	MaxLeadsPerDay int        `json:"max_leads_per_day"`
	Weight         int        `json:"weight"`
	TotalAssigned  int64      `json:"total_assigned"`
	LastAssignedAt *time.Time `json:"last_assigned_at,omitempty"`
}

func newTrackingView(t *domain.AssignmentTracking) trackingView {
	return trackingView{
		OrganizationID: t.OrganizationID,
		AgentID:        t.AgentID,
		IsAvailable:    t.IsAvailable,
		MaxLeadsPerDay: t.MaxLeadsPerDay,
		Weight:         t.Weight,
		TotalAssigned:  t.TotalAssigned,
		LastAssignedAt: t.LastAssignedAt,
	}
}
