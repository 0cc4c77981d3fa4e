package domain

import (
	"time"

	"github.com/google/uuid"
)

// MemberRole is a user's position inside an organization, independent of
// their subscription role.
type MemberRole string

const (
	MemberRoleOwner   MemberRole = "owner"
	MemberRoleManager MemberRole = "manager"
	MemberRoleAgent   MemberRole = "agent"
)

// IsValid returns true if the member role is a recognized value.
func (r MemberRole) IsValid() bool {
	switch r {
	case MemberRoleOwner, MemberRoleManager, MemberRoleAgent:
		return true
	}
	return false
}

// CanManage returns true if the member may change routing, team and
// assignments.
func (r MemberRole) CanManage() bool {
	return r == MemberRoleOwner || r == MemberRoleManager
}

// Organization is a brokerage or team. ListingCap and SeatLimit are
// negotiated overrides; nil means the tier's catalog value applies.
type Organization struct {
	ID         uuid.UUID
	Name       string
	Tier       Role
	StoredTier string
	ListingCap *int64
	SeatLimit  *int64
	SeatsUsed  int64
	OwnerID    uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Flags returns the organization's aggregate caps with overrides applied.
func (o *Organization) Flags() OrgFlags {
	return OrganizationFlags(o.Tier).WithOverrides(o.ListingCap, o.SeatLimit)
}

// Member is one seat in an organization.
type Member struct {
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	Role           MemberRole
	CreatedAt      time.Time
}

// AddMemberParams contains the parameters for taking a seat.
type AddMemberParams struct {
	OrganizationID uuid.UUID
	ActorID        uuid.UUID
	UserID         uuid.UUID
	Role           MemberRole
}
