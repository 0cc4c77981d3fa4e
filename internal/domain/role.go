// Package domain contains core business types and interfaces.
//
// This file defines the Role type, the subscription level that drives every
// entitlement decision.
package domain

import "strings"

// Role is a user's subscription level. Roles are totally ordered:
//
//	free < registered < premium < agent < agency < expert < admin
type Role string

const (
	RoleFree       Role = "free"
	RoleRegistered Role = "registered"
	RolePremium    Role = "premium"
	RoleAgent      Role = "agent"
	RoleAgency     Role = "agency"
	RoleExpert     Role = "expert"
	RoleAdmin      Role = "admin"
)

// roleRank is the single ordering table for roles.
var roleRank = map[Role]int{
	RoleFree:       0,
	RoleRegistered: 1,
	RolePremium:    2,
	RoleAgent:      3,
	RoleAgency:     4,
	RoleExpert:     5,
	RoleAdmin:      6,
}

// AllRoles returns every known role in ascending order.
func AllRoles() []Role {
	return []Role{RoleFree, RoleRegistered, RolePremium, RoleAgent, RoleAgency, RoleExpert, RoleAdmin}
}

// ParseRole normalizes s into a Role. The second return value is false when s
// is not a known role; the returned role is then RoleFree.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleRank[r]; ok {
		return r, true
	}
	return RoleFree, false
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid returns true if the role is a recognized value.
func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// Rank returns the role's position in the total order. Unknown roles rank
// with free.
func (r Role) Rank() int {
	return roleRank[r]
}

// AtLeast reports whether r is the same as or above min.
func (r Role) AtLeast(min Role) bool {
	return r.Rank() >= min.Rank()
}

// IsAgent reports whether the role can own listings and receive leads.
func (r Role) IsAgent() bool {
	return r.AtLeast(RoleAgent)
}
