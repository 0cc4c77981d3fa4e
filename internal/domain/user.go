// Package domain contains core business types and interfaces.
//
// This file defines the User domain type. These types are separate from the
// repository models to allow for business logic enrichment and to decouple
// the domain layer from the database layer.
package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the possible states of a user's subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid   SubscriptionStatus = "unpaid"
)

// KeepsPaidRole reports whether a subscription in this state still grants
// its paid role. past_due keeps the role during the processor's grace period.
func (s SubscriptionStatus) KeepsPaidRole() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusTrialing, SubscriptionStatusPastDue:
		return true
	}
	return false
}

// User represents a marketplace account.
//
// Role is the parsed subscription level. StoredRole keeps the raw column
// value so that a corrupt or legacy value can be reported.
type User struct {
	ID                 uuid.UUID
	Email              string
	Name               string
	Phone              string
	Role               Role
	StoredRole         string
	OrganizationID     *uuid.UUID
	StripeCustomerID   string
	SubscriptionStatus SubscriptionStatus
	SubscriptionID     string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasKnownRole reports whether the stored role parsed cleanly.
func (u *User) HasKnownRole() bool {
	_, ok := ParseRole(u.StoredRole)
	return ok
}

// InOrganization returns true if the user belongs to an organization.
func (u *User) InOrganization() bool {
	return u.OrganizationID != nil
}

// DisplayName returns the user's name or email if name is empty.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// CreateUserParams contains the parameters for creating an account.
type CreateUserParams struct {
	Email string
	Name  string
	Phone string
}

// SubscriptionUpdate is a billing event applied to a user. Role is the role
// the subscribed price grants; empty when the price is unknown.
type SubscriptionUpdate struct {
	UserID         uuid.UUID
	CustomerID     string
	SubscriptionID string
	Status         SubscriptionStatus
	Role           Role
}

// RoleFor returns the role the user should hold after the update. A paying
// status grants the price's role (or keeps the current one if the price is
// unknown); any other status falls back to registered.
func (u SubscriptionUpdate) RoleFor(current Role) Role {
	if !u.Status.KeepsPaidRole() {
		return RoleRegistered
	}
	if u.Role != "" && u.Role.IsValid() {
		return u.Role
	}
	if current == RoleFree {
		return RoleRegistered
	}
	return current
}

// =============================================================================
// Conversion helpers from repository types
// =============================================================================

// NullStringValue safely extracts a string from sql.NullString.
func NullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// NullTimeValue safely extracts a time pointer from sql.NullTime.
func NullTimeValue(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time
		return &t
	}
	return nil
}

// NullInt64Value safely extracts an int64 pointer from sql.NullInt64.
func NullInt64Value(ni sql.NullInt64) *int64 {
	if ni.Valid {
		v := ni.Int64
		return &v
	}
	return nil
}

// NullUUIDValue safely extracts a uuid pointer from uuid.NullUUID.
func NullUUIDValue(nu uuid.NullUUID) *uuid.UUID {
	if nu.Valid {
		id := nu.UUID
		return &id
	}
	return nil
}

// ToNullString converts a string to sql.NullString.
func ToNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// ToNullUUID converts a uuid pointer to uuid.NullUUID.
func ToNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{Valid: false}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// ToNullInt64 converts an int64 pointer to sql.NullInt64.
func ToNullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// ToNullTime converts a time pointer to sql.NullTime.
func ToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
