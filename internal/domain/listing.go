// Package domain contains core business types and interfaces.
//
// This file defines the Listing (property) domain type.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ListingStatus represents the lifecycle state of a listing.
type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "active"
	ListingStatusPending  ListingStatus = "pending"
	ListingStatusSold     ListingStatus = "sold"
	ListingStatusArchived ListingStatus = "archived"
)

// String returns the string representation of the status.
func (s ListingStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s ListingStatus) IsValid() bool {
	switch s {
	case ListingStatusActive, ListingStatusPending, ListingStatusSold, ListingStatusArchived:
		return true
	}
	return false
}

// CountsAgainstCap returns true for the only status that uses a listing slot.
func (s ListingStatus) CountsAgainstCap() bool {
	return s == ListingStatusActive
}

// Listing is a property owned by exactly one agent and optionally attached
// to an organization.
type Listing struct {
	ID             uuid.UUID
	AgentID        uuid.UUID
	OrganizationID *uuid.UUID
	Title          string
	Address        string
	City           string
	State          string
	PostalCode     string
	PriceCents     int64
	Status         ListingStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsOrganizationScoped returns true if the listing counts against an
// organization's cap rather than the agent's personal cap.
func (l *Listing) IsOrganizationScoped() bool {
	return l.OrganizationID != nil
}

// IsActive returns true if the listing is active.
func (l *Listing) IsActive() bool {
	return l.Status == ListingStatusActive
}

// TransitionTo validates a status change. Moving into active from any other
// status needs a fresh cap reservation, which the caller performs.
func (l *Listing) TransitionTo(target ListingStatus) error {
	if !target.IsValid() {
		return fmt.Errorf("unknown listing status %q", target)
	}
	if l.Status == target {
		return fmt.Errorf("listing is already %s", target)
	}
	l.Status = target
	return nil
}

// CreateListingParams contains the parameters for creating a listing.
type CreateListingParams struct {
	AgentID        uuid.UUID
	OrganizationID *uuid.UUID
	Title          string
	Address        string
	City           string
	State          string
	PostalCode     string
	PriceCents     int64
}
