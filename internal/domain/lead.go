// Package domain contains core business types and interfaces.
//
// This file defines the Lead domain type and its lifecycle.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Lead Status
// =============================================================================

// LeadStatus represents the lifecycle state of a lead.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusLost      LeadStatus = "lost"
)

// OpenLeadStatuses are the non-terminal statuses.
var OpenLeadStatuses = []LeadStatus{LeadStatusNew, LeadStatusContacted, LeadStatusQualified}

// String returns the string representation of the status.
func (s LeadStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s LeadStatus) IsValid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified,
		LeadStatusConverted, LeadStatusLost:
		return true
	}
	return false
}

// IsTerminal returns true for converted and lost.
func (s LeadStatus) IsTerminal() bool {
	return s == LeadStatusConverted || s == LeadStatusLost
}

// CanTransitionTo checks if the lead can move to the target status.
//
// Valid transitions:
// - new -> contacted -> qualified -> converted
// - any open status -> lost
func (s LeadStatus) CanTransitionTo(target LeadStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if target == LeadStatusLost {
		return true
	}

	switch s {
	case LeadStatusNew:
		return target == LeadStatusContacted
	case LeadStatusContacted:
		return target == LeadStatusQualified
	case LeadStatusQualified:
		return target == LeadStatusConverted
	}

	return false
}

// =============================================================================
// Lead Domain Type
// =============================================================================

// Lead is an inquiry about a listing. AssignedTo stays nil until the lead is
// routed or assigned; after that it only changes through an explicit
// reassignment.
type Lead struct {
	ID             uuid.UUID
	ListingID      uuid.UUID
	OwnerAgentID   uuid.UUID
	OrganizationID *uuid.UUID
	Name           string
	Email          string
	Phone          string
	Message        string
	Status         LeadStatus
	AssignedTo     *uuid.UUID
	AssignedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsAssigned returns true if the lead sits in an agent's queue.
func (l *Lead) IsAssigned() bool {
	return l.AssignedTo != nil
}

// IsOrganizationLead returns true if the lead is routed at organization level.
func (l *Lead) IsOrganizationLead() bool {
	return l.OrganizationID != nil
}

// TransitionTo moves the lead to the target status if allowed.
func (l *Lead) TransitionTo(target LeadStatus) error {
	if !l.Status.CanTransitionTo(target) {
		return fmt.Errorf("cannot transition lead from %s to %s", l.Status, target)
	}
	l.Status = target
	return nil
}

// CreateLeadParams contains the parameters for lead intake.
type CreateLeadParams struct {
	ListingID uuid.UUID
	Name      string
	Email     string
	Phone     string
	Message   string
}

// =============================================================================
// Assignment audit trail
// =============================================================================

// AssignmentKind says how a lead reached an agent.
type AssignmentKind string

const (
	AssignmentAuto     AssignmentKind = "auto"
	AssignmentManual   AssignmentKind = "manual"
	AssignmentReassign AssignmentKind = "reassign"
	AssignmentOwner    AssignmentKind = "owner"
)

// LeadAssignment is one append-only row of a lead's assignment history.
type LeadAssignment struct {
	ID              uuid.UUID
	LeadID          uuid.UUID
	OrganizationID  *uuid.UUID
	AgentID         uuid.UUID
	PreviousAgentID *uuid.UUID
	ActorID         *uuid.UUID
	Kind            AssignmentKind
	Policy          RoutingType
	Reason          string
	AssignedAt      time.Time
}
