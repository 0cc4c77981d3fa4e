package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

type Querier interface {
	AssignLead(ctx context.Context, arg AssignLeadParams) (Lead, error)
	BumpAssignmentTracking(ctx context.Context, arg BumpAssignmentTrackingParams) (AssignmentTracking, error)
	CountActiveOrganizationListings(ctx context.Context, organizationID uuid.UUID) (int64, error)
	CountActivePersonalListings(ctx context.Context, agentID uuid.UUID) (int64, error)
	CountOrganizationMembers(ctx context.Context, organizationID uuid.UUID) (int64, error)
	CreateUser(ctx context.Context, arg CreateUserParams) (User, error)
	DeleteMember(ctx context.Context, arg DeleteMemberParams) (int64, error)
	DequeueJob(ctx context.Context) (Job, error)
	EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error)
	GetAssignmentTracking(ctx context.Context, arg GetAssignmentTrackingParams) (AssignmentTracking, error)
	GetLead(ctx context.Context, id uuid.UUID) (Lead, error)
	GetLeadForUpdate(ctx context.Context, id uuid.UUID) (Lead, error)
	GetListing(ctx context.Context, id uuid.UUID) (Listing, error)
	GetListingForUpdate(ctx context.Context, id uuid.UUID) (Listing, error)
	GetOrganization(ctx context.Context, id uuid.UUID) (Organization, error)
	GetOrganizationMember(ctx context.Context, arg GetOrganizationMemberParams) (OrganizationMember, error)
	GetRoutingConfig(ctx context.Context, organizationID uuid.UUID) (RoutingConfig, error)
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
	GetUserByStripeCustomerID(ctx context.Context, stripeCustomerID sql.NullString) (User, error)
	InsertLead(ctx context.Context, arg InsertLeadParams) (Lead, error)
	InsertLeadAssignment(ctx context.Context, arg InsertLeadAssignmentParams) (LeadAssignment, error)
	InsertListing(ctx context.Context, arg InsertListingParams) (Listing, error)
	InsertMember(ctx context.Context, arg InsertMemberParams) (OrganizationMember, error)
	ListLeadAssignments(ctx context.Context, leadID uuid.UUID) ([]LeadAssignment, error)
	ListRoutingCandidates(ctx context.Context, arg ListRoutingCandidatesParams) ([]ListRoutingCandidatesRow, error)
	ListUnassignedLeads(ctx context.Context, arg ListUnassignedLeadsParams) ([]Lead, error)
	LockOrganizationForUpdate(ctx context.Context, id uuid.UUID) (Organization, error)
	LockUserForUpdate(ctx context.Context, id uuid.UUID) (User, error)
	ReassignLead(ctx context.Context, arg ReassignLeadParams) (Lead, error)
	RecoverStaleJobs(ctx context.Context, thresholdSeconds float64) (int64, error)
	SetOrganizationSeatsUsed(ctx context.Context, arg SetOrganizationSeatsUsedParams) error
	SetUserOrganization(ctx context.Context, arg SetUserOrganizationParams) error
	UpdateJobCompleted(ctx context.Context, id uuid.UUID) error
	UpdateJobFailed(ctx context.Context, arg UpdateJobFailedParams) error
	UpdateJobStarted(ctx context.Context, id uuid.UUID) error
	UpdateLeadStatus(ctx context.Context, arg UpdateLeadStatusParams) (Lead, error)
	UpdateListingStatus(ctx context.Context, arg UpdateListingStatusParams) (Listing, error)
	UpdateUserSubscription(ctx context.Context, arg UpdateUserSubscriptionParams) error
	UpsertAgentAvailability(ctx context.Context, arg UpsertAgentAvailabilityParams) (AssignmentTracking, error)
	UpsertAgentLimits(ctx context.Context, arg UpsertAgentLimitsParams) (AssignmentTracking, error)
	UpsertRoutingConfig(ctx context.Context, arg UpsertRoutingConfigParams) (RoutingConfig, error)
}

var _ Querier = (*Queries)(nil)
