package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type AssignmentTracking struct {
	OrganizationID uuid.UUID    `json:"organization_id"`
	AgentID        uuid.UUID    `json:"agent_id"`
	LastAssignedAt sql.NullTime `json:"last_assigned_at"`
	TotalAssigned  int64        `json:"total_assigned"`
	IsAvailable    bool         `json:"is_available"`
	MaxLeadsPerDay int32        `json:"max_leads_per_day"`
	Weight         int32        `json:"weight"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type Job struct {
	ID           uuid.UUID       `json:"id"`
	JobType      string          `json:"job_type"`
	Payload      json.RawMessage `json:"payload"`
	Status       string          `json:"status"`
	Priority     int32           `json:"priority"`
	Attempts     int32           `json:"attempts"`
	MaxAttempts  int32           `json:"max_attempts"`
	ScheduledAt  time.Time       `json:"scheduled_at"`
	StartedAt    sql.NullTime    `json:"started_at"`
	CompletedAt  sql.NullTime    `json:"completed_at"`
	ErrorMessage sql.NullString  `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Lead struct {
	ID             uuid.UUID      `json:"id"`
	ListingID      uuid.UUID      `json:"listing_id"`
	OwnerAgentID   uuid.UUID      `json:"owner_agent_id"`
	OrganizationID uuid.NullUUID  `json:"organization_id"`
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	Phone          sql.NullString `json:"phone"`
	Message        sql.NullString `json:"message"`
	Status         string         `json:"status"`
	AssignedTo     uuid.NullUUID  `json:"assigned_to"`
	AssignedAt     sql.NullTime   `json:"assigned_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type LeadAssignment struct {
	ID              uuid.UUID             `json:"id"`
	LeadID          uuid.UUID             `json:"lead_id"`
	OrganizationID  uuid.NullUUID         `json:"organization_id"`
	AgentID         uuid.UUID             `json:"agent_id"`
	PreviousAgentID uuid.NullUUID         `json:"previous_agent_id"`
	ActorID         uuid.NullUUID         `json:"actor_id"`
	Kind            string                `json:"kind"`
	Policy          sql.NullString        `json:"policy"`
	Reason          string                `json:"reason"`
	Meta            pqtype.NullRawMessage `json:"meta"`
	AssignedAt      time.Time             `json:"assigned_at"`
}

type Listing struct {
	ID             uuid.UUID     `json:"id"`
	AgentID        uuid.UUID     `json:"agent_id"`
	OrganizationID uuid.NullUUID `json:"organization_id"`
	Title          string        `json:"title"`
	Address        string        `json:"address"`
	City           string        `json:"city"`
	State          string        `json:"state"`
	PostalCode     string        `json:"postal_code"`
	PriceCents     int64         `json:"price_cents"`
	Status         string        `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

type Organization struct {
	ID         uuid.UUID     `json:"id"`
	Name       string        `json:"name"`
	Tier       string        `json:"tier"`
	ListingCap sql.NullInt64 `json:"listing_cap"`
	SeatLimit  sql.NullInt64 `json:"seat_limit"`
	SeatsUsed  int64         `json:"seats_used"`
	OwnerID    uuid.UUID     `json:"owner_id"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type OrganizationMember struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

type RoutingConfig struct {
	OrganizationID   uuid.UUID             `json:"organization_id"`
	RoutingType      string                `json:"routing_type"`
	IsActive         bool                  `json:"is_active"`
	MaxLeadsPerAgent int32                 `json:"max_leads_per_agent"`
	WorkingHours     pqtype.NullRawMessage `json:"working_hours"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

type User struct {
	ID                 uuid.UUID      `json:"id"`
	Email              string         `json:"email"`
	Name               string         `json:"name"`
	Phone              sql.NullString `json:"phone"`
	Role               string         `json:"role"`
	OrganizationID     uuid.NullUUID  `json:"organization_id"`
	StripeCustomerID   sql.NullString `json:"stripe_customer_id"`
	SubscriptionStatus sql.NullString `json:"subscription_status"`
	SubscriptionID     sql.NullString `json:"subscription_id"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}
