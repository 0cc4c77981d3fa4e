package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

const routingConfigColumns = `organization_id, routing_type, is_active, max_leads_per_agent, working_hours, updated_at`

func scanRoutingConfig(row interface{ Scan(...interface{}) error }) (RoutingConfig, error) {
	var i RoutingConfig
	err := row.Scan(
		&i.OrganizationID,
		&i.RoutingType,
		&i.IsActive,
		&i.MaxLeadsPerAgent,
		&i.WorkingHours,
		&i.UpdatedAt,
	)
	return i, err
}

const getRoutingConfig = `-- name: GetRoutingConfig :one
SELECT ` + routingConfigColumns + ` FROM routing_configs
WHERE organization_id = $1`

func (q *Queries) GetRoutingConfig(ctx context.Context, organizationID uuid.UUID) (RoutingConfig, error) {
	row := q.db.QueryRowContext(ctx, getRoutingConfig, organizationID)
	return scanRoutingConfig(row)
}

const upsertRoutingConfig = `-- name: UpsertRoutingConfig :one
INSERT INTO routing_configs (organization_id, routing_type, is_active, max_leads_per_agent, working_hours, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (organization_id) DO UPDATE
SET routing_type = EXCLUDED.routing_type,
    is_active = EXCLUDED.is_active,
    max_leads_per_agent = EXCLUDED.max_leads_per_agent,
    working_hours = EXCLUDED.working_hours,
    updated_at = NOW()
RETURNING ` + routingConfigColumns

type UpsertRoutingConfigParams struct {
	OrganizationID   uuid.UUID             `json:"organization_id"`
	RoutingType      string                `json:"routing_type"`
	IsActive         bool                  `json:"is_active"`
	MaxLeadsPerAgent int32                 `json:"max_leads_per_agent"`
	WorkingHours     pqtype.NullRawMessage `json:"working_hours"`
}

func (q *Queries) UpsertRoutingConfig(ctx context.Context, arg UpsertRoutingConfigParams) (RoutingConfig, error) {
	row := q.db.QueryRowContext(ctx, upsertRoutingConfig,
		arg.OrganizationID,
		arg.RoutingType,
		arg.IsActive,
		arg.MaxLeadsPerAgent,
		arg.WorkingHours,
	)
	return scanRoutingConfig(row)
}

const listRoutingCandidates = `-- name: ListRoutingCandidates :many
SELECT
    m.user_id AS agent_id,
    u.role AS user_role,
    COALESCE(t.is_available, TRUE) AS is_available,
    COALESCE(t.max_leads_per_day, 0)::int AS max_leads_per_day,
    COALESCE(t.weight, 0)::int AS weight,
    t.last_assigned_at,
    COALESCE(t.total_assigned, 0)::bigint AS total_assigned,
    (SELECT COUNT(*) FROM lead_assignments a
      WHERE a.organization_id = m.organization_id
        AND a.agent_id = m.user_id
        AND a.assigned_at >= $2) AS todays_assigned,
    (SELECT COUNT(*) FROM leads l
      WHERE l.organization_id = m.organization_id
        AND l.assigned_to = m.user_id
        AND l.status = ANY($3::text[])) AS open_leads,
    (SELECT COUNT(*) FROM leads l
      WHERE l.organization_id = m.organization_id
        AND l.assigned_to = m.user_id
        AND l.status = 'converted') AS converted_leads,
    (SELECT COUNT(*) FROM leads l
      WHERE l.organization_id = m.organization_id
        AND l.assigned_to = m.user_id
        AND l.status IN ('converted', 'lost')) AS closed_leads
FROM organization_members m
JOIN users u ON u.id = m.user_id
LEFT JOIN assignment_tracking t
    ON t.organization_id = m.organization_id AND t.agent_id = m.user_id
WHERE m.organization_id = $1
ORDER BY m.user_id`

type ListRoutingCandidatesParams struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	DayStart       time.Time `json:"day_start"`
	OpenStatuses   []string  `json:"open_statuses"`
}

type ListRoutingCandidatesRow struct {
	AgentID        uuid.UUID    `json:"agent_id"`
	UserRole       string       `json:"user_role"`
	IsAvailable    bool         `json:"is_available"`
	MaxLeadsPerDay int32        `json:"max_leads_per_day"`
	Weight         int32        `json:"weight"`
	LastAssignedAt sql.NullTime `json:"last_assigned_at"`
	TotalAssigned  int64        `json:"total_assigned"`
	TodaysAssigned int64        `json:"todays_assigned"`
	OpenLeads      int64        `json:"open_leads"`
	ConvertedLeads int64        `json:"converted_leads"`
	ClosedLeads    int64        `json:"closed_leads"`
}

// ListRoutingCandidates joins the roster with the fairness ledger and the
// lead statistics each routing policy reads.
func (q *Queries) ListRoutingCandidates(ctx context.Context, arg ListRoutingCandidatesParams) ([]ListRoutingCandidatesRow, error) {
	rows, err := q.db.QueryContext(ctx, listRoutingCandidates, arg.OrganizationID, arg.DayStart, pq.Array(arg.OpenStatuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListRoutingCandidatesRow
	for rows.Next() {
		var i ListRoutingCandidatesRow
		if err := rows.Scan(
			&i.AgentID,
			&i.UserRole,
			&i.IsAvailable,
			&i.MaxLeadsPerDay,
			&i.Weight,
			&i.LastAssignedAt,
			&i.TotalAssigned,
			&i.TodaysAssigned,
			&i.OpenLeads,
			&i.ConvertedLeads,
			&i.ClosedLeads,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const trackingColumns = `organization_id, agent_id, last_assigned_at, total_assigned, is_available, max_leads_per_day, weight, updated_at`

func scanTracking(row interface{ Scan(...interface{}) error }) (AssignmentTracking, error) {
	var i AssignmentTracking
	err := row.Scan(
		&i.OrganizationID,
		&i.AgentID,
		&i.LastAssignedAt,
		&i.TotalAssigned,
		&i.IsAvailable,
		&i.MaxLeadsPerDay,
		&i.Weight,
		&i.UpdatedAt,
	)
	return i, err
}

const getAssignmentTracking = `-- name: GetAssignmentTracking :one
SELECT ` + trackingColumns + ` FROM assignment_tracking
WHERE organization_id = $1 AND agent_id = $2`

type GetAssignmentTrackingParams struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	AgentID        uuid.UUID `json:"agent_id"`
}

func (q *Queries) GetAssignmentTracking(ctx context.Context, arg GetAssignmentTrackingParams) (AssignmentTracking, error) {
	row := q.db.QueryRowContext(ctx, getAssignmentTracking, arg.OrganizationID, arg.AgentID)
	return scanTracking(row)
}

const bumpAssignmentTracking = `-- name: BumpAssignmentTracking :one
INSERT INTO assignment_tracking (organization_id, agent_id, last_assigned_at, total_assigned, updated_at)
VALUES ($1, $2, $3, 1, NOW())
ON CONFLICT (organization_id, agent_id) DO UPDATE
SET last_assigned_at = EXCLUDED.last_assigned_at,
    total_assigned = assignment_tracking.total_assigned + 1,
    updated_at = NOW()
RETURNING ` + trackingColumns

type BumpAssignmentTrackingParams struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	AgentID        uuid.UUID `json:"agent_id"`
	AssignedAt     time.Time `json:"assigned_at"`
}

// BumpAssignmentTracking records one more assignment for the agent. Callers
// run it in the same transaction as the lead update.
func (q *Queries) BumpAssignmentTracking(ctx context.Context, arg BumpAssignmentTrackingParams) (AssignmentTracking, error) {
	row := q.db.QueryRowContext(ctx, bumpAssignmentTracking, arg.OrganizationID, arg.AgentID, arg.AssignedAt)
	return scanTracking(row)
}

const upsertAgentAvailability = `-- name: UpsertAgentAvailability :one
INSERT INTO assignment_tracking (organization_id, agent_id, is_available, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (organization_id, agent_id) DO UPDATE
SET is_available = EXCLUDED.is_available,
    updated_at = NOW()
RETURNING ` + trackingColumns

type UpsertAgentAvailabilityParams struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	AgentID        uuid.UUID `json:"agent_id"`
	IsAvailable    bool      `json:"is_available"`
}

func (q *Queries) UpsertAgentAvailability(ctx context.Context, arg UpsertAgentAvailabilityParams) (AssignmentTracking, error) {
	row := q.db.QueryRowContext(ctx, upsertAgentAvailability, arg.OrganizationID, arg.AgentID, arg.IsAvailable)
	return scanTracking(row)
}

const upsertAgentLimits = `-- name: UpsertAgentLimits :one
INSERT INTO assignment_tracking (organization_id, agent_id, max_leads_per_day, weight, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (organization_id, agent_id) DO UPDATE
SET max_leads_per_day = EXCLUDED.max_leads_per_day,
    weight = EXCLUDED.weight,
    updated_at = NOW()
RETURNING ` + trackingColumns

type UpsertAgentLimitsParams struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	AgentID        uuid.UUID `json:"agent_id"`
	MaxLeadsPerDay int32     `json:"max_leads_per_day"`
	Weight         int32     `json:"weight"`
}

func (q *Queries) UpsertAgentLimits(ctx context.Context, arg UpsertAgentLimitsParams) (AssignmentTracking, error) {
	row := q.db.QueryRowContext(ctx, upsertAgentLimits, arg.OrganizationID, arg.AgentID, arg.MaxLeadsPerDay, arg.Weight)
	return scanTracking(row)
}
