package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const leadColumns = `id, listing_id, owner_agent_id, organization_id, name, email, phone, message, status, assigned_to, assigned_at, created_at, updated_at`

func scanLead(row interface{ Scan(...interface{}) error }) (Lead, error) {
	var i Lead
	err := row.Scan(
		&i.ID,
		&i.ListingID,
		&i.OwnerAgentID,
		&i.OrganizationID,
		&i.Name,
		&i.Email,
		&i.Phone,
		&i.Message,
		&i.Status,
		&i.AssignedTo,
		&i.AssignedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getLead = `-- name: GetLead :one
SELECT ` + leadColumns + ` FROM leads
WHERE id = $1`

func (q *Queries) GetLead(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := q.db.QueryRowContext(ctx, getLead, id)
	return scanLead(row)
}

const getLeadForUpdate = `-- name: GetLeadForUpdate :one
SELECT ` + leadColumns + ` FROM leads
WHERE id = $1
FOR UPDATE`

func (q *Queries) GetLeadForUpdate(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := q.db.QueryRowContext(ctx, getLeadForUpdate, id)
	return scanLead(row)
}

const insertLead = `-- name: InsertLead :one
INSERT INTO leads (listing_id, owner_agent_id, organization_id, name, email, phone, message, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, 'new')
RETURNING ` + leadColumns

type InsertLeadParams struct {
	ListingID      uuid.UUID      `json:"listing_id"`
	OwnerAgentID   uuid.UUID      `json:"owner_agent_id"`
	OrganizationID uuid.NullUUID  `json:"organization_id"`
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	Phone          sql.NullString `json:"phone"`
	Message        sql.NullString `json:"message"`
}

func (q *Queries) InsertLead(ctx context.Context, arg InsertLeadParams) (Lead, error) {
	row := q.db.QueryRowContext(ctx, insertLead,
		arg.ListingID,
		arg.OwnerAgentID,
		arg.OrganizationID,
		arg.Name,
		arg.Email,
		arg.Phone,
		arg.Message,
	)
	return scanLead(row)
}

const assignLead = `-- name: AssignLead :one
UPDATE leads
SET assigned_to = $2, assigned_at = $3, updated_at = NOW()
WHERE id = $1 AND assigned_to IS NULL
RETURNING ` + leadColumns

type AssignLeadParams struct {
	ID         uuid.UUID `json:"id"`
	AssignedTo uuid.UUID `json:"assigned_to"`
	AssignedAt time.Time `json:"assigned_at"`
}

// AssignLead only touches unassigned leads; it returns sql.ErrNoRows when the
// lead already has an agent.
func (q *Queries) AssignLead(ctx context.Context, arg AssignLeadParams) (Lead, error) {
	row := q.db.QueryRowContext(ctx, assignLead, arg.ID, arg.AssignedTo, arg.AssignedAt)
	return scanLead(row)
}

const reassignLead = `-- name: ReassignLead :one
UPDATE leads
SET assigned_to = $2, assigned_at = $3, updated_at = NOW()
WHERE id = $1 AND assigned_to = $4
RETURNING ` + leadColumns

type ReassignLeadParams struct {
	ID              uuid.UUID `json:"id"`
	AssignedTo      uuid.UUID `json:"assigned_to"`
	AssignedAt      time.Time `json:"assigned_at"`
	PreviousAgentID uuid.UUID `json:"previous_agent_id"`
}

func (q *Queries) ReassignLead(ctx context.Context, arg ReassignLeadParams) (Lead, error) {
	row := q.db.QueryRowContext(ctx, reassignLead,
		arg.ID,
		arg.AssignedTo,
		arg.AssignedAt,
		arg.PreviousAgentID,
	)
	return scanLead(row)
}

const updateLeadStatus = `-- name: UpdateLeadStatus :one
UPDATE leads
SET status = $2, updated_at = NOW()
WHERE id = $1 AND status = $3
RETURNING ` + leadColumns

// UpdateLeadStatusParams moves a lead from FromStatus to Status. No row is
// returned when the stored status is no longer FromStatus.
type UpdateLeadStatusParams struct {
	ID         uuid.UUID `json:"id"`
	Status     string    `json:"status"`
	FromStatus string    `json:"from_status"`
}

func (q *Queries) UpdateLeadStatus(ctx context.Context, arg UpdateLeadStatusParams) (Lead, error) {
	row := q.db.QueryRowContext(ctx, updateLeadStatus, arg.ID, arg.Status, arg.FromStatus)
	return scanLead(row)
}

const listUnassignedLeads = `-- name: ListUnassignedLeads :many
SELECT ` + leadColumns + ` FROM leads
WHERE organization_id = $1
  AND assigned_to IS NULL
ORDER BY created_at ASC
LIMIT $2`

type ListUnassignedLeadsParams struct {
	OrganizationID uuid.NullUUID `json:"organization_id"`
	Limit          int32         `json:"limit"`
}

func (q *Queries) ListUnassignedLeads(ctx context.Context, arg ListUnassignedLeadsParams) ([]Lead, error) {
	rows, err := q.db.QueryContext(ctx, listUnassignedLeads, arg.OrganizationID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Lead
	for rows.Next() {
		i, err := scanLead(rows)
		if err != nil {
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

const insertLeadAssignment = `-- name: InsertLeadAssignment :one
INSERT INTO lead_assignments (
    lead_id, organization_id, agent_id, previous_agent_id, actor_id, kind, policy, reason, meta, assigned_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
)
RETURNING id, lead_id, organization_id, agent_id, previous_agent_id, actor_id, kind, policy, reason, meta, assigned_at`

type InsertLeadAssignmentParams struct {
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

func (q *Queries) InsertLeadAssignment(ctx context.Context, arg InsertLeadAssignmentParams) (LeadAssignment, error) {
	row := q.db.QueryRowContext(ctx, insertLeadAssignment,
		arg.LeadID,
		arg.OrganizationID,
		arg.AgentID,
		arg.PreviousAgentID,
		arg.ActorID,
		arg.Kind,
		arg.Policy,
		arg.Reason,
		arg.Meta,
		arg.AssignedAt,
	)
	var i LeadAssignment
	err := row.Scan(
		&i.ID,
		&i.LeadID,
		&i.OrganizationID,
		&i.AgentID,
		&i.PreviousAgentID,
		&i.ActorID,
		&i.Kind,
		&i.Policy,
		&i.Reason,
		&i.Meta,
		&i.AssignedAt,
	)
	return i, err
}

const listLeadAssignments = `-- name: ListLeadAssignments :many
SELECT id, lead_id, organization_id, agent_id, previous_agent_id, actor_id, kind, policy, reason, meta, assigned_at
FROM lead_assignments
WHERE lead_id = $1
ORDER BY assigned_at ASC`

func (q *Queries) ListLeadAssignments(ctx context.Context, leadID uuid.UUID) ([]LeadAssignment, error) {
	rows, err := q.db.QueryContext(ctx, listLeadAssignments, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LeadAssignment
	for rows.Next() {
		var i LeadAssignment
		if err := rows.Scan(
			&i.ID,
			&i.LeadID,
			&i.OrganizationID,
			&i.AgentID,
			&i.PreviousAgentID,
			&i.ActorID,
			&i.Kind,
			&i.Policy,
			&i.Reason,
			&i.Meta,
			&i.AssignedAt,
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
