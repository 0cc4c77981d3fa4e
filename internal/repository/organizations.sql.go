package repository

import (
	"context"

	"github.com/google/uuid"
)

const organizationColumns = `id, name, tier, listing_cap, seat_limit, seats_used, owner_id, created_at, updated_at`

func scanOrganization(row interface{ Scan(...interface{}) error }) (Organization, error) {
	var i Organization
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Tier,
		&i.ListingCap,
		&i.SeatLimit,
		&i.SeatsUsed,
		&i.OwnerID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getOrganization = `-- name: GetOrganization :one
SELECT ` + organizationColumns + ` FROM organizations
WHERE id = $1`

func (q *Queries) GetOrganization(ctx context.Context, id uuid.UUID) (Organization, error) {
	row := q.db.QueryRowContext(ctx, getOrganization, id)
	return scanOrganization(row)
}

const lockOrganizationForUpdate = `-- name: LockOrganizationForUpdate :one
SELECT ` + organizationColumns + ` FROM organizations
WHERE id = $1
FOR UPDATE`

// LockOrganizationForUpdate serializes every seat, organization listing and
// routing mutation for one organization.
func (q *Queries) LockOrganizationForUpdate(ctx context.Context, id uuid.UUID) (Organization, error) {
	row := q.db.QueryRowContext(ctx, lockOrganizationForUpdate, id)
	return scanOrganization(row)
}

const setOrganizationSeatsUsed = `-- name: SetOrganizationSeatsUsed :exec
UPDATE organizations
SET seats_used = $2, updated_at = NOW()
WHERE id = $1`

type SetOrganizationSeatsUsedParams struct {
	ID        uuid.UUID `json:"id"`
	SeatsUsed int64     `json:"seats_used"`
}

func (q *Queries) SetOrganizationSeatsUsed(ctx context.Context, arg SetOrganizationSeatsUsedParams) error {
	_, err := q.db.ExecContext(ctx, setOrganizationSeatsUsed, arg.ID, arg.SeatsUsed)
	return err
}

const countOrganizationMembers = `-- name: CountOrganizationMembers :one
SELECT COUNT(*) FROM organization_members
WHERE organization_id = $1`

func (q *Queries) CountOrganizationMembers(ctx context.Context, organizationID uuid.UUID) (int64, error) {
	row := q.db.QueryRowContext(ctx, countOrganizationMembers, organizationID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getOrganizationMember = `-- name: GetOrganizationMember :one
SELECT organization_id, user_id, role, created_at FROM organization_members
WHERE organization_id = $1 AND user_id = $2`

type GetOrganizationMemberParams struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
}

func (q *Queries) GetOrganizationMember(ctx context.Context, arg GetOrganizationMemberParams) (OrganizationMember, error) {
	row := q.db.QueryRowContext(ctx, getOrganizationMember, arg.OrganizationID, arg.UserID)
	var i OrganizationMember
	err := row.Scan(
		&i.OrganizationID,
		&i.UserID,
		&i.Role,
		&i.CreatedAt,
	)
	return i, err
}

const insertMember = `-- name: InsertMember :one
INSERT INTO organization_members (organization_id, user_id, role)
VALUES ($1, $2, $3)
RETURNING organization_id, user_id, role, created_at`

type InsertMemberParams struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	Role           string    `json:"role"`
}

func (q *Queries) InsertMember(ctx context.Context, arg InsertMemberParams) (OrganizationMember, error) {
	row := q.db.QueryRowContext(ctx, insertMember, arg.OrganizationID, arg.UserID, arg.Role)
	var i OrganizationMember
	err := row.Scan(
		&i.OrganizationID,
		&i.UserID,
		&i.Role,
		&i.CreatedAt,
	)
	return i, err
}

const deleteMember = `-- name: DeleteMember :execrows
DELETE FROM organization_members
WHERE organization_id = $1 AND user_id = $2`

type DeleteMemberParams struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
}

func (q *Queries) DeleteMember(ctx context.Context, arg DeleteMemberParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteMember, arg.OrganizationID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
