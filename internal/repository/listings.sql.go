package repository

import (
	"context"

	"github.com/google/uuid"
)

const listingColumns = `id, agent_id, organization_id, title, address, city, state, postal_code, price_cents, status, created_at, updated_at`

func scanListing(row interface{ Scan(...interface{}) error }) (Listing, error) {
	var i Listing
	err := row.Scan(
		&i.ID,
		&i.AgentID,
		&i.OrganizationID,
		&i.Title,
		&i.Address,
		&i.City,
		&i.State,
		&i.PostalCode,
		&i.PriceCents,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getListing = `-- name: GetListing :one
SELECT ` + listingColumns + ` FROM listings
WHERE id = $1`

func (q *Queries) GetListing(ctx context.Context, id uuid.UUID) (Listing, error) {
	row := q.db.QueryRowContext(ctx, getListing, id)
	return scanListing(row)
}

const getListingForUpdate = `-- name: GetListingForUpdate :one
SELECT ` + listingColumns + ` FROM listings
WHERE id = $1
FOR UPDATE`

func (q *Queries) GetListingForUpdate(ctx context.Context, id uuid.UUID) (Listing, error) {
	row := q.db.QueryRowContext(ctx, getListingForUpdate, id)
	return scanListing(row)
}

const countActivePersonalListings = `-- name: CountActivePersonalListings :one
SELECT COUNT(*) FROM listings
WHERE agent_id = $1
  AND organization_id IS NULL
  AND status = 'active'`

func (q *Queries) CountActivePersonalListings(ctx context.Context, agentID uuid.UUID) (int64, error) {
	row := q.db.QueryRowContext(ctx, countActivePersonalListings, agentID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countActiveOrganizationListings = `-- name: CountActiveOrganizationListings :one
SELECT COUNT(*) FROM listings
WHERE organization_id = $1
  AND status = 'active'`

func (q *Queries) CountActiveOrganizationListings(ctx context.Context, organizationID uuid.UUID) (int64, error) {
	row := q.db.QueryRowContext(ctx, countActiveOrganizationListings, organizationID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const insertListing = `-- name: InsertListing :one
INSERT INTO listings (
    agent_id, organization_id, title, address, city, state, postal_code, price_cents, status
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, 'active'
)
RETURNING ` + listingColumns

type InsertListingParams struct {
	AgentID        uuid.UUID     `json:"agent_id"`
	OrganizationID uuid.NullUUID `json:"organization_id"`
	Title          string        `json:"title"`
	Address        string        `json:"address"`
	City           string        `json:"city"`
	State          string        `json:"state"`
	PostalCode     string        `json:"postal_code"`
	PriceCents     int64         `json:"price_cents"`
}

func (q *Queries) InsertListing(ctx context.Context, arg InsertListingParams) (Listing, error) {
	row := q.db.QueryRowContext(ctx, insertListing,
		arg.AgentID,
		arg.OrganizationID,
		arg.Title,
		arg.Address,
		arg.City,
		arg.State,
		arg.PostalCode,
		arg.PriceCents,
	)
	return scanListing(row)
}

const updateListingStatus = `-- name: UpdateListingStatus :one
UPDATE listings
SET status = $2, updated_at = NOW()
WHERE id = $1
RETURNING ` + listingColumns

type UpdateListingStatusParams struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

func (q *Queries) UpdateListingStatus(ctx context.Context, arg UpdateListingStatusParams) (Listing, error) {
	row := q.db.QueryRowContext(ctx, updateListingStatus, arg.ID, arg.Status)
	return scanListing(row)
}
