package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const userColumns = `id, email, name, phone, role, organization_id, stripe_customer_id, subscription_status, subscription_id, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.Name,
		&i.Phone,
		&i.Role,
		&i.OrganizationID,
		&i.StripeCustomerID,
		&i.SubscriptionStatus,
		&i.SubscriptionID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (email, name, phone, role)
VALUES ($1, $2, $3, $4)
RETURNING ` + userColumns

type CreateUserParams struct {
	Email string         `json:"email"`
	Name  string         `json:"name"`
	Phone sql.NullString `json:"phone"`
	Role  string         `json:"role"`
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser, arg.Email, arg.Name, arg.Phone, arg.Role)
	return scanUser(row)
}

const getUser = `-- name: GetUser :one
SELECT ` + userColumns + ` FROM users
WHERE id = $1`

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRowContext(ctx, getUser, id)
	return scanUser(row)
}

const getUserByStripeCustomerID = `-- name: GetUserByStripeCustomerID :one
SELECT ` + userColumns + ` FROM users
WHERE stripe_customer_id = $1`

func (q *Queries) GetUserByStripeCustomerID(ctx context.Context, stripeCustomerID sql.NullString) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByStripeCustomerID, stripeCustomerID)
	return scanUser(row)
}

const lockUserForUpdate = `-- name: LockUserForUpdate :one
SELECT ` + userColumns + ` FROM users
WHERE id = $1
FOR UPDATE`

// LockUserForUpdate serializes personal cap reservations for one agent.
func (q *Queries) LockUserForUpdate(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRowContext(ctx, lockUserForUpdate, id)
	return scanUser(row)
}

const setUserOrganization = `-- name: SetUserOrganization :exec
UPDATE users
SET organization_id = $2, updated_at = NOW()
WHERE id = $1`

type SetUserOrganizationParams struct {
	ID             uuid.UUID     `json:"id"`
	OrganizationID uuid.NullUUID `json:"organization_id"`
}

func (q *Queries) SetUserOrganization(ctx context.Context, arg SetUserOrganizationParams) error {
	_, err := q.db.ExecContext(ctx, setUserOrganization, arg.ID, arg.OrganizationID)
	return err
}

const updateUserSubscription = `-- name: UpdateUserSubscription :exec
UPDATE users
SET role = $2,
    stripe_customer_id = COALESCE($3, stripe_customer_id),
    subscription_status = $4,
    subscription_id = $5,
    updated_at = NOW()
WHERE id = $1`

type UpdateUserSubscriptionParams struct {
	ID                 uuid.UUID      `json:"id"`
	Role               string         `json:"role"`
	StripeCustomerID   sql.NullString `json:"stripe_customer_id"`
	SubscriptionStatus sql.NullString `json:"subscription_status"`
	SubscriptionID     sql.NullString `json:"subscription_id"`
}

func (q *Queries) UpdateUserSubscription(ctx context.Context, arg UpdateUserSubscriptionParams) error {
	_, err := q.db.ExecContext(ctx, updateUserSubscription,
		arg.ID,
		arg.Role,
		arg.StripeCustomerID,
		arg.SubscriptionStatus,
		arg.SubscriptionID,
	)
	return err
}
