package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Store is a Querier that can also run a function inside one transaction.
// Every check-then-act sequence (cap reservations, routing) goes through
// ExecTx so that the read and the write commit or roll back together.
type Store interface {
	Querier
	ExecTx(ctx context.Context, fn func(Querier) error) error
}

// SQLStore is the Postgres-backed Store.
type SQLStore struct {
	*Queries
	db *sql.DB
}

// NewStore creates a Store over an open database handle.
func NewStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		Queries: New(db),
		db:      db,
	}
}

// ExecTx runs fn in a read-committed transaction. Row locks taken inside fn
// are held until commit.
func (s *SQLStore) ExecTx(ctx context.Context, fn func(Querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(s.Queries.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// Error classification
// =============================================================================

// Postgres SQLSTATE codes the services react to.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
)

// ErrSerialization is the sentinel used by non-Postgres stores (and tests) to
// signal a conflicting concurrent write.
var ErrSerialization = errors.New("could not serialize access due to concurrent update")

// IsSerializationFailure reports whether err means the transaction lost a
// race with another writer and may succeed if repeated.
func IsSerializationFailure(err error) bool {
	if errors.Is(err, ErrSerialization) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
	}
	return false
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// IsForeignKeyViolation reports whether err references a missing row.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation
}

// IsNotFound reports whether err is the no-rows error.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
