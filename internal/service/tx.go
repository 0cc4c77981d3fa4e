package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/DukeRupert/hearth/internal/metrics"
	"github.com/DukeRupert/hearth/internal/repository"
	"github.com/sethvargo/go-retry"
)

// DefaultTxAttempts bounds how many times a conflicting transaction is run.
const DefaultTxAttempts = 3

// txRunner repeats a whole transaction when Postgres reports a serialization
// failure or deadlock, even when the failure arrives wrapped in a domain
// error. Every other error returns immediately.
type txRunner struct {
	store    repository.Store
	attempts uint64
	base     time.Duration
	logger   *slog.Logger
}

func newTxRunner(store repository.Store, attempts int, logger *slog.Logger) txRunner {
	if attempts < 1 {
		attempts = DefaultTxAttempts
	}
	return txRunner{
		store:    store,
		attempts: uint64(attempts),
		base:     10 * time.Millisecond,
		logger:   logger,
	}
}

// run executes fn inside a transaction. Once the retry budget is spent the
// conflict surfaces as domain.StorageConflict.
func (r txRunner) run(ctx context.Context, op string, fn func(q repository.Querier) error) error {
	backoff := retry.NewExponential(r.base)
	backoff = retry.WithJitterPercent(25, backoff)
	backoff = retry.WithMaxRetries(r.attempts-1, backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := r.store.ExecTx(ctx, fn)
		if err != nil && repository.IsSerializationFailure(err) {
			metrics.StorageConflictRetried(op)
			r.logger.Debug("Transaction conflict, retrying", "op", op, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})

	if err != nil && repository.IsSerializationFailure(err) {
		r.logger.Warn("Transaction conflict retries exhausted", "op", op, "attempts", attempt)
		return domain.StorageConflict(err, op)
	}
	var derr *domain.Error
	if err != nil && !errors.As(err, &derr) {
		// Begin and commit failures come back from the store unclassified.
		return domain.Internal(err, op, "transaction failed")
	}
	return err
}
