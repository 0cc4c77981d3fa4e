package worker

import (
	"context"
	"errors"
	"fmt"
)

// JobHandler executes one job type. Type must match jobs.job_type; Handle
// receives the raw JSON payload stored with the job.
type JobHandler interface {
	Type() string
	Handle(ctx context.Context, payload []byte) error
}

// PermanentError marks a job failure that retrying cannot fix, such as a
// malformed payload or a lead that no longer exists. The job goes straight
// to 'failed'.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError wraps err so the worker will not reschedule the job.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// Permanentf is NewPermanentError(fmt.Errorf(format, args...)).
func Permanentf(format string, args ...any) error {
	return &PermanentError{Err: fmt.Errorf(format, args...)}
}

// IsPermanent reports whether err or anything it wraps is a PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}
