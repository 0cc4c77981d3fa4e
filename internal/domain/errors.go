package domain

import (
	"errors"
	"fmt"
)

// Application error codes
const (
	EINVALID      = "invalid"      // Invalid input or validation failure
	EUNAUTHORIZED = "unauthorized" // Authentication required
	EFORBIDDEN    = "forbidden"    // Permission denied
	ENOTFOUND     = "not_found"    // Resource not found
	ECONFLICT     = "conflict"     // Resource conflict (e.g., duplicate, illegal transition)
	EPAYMENT      = "payment"      // Plan limit reached, upgrade required
	ECONTENTION   = "contention"   // Concurrent writes kept colliding; caller may retry the request
	EINTERNAL     = "internal"     // Internal server error
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "capguard.reserve_listing")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code, op, message string) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		// For internal errors, return generic message
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Convenience constructors for common error types

// NotFound creates a not found error.
func NotFound(op, resource, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s with ID %q not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Unauthorized creates an authentication error.
func Unauthorized(op, message string) *Error {
	return &Error{
		Code:    EUNAUTHORIZED,
		Op:      op,
		Message: message,
	}
}

// Forbidden creates a permission error.
func Forbidden(op, message string) *Error {
	return &Error{
		Code:    EFORBIDDEN,
		Op:      op,
		Message: message,
	}
}

// Conflict creates a conflict error.
func Conflict(op, message string) *Error {
	return &Error{
		Code:    ECONFLICT,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// =============================================================================
// Entitlement and routing errors
// =============================================================================

// CapExceededError carries the numbers behind a rejected reservation so the
// caller can render a precise upgrade prompt.
type CapExceededError struct {
	Counter Counter
	Limit   int64
	Current int64
}

func (e *CapExceededError) Error() string {
	if e.Limit == 0 {
		return fmt.Sprintf("%s not included in plan", e.Counter)
	}
	return fmt.Sprintf("%s cap reached (%d of %d)", e.Counter, e.Current, e.Limit)
}

// CapExceeded creates a payment-required error for a usage cap that has been hit.
// A limit of 0 means the feature is not part of the plan at all.
func CapExceeded(op string, counter Counter, limit, current int64) *Error {
	detail := &CapExceededError{Counter: counter, Limit: limit, Current: current}

	message := fmt.Sprintf("You have reached your plan's limit of %d %s. Upgrade to add more.", limit, counter.Noun())
	if limit == 0 {
		message = fmt.Sprintf("Your plan does not include %s. Upgrade to unlock them.", counter.Noun())
	}

	return &Error{
		Code:    EPAYMENT,
		Op:      op,
		Message: message,
		Err:     detail,
	}
}

// AsCapExceeded extracts the cap details from err, if present.
func AsCapExceeded(err error) (*CapExceededError, bool) {
	var ce *CapExceededError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// StorageConflict reports that concurrent writers kept invalidating the
// transaction and the retry budget is spent.
func StorageConflict(err error, op string) *Error {
	return &Error{
		Code:    ECONTENTION,
		Op:      op,
		Message: "The request conflicted with concurrent changes. Please try again.",
		Err:     err,
	}
}

// IsStorageConflict returns true if err is a StorageConflict error.
func IsStorageConflict(err error) bool {
	return ErrorCode(err) == ECONTENTION
}

// ValidationError represents field-level validation errors.
type ValidationError struct {
	Op     string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed", e.Op)
}

// NewValidationError creates a new validation error with the first field error.
func NewValidationError(op, field, message string) *ValidationError {
	return &ValidationError{
		Op: op,
		Fields: map[string]string{
			field: message,
		},
	}
}

// AddFieldError adds a field error to an existing validation error.
// If err is not a ValidationError, returns a new one.
func AddFieldError(err error, field, message string) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		ve.Fields[field] = message
		return ve
	}
	return NewValidationError("", field, message)
}
