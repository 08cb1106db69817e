/*
errors.go - Centralized error taxonomy for the leave engine

PURPOSE:
  All engine error types in one place. Operations never swallow errors and
  never commit partially; each returns a typed error the calling adapter
  maps to a user-facing response.

ERROR CATEGORIES:
  1. Authentication/authorization - identity absent, or role/tenant mismatch
  2. Validation - malformed input (date ordering, missing fields, bad code)
  3. State - operation illegal for the entity's current state
  4. Store - persistence failures, surfaced as ErrUnavailable

USAGE:
  if errors.Is(err, leave.ErrInvalidState) {
      // request was already approved/rejected
  }

SEE ALSO:
  - lifecycle.go: returns StateError on illegal transitions
  - store.go: store implementations map constraint hits onto these
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAuthentication is returned when no resolvable identity was provided.
	ErrAuthentication = errors.New("authentication required")

	// ErrAuthorization is returned when the identity resolved but the role or
	// tenant check failed.
	ErrAuthorization = errors.New("not authorized")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation is illegal for the
	// entity's current state, e.g. transitioning a non-PENDING request.
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrInvalidCode is returned when an invitation code is unknown or
	// already used. The loser of a redemption race observes this.
	ErrInvalidCode = errors.New("invalid or used invitation code")

	// ErrCodeTaken is the store-level signal that a freshly generated code
	// collided with an existing one. The issuer's retry loop consumes it;
	// it never escapes to callers.
	ErrCodeTaken = errors.New("invitation code already exists")

	// ErrUnavailable is returned when the store or its transaction mechanism
	// failed. Retry policy belongs to the caller.
	ErrUnavailable = errors.New("store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StateError describes an illegal transition attempt. Status is the status
// that was observed when the operation was refused.
type StateError struct {
	RequestID RequestID
	Status    RequestStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("request %s is %s, only PENDING requests can transition", e.RequestID, e.Status)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// ConflictError is returned when overlap blocking is enabled and a candidate
// range touches an existing request.
type ConflictError struct {
	Conflicting *LeaveRequest
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("dates overlap existing request %s (%s to %s)",
		e.Conflicting.ID, e.Conflicting.StartDate, e.Conflicting.EndDate)
}

func (e *ConflictError) Unwrap() error { return ErrValidation }

// NotFoundError names the entity that was missing.
type NotFoundError struct {
	Kind string // "member", "request", "organization", "holiday"
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// UnavailableError wraps a store failure.
type UnavailableError struct {
	Op    string
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: store unavailable: %v", e.Op, e.Cause)
}

func (e *UnavailableError) Unwrap() error { return ErrUnavailable }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to the caller's input or
// state, as opposed to a store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInvalidCode)
}

// IsNotFound reports whether the error means the entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable reports whether the operation might succeed if retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
