/*
errors.go - Centralized error taxonomy for the payroll core

PURPOSE:
  All domain failures in one place. Every failure is a rejected
  operation surfaced synchronously to the caller with state unchanged;
  nothing here is retried automatically. Storage-level integrity
  violations (e.g. the unique badge index) are mapped to the matching
  domain error by the store, never leaked raw.

USAGE:
  if errors.Is(err, payroll.ErrRequestNotFound) { ... }

SEE ALSO:
  - store/sqlite/sqlite.go: Maps sqlite constraint errors onto these
  - api/handlers.go:        Maps these onto HTTP status codes
*/
package payroll

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRange is returned when a sick-leave end date precedes its start.
	ErrInvalidRange = errors.New("invalid range: end before start")

	// ErrInvalidField is returned when a change request targets a field
	// outside the editable set.
	ErrInvalidField = errors.New("field is not editable")

	// ErrUnknownAllowanceType is returned when an allowance category is not
	// in the configured taxonomy.
	ErrUnknownAllowanceType = errors.New("unknown allowance type")

	// ErrNegativeAmount is returned when an amount or count is negative.
	ErrNegativeAmount = errors.New("amount cannot be negative")

	// ErrDuplicateBadge is returned when inserting a worker whose badge
	// number already exists.
	ErrDuplicateBadge = errors.New("badge number already in use")

	// ErrWorkerNotFound is returned when a referenced worker does not exist.
	ErrWorkerNotFound = errors.New("worker not found")

	// ErrRequestNotFound is returned when no PENDING change request with
	// the given id exists. This covers both "never existed" and "already
	// resolved": a terminal request is not resolvable again.
	ErrRequestNotFound = errors.New("request not found or already resolved")

	// ErrAuthenticationFailed is returned on credential mismatch.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrTypeCoercion is returned when a non-numeric value is supplied for
	// an integer-typed field during approval.
	ErrTypeCoercion = errors.New("value cannot be coerced to field type")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid input that
// the operator must correct and resubmit.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidField) ||
		errors.Is(err, ErrUnknownAllowanceType) ||
		errors.Is(err, ErrNegativeAmount) ||
		errors.Is(err, ErrTypeCoercion)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkerNotFound) ||
		errors.Is(err, ErrRequestNotFound)
}

// IsConflict reports whether the error is a uniqueness conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateBadge)
}
