/*
errors.go - Centralized error types for the tax engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (HTTP layer, importer) classify errors with errors.Is and the
  helpers below; they never match on message strings.

ERROR CATEGORIES:
  1. Validation errors - malformed or inconsistent rule fields
  2. Not-found errors - update references a nonexistent rule id
  3. Store errors - database-level failures (wrapped, not defined here)

NOTE:
  "No applicable rule" during resolution is NOT an error. Resolve returns
  a found=false result for unknown municipalities and dates with no match.

SEE ALSO:
  - validate.go: Produces ValidationError
  - store.go: Store methods return these errors
*/
package tax

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRuleNotFound is returned when an update targets an id that does
	// not exist in the store.
	ErrRuleNotFound = errors.New("tax rule not found")

	// ErrInvalidRule is the sentinel wrapped by every ValidationError.
	ErrInvalidRule = errors.New("invalid tax rule")

	// ErrUnknownRecurrence is returned when a recurrence kind cannot be parsed.
	ErrUnknownRecurrence = errors.New("unknown recurrence kind")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// Violation names one violated rule constraint.
type Violation struct {
	Field   string // e.g. "day_of_month"
	Message string // e.g. "required for monthly rules"
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// ValidationError lists every violated constraint, not just the first,
// so a caller can report all problems in one round trip.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}
	return fmt.Sprintf("invalid tax rule: %s", strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRule
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRule) || errors.Is(err, ErrUnknownRecurrence)
}

// IsNotFound returns true if the error indicates a missing rule.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}
