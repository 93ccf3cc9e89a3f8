/*
Package tax provides the core tax rule resolution engine.

PURPOSE:
  This package contains the domain model and algorithms for municipality
  tax rules: date-scoped recurrence rules (yearly, monthly, weekly, daily),
  the matcher that decides whether a rule applies on a given date, and the
  resolver that picks the single applicable rule among overlapping ones.

KEY CONCEPTS IN THIS FILE (types.go):
  - Rule: One tax rule as stored (id, municipality, recurrence, rate, range)
  - Fields: The mutable rule fields supplied on add/update/import
  - RecurrenceKind: The temporal pattern a rule follows
  - Row: One bulk-import row with its source line for failure reporting

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for rates, never float64
  2. Immutability: Rules are replaced wholesale on update, never patched
  3. Determinism: Overlapping rules resolve by a fixed precedence order

SEE ALSO:
  - match.go: Recurrence matching per kind
  - resolve.go: Precedence-based resolution
  - store.go: Persistence interface
*/
package tax

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// RuleID identifies a stored rule. IDs are assigned by the store in
// monotonically increasing order, so a higher ID means a later creation.
// The resolver relies on this for its last-writer-wins tie-break.
type RuleID int64

// =============================================================================
// RECURRENCE KIND
// =============================================================================

type RecurrenceKind string

const (
	Yearly  RecurrenceKind = "yearly"
	Monthly RecurrenceKind = "monthly"
	Weekly  RecurrenceKind = "weekly"
	Daily   RecurrenceKind = "daily"
)

// ParseRecurrenceKind accepts the kind in any letter case ("Daily", "DAILY").
func ParseRecurrenceKind(s string) (RecurrenceKind, error) {
	switch RecurrenceKind(strings.ToLower(strings.TrimSpace(s))) {
	case Yearly:
		return Yearly, nil
	case Monthly:
		return Monthly, nil
	case Weekly:
		return Weekly, nil
	case Daily:
		return Daily, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRecurrence, s)
	}
}

// Specificity orders kinds from broadest (yearly) to narrowest (daily).
// A narrower kind always beats a broader one during resolution.
func (k RecurrenceKind) Specificity() int {
	switch k {
	case Daily:
		return 3
	case Weekly:
		return 2
	case Monthly:
		return 1
	case Yearly:
		return 0
	default:
		return -1
	}
}

func (k RecurrenceKind) Valid() bool { return k.Specificity() >= 0 }

// =============================================================================
// RULE - One stored tax rule
// =============================================================================

type Rule struct {
	ID           RuleID
	Municipality string // as first supplied; lookups are case-insensitive
	Kind         RecurrenceKind
	Rate         decimal.Decimal // fraction, e.g. 0.08 for 8%
	Start        Date            // inclusive
	End          Date            // inclusive
	DayOfMonth   *int            // monthly only, 1-31
	DayOfWeek    *time.Weekday   // weekly only
	DayOfYear    *int            // yearly refinement, 1-366; nil = whole range
	Source       string          // provenance: "api" or an import source label
	CreatedAt    time.Time
}

// Fields carries the matchable rule fields for add, update and import.
// The store validates them and assigns the ID.
type Fields struct {
	Municipality string
	Kind         RecurrenceKind
	Rate         decimal.Decimal
	Start        Date
	End          Date
	DayOfMonth   *int
	DayOfWeek    *time.Weekday
	DayOfYear    *int
	Source       string
}

// NormalizeMunicipality produces the case-insensitive lookup key for a
// municipality name. Storage keeps the original spelling.
func NormalizeMunicipality(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ParseWeekday accepts full English weekday names in any letter case.
func ParseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	default:
		return 0, fmt.Errorf("invalid day of week: %q", s)
	}
}

// =============================================================================
// IMPORT ROW - One parsed bulk-import row
// =============================================================================

// Row is one bulk-import row. The parsing boundary (CSV, JSON body) fills
// either Fields or Err; a non-nil Err becomes a per-row failure in the
// import report rather than aborting the batch.
type Row struct {
	Line   int // source line or row index, for failure reports
	Fields Fields
	Err    error
}
