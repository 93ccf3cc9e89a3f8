package tax

// =============================================================================
// RECURRENCE MATCHING - Does a rule apply on a given date?
// =============================================================================

// Matches reports whether the rule applies on the given date. Pure; a date
// outside [Start, End] never matches regardless of kind.
//
// Per kind:
//   - daily:   every date in range
//   - weekly:  dates in range whose weekday equals DayOfWeek
//   - monthly: dates in range whose day-of-month equals DayOfMonth.
//     There is no roll-over for short months: a day_of_month=31 rule
//     simply never fires in April.
//   - yearly:  every date in range when DayOfYear is nil, otherwise dates
//     whose ordinal day-of-year equals DayOfYear
func Matches(r Rule, d Date) bool {
	if d.Before(r.Start) || d.After(r.End) {
		return false
	}

	switch r.Kind {
	case Daily:
		return true
	case Weekly:
		return r.DayOfWeek != nil && d.Weekday() == *r.DayOfWeek
	case Monthly:
		return r.DayOfMonth != nil && d.Day() == *r.DayOfMonth
	case Yearly:
		return r.DayOfYear == nil || d.YearDay() == *r.DayOfYear
	default:
		return false
	}
}
