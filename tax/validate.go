package tax

// =============================================================================
// RULE VALIDATION - Invariants enforced on add, update and import
// =============================================================================

// Validate checks the rule invariants:
//   - municipality name is non-empty
//   - recurrence kind is one of the four known kinds
//   - rate is non-negative
//   - start and end are set, with start <= end
//   - the day field matching the kind is set and in range, all others nil
//     (monthly -> day_of_month 1-31, weekly -> day_of_week, daily -> none,
//     yearly -> optional day_of_year 1-366)
//
// Returns nil or a *ValidationError listing every violated constraint.
// Overlap with existing rules is deliberately NOT checked: overlapping
// rules are legal and resolved by precedence at query time.
func Validate(f Fields) error {
	var violations []Violation

	add := func(field, message string) {
		violations = append(violations, Violation{Field: field, Message: message})
	}

	if NormalizeMunicipality(f.Municipality) == "" {
		add("municipality", "must not be empty")
	}

	if !f.Kind.Valid() {
		add("type", "must be one of yearly, monthly, weekly, daily")
	}

	if f.Rate.IsNegative() {
		add("tax", "must not be negative")
	}

	switch {
	case f.Start.IsZero():
		add("start_date", "is required")
	case f.End.IsZero():
		add("end_date", "is required")
	case f.Start.After(f.End):
		add("start_date", "must not be after end_date")
	}

	switch f.Kind {
	case Monthly:
		if f.DayOfMonth == nil {
			add("day_of_month", "required for monthly rules")
		} else if *f.DayOfMonth < 1 || *f.DayOfMonth > 31 {
			add("day_of_month", "must be between 1 and 31")
		}
		if f.DayOfWeek != nil {
			add("day_of_week", "only allowed for weekly rules")
		}
		if f.DayOfYear != nil {
			add("day_of_year", "only allowed for yearly rules")
		}

	case Weekly:
		if f.DayOfWeek == nil {
			add("day_of_week", "required for weekly rules")
		}
		if f.DayOfMonth != nil {
			add("day_of_month", "only allowed for monthly rules")
		}
		if f.DayOfYear != nil {
			add("day_of_year", "only allowed for yearly rules")
		}

	case Daily:
		if f.DayOfMonth != nil {
			add("day_of_month", "only allowed for monthly rules")
		}
		if f.DayOfWeek != nil {
			add("day_of_week", "only allowed for weekly rules")
		}
		if f.DayOfYear != nil {
			add("day_of_year", "only allowed for yearly rules")
		}

	case Yearly:
		if f.DayOfYear != nil && (*f.DayOfYear < 1 || *f.DayOfYear > 366) {
			add("day_of_year", "must be between 1 and 366")
		}
		if f.DayOfMonth != nil {
			add("day_of_month", "only allowed for monthly rules")
		}
		if f.DayOfWeek != nil {
			add("day_of_week", "only allowed for weekly rules")
		}
	}

	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}
