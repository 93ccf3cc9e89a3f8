package tax_test

import (
	"context"
	"testing"
	"time"

	"github.com/warp/tax-engine/tax"
	"github.com/warp/tax-engine/tax/store"
)

func newStore() *store.Memory {
	return store.NewMemory()
}

func mustAdd(t *testing.T, s tax.Store, f tax.Fields) tax.Rule {
	t.Helper()
	r, err := s.Add(context.Background(), f)
	if err != nil {
		t.Fatalf("failed to add rule: %v", err)
	}
	return r
}

// =============================================================================
// RESOLUTION
// =============================================================================

func TestResolve_UnknownMunicipality_NotFoundNotError(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Resolving a municipality nobody ever added
	// THEN: found=false, no error

	resolver := tax.NewResolver(newStore())

	_, found, err := resolver.Resolve(context.Background(), "NonExistentCity", date(2024, time.March, 15))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("unknown municipality should resolve to found=false")
	}
}

func TestResolve_NoMatchingRule_NotFound(t *testing.T) {
	// GIVEN: Roskilde has only a weekly Monday rule
	s := newStore()
	f := fields("Roskilde", tax.Weekly, "0.1", date(2024, time.January, 1), date(2024, time.December, 31))
	f.DayOfWeek = weekdayPtr(time.Monday)
	mustAdd(t, s, f)

	resolver := tax.NewResolver(s)

	// WHEN: Resolving a Tuesday
	_, found, err := resolver.Resolve(context.Background(), "Roskilde", date(2024, time.January, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("no rule matches a Tuesday, expected found=false")
	}

	// AND: Resolving a Monday succeeds
	res, found, err := resolver.Resolve(context.Background(), "Roskilde", date(2024, time.January, 8))
	if err != nil || !found {
		t.Fatalf("expected a match on Monday, found=%v err=%v", found, err)
	}
	if res.Rate.String() != "0.1" {
		t.Errorf("expected rate 0.1, got %s", res.Rate)
	}
}

func TestResolve_DailyOverridesYearly(t *testing.T) {
	// GIVEN: Copenhagen has a yearly 0.25 rule for all of 2024 and a daily
	//        0.08 override on June 15
	s := newStore()
	mustAdd(t, s, fields("Copenhagen", tax.Yearly, "0.25", date(2024, time.January, 1), date(2024, time.December, 31)))
	mustAdd(t, s, fields("Copenhagen", tax.Daily, "0.08", date(2024, time.June, 15), date(2024, time.June, 15)))

	resolver := tax.NewResolver(s)

	// THEN: The override wins on its day
	res, found, err := resolver.Resolve(context.Background(), "Copenhagen", date(2024, time.June, 15))
	if err != nil || !found {
		t.Fatalf("expected a match, found=%v err=%v", found, err)
	}
	if res.Rate.String() != "0.08" {
		t.Errorf("daily override should win on June 15, got %s", res.Rate)
	}

	// AND: The yearly default applies everywhere else
	res, found, err = resolver.Resolve(context.Background(), "Copenhagen", date(2024, time.June, 16))
	if err != nil || !found {
		t.Fatalf("expected a match, found=%v err=%v", found, err)
	}
	if res.Rate.String() != "0.25" {
		t.Errorf("yearly rule should apply on June 16, got %s", res.Rate)
	}
}

func TestResolve_FullPrecedenceOrder(t *testing.T) {
	// GIVEN: One rule of every kind, all covering 2024-06-03 (a Monday)
	s := newStore()
	year := fields("Odense", tax.Yearly, "0.01", date(2024, time.January, 1), date(2024, time.December, 31))
	mustAdd(t, s, year)

	month := fields("Odense", tax.Monthly, "0.02", date(2024, time.January, 1), date(2024, time.December, 31))
	month.DayOfMonth = intPtr(3)
	mustAdd(t, s, month)

	week := fields("Odense", tax.Weekly, "0.03", date(2024, time.January, 1), date(2024, time.December, 31))
	week.DayOfWeek = weekdayPtr(time.Monday)
	mustAdd(t, s, week)

	day := fields("Odense", tax.Daily, "0.04", date(2024, time.June, 3), date(2024, time.June, 3))
	mustAdd(t, s, day)

	resolver := tax.NewResolver(s)

	// THEN: daily > weekly > monthly > yearly
	res, _, err := resolver.Resolve(context.Background(), "Odense", date(2024, time.June, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Rate.String() != "0.04" {
		t.Errorf("daily should win, got %s", res.Rate)
	}

	// 2024-07-01 is a Monday AND the monthly day 3 does not apply.
	res, _, err = resolver.Resolve(context.Background(), "Odense", date(2024, time.July, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Rate.String() != "0.03" {
		t.Errorf("weekly should win on a plain Monday, got %s", res.Rate)
	}

	// 2024-07-03 is a Wednesday: monthly beats yearly.
	res, _, err = resolver.Resolve(context.Background(), "Odense", date(2024, time.July, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Rate.String() != "0.02" {
		t.Errorf("monthly should win on the 3rd, got %s", res.Rate)
	}

	// Any other day: yearly.
	res, _, err = resolver.Resolve(context.Background(), "Odense", date(2024, time.July, 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Rate.String() != "0.01" {
		t.Errorf("yearly should be the fallback, got %s", res.Rate)
	}
}

func TestResolve_SameKindTie_MostRecentIDWins(t *testing.T) {
	// GIVEN: Two weekly Monday rules with overlapping ranges
	s := newStore()
	first := fields("Aarhus", tax.Weekly, "0.10", date(2024, time.January, 1), date(2024, time.December, 31))
	first.DayOfWeek = weekdayPtr(time.Monday)
	mustAdd(t, s, first)

	second := fields("Aarhus", tax.Weekly, "0.12", date(2024, time.January, 1), date(2024, time.June, 30))
	second.DayOfWeek = weekdayPtr(time.Monday)
	later := mustAdd(t, s, second)

	resolver := tax.NewResolver(s)

	// WHEN: Resolving a Monday both rules cover
	res, found, err := resolver.Resolve(context.Background(), "Aarhus", date(2024, time.January, 8))
	if err != nil || !found {
		t.Fatalf("expected a match, found=%v err=%v", found, err)
	}

	// THEN: The later-created rule wins deterministically
	if res.RuleID != later.ID {
		t.Errorf("expected rule %d to win the tie, got %d", later.ID, res.RuleID)
	}
	if res.Rate.String() != "0.12" {
		t.Errorf("expected rate 0.12, got %s", res.Rate)
	}
}

func TestResolve_MunicipalityLookupIsCaseInsensitive(t *testing.T) {
	// GIVEN: A rule stored under "Copenhagen"
	s := newStore()
	mustAdd(t, s, fields("Copenhagen", tax.Yearly, "0.2", date(2024, time.January, 1), date(2024, time.December, 31)))

	resolver := tax.NewResolver(s)

	// THEN: Lookups in any case find it, and the stored spelling is returned
	res, found, err := resolver.Resolve(context.Background(), "COPENHAGEN", date(2024, time.May, 1))
	if err != nil || !found {
		t.Fatalf("expected a match, found=%v err=%v", found, err)
	}
	if res.Municipality != "Copenhagen" {
		t.Errorf("expected stored spelling 'Copenhagen', got %q", res.Municipality)
	}
}
