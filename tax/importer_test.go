package tax_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warp/tax-engine/tax"
)

// =============================================================================
// BULK IMPORT
// =============================================================================

func TestImport_NoDeduplication_SameRowTwiceCreatesTwoRules(t *testing.T) {
	// GIVEN: The same valid row twice
	s := newStore()
	im := tax.NewImporter(s)

	row := tax.Row{Line: 2, Fields: fields("Delhi", tax.Daily, "0.07",
		date(2024, time.August, 15), date(2024, time.August, 15))}

	// WHEN: Importing both
	report, err := im.Import(context.Background(), []tax.Row{row, row}, "Remote")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// THEN: Two rules are stored and both count as successes
	if report.Succeeded != 2 || report.Failed != 0 {
		t.Errorf("expected 2 successes, got %+v", report)
	}
	rules, _ := s.List(context.Background(), "Delhi")
	if len(rules) != 2 {
		t.Fatalf("expected 2 stored rules, got %d", len(rules))
	}
	if rules[0].ID == rules[1].ID {
		t.Error("duplicate rows must still get distinct ids")
	}
}

func TestImport_BadRowRecorded_OthersUnaffected(t *testing.T) {
	// GIVEN: A batch where the middle row is a monthly rule missing its day
	s := newStore()
	im := tax.NewImporter(s)

	good := tax.Row{Line: 2, Fields: fields("Chennai", tax.Yearly, "0.12",
		date(2025, time.January, 1), date(2025, time.December, 31))}
	bad := tax.Row{Line: 3, Fields: fields("Chennai", tax.Monthly, "0.04",
		date(2024, time.January, 1), date(2024, time.December, 31))} // no DayOfMonth
	alsoGood := tax.Row{Line: 4, Fields: fields("Mumbai", tax.Daily, "0.02",
		date(2024, time.May, 1), date(2024, time.May, 1))}

	// WHEN: Importing the batch
	report, err := im.Import(context.Background(), []tax.Row{good, bad, alsoGood}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// THEN: The bad row is recorded, the rest succeeded
	if report.Total != 3 || report.Succeeded != 2 || report.Failed != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(report.Failures))
	}
	failure := report.Failures[0]
	if failure.Line != 3 || failure.Municipality != "Chennai" {
		t.Errorf("failure should reference line 3 / Chennai, got %+v", failure)
	}
}

func TestImport_ParseErrorRowsBecomeFailures(t *testing.T) {
	// GIVEN: A row the parsing boundary already rejected
	s := newStore()
	im := tax.NewImporter(s)

	rows := []tax.Row{
		{Line: 2, Err: errors.New("invalid tax value \"abc\"")},
		{Line: 3, Fields: fields("Odense", tax.Daily, "0.05",
			date(2024, time.May, 1), date(2024, time.May, 1))},
	}

	report, err := im.Import(context.Background(), rows, "Local")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Succeeded != 1 || report.Failed != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestImport_StampsSourceAndBatch(t *testing.T) {
	// GIVEN: An import with an explicit source label
	s := newStore()
	im := tax.NewImporter(s)

	row := tax.Row{Line: 2, Fields: fields("Lucknow", tax.Yearly, "0.12",
		date(2025, time.January, 1), date(2025, time.December, 31))}

	report, err := im.Import(context.Background(), []tax.Row{row}, "Remote")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// THEN: The created rule carries the label, the report a batch id
	if report.Source != "Remote" {
		t.Errorf("expected source 'Remote', got %q", report.Source)
	}
	if report.BatchID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("expected a non-zero batch id")
	}
	rules, _ := s.List(context.Background(), "Lucknow")
	if len(rules) != 1 || rules[0].Source != "Remote" {
		t.Errorf("rule should carry source 'Remote', got %+v", rules)
	}
}

func TestImport_DefaultSourceIsLocal(t *testing.T) {
	s := newStore()
	im := tax.NewImporter(s)

	report, err := im.Import(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Source != tax.DefaultSource {
		t.Errorf("expected default source %q, got %q", tax.DefaultSource, report.Source)
	}
}

func TestImport_CancellationKeepsAppliedRows(t *testing.T) {
	// GIVEN: A canceled context
	s := newStore()
	im := tax.NewImporter(s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows := []tax.Row{{Line: 2, Fields: fields("Delhi", tax.Daily, "0.07",
		date(2024, time.August, 15), date(2024, time.August, 15))}}

	// WHEN: Importing
	report, err := im.Import(ctx, rows, "Local")

	// THEN: The call reports the cancellation and no row was applied
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.Succeeded != 0 {
		t.Errorf("no row should have been applied, got %+v", report)
	}
	rules, _ := s.List(context.Background(), "Delhi")
	if len(rules) != 0 {
		t.Errorf("expected no stored rules, got %d", len(rules))
	}
}
