/*
importer.go - Bulk import of tax rules with per-row outcomes

PURPOSE:
  Merges a batch of already-parsed rows into the store. Rows are processed
  independently: one bad row is recorded in the report and the rest of the
  batch continues. The import call itself only fails on infrastructural
  problems (store write failures, caller cancellation), never on row
  content.

PROVENANCE:
  Every import gets a batch id, and every rule created by the batch is
  stamped with the caller's source label. The label has no effect on
  matching; it exists purely for traceability.

NO DEDUPLICATION:
  Importing the same row twice creates two overlapping rules. That is
  legal: resolution-time precedence and the last-writer-wins tie-break
  handle overlap deterministically.

SEE ALSO:
  - importer/csv.go: Parses CSV files into Rows
  - store.go: Add semantics
*/
package tax

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// DefaultSource is stamped on imported rules when the caller supplies no
// source label.
const DefaultSource = "Local"

// =============================================================================
// IMPORT REPORT
// =============================================================================

// RowFailure describes one rejected row.
type RowFailure struct {
	Line         int
	Municipality string
	Reason       string
}

// Report aggregates the outcome of one import call.
type Report struct {
	BatchID   uuid.UUID
	Source    string
	Total     int
	Succeeded int
	Failed    int
	Failures  []RowFailure
}

// =============================================================================
// IMPORTER
// =============================================================================

// Importer merges parsed rows into a Store.
type Importer struct {
	store Store
}

func NewImporter(store Store) *Importer {
	return &Importer{store: store}
}

// Import processes rows sequentially. Validation failures (and parse
// failures carried in Row.Err) are recorded per row; any other store error
// aborts the batch. On cancellation the report covers the rows processed
// so far and already-applied rows remain committed.
func (im *Importer) Import(ctx context.Context, rows []Row, source string) (Report, error) {
	if source == "" {
		source = DefaultSource
	}

	report := Report{
		BatchID: uuid.New(),
		Source:  source,
		Total:   len(rows),
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if row.Err != nil {
			report.fail(row, row.Err)
			continue
		}

		fields := row.Fields
		fields.Source = source

		if _, err := im.store.Add(ctx, fields); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				report.fail(row, verr)
				continue
			}
			// Infrastructural failure: abort, keep what was applied.
			return report, err
		}
		report.Succeeded++
	}

	return report, nil
}

func (r *Report) fail(row Row, err error) {
	r.Failed++
	r.Failures = append(r.Failures, RowFailure{
		Line:         row.Line,
		Municipality: row.Fields.Municipality,
		Reason:       err.Error(),
	})
}
