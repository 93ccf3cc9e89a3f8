/*
Package importer parses tax rule import files into rows the engine consumes.

PURPOSE:
  The resolution engine only understands parsed rows (tax.Row); this
  package owns the CSV dialect. Cell-level problems (bad date, bad rate)
  are attached to the row and surface as per-row failures in the import
  report. Only unreadable input fails the parse as a whole.

FILE FORMAT:
  Header line, then one rule per line:

    municipality,type,tax,start_date,end_date,day_of_month,day_of_week,day_of_year
    Copenhagen,yearly,0.2,2024-01-01,2024-12-31,,,
    Roskilde,weekly,0.1,2024-01-01,2024-12-31,,monday,

  Blank optional cells mean "not set". Dates accept YYYY-MM-DD and the
  legacy YYYY.MM.DD form.

SEE ALSO:
  - tax/importer.go: Merges rows into the store
*/
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/tax-engine/tax"
)

const columns = 8

// ParseCSV reads an import file into rows. Malformed lines and cells are
// reported inside the returned rows, not as an error; the error return is
// reserved for unreadable input.
func ParseCSV(r io.Reader) ([]tax.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // column count is checked per row below
	reader.TrimLeadingSpace = true

	var rows []tax.Row
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			rows = append(rows, tax.Row{Line: line, Err: fmt.Errorf("malformed csv line: %w", err)})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read import file: %w", err)
		}

		if line == 1 && isHeader(record) {
			continue
		}

		rows = append(rows, parseRecord(line, record))
	}
	return rows, nil
}

func isHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "municipality")
}

func parseRecord(line int, record []string) tax.Row {
	row := tax.Row{Line: line}

	if len(record) != columns {
		row.Err = fmt.Errorf("expected %d columns, got %d", columns, len(record))
		return row
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}

	row.Fields.Municipality = record[0]

	kind, err := tax.ParseRecurrenceKind(record[1])
	if err != nil {
		row.Err = err
		return row
	}
	row.Fields.Kind = kind

	rate, err := decimal.NewFromString(record[2])
	if err != nil {
		row.Err = fmt.Errorf("invalid tax value %q", record[2])
		return row
	}
	row.Fields.Rate = rate

	if row.Fields.Start, err = tax.ParseDate(record[3]); err != nil {
		row.Err = err
		return row
	}
	if row.Fields.End, err = tax.ParseDate(record[4]); err != nil {
		row.Err = err
		return row
	}

	if row.Fields.DayOfMonth, err = optionalInt("day_of_month", record[5]); err != nil {
		row.Err = err
		return row
	}
	if record[6] != "" {
		weekday, err := tax.ParseWeekday(record[6])
		if err != nil {
			row.Err = err
			return row
		}
		row.Fields.DayOfWeek = &weekday
	}
	if row.Fields.DayOfYear, err = optionalInt("day_of_year", record[7]); err != nil {
		row.Err = err
	}
	return row
}

func optionalInt(field, cell string) (*int, error) {
	if cell == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(cell)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", field, cell)
	}
	return &v, nil
}
