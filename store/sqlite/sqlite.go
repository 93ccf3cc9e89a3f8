/*
Package sqlite provides a SQLite-backed implementation of tax.Store.

PURPOSE:
  Durable rule storage. Rules survive process restarts and ids are stable:
  the tax_rules table uses AUTOINCREMENT, which guarantees monotonically
  increasing ids and never reuses one — the resolver's last-writer-wins
  tie-break depends on that.

KEY TABLE:
  tax_rules: One row per rule. municipality_key holds the lowercased name
  for case-insensitive lookup; municipality keeps the original spelling.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

CONCURRENCY:
  Add/Update are serialized per municipality with in-process locks, held
  only across validation + the insert/update statement. Reads take no
  locks. A multi-process deployment would need the equivalent exclusion in
  the database itself.

USAGE:
  store, err := sqlite.New("./data/tax.db")   // ":memory:" for tests
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - tax/store.go: Interface definition and contract
  - tax/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/tax-engine/tax"
)

// Store implements tax.Store using SQLite.
type Store struct {
	db *sql.DB

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, locks: make(map[string]*sync.Mutex)}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tax_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		municipality TEXT NOT NULL,
		municipality_key TEXT NOT NULL,
		kind TEXT NOT NULL,
		rate TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		day_of_month INTEGER,
		day_of_week INTEGER,
		day_of_year INTEGER,
		source TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- Hot path: every resolve lists one municipality's rules.
	CREATE INDEX IF NOT EXISTS idx_tax_rules_municipality_key
		ON tax_rules(municipality_key);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) cityLock(key string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	if l, ok := s.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[key] = l
	return l
}

func (s *Store) lockCities(keys ...string) func() {
	uniq := map[string]bool{}
	var ordered []string
	for _, k := range keys {
		if !uniq[k] {
			uniq[k] = true
			ordered = append(ordered, k)
		}
	}
	sort.Strings(ordered)

	var held []*sync.Mutex
	for _, k := range ordered {
		l := s.cityLock(k)
		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// Add validates fields, inserts the rule and returns it with its new id.
func (s *Store) Add(ctx context.Context, f tax.Fields) (tax.Rule, error) {
	if err := tax.Validate(f); err != nil {
		return tax.Rule{}, err
	}

	key := tax.NormalizeMunicipality(f.Municipality)
	unlock := s.lockCities(key)
	defer unlock()

	createdAt := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO tax_rules
			(municipality, municipality_key, kind, rate, start_date, end_date,
			 day_of_month, day_of_week, day_of_year, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Municipality, key, string(f.Kind), f.Rate.String(),
		f.Start.String(), f.End.String(),
		nullableInt(f.DayOfMonth), nullableWeekday(f.DayOfWeek), nullableInt(f.DayOfYear),
		f.Source, createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return tax.Rule{}, fmt.Errorf("failed to insert tax rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return tax.Rule{}, fmt.Errorf("failed to read rule id: %w", err)
	}

	rule := ruleFromFields(tax.RuleID(id), f)
	rule.CreatedAt = createdAt
	return rule, nil
}

// Update replaces the matchable fields of an existing rule in place.
func (s *Store) Update(ctx context.Context, id tax.RuleID, f tax.Fields) (tax.Rule, error) {
	if err := tax.Validate(f); err != nil {
		return tax.Rule{}, err
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return tax.Rule{}, err
	}

	oldKey := tax.NormalizeMunicipality(existing.Municipality)
	newKey := tax.NormalizeMunicipality(f.Municipality)
	unlock := s.lockCities(oldKey, newKey)
	defer unlock()

	source := f.Source
	if source == "" {
		source = existing.Source
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE tax_rules SET
			municipality = ?, municipality_key = ?, kind = ?, rate = ?,
			start_date = ?, end_date = ?,
			day_of_month = ?, day_of_week = ?, day_of_year = ?, source = ?
		WHERE id = ?`,
		f.Municipality, newKey, string(f.Kind), f.Rate.String(),
		f.Start.String(), f.End.String(),
		nullableInt(f.DayOfMonth), nullableWeekday(f.DayOfWeek), nullableInt(f.DayOfYear),
		source, int64(id),
	)
	if err != nil {
		return tax.Rule{}, fmt.Errorf("failed to update tax rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return tax.Rule{}, fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return tax.Rule{}, tax.ErrRuleNotFound
	}

	rule := ruleFromFields(id, f)
	rule.Source = source
	rule.CreatedAt = existing.CreatedAt
	return rule, nil
}

// Get returns the rule with the given id.
func (s *Store) Get(ctx context.Context, id tax.RuleID) (tax.Rule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, municipality, kind, rate, start_date, end_date,
		       day_of_month, day_of_week, day_of_year, source, created_at
		FROM tax_rules WHERE id = ?`, int64(id))

	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return tax.Rule{}, tax.ErrRuleNotFound
	}
	if err != nil {
		return tax.Rule{}, fmt.Errorf("failed to get tax rule: %w", err)
	}
	return rule, nil
}

// List returns all rules for a municipality, ordered by id.
func (s *Store) List(ctx context.Context, municipality string) ([]tax.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, municipality, kind, rate, start_date, end_date,
		       day_of_month, day_of_week, day_of_year, source, created_at
		FROM tax_rules WHERE municipality_key = ? ORDER BY id`,
		tax.NormalizeMunicipality(municipality))
	if err != nil {
		return nil, fmt.Errorf("failed to list tax rules: %w", err)
	}
	defer rows.Close()

	var rules []tax.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tax rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// =============================================================================
// ROW MAPPING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(row scanner) (tax.Rule, error) {
	var (
		id                               int64
		municipality, kind, rate, source string
		startDate, endDate, createdAt    string
		dayOfMonth, dayOfWeek, dayOfYear sql.NullInt64
	)
	err := row.Scan(&id, &municipality, &kind, &rate, &startDate, &endDate,
		&dayOfMonth, &dayOfWeek, &dayOfYear, &source, &createdAt)
	if err != nil {
		return tax.Rule{}, err
	}

	parsedRate, err := decimal.NewFromString(rate)
	if err != nil {
		return tax.Rule{}, fmt.Errorf("corrupt rate %q for rule %d: %w", rate, id, err)
	}
	start, err := tax.ParseDate(startDate)
	if err != nil {
		return tax.Rule{}, fmt.Errorf("corrupt start_date for rule %d: %w", id, err)
	}
	end, err := tax.ParseDate(endDate)
	if err != nil {
		return tax.Rule{}, fmt.Errorf("corrupt end_date for rule %d: %w", id, err)
	}
	created, _ := time.Parse(time.RFC3339, createdAt)

	rule := tax.Rule{
		ID:           tax.RuleID(id),
		Municipality: municipality,
		Kind:         tax.RecurrenceKind(kind),
		Rate:         parsedRate,
		Start:        start,
		End:          end,
		Source:       source,
		CreatedAt:    created,
	}
	if dayOfMonth.Valid {
		v := int(dayOfMonth.Int64)
		rule.DayOfMonth = &v
	}
	if dayOfWeek.Valid {
		v := time.Weekday(dayOfWeek.Int64)
		rule.DayOfWeek = &v
	}
	if dayOfYear.Valid {
		v := int(dayOfYear.Int64)
		rule.DayOfYear = &v
	}
	return rule, nil
}

func ruleFromFields(id tax.RuleID, f tax.Fields) tax.Rule {
	return tax.Rule{
		ID:           id,
		Municipality: f.Municipality,
		Kind:         f.Kind,
		Rate:         f.Rate,
		Start:        f.Start,
		End:          f.End,
		DayOfMonth:   f.DayOfMonth,
		DayOfWeek:    f.DayOfWeek,
		DayOfYear:    f.DayOfYear,
		Source:       f.Source,
	}
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullableWeekday(v *time.Weekday) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}
