/*
store.go - Persistence interface for tax rules

PURPOSE:
  Defines the interface between the resolution engine and the database.
  Different implementations can use SQLite or in-memory storage.

CONTRACT:
  - Add validates the fields, assigns a new monotonically increasing id,
    and appends the rule. It never deduplicates: overlapping rules are
    legal and resolved by precedence at query time.
  - Update re-validates and replaces all matchable fields in place,
    preserving the id. Returns ErrRuleNotFound for unknown ids.
    Municipality reassignment is permitted.
  - List returns every rule for a municipality (case-insensitive match),
    as copies the caller may hold freely.
  - Rules are never deleted.

CONCURRENCY:
  Implementations must serialize Add/Update per municipality and keep
  List/Get safe under concurrent readers. The mutual exclusion is held
  only across validation + insertion, never across unrelated I/O.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Durable SQLite store
  - tax/store/memory.go:    In-memory store for tests and dev mode
*/
package tax

import "context"

// Store handles persistence of tax rules.
type Store interface {
	// Add validates fields, assigns the next id and appends the rule.
	Add(ctx context.Context, f Fields) (Rule, error)

	// Update replaces the matchable fields of an existing rule.
	// Returns ErrRuleNotFound if the id does not exist.
	Update(ctx context.Context, id RuleID, f Fields) (Rule, error)

	// Get returns the rule with the given id, or ErrRuleNotFound.
	Get(ctx context.Context, id RuleID) (Rule, error)

	// List returns all rules for a municipality, matched case-insensitively,
	// ordered by id. An unknown municipality yields an empty slice, not an
	// error.
	List(ctx context.Context, municipality string) ([]Rule, error)
}
