/*
resolve.go - Picks the single applicable rule for (municipality, date)

PURPOSE:
  Implements the resolution algorithm over a Store read view:
  filter by recurrence match, then pick the winner by specificity.

PRECEDENCE:
  daily > weekly > monthly > yearly. Recurrence kinds are not mutually
  exclusive time partitions; the order encodes "the more narrowly-targeted
  rule is authoritative", so a one-off daily override beats a standing
  weekly, monthly or yearly policy on the same day.

TIE-BREAK:
  When several rules of the SAME kind match (two weekly rules both covering
  a Monday), the one with the highest id wins: ids are assigned in creation
  order, so this is last-writer-wins. The tie is logged, never failed.

TOTALITY:
  "No applicable rule" and "unknown municipality" are normal outcomes,
  returned as found=false. Resolve only errors on store failures.

SEE ALSO:
  - match.go: Per-kind matching
  - store.go: The read view
*/
package tax

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RESOLUTION RESULT
// =============================================================================

// Resolution is the typed outcome of a successful resolve.
type Resolution struct {
	Municipality string
	Date         Date
	Rate         decimal.Decimal
	RuleID       RuleID
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver computes the applicable tax rate for a (municipality, date)
// pair. It holds no state beyond a read view of the store and is safe for
// concurrent use.
type Resolver struct {
	store Store

	// logf records tie-break notices. Defaults to log.Printf.
	logf func(format string, args ...any)
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store, logf: log.Printf}
}

// Resolve returns the applicable rate for the municipality on the date.
// found is false when no rule applies, including for municipalities the
// store has never seen; neither case is an error.
func (r *Resolver) Resolve(ctx context.Context, municipality string, date Date) (res Resolution, found bool, err error) {
	rules, err := r.store.List(ctx, municipality)
	if err != nil {
		return Resolution{}, false, err
	}

	var winner Rule
	ties := 0
	for _, rule := range rules {
		if !Matches(rule, date) {
			continue
		}
		switch {
		case !found:
			winner, found = rule, true
		case rule.Kind.Specificity() > winner.Kind.Specificity():
			winner, ties = rule, 0
		case rule.Kind.Specificity() == winner.Kind.Specificity():
			ties++
			if rule.ID > winner.ID {
				winner = rule
			}
		}
	}

	if !found {
		return Resolution{}, false, nil
	}

	if ties > 0 {
		r.logf("tax: %d %s rules match %s on %s; using most recent rule %d",
			ties+1, winner.Kind, winner.Municipality, date, winner.ID)
	}

	return Resolution{
		Municipality: winner.Municipality,
		Date:         date,
		Rate:         winner.Rate,
		RuleID:       winner.ID,
	}, true, nil
}
