// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/tax-engine/tax"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu     sync.RWMutex // guards maps and nextID
	rules  map[tax.RuleID]tax.Rule
	byCity map[string][]tax.RuleID // keyed by normalized municipality
	nextID tax.RuleID

	// Per-municipality write locks. Writes to different municipalities
	// proceed in parallel; writes to the same one are serialized.
	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func NewMemory() *Memory {
	return &Memory{
		rules:  make(map[tax.RuleID]tax.Rule),
		byCity: make(map[string][]tax.RuleID),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (m *Memory) cityLock(key string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	if l, ok := m.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	m.locks[key] = l
	return l
}

// lockCities acquires the write locks for the given municipality keys in a
// stable order, so an update that moves a rule between municipalities
// cannot deadlock against a concurrent update moving the other way.
func (m *Memory) lockCities(keys ...string) func() {
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
		l := m.cityLock(k)
		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// Add validates fields, assigns the next id and appends the rule.
func (m *Memory) Add(_ context.Context, f tax.Fields) (tax.Rule, error) {
	if err := tax.Validate(f); err != nil {
		return tax.Rule{}, err
	}

	key := tax.NormalizeMunicipality(f.Municipality)
	unlock := m.lockCities(key)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	rule := ruleFromFields(m.nextID, f)
	m.rules[rule.ID] = rule
	m.byCity[key] = append(m.byCity[key], rule.ID)
	return rule, nil
}

// Update replaces the matchable fields of an existing rule, preserving id
// and creation time. Municipality reassignment moves the rule between sets.
func (m *Memory) Update(_ context.Context, id tax.RuleID, f tax.Fields) (tax.Rule, error) {
	if err := tax.Validate(f); err != nil {
		return tax.Rule{}, err
	}

	m.mu.RLock()
	existing, ok := m.rules[id]
	m.mu.RUnlock()
	if !ok {
		return tax.Rule{}, tax.ErrRuleNotFound
	}

	oldKey := tax.NormalizeMunicipality(existing.Municipality)
	newKey := tax.NormalizeMunicipality(f.Municipality)
	unlock := m.lockCities(oldKey, newKey)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-check under the write lock: a concurrent update may have moved it.
	existing, ok = m.rules[id]
	if !ok {
		return tax.Rule{}, tax.ErrRuleNotFound
	}
	oldKey = tax.NormalizeMunicipality(existing.Municipality)

	rule := ruleFromFields(id, f)
	rule.CreatedAt = existing.CreatedAt
	if rule.Source == "" {
		rule.Source = existing.Source
	}
	m.rules[id] = rule

	if oldKey != newKey {
		m.byCity[oldKey] = removeID(m.byCity[oldKey], id)
		m.byCity[newKey] = append(m.byCity[newKey], id)
	}
	return rule, nil
}

func (m *Memory) Get(_ context.Context, id tax.RuleID) (tax.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rule, ok := m.rules[id]
	if !ok {
		return tax.Rule{}, tax.ErrRuleNotFound
	}
	return rule, nil
}

func (m *Memory) List(_ context.Context, municipality string) ([]tax.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byCity[tax.NormalizeMunicipality(municipality)]
	rules := make([]tax.Rule, 0, len(ids))
	for _, id := range ids {
		rules = append(rules, m.rules[id])
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
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
		CreatedAt:    time.Now().UTC(),
	}
}

func removeID(ids []tax.RuleID, id tax.RuleID) []tax.RuleID {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}
