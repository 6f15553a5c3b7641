package matrix

import (
	"context"

	"github.com/rulesift/rulesift/internal/rules"
	"github.com/rulesift/rulesift/internal/traffic"
)

type Options struct {
	// UseLoggedHits also counts a record as a hit for the rule its source
	// log names in rule_id.
	UseLoggedHits bool
}

// Matrix maps each compiled rule to the set of records it matches. Rule
// positions follow the engine's execution order. A built Matrix is never
// modified.
type Matrix struct {
	rules     []*rules.Rule
	positions map[string]int
	ids       []string
	texts     []string
	hits      []Set
	logged    []int
	labeled   Set
}

const cancelCheckEvery = 256

// Build evaluates every rule against the search text of every record.
func Build(ctx context.Context, engine *rules.Engine, records []traffic.Record, opts Options) (*Matrix, error) {
	compiled := engine.Rules()
	m := &Matrix{
		rules:     compiled,
		positions: make(map[string]int, len(compiled)),
		ids:       make([]string, len(records)),
		texts:     make([]string, len(records)),
		hits:      make([]Set, len(compiled)),
		logged:    make([]int, len(compiled)),
		labeled:   NewSet(len(records)),
	}
	for pos, rule := range compiled {
		m.positions[rule.ID] = pos
		m.hits[pos] = NewSet(len(records))
	}

	for i, record := range records {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		m.ids[i] = record.TransactionID
		m.texts[i] = record.SearchText()
		if record.AttackType != "" {
			m.labeled.Add(i)
		}

		for _, pos := range engine.Evaluate(m.texts[i]) {
			m.hits[pos].Add(i)
		}

		if id, ok := record.LoggedRule(); ok {
			if pos, known := m.positions[id]; known {
				m.logged[pos]++
				if opts.UseLoggedHits {
					m.hits[pos].Add(i)
				}
			}
		}
	}

	return m, nil
}

func (m *Matrix) Rules() []*rules.Rule {
	return m.rules
}

// Records returns the number of traffic records.
func (m *Matrix) Records() int {
	return len(m.ids)
}

func (m *Matrix) HitsAt(pos int) Set {
	return m.hits[pos]
}

func (m *Matrix) Hits(ruleID string) (Set, bool) {
	pos, ok := m.positions[ruleID]
	if !ok {
		return Set{}, false
	}
	return m.hits[pos], true
}

// LoggedHits returns how many records the source log attributes to the rule.
func (m *Matrix) LoggedHits(pos int) int {
	return m.logged[pos]
}

// Labeled returns the records the source log tagged with an attack type.
func (m *Matrix) Labeled() Set {
	return m.labeled
}

// TransactionIDs returns up to limit transaction ids of the records in set,
// in record order. A limit below 1 returns all of them.
func (m *Matrix) TransactionIDs(set Set, limit int) []string {
	out := make([]string, 0, min(set.Count(), max(limit, 0)))
	for _, i := range set.Indices() {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.ids[i])
	}
	return out
}

// Examples returns the search texts of the records in set, in record order.
func (m *Matrix) Examples(set Set) []string {
	indices := set.Indices()
	out := make([]string, 0, len(indices))
	for _, i := range indices {
		out = append(out, m.texts[i])
	}
	return out
}
