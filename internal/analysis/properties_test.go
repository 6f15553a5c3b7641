package analysis

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulesift/rulesift/internal/relations"
	"github.com/rulesift/rulesift/internal/rules"
	"github.com/rulesift/rulesift/internal/traffic"
)

// mixedFixture has one shadowed rule whose matches overlap no rule other
// than its shadower, a redundant pair, a correlated pair and a subsumption.
func mixedFixture() ([]rules.Definition, []traffic.Record) {
	defs := []rules.Definition{
		{ID: "block-admin", Pattern: "/admin", Phase: 1, Priority: 10, Action: "deny", Category: "access"},
		{ID: "admin-login", Pattern: "/admin/login", Phase: 2, Priority: 10, Action: "log", Category: "access"},
		{ID: "sqli-union", Pattern: `union\s+select`, Flags: "i", Phase: 2, Priority: 20, Action: "log", Category: "sqli"},
		{ID: "sqli-union-2", Pattern: "union select", Flags: "i", Phase: 2, Priority: 30, Action: "log", Category: "sqli"},
		{ID: "sqli-generic", Pattern: "union|select", Flags: "i", Phase: 2, Priority: 40, Action: "log", Category: "sqli"},
		{ID: "xss", Pattern: "<script", Flags: "i", Phase: 2, Priority: 50, Action: "log", Category: "xss"},
		{ID: "scanner", Pattern: "nikto sqlmap", Operator: rules.OperatorPhrase, Flags: "i", Phase: 2, Priority: 60, Action: "log"},
	}

	var uris []string
	for i := 0; i < 6; i++ {
		uris = append(uris, fmt.Sprintf("/admin/login?u=%d", i))
	}
	for i := 0; i < 3; i++ {
		uris = append(uris, fmt.Sprintf("/admin/panel?%d", i))
	}
	for i := 0; i < 12; i++ {
		uris = append(uris, fmt.Sprintf("/search?q=1 UNION SELECT %d", i))
	}
	for i := 0; i < 4; i++ {
		uris = append(uris, fmt.Sprintf("/search?q=select %d", i))
	}
	for i := 0; i < 40; i++ {
		uris = append(uris, fmt.Sprintf("/static/%d.css", i))
	}

	records := make([]traffic.Record, 0, len(uris)+8)
	for i, uri := range uris {
		records = append(records, traffic.Record{TransactionID: fmt.Sprintf("tx-%d", i), RequestURI: uri})
	}
	for i := 0; i < 8; i++ {
		records = append(records, traffic.Record{
			TransactionID: fmt.Sprintf("scan-%d", i),
			RequestURI:    "/comment?<script>alert(1)</script>",
			UserAgent:     "Mozilla/5.0 Nikto",
		})
	}
	return defs, records
}

func TestDeterminism(t *testing.T) {
	defs, records := mixedFixture()
	first := run(t, DefaultOptions(), defs, records)
	second := run(t, DefaultOptions(), defs, records)
	assert.Equal(t, first, second)
	assert.Positive(t, first.TotalRelationships)
}

func TestShadowingRespectsExecutionOrder(t *testing.T) {
	defs, records := mixedFixture()
	opts := DefaultOptions()
	opts.DisablePruning = true
	result := run(t, opts, defs, records)

	byID := map[string]rules.Definition{}
	for _, def := range defs {
		def.ApplyDefaults()
		byID[def.ID] = def
	}
	require.NotEmpty(t, result.Relationships[relations.Shadowing])
	for _, rel := range result.Relationships[relations.Shadowing] {
		a, b := byID[rel.RuleA], byID[rel.RuleB]
		earlier := a.Phase < b.Phase || (a.Phase == b.Phase && a.Priority < b.Priority)
		assert.True(t, earlier, "%s must run strictly before %s", rel.RuleA, rel.RuleB)
	}
}

func TestConfidenceBounds(t *testing.T) {
	defs, records := mixedFixture()
	result := run(t, DefaultOptions(), defs, records)
	for _, kind := range relations.Kinds {
		for _, rel := range result.Relationships[kind] {
			assert.GreaterOrEqual(t, rel.Confidence, 0.0)
			assert.LessOrEqual(t, rel.Confidence, 1.0)
			assert.GreaterOrEqual(t, rel.EvidenceCount, 0)
		}
	}
}

func TestThresholdMonotonicity(t *testing.T) {
	defs, records := mixedFixture()

	count := func(mutate func(*relations.Thresholds), kind relations.Kind) int {
		opts := DefaultOptions()
		mutate(&opts.Thresholds)
		return run(t, opts, defs, records).Counts[kind]
	}

	steps := []float64{0.5, 0.75, 0.9, 0.95, 1.0}
	previous := -1
	for _, step := range steps {
		n := count(func(th *relations.Thresholds) { th.ShadowConfidence = step }, relations.Shadowing)
		if previous >= 0 {
			assert.LessOrEqual(t, n, previous, "shadow threshold %.2f", step)
		}
		previous = n
	}

	previous = -1
	for _, lift := range []float64{1, 2, 4, 8} {
		n := count(func(th *relations.Thresholds) { th.CorrelationMinLift = lift }, relations.Correlation)
		if previous >= 0 {
			assert.LessOrEqual(t, n, previous, "lift %.0f", lift)
		}
		previous = n
	}
}

// Pruning only drops pairs involving a shadowed rule, so this holds because
// mixedFixture's shadowed rule has no relationship besides its shadower.
func TestPruningKeepsNonShadowRelationships(t *testing.T) {
	defs, records := mixedFixture()

	pruned := run(t, DefaultOptions(), defs, records)
	opts := DefaultOptions()
	opts.DisablePruning = true
	unpruned := run(t, opts, defs, records)

	for _, kind := range []relations.Kind{relations.Redundancy, relations.Correlation, relations.Subsumption} {
		assert.ElementsMatch(t, unpruned.Relationships[kind], pruned.Relationships[kind], "kind %s", kind)
	}
}

func TestParallelMatchesSequentialUnpruned(t *testing.T) {
	defs, records := mixedFixture()

	sequential := DefaultOptions()
	sequential.DisablePruning = true
	want := run(t, sequential, defs, records)

	for _, workers := range []int{2, 4, 16} {
		opts := DefaultOptions()
		opts.Workers = workers
		got := run(t, opts, defs, records)
		assert.Equal(t, want.Relationships, got.Relationships, "workers=%d", workers)
		assert.Equal(t, want.Recommendations, got.Recommendations, "workers=%d", workers)
	}
}

func TestFingerprint(t *testing.T) {
	defs, records := mixedFixture()

	base, err := Fingerprint(defs, records, DefaultOptions())
	require.NoError(t, err)
	again, err := Fingerprint(defs, records, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, base, again)

	seeded := DefaultOptions()
	seeded.Seed = 9
	other, err := Fingerprint(defs, records, seeded)
	require.NoError(t, err)
	assert.NotEqual(t, base, other)

	unprunedSeq := DefaultOptions()
	unprunedSeq.DisablePruning = true
	parallel := DefaultOptions()
	parallel.Workers = 8
	a, err := Fingerprint(defs, records, unprunedSeq)
	require.NoError(t, err)
	b, err := Fingerprint(defs, records, parallel)
	require.NoError(t, err)
	assert.Equal(t, a, b, "worker count does not change results")
}

func TestRunHonoursTimeout(t *testing.T) {
	defs, records := mixedFixture()
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	_, err := New(DefaultOptions()).Run(ctx, defs, records)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
