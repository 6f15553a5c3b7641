package matrix

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulesift/rulesift/internal/rules"
	"github.com/rulesift/rulesift/internal/traffic"
)

func TestSetOperations(t *testing.T) {
	a := SetOf(130, 1, 64, 65, 129)
	b := SetOf(130, 1, 65, 100)

	assert.Equal(t, 4, a.Count())
	assert.Equal(t, 2, a.IntersectCount(b))
	assert.Equal(t, 5, a.UnionCount(b))
	assert.Equal(t, []int{1, 65}, a.Intersect(b).Indices())
	assert.Equal(t, []int{1, 64, 65, 100, 129}, a.Union(b).Indices())
	assert.True(t, a.Contains(129))
	assert.False(t, a.Contains(130))
	assert.False(t, a.Contains(-1))
	assert.True(t, NewSet(10).Empty())

	c := a.Clone()
	c.Add(2)
	assert.False(t, a.Contains(2), "clone must not share storage")
	assert.False(t, a.Equal(c))

	u := a.Clone()
	u.UnionWith(b)
	assert.True(t, u.Equal(a.Union(b)))
	assert.Equal(t, 4, a.Count(), "UnionWith only touches the receiver")

	var zero Set
	assert.True(t, zero.Empty())
	assert.Empty(t, zero.Indices())
	assert.Equal(t, 0, zero.IntersectCount(a))
}

func buildEngine(t *testing.T, defs ...rules.Definition) *rules.Engine {
	t.Helper()
	var compiled []*rules.Rule
	for i, def := range defs {
		rule, err := rules.Compile(def, i)
		require.NoError(t, err)
		compiled = append(compiled, rule)
	}
	return rules.NewEngine(compiled)
}

func TestBuild(t *testing.T) {
	engine := buildEngine(t,
		rules.Definition{ID: "sqli", Pattern: `union\s+select`, Flags: "i", Action: "block"},
		rules.Definition{ID: "ua", Pattern: "sqlmap", Flags: "i", Action: "block", Phase: 1},
	)
	records := []traffic.Record{
		{TransactionID: "a", RequestURI: "/?q=UNION SELECT 1", UserAgent: "sqlmap/1.7"},
		{TransactionID: "b", RequestURI: "/index.html", RuleID: "sqli"},
		{TransactionID: "c", MatchedData: "union   select", AttackType: "sqli"},
	}

	m, err := Build(context.Background(), engine, records, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, m.Records())

	sqli, ok := m.Hits("sqli")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "c"}, m.TransactionIDs(sqli, 0))
	assert.Equal(t, []string{"a"}, m.TransactionIDs(sqli, 1))

	ua, ok := m.Hits("ua")
	require.True(t, ok)
	assert.Equal(t, []int{0}, ua.Indices())

	assert.Equal(t, "ua", m.Rules()[0].ID, "phase 1 rule runs first")
	assert.Equal(t, 1, m.LoggedHits(1))
	assert.Equal(t, []string{"/?q=UNION SELECT 1 sqlmap/1.7", "union   select"}, m.Examples(sqli))

	assert.Equal(t, []int{2}, m.Labeled().Indices())

	withLogged, err := Build(context.Background(), engine, records, Options{UseLoggedHits: true})
	require.NoError(t, err)
	logged, _ := withLogged.Hits("sqli")
	assert.Equal(t, []string{"a", "b", "c"}, withLogged.TransactionIDs(logged, 0))
}

func TestBuildIsDeterministic(t *testing.T) {
	engine := buildEngine(t,
		rules.Definition{ID: "1", Pattern: "a", Action: "pass"},
		rules.Definition{ID: "2", Pattern: "b", Action: "pass"},
	)
	records := []traffic.Record{{RequestURI: "ab"}, {RequestURI: "b"}, {RequestURI: "c"}}
	traffic.AssignIDs(records)

	first, err := Build(context.Background(), engine, records, Options{})
	require.NoError(t, err)
	second, err := Build(context.Background(), engine, records, Options{})
	require.NoError(t, err)

	for pos := range first.Rules() {
		assert.True(t, first.HitsAt(pos).Equal(second.HitsAt(pos)))
	}
}

func TestBuildHonoursCancellation(t *testing.T) {
	engine := buildEngine(t, rules.Definition{ID: "1", Pattern: "a", Action: "pass"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, engine, []traffic.Record{{RequestURI: "a"}}, Options{})
	require.ErrorIs(t, err, context.Canceled)
}
