package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulesift/rulesift/internal/rules"
	"github.com/rulesift/rulesift/internal/traffic"
)

func TestTrafficIsDeterministic(t *testing.T) {
	a := New(42).Traffic(50)
	b := New(42).Traffic(50)
	assert.Equal(t, a, b)

	c := New(7).Traffic(50)
	assert.NotEqual(t, a, c)
}

func TestTrafficShape(t *testing.T) {
	records := New(1).Traffic(200)
	require.Len(t, records, 200)

	assert.Empty(t, traffic.AssignIDs(records), "generated transaction ids are unique")

	attacks := 0
	for _, rec := range records {
		assert.NotEmpty(t, rec.RequestURI)
		if _, ok := rec.LoggedRule(); ok {
			attacks++
			assert.NotEmpty(t, rec.MatchedData)
		}
	}
	assert.Greater(t, attacks, 0)
	assert.Less(t, attacks, len(records))
}

func TestRulesCompile(t *testing.T) {
	for i, def := range Rules() {
		def.ApplyDefaults()
		rule, err := rules.Compile(def, i)
		require.NoError(t, err, def.ID)
		assert.False(t, rule.Fallback, def.ID)
	}
}
