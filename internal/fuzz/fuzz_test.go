package fuzz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type acceptFunc func(string) bool

func (f acceptFunc) Accepts(input string) bool { return f(input) }

func TestEstimateFromExamples(t *testing.T) {
	subsuming := acceptFunc(func(s string) bool { return strings.Contains(s, "select") })
	examples := []string{"union select 1", "union select 2", "union all 3", "select 4"}

	est := DefaultTester().Estimate(PairSource(1, "a", "b"), subsuming, examples)
	assert.False(t, est.Random)
	assert.Equal(t, 4, est.Trials)
	assert.Equal(t, 3, est.Hits)
	assert.InDelta(t, 0.75, est.Ratio, 1e-9)
}

func TestEstimateSamplesUpToTrialBudget(t *testing.T) {
	examples := make([]string, 500)
	for i := range examples {
		examples[i] = "x"
	}
	tester := Tester{Trials: 200}
	est := tester.Estimate(PairSource(7, "a", "b"), acceptFunc(func(string) bool { return true }), examples)
	assert.Equal(t, 200, est.Trials)
	assert.Equal(t, 1.0, est.Ratio)
	assert.Len(t, examples, 500, "sampling must not modify the input")
}

func TestEstimateRandomFallback(t *testing.T) {
	var lengths []int
	probe := acceptFunc(func(s string) bool {
		lengths = append(lengths, len(s))
		for _, r := range s {
			if r < ' ' || r > '~' {
				t.Fatalf("non-printable rune %q", r)
			}
		}
		return false
	})

	est := DefaultTester().Estimate(PairSource(3, "a", "b"), probe, nil)
	assert.True(t, est.Random)
	assert.Equal(t, DefaultRandomTrials, est.Trials)
	assert.Zero(t, est.Ratio)
	for _, n := range lengths {
		assert.GreaterOrEqual(t, n, DefaultMinLength)
		assert.LessOrEqual(t, n, DefaultMaxLength)
	}

	small := Tester{Trials: 10}.Estimate(PairSource(3, "a", "b"), probe, nil)
	assert.Equal(t, 10, small.Trials)
}

func TestPairSourceIsDeterministic(t *testing.T) {
	first := PairSource(42, "r1", "r2")
	second := PairSource(42, "r1", "r2")
	other := PairSource(42, "r2", "r1")

	a, b, c := first.Uint64(), second.Uint64(), other.Uint64()
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
