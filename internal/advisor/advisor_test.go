package advisor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulesift/rulesift/internal/relations"
	"github.com/rulesift/rulesift/internal/rules"
)

type failing struct{}

func (failing) Suggest(context.Context, Pair) (Suggestion, error) {
	return Suggestion{}, errors.New("upstream unavailable")
}

type fixed struct{}

func (fixed) Suggest(_ context.Context, pair Pair) (Suggestion, error) {
	return Suggestion{RuleA: pair.Relationship.RuleA, Action: ActionRemoveA, Source: "model"}, nil
}

func TestHeuristicActions(t *testing.T) {
	cases := []struct {
		name string
		pair Pair
		want Action
	}{
		{"shadowing", Pair{Relationship: relations.Relationship{Kind: relations.Shadowing, RuleA: "a", RuleB: "b", Confidence: 1}}, ActionRemoveB},
		{"redundancy", Pair{Relationship: relations.Relationship{Kind: relations.Redundancy}}, ActionMerge},
		{"correlation", Pair{Relationship: relations.Relationship{Kind: relations.Correlation}}, ActionReview},
		{"subsumption-same", Pair{
			Relationship: relations.Relationship{Kind: relations.Subsumption},
			RuleA:        rules.Definition{Action: "block", Name: "SQLi"},
			RuleB:        rules.Definition{Action: "BLOCK", Name: "SQLi"},
		}, ActionRemoveB},
		{"subsumption-different", Pair{
			Relationship: relations.Relationship{Kind: relations.Subsumption},
			RuleA:        rules.Definition{Action: "block", Name: "SQLi"},
			RuleB:        rules.Definition{Action: "log", Name: "SQLi union"},
		}, ActionKeepBoth},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Heuristic{}.Suggest(context.Background(), tt.pair)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Action)
			assert.Equal(t, "heuristic", got.Source)
			assert.NotEmpty(t, got.Explanation)
		})
	}
}

func TestWithFallback(t *testing.T) {
	pair := Pair{Relationship: relations.Relationship{Kind: relations.Redundancy, RuleA: "a", RuleB: "b"}}

	got, err := WithFallback(failing{}).Suggest(context.Background(), pair)
	require.NoError(t, err)
	assert.Equal(t, ActionMerge, got.Action)

	got, err = WithFallback(nil).Suggest(context.Background(), pair)
	require.NoError(t, err)
	assert.Equal(t, "heuristic", got.Source)

	got, err = WithFallback(fixed{}).Suggest(context.Background(), pair)
	require.NoError(t, err)
	assert.Equal(t, "model", got.Source)
}
