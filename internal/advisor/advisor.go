package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rulesift/rulesift/internal/relations"
	"github.com/rulesift/rulesift/internal/rules"
)

type Action string

const (
	ActionMerge    Action = "MERGE"
	ActionRemoveA  Action = "REMOVE_RULE_A"
	ActionRemoveB  Action = "REMOVE_RULE_B"
	ActionKeepBoth Action = "KEEP_BOTH"
	ActionReview   Action = "REVIEW"
)

// Pair is what an advisor sees: one relationship and both rule definitions.
type Pair struct {
	Relationship relations.Relationship
	RuleA        rules.Definition
	RuleB        rules.Definition
}

type Suggestion struct {
	RuleA                  string         `json:"rule_a" yaml:"rule_a"`
	RuleB                  string         `json:"rule_b" yaml:"rule_b"`
	Kind                   relations.Kind `json:"kind" yaml:"kind"`
	Action                 Action         `json:"action" yaml:"action"`
	Explanation            string         `json:"explanation" yaml:"explanation"`
	SecurityImpact         string         `json:"security_impact" yaml:"security_impact"`
	PerformanceImprovement string         `json:"performance_improvement" yaml:"performance_improvement"`
	Source                 string         `json:"source" yaml:"source"`
}

// Advisor produces an optimization suggestion for one related rule pair.
type Advisor interface {
	Suggest(ctx context.Context, pair Pair) (Suggestion, error)
}

// Heuristic derives suggestions from the relationship kind alone. It never
// fails.
type Heuristic struct{}

func (Heuristic) Suggest(_ context.Context, pair Pair) (Suggestion, error) {
	rel := pair.Relationship
	s := Suggestion{
		RuleA:  rel.RuleA,
		RuleB:  rel.RuleB,
		Kind:   rel.Kind,
		Source: "heuristic",
	}

	switch rel.Kind {
	case relations.Shadowing:
		s.Action = ActionRemoveB
		s.Explanation = fmt.Sprintf("Rule %s never acts on its own: earlier blocking rules intercept %.0f%% of its matches.", rel.RuleB, rel.Confidence*100)
		s.SecurityImpact = fmt.Sprintf("Coverage is kept by rule %s and the other earlier blocking rules.", rel.RuleA)
		s.PerformanceImprovement = "One fewer rule evaluated per request."
	case relations.Redundancy:
		s.Action = ActionMerge
		s.Explanation = fmt.Sprintf("Rules %s and %s fire on nearly the same traffic.", rel.RuleA, rel.RuleB)
		s.SecurityImpact = "None if the merged pattern keeps both alternatives."
		s.PerformanceImprovement = "One fewer pattern evaluated per request."
	case relations.Subsumption:
		if sameOutcome(pair.RuleA, pair.RuleB) {
			s.Action = ActionRemoveB
			s.Explanation = fmt.Sprintf("Rule %s covers rule %s with the same action and message.", rel.RuleA, rel.RuleB)
			s.SecurityImpact = "None observed on the analyzed traffic."
			s.PerformanceImprovement = "One fewer rule evaluated per request."
		} else {
			s.Action = ActionKeepBoth
			s.Explanation = fmt.Sprintf("Rule %s is a specialization of rule %s with a different action or message.", rel.RuleB, rel.RuleA)
			s.SecurityImpact = "Removing the specialized rule would change logging or response behaviour."
			s.PerformanceImprovement = "None."
		}
	default:
		s.Action = ActionReview
		s.Explanation = fmt.Sprintf("Rules %s and %s fire together more often than chance; review whether they target the same attack.", rel.RuleA, rel.RuleB)
		s.SecurityImpact = "Unknown, requires manual verification."
		s.PerformanceImprovement = "Unknown."
	}

	return s, nil
}

func sameOutcome(a, b rules.Definition) bool {
	return strings.EqualFold(strings.TrimSpace(a.Action), strings.TrimSpace(b.Action)) &&
		strings.TrimSpace(a.Name) == strings.TrimSpace(b.Name)
}

type fallback struct {
	primary Advisor
}

// WithFallback returns an advisor that answers with Heuristic whenever
// primary is nil or fails.
func WithFallback(primary Advisor) Advisor {
	return fallback{primary: primary}
}

func (f fallback) Suggest(ctx context.Context, pair Pair) (Suggestion, error) {
	if f.primary != nil {
		if s, err := f.primary.Suggest(ctx, pair); err == nil {
			return s, nil
		}
	}
	return Heuristic{}.Suggest(ctx, pair)
}
