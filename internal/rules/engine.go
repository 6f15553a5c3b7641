package rules

import (
	"sort"

	"github.com/rulesift/rulesift/internal/normalize"
)

// Engine holds compiled rules in execution order.
type Engine struct {
	rules []*Rule
}

func NewEngine(compiled []*Rule) *Engine {
	ordered := append([]*Rule(nil), compiled...)
	SortByExecution(ordered)
	return &Engine{rules: ordered}
}

func (e *Engine) Rules() []*Rule {
	return e.rules
}

// Evaluate returns the positions, in execution order, of the rules that
// accept text. Input is transformed once per distinct transform set.
func (e *Engine) Evaluate(text string) []int {
	var matched []int
	transformed := map[normalize.Options]string{}

	for i, rule := range e.rules {
		if rule.matcher == nil {
			continue
		}
		input, ok := transformed[rule.transform]
		if !ok {
			input = normalize.Apply(text, rule.transform)
			transformed[rule.transform] = input
		}
		if rule.matchTransformed(input) {
			matched = append(matched, i)
		}
	}

	return matched
}

// SortByExecution orders rules by phase, then priority, then table position.
func SortByExecution(rules []*Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return orderLess(rules[i], rules[j])
	})
}

// Before reports whether a runs strictly before b. Rules sharing phase and
// priority are not ordered relative to each other.
func Before(a, b *Rule) bool {
	if a.Phase != b.Phase {
		return a.Phase < b.Phase
	}
	return a.Priority < b.Priority
}

func orderLess(a, b *Rule) bool {
	if a.Phase != b.Phase {
		return a.Phase < b.Phase
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Index < b.Index
}
