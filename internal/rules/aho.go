package rules

import (
	"errors"
	"strings"
)

// AhoMatcher implements the phrase-match operator: the input matches when it
// contains any of the phrases.
type AhoMatcher struct {
	nodes []ahoNode
	fold  bool
}

type ahoNode struct {
	next map[byte]int
	fail int
	out  bool
}

func NewAhoMatcher(phrases []string, fold bool) (*AhoMatcher, error) {
	if len(phrases) == 0 {
		return nil, errors.New("phrases are required")
	}

	nodes := []ahoNode{{next: map[byte]int{}}}
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		if fold {
			phrase = strings.ToLower(phrase)
		}
		current := 0
		for i := 0; i < len(phrase); i++ {
			b := phrase[i]
			next, ok := nodes[current].next[b]
			if !ok {
				nodes = append(nodes, ahoNode{next: map[byte]int{}})
				next = len(nodes) - 1
				nodes[current].next[b] = next
			}
			current = next
		}
		nodes[current].out = true
	}

	if len(nodes) == 1 {
		return nil, errors.New("no non-empty phrases")
	}

	queue := make([]int, 0, len(nodes))
	for _, next := range nodes[0].next {
		queue = append(queue, next)
	}

	for len(queue) > 0 {
		state := queue[0]
		queue = queue[1:]

		for b, next := range nodes[state].next {
			fail := nodes[state].fail
			for fail != 0 {
				if _, ok := nodes[fail].next[b]; ok {
					break
				}
				fail = nodes[fail].fail
			}
			if target, ok := nodes[fail].next[b]; ok && target != next {
				nodes[next].fail = target
			}
			nodes[next].out = nodes[next].out || nodes[nodes[next].fail].out
			queue = append(queue, next)
		}
	}

	return &AhoMatcher{nodes: nodes, fold: fold}, nil
}

func (m *AhoMatcher) Match(input string) bool {
	if m.fold {
		input = strings.ToLower(input)
	}

	state := 0
	for i := 0; i < len(input); i++ {
		b := input[i]
		for state != 0 {
			if _, ok := m.nodes[state].next[b]; ok {
				break
			}
			state = m.nodes[state].fail
		}
		if next, ok := m.nodes[state].next[b]; ok {
			state = next
		}
		if m.nodes[state].out {
			return true
		}
	}
	return false
}
