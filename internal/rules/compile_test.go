package rules

import (
	"errors"
	"testing"
)

func TestCompileDefaults(t *testing.T) {
	rule, err := Compile(Definition{ID: "r1", Pattern: "x"}, 4)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if rule.Phase != DefaultPhase || rule.Priority != DefaultPriority {
		t.Fatalf("expected defaults, got phase=%d priority=%d", rule.Phase, rule.Priority)
	}
	if rule.Operator != OperatorRegex {
		t.Fatalf("expected rx operator, got %q", rule.Operator)
	}
	if rule.Index != 4 {
		t.Fatalf("expected index 4, got %d", rule.Index)
	}
}

func TestCompileCaseInsensitiveFlag(t *testing.T) {
	rule, err := Compile(Definition{ID: "r1", Pattern: "union select", Flags: "i"}, 0)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !rule.Accepts("1 UNION SELECT 2") {
		t.Fatalf("expected case-insensitive match")
	}

	strict, err := Compile(Definition{ID: "r2", Pattern: "union select"}, 1)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if strict.Accepts("1 UNION SELECT 2") {
		t.Fatalf("expected case-sensitive miss")
	}
}

func TestCompileFallsBackToLiteral(t *testing.T) {
	rule, err := Compile(Definition{ID: "broken", Pattern: "(unclosed"}, 0)
	if err != nil {
		t.Fatalf("expected literal fallback, got %v", err)
	}
	if !rule.Fallback || rule.CompileError == "" {
		t.Fatalf("expected fallback to be recorded")
	}
	if !rule.Accepts("/x?q=(unclosed") {
		t.Fatalf("expected literal match")
	}
	if rule.Accepts("unclosed") {
		t.Fatalf("expected literal form to require the parenthesis")
	}
}

func TestCompileUnusable(t *testing.T) {
	cases := []struct {
		name string
		def  Definition
	}{
		{"empty", Definition{ID: "e", Pattern: "  "}},
		{"invalid-utf8", Definition{ID: "u", Pattern: "\xff("}},
		{"unknown-operator", Definition{ID: "o", Pattern: "x", Operator: "geoLookup"}},
		{"unknown-transform", Definition{ID: "t", Pattern: "x", Transforms: []string{"t:base64Decode"}}},
	}

	for _, tt := range cases {
		_, err := Compile(tt.def, 0)
		if !errors.Is(err, ErrUnusable) {
			t.Fatalf("%s: expected ErrUnusable, got %v", tt.name, err)
		}
	}
}

func TestRuleAcceptsRecoversPanics(t *testing.T) {
	rule := &Rule{Definition: Definition{ID: "p"}, matcher: panicMatcher{}}
	if rule.Accepts("anything") {
		t.Fatalf("expected panic to count as a non-match")
	}
}

func TestAhoMatcher(t *testing.T) {
	m, err := NewAhoMatcher([]string{"he", "she", "his", "hers"}, false)
	if err != nil {
		t.Fatalf("aho build: %v", err)
	}
	if !m.Match("ushers") {
		t.Fatalf("expected match in ushers")
	}
	if m.Match("hx sx") {
		t.Fatalf("expected no match")
	}

	folded, err := NewAhoMatcher([]string{"SQLMap"}, true)
	if err != nil {
		t.Fatalf("aho build: %v", err)
	}
	if !folded.Match("agent sqlmap/1.0") {
		t.Fatalf("expected folded match")
	}

	if _, err := NewAhoMatcher([]string{"", ""}, false); err == nil {
		t.Fatalf("expected error for empty phrases")
	}
}

func TestFlagPrefix(t *testing.T) {
	cases := map[string]string{
		"":    "",
		"i":   "(?i)",
		"ii":  "(?i)",
		"is":  "(?is)",
		"ixm": "(?im)",
	}
	for flags, want := range cases {
		if got := flagPrefix(flags); got != want {
			t.Fatalf("flagPrefix(%q) expected %q, got %q", flags, want, got)
		}
	}
}

type panicMatcher struct{}

func (panicMatcher) Match(string) bool { panic("boom") }
