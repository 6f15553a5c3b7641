package report

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/rulesift/rulesift/internal/advisor"
	"github.com/rulesift/rulesift/internal/profile"
	"github.com/rulesift/rulesift/internal/relations"
	"github.com/rulesift/rulesift/internal/rules"
)

func sampleInput() Input {
	return Input{
		TotalRules:    4,
		AnalyzedRules: 4,
		TotalRecords:  10,
		Detectors:     relations.Kinds,
		Relationships: []relations.Relationship{
			{Kind: relations.Shadowing, RuleA: "a", RuleB: "b", Confidence: 1, EvidenceCount: 3, Description: "a shadows b"},
			{Kind: relations.Redundancy, RuleA: "a", RuleB: "c", Confidence: 0.9, EvidenceCount: 9, Description: "a, c redundant"},
			{Kind: relations.Subsumption, RuleA: "a", RuleB: "d", Subsuming: "a", Subsumed: "d", Confidence: 1, EvidenceCount: 2},
			{Kind: relations.Shadowing, RuleA: "c", RuleB: "b", Confidence: 1, EvidenceCount: 3},
		},
		Definitions: map[string]rules.Definition{
			"a": {ID: "a", Action: "block", Name: "SQLi"},
			"b": {ID: "b", Action: "pass"},
			"c": {ID: "c", Action: "block"},
			"d": {ID: "d", Action: "block", Name: "SQLi"},
		},
		RuleHits: map[string]int{"a": 5, "b": 3, "c": 5, "d": 0},
	}
}

func TestCompileGroupsAndRecommends(t *testing.T) {
	result, err := Compile(context.Background(), sampleInput(), nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if result.TotalRelationships != 4 {
		t.Fatalf("expected 4 relationships, got %d", result.TotalRelationships)
	}
	if result.Counts[relations.Shadowing] != 2 || result.Counts[relations.Correlation] != 0 {
		t.Fatalf("unexpected counts: %v", result.Counts)
	}
	if len(result.Recommendations) != 3 {
		t.Fatalf("expected 3 recommendations, got %+v", result.Recommendations)
	}
	if rec := result.Recommendations[0]; rec.Type != RecommendRemoveShadowed || len(rec.Rules) != 1 || rec.Rules[0] != "b" {
		t.Fatalf("unexpected shadow recommendation: %+v", rec)
	}
	if rec := result.Recommendations[2]; rec.Type != RecommendKeepSpecial || len(rec.Rules) != 1 || rec.Rules[0] != "d" {
		t.Fatalf("expected d as removable specialization: %+v", rec)
	}
	if len(result.TopRules) != 3 || result.TopRules[0].Key != "a" {
		t.Fatalf("unexpected top rules: %+v", result.TopRules)
	}
}

func mutualSubsumption(defs map[string]rules.Definition, order []string) Input {
	return Input{
		Relationships: []relations.Relationship{
			{Kind: relations.Subsumption, RuleA: "x", RuleB: "y", Subsuming: "x", Subsumed: "y", Confidence: 1},
			{Kind: relations.Subsumption, RuleA: "y", RuleB: "x", Subsuming: "y", Subsumed: "x", Confidence: 1},
		},
		Definitions: defs,
		Order:       order,
	}
}

func TestCompileMutualSubsumptionKeepsOneRule(t *testing.T) {
	defs := map[string]rules.Definition{
		"x": {ID: "x", Action: "block", Name: "SQLi", Phase: 2, Priority: 10},
		"y": {ID: "y", Action: "BLOCK", Name: "SQLi", Phase: 2, Priority: 20},
	}
	cases := []struct {
		name  string
		order []string
		want  string
	}{
		{name: "explicit order", order: []string{"x", "y"}, want: "y"},
		{name: "reversed order", order: []string{"y", "x"}, want: "x"},
		{name: "derived order", want: "y"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Compile(context.Background(), mutualSubsumption(defs, tc.order), nil)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			rec := result.Recommendations[0]
			if rec.Type != RecommendKeepSpecial {
				t.Fatalf("unexpected recommendation: %+v", rec)
			}
			if len(rec.Rules) != 1 || rec.Rules[0] != tc.want {
				t.Fatalf("expected only %s removable, got %v", tc.want, rec.Rules)
			}
		})
	}
}

func TestCompileUnnamedRulesAreNotDuplicates(t *testing.T) {
	defs := map[string]rules.Definition{
		"x": {ID: "x", Action: "block"},
		"y": {ID: "y", Action: "block"},
	}
	result, err := Compile(context.Background(), mutualSubsumption(defs, []string{"x", "y"}), nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	rec := result.Recommendations[0]
	if rec.Type != RecommendKeepSpecial || len(rec.Rules) != 0 {
		t.Fatalf("expected no removable rules, got %+v", rec)
	}
	if strings.Contains(rec.Description, "can be removed") {
		t.Fatalf("unexpected description %q", rec.Description)
	}
}

func TestCompileProfileRecommendations(t *testing.T) {
	prof := &profile.Profile{
		MeanHits: 5,
		Rules: []profile.RuleProfile{
			{RuleID: "rare", Phase: 2, Hits: 0, RarelyUsed: true, Position: 1, NewPosition: 3, PositionChange: -2},
			{RuleID: "busy", Phase: 2, Hits: 12, Noisy: true, Position: 2, NewPosition: 2},
			{RuleID: "hot", Phase: 2, Hits: 3, Position: 3, NewPosition: 1, PositionChange: 2},
		},
		Order:                []string{"hot", "busy", "rare"},
		EstimatedImprovement: 12.5,
	}
	result, err := Compile(context.Background(), Input{Profile: prof}, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if result.Profile != prof {
		t.Fatalf("expected profile to be carried into the result")
	}
	want := []struct {
		kind  string
		rules []string
	}{
		{RecommendRarelyUsed, []string{"rare"}},
		{RecommendNoisy, []string{"busy"}},
		{RecommendReorder, []string{"hot"}},
	}
	if len(result.Recommendations) != len(want) {
		t.Fatalf("expected %d recommendations, got %+v", len(want), result.Recommendations)
	}
	for i, w := range want {
		rec := result.Recommendations[i]
		if rec.Type != w.kind || strings.Join(rec.Rules, ",") != strings.Join(w.rules, ",") {
			t.Fatalf("recommendation %d: expected %s %v, got %+v", i, w.kind, w.rules, rec)
		}
	}
	if !strings.Contains(result.Recommendations[2].Description, "12.5%") {
		t.Fatalf("expected improvement in description, got %q", result.Recommendations[2].Description)
	}
}

func TestCompileCorrelationOnly(t *testing.T) {
	result, err := Compile(context.Background(), Input{
		Relationships: []relations.Relationship{{Kind: relations.Correlation, RuleA: "x", RuleB: "y"}},
	}, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(result.Recommendations) != 1 || result.Recommendations[0].Type != RecommendManualReview {
		t.Fatalf("expected manual review, got %+v", result.Recommendations)
	}
}

func TestCompileEmptyIsExplicit(t *testing.T) {
	result, err := Compile(context.Background(), Input{}, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(result.Recommendations) != 1 || result.Recommendations[0].Type != RecommendNone {
		t.Fatalf("expected explicit no-optimization recommendation, got %+v", result.Recommendations)
	}
	if !strings.Contains(result.Recommendations[0].Description, "current thresholds") {
		t.Fatalf("unexpected description %q", result.Recommendations[0].Description)
	}
}

func TestCompileWithAdvisor(t *testing.T) {
	result, err := Compile(context.Background(), sampleInput(), advisor.WithFallback(nil))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(result.Suggestions) != 4 {
		t.Fatalf("expected 4 suggestions, got %d", len(result.Suggestions))
	}
	if result.Suggestions[2].Action != advisor.ActionMerge {
		t.Fatalf("expected suggestions in kind order, got %+v", result.Suggestions)
	}
}

func TestRenderFormats(t *testing.T) {
	result, err := Compile(context.Background(), sampleInput(), nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	text := RenderText(result)
	if !strings.Contains(text, "SHD Shadowing: 2") || !strings.Contains(text, RecommendMergeRedundant) {
		t.Fatalf("unexpected text report:\n%s", text)
	}

	md := RenderMarkdown(result)
	if !strings.Contains(md, "# Rule Relationship Report") || !strings.Contains(md, "| a | b | 1.00 | 3 | a shadows b |") {
		t.Fatalf("unexpected markdown report:\n%s", md)
	}

	data, err := RenderCSV(result)
	if err != nil {
		t.Fatalf("RenderCSV: %v", err)
	}
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	if len(rows) != 5 || rows[0][0] != "kind" {
		t.Fatalf("expected header plus 4 rows, got %d", len(rows))
	}
}

func TestRenderProfileAndSharedTransactions(t *testing.T) {
	in := sampleInput()
	in.Relationships[0].SharedTransactions = []string{"tx-1", "tx-2"}
	in.Profile = &profile.Profile{
		MeanHits: 4,
		Rules: []profile.RuleProfile{
			{RuleID: "a", Hits: 8, Score: 0.9, Position: 2, NewPosition: 1, HighVolume: true},
			{RuleID: "b", Hits: 0, Position: 1, NewPosition: 2, RarelyUsed: true},
		},
		EstimatedImprovement: 50,
	}
	result, err := Compile(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	text := RenderText(result)
	for _, want := range []string{"shared: tx-1, tx-2", "estimated improvement 50.0%", "- a hits=8 score=0.90 position=2->1 high-volume"} {
		if !strings.Contains(text, want) {
			t.Fatalf("text report missing %q:\n%s", want, text)
		}
	}

	md := RenderMarkdown(result)
	if !strings.Contains(md, "## Rule profile") || !strings.Contains(md, "| b | 0 | 0.00 | 0.00 | 1 | 2 | rarely-used |") {
		t.Fatalf("unexpected markdown report:\n%s", md)
	}
}

func TestDecodeResult(t *testing.T) {
	result, err := Compile(context.Background(), sampleInput(), nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	for _, format := range []Format{FormatJSON, FormatYAML} {
		data, err := Render(result, format)
		if err != nil {
			t.Fatalf("render %s: %v", format, err)
		}
		decoded, err := DecodeResult(data)
		if err != nil {
			t.Fatalf("decode %s: %v", format, err)
		}
		if decoded.TotalRelationships != 4 || len(decoded.Relationships[relations.Shadowing]) != 2 {
			t.Fatalf("%s: unexpected decoded result %+v", format, decoded)
		}
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"": FormatText, "markdown": FormatMarkdown, "YML": FormatYAML, "csv": FormatCSV}
	for input, want := range cases {
		got, err := ParseFormat(input)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) expected %q, got %q (%v)", input, want, got, err)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Fatalf("expected error for pdf")
	}
}
