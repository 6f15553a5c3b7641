package report

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rulesift/rulesift/internal/advisor"
	"github.com/rulesift/rulesift/internal/profile"
	"github.com/rulesift/rulesift/internal/relations"
	"github.com/rulesift/rulesift/internal/rules"
)

// AnalysisResult is the complete, serializable outcome of one analysis run.
type AnalysisResult struct {
	TotalRules         int                                         `json:"total_rules" yaml:"total_rules"`
	AnalyzedRules      int                                         `json:"analyzed_rules" yaml:"analyzed_rules"`
	TotalRecords       int                                         `json:"total_records" yaml:"total_records"`
	TotalRelationships int                                         `json:"total_relationships" yaml:"total_relationships"`
	Detectors          []relations.Kind                            `json:"detectors" yaml:"detectors"`
	Counts             map[relations.Kind]int                      `json:"counts" yaml:"counts"`
	Relationships      map[relations.Kind][]relations.Relationship `json:"relationships" yaml:"relationships"`
	Recommendations    []Recommendation                            `json:"recommendations" yaml:"recommendations"`
	Suggestions        []advisor.Suggestion                        `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
	SkippedRules       []SkippedRule                               `json:"skipped_rules,omitempty" yaml:"skipped_rules,omitempty"`
	LiteralFallbacks   []string                                    `json:"literal_fallbacks,omitempty" yaml:"literal_fallbacks,omitempty"`
	TopRules           []CountItem                                 `json:"top_rules,omitempty" yaml:"top_rules,omitempty"`
	TopLoggedRules     []CountItem                                 `json:"top_logged_rules,omitempty" yaml:"top_logged_rules,omitempty"`
	Profile            *profile.Profile                            `json:"profile,omitempty" yaml:"profile,omitempty"`
	Warnings           []string                                    `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type Recommendation struct {
	Type        string   `json:"type" yaml:"type"`
	Description string   `json:"description" yaml:"description"`
	Impact      string   `json:"impact" yaml:"impact"`
	Rules       []string `json:"rules,omitempty" yaml:"rules,omitempty"`
}

type SkippedRule struct {
	ID     string `json:"id" yaml:"id"`
	Reason string `json:"reason" yaml:"reason"`
}

type CountItem struct {
	Key   string `json:"key" yaml:"key"`
	Count int    `json:"count" yaml:"count"`
}

// Input carries the raw outcome of a sweep into Compile.
type Input struct {
	TotalRules    int
	AnalyzedRules int
	TotalRecords  int
	Detectors     []relations.Kind
	// Relationships in the order the sweep produced them.
	Relationships []relations.Relationship
	Definitions   map[string]rules.Definition
	// Order lists analyzed rule ids in execution order.
	Order         []string
	Profile       *profile.Profile
	Skipped       []SkippedRule
	Fallbacks     []string
	RuleHits      map[string]int
	LoggedHits    map[string]int
	Warnings      []string
}

const (
	RecommendRemoveShadowed = "Remove Shadowed Rules"
	RecommendMergeRedundant = "Merge Redundant Rules"
	RecommendKeepSpecial    = "Keep Specialized Rules"
	RecommendManualReview   = "Review Correlated Rules"
	RecommendRarelyUsed     = "Review Rarely Used Rules"
	RecommendNoisy          = "Review Noisy Rules"
	RecommendReorder        = "Reorder Rules"
	RecommendNone           = "No Optimization Found"

	topRuleCount = 10
)

// Compile groups relationships by kind and derives recommendations. When adv
// is non-nil it is asked for one suggestion per relationship.
func Compile(ctx context.Context, in Input, adv advisor.Advisor) (AnalysisResult, error) {
	result := AnalysisResult{
		TotalRules:         in.TotalRules,
		AnalyzedRules:      in.AnalyzedRules,
		TotalRecords:       in.TotalRecords,
		TotalRelationships: len(in.Relationships),
		Detectors:          in.Detectors,
		Counts:             make(map[relations.Kind]int, len(relations.Kinds)),
		Relationships:      map[relations.Kind][]relations.Relationship{},
		SkippedRules:       in.Skipped,
		LiteralFallbacks:   in.Fallbacks,
		TopRules:           topCounts(in.RuleHits, topRuleCount),
		TopLoggedRules:     topCounts(in.LoggedHits, topRuleCount),
		Profile:            in.Profile,
		Warnings:           in.Warnings,
	}

	for _, kind := range relations.Kinds {
		result.Counts[kind] = 0
	}
	for _, rel := range in.Relationships {
		result.Counts[rel.Kind]++
		result.Relationships[rel.Kind] = append(result.Relationships[rel.Kind], rel)
	}

	result.Recommendations = recommend(result.Relationships, in.Definitions, executionOrder(in.Order, in.Definitions))
	result.Recommendations = append(result.Recommendations, recommendProfile(in.Profile)...)
	if len(result.Recommendations) == 0 {
		result.Recommendations = []Recommendation{{
			Type:        RecommendNone,
			Description: "No high-confidence optimization detected at current thresholds",
			Impact:      "None",
		}}
	}

	if adv != nil {
		for _, kind := range relations.Kinds {
			for _, rel := range result.Relationships[kind] {
				if err := ctx.Err(); err != nil {
					return AnalysisResult{}, err
				}
				suggestion, err := adv.Suggest(ctx, advisor.Pair{
					Relationship: rel,
					RuleA:        in.Definitions[rel.RuleA],
					RuleB:        in.Definitions[rel.RuleB],
				})
				if err != nil {
					return AnalysisResult{}, fmt.Errorf("suggest %s %s/%s: %w", rel.Kind, rel.RuleA, rel.RuleB, err)
				}
				result.Suggestions = append(result.Suggestions, suggestion)
			}
		}
	}

	return result, nil
}

func recommend(grouped map[relations.Kind][]relations.Relationship, defs map[string]rules.Definition, order map[string]int) []Recommendation {
	var out []Recommendation

	if shadowed := grouped[relations.Shadowing]; len(shadowed) > 0 {
		ids := uniqueIDs(shadowed, func(r relations.Relationship) []string { return []string{r.RuleB} })
		out = append(out, Recommendation{
			Type:        RecommendRemoveShadowed,
			Description: fmt.Sprintf("Review and remove %d rules that are shadowed by earlier blocking rules", len(ids)),
			Impact:      "Improve performance without reducing security",
			Rules:       ids,
		})
	}

	if redundant := grouped[relations.Redundancy]; len(redundant) > 0 {
		out = append(out, Recommendation{
			Type:        RecommendMergeRedundant,
			Description: fmt.Sprintf("Merge %d pairs of redundant rules", len(redundant)),
			Impact:      "Reduce rule complexity and maintenance overhead",
			Rules:       uniqueIDs(redundant, func(r relations.Relationship) []string { return []string{r.RuleA, r.RuleB} }),
		})
	}

	if subsumed := grouped[relations.Subsumption]; len(subsumed) > 0 {
		removable := removableSpecializations(subsumed, defs, order)
		description := fmt.Sprintf("Keep %d specialized rules covered by more general rules unless their action and message are identical to the general rule", len(subsumed))
		if len(removable) > 0 {
			description += fmt.Sprintf("; %d are identical and can be removed", len(removable))
		}
		out = append(out, Recommendation{
			Type:        RecommendKeepSpecial,
			Description: description,
			Impact:      "Preserve specific detections and logging while removing exact duplicates",
			Rules:       removable,
		})
	}

	if len(out) == 0 {
		if correlated := grouped[relations.Correlation]; len(correlated) > 0 {
			out = append(out, Recommendation{
				Type:        RecommendManualReview,
				Description: fmt.Sprintf("Manually review %d correlated rule pairs; no stronger relationship was found", len(correlated)),
				Impact:      "Possible consolidation after review",
				Rules:       uniqueIDs(correlated, func(r relations.Relationship) []string { return []string{r.RuleA, r.RuleB} }),
			})
		}
	}

	return out
}

// removableSpecializations lists subsumed rules that duplicate their general
// rule's action and message. Of two mutually subsuming rules only the later
// one in execution order is listed, and a rule already listed never
// justifies removing another.
func removableSpecializations(subsumed []relations.Relationship, defs map[string]rules.Definition, order map[string]int) []string {
	mutual := map[[2]string]bool{}
	for _, rel := range subsumed {
		mutual[[2]string{rel.Subsuming, rel.Subsumed}] = true
	}

	removed := map[string]bool{}
	var out []string
	for _, rel := range subsumed {
		if !sameOutcome(defs[rel.Subsuming], defs[rel.Subsumed]) {
			continue
		}
		if mutual[[2]string{rel.Subsumed, rel.Subsuming}] && order[rel.Subsumed] < order[rel.Subsuming] {
			continue
		}
		if removed[rel.Subsuming] || removed[rel.Subsumed] {
			continue
		}
		removed[rel.Subsumed] = true
		out = append(out, rel.Subsumed)
	}
	return out
}

// sameOutcome reports whether two rules take the same action with the same
// non-empty message.
func sameOutcome(general, specific rules.Definition) bool {
	name := strings.TrimSpace(general.Name)
	return name != "" &&
		name == strings.TrimSpace(specific.Name) &&
		strings.EqualFold(strings.TrimSpace(general.Action), strings.TrimSpace(specific.Action))
}

// executionOrder maps rule ids to their execution rank. Without an explicit
// order, rules are ranked by phase, priority and id.
func executionOrder(ids []string, defs map[string]rules.Definition) map[string]int {
	if len(ids) == 0 {
		for id := range defs {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			a, b := defs[ids[i]], defs[ids[j]]
			if a.Phase != b.Phase {
				return a.Phase < b.Phase
			}
			if a.Priority != b.Priority {
				return a.Priority < b.Priority
			}
			return ids[i] < ids[j]
		})
	}
	out := make(map[string]int, len(ids))
	for i, id := range ids {
		out[id] = i
	}
	return out
}

func recommendProfile(p *profile.Profile) []Recommendation {
	if p == nil {
		return nil
	}
	var out []Recommendation

	if rare := p.RarelyUsed(); len(rare) > 0 {
		out = append(out, Recommendation{
			Type:        RecommendRarelyUsed,
			Description: fmt.Sprintf("Review %d rules matching under %.0f%% of the mean hit count (%.1f)", len(rare), profile.RarelyUsedRatio*100, p.MeanHits),
			Impact:      "Candidates for removal if the threats they cover are obsolete",
			Rules:       rare,
		})
	}

	if noisy := p.Noisy(); len(noisy) > 0 {
		out = append(out, Recommendation{
			Type:        RecommendNoisy,
			Description: fmt.Sprintf("Review %d busy rules whose matches are mostly unlabeled traffic", len(noisy)),
			Impact:      "Possible false positives",
			Rules:       noisy,
		})
	}

	if promoted := p.Promoted(); len(promoted) > 0 && p.EstimatedImprovement > 0 {
		out = append(out, Recommendation{
			Type:        RecommendReorder,
			Description: fmt.Sprintf("Move %d frequently matching rules earlier within their phase; estimated %.1f%% lower hit-weighted evaluation position", len(promoted), p.EstimatedImprovement),
			Impact:      "Lower average evaluation cost; re-run shadowing analysis before reordering blocking rules",
			Rules:       promoted,
		})
	}

	return out
}

func uniqueIDs(rels []relations.Relationship, pick func(relations.Relationship) []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, rel := range rels {
		for _, id := range pick(rel) {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func topCounts(counts map[string]int, n int) []CountItem {
	items := make([]CountItem, 0, len(counts))
	for key, count := range counts {
		if count == 0 {
			continue
		}
		items = append(items, CountItem{Key: key, Count: count})
	}
	if len(items) == 0 {
		return nil
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Count == items[j].Count {
			return items[i].Key < items[j].Key
		}
		return items[i].Count > items[j].Count
	})

	if len(items) > n {
		items = items[:n]
	}
	return items
}
