package relations

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rulesift/rulesift/internal/rules"
)

// Relationship is one inferred relation between two rules. For subsumption
// RuleA is the subsuming rule and RuleB the subsumed one.
type Relationship struct {
	Kind               Kind               `json:"kind" yaml:"kind"`
	RuleA              string             `json:"rule_a" yaml:"rule_a"`
	RuleB              string             `json:"rule_b" yaml:"rule_b"`
	Subsuming          string             `json:"subsuming,omitempty" yaml:"subsuming,omitempty"`
	Subsumed           string             `json:"subsumed,omitempty" yaml:"subsumed,omitempty"`
	Confidence         float64            `json:"confidence" yaml:"confidence"`
	EvidenceCount      int                `json:"evidence_count" yaml:"evidence_count"`
	ConflictingFields  []ConflictingField `json:"conflicting_fields,omitempty" yaml:"conflicting_fields,omitempty"`
	Description        string             `json:"description" yaml:"description"`
	Metrics            map[string]float64 `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	// SharedTransactions samples transactions both rules matched.
	SharedTransactions []string           `json:"shared_transactions,omitempty" yaml:"shared_transactions,omitempty"`
}

type ConflictingField struct {
	Field string `json:"field" yaml:"field"`
	Value string `json:"value" yaml:"value"`
	Note  string `json:"note" yaml:"note"`
}

// ConflictingFields reports metadata fields both rules set to the same
// non-empty value.
func ConflictingFields(a, b rules.Definition) []ConflictingField {
	pairs := []struct {
		field string
		a, b  string
	}{
		{"category", a.Category, b.Category},
		{"severity", a.Severity, b.Severity},
		{"action", a.Action, b.Action},
	}

	var out []ConflictingField
	for _, p := range pairs {
		value := strings.TrimSpace(p.a)
		if value == "" || value != strings.TrimSpace(p.b) {
			continue
		}
		out = append(out, ConflictingField{
			Field: p.field,
			Value: value,
			Note:  fmt.Sprintf("both rules use %s %q", p.field, value),
		})
	}
	return out
}

// Thresholds control when each detector emits a relationship.
type Thresholds struct {
	ShadowConfidence           float64 `json:"shadow_confidence" yaml:"shadow_confidence" mapstructure:"shadow_confidence"`
	RedundancyCooccurrence     float64 `json:"redundancy_cooccurrence" yaml:"redundancy_cooccurrence" mapstructure:"redundancy_cooccurrence"`
	RedundancyJaccard          float64 `json:"redundancy_jaccard" yaml:"redundancy_jaccard" mapstructure:"redundancy_jaccard"`
	CorrelationMinIntersection int     `json:"correlation_min_intersection" yaml:"correlation_min_intersection" mapstructure:"correlation_min_intersection"`
	CorrelationMinLift         float64 `json:"correlation_min_lift" yaml:"correlation_min_lift" mapstructure:"correlation_min_lift"`
	SubsumptionContainment     float64 `json:"subsumption_containment" yaml:"subsumption_containment" mapstructure:"subsumption_containment"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		ShadowConfidence:           0.75,
		RedundancyCooccurrence:     0.85,
		RedundancyJaccard:          0.7,
		CorrelationMinIntersection: 3,
		CorrelationMinLift:         2.0,
		SubsumptionContainment:     0.99,
	}
}

func (t Thresholds) Validate() error {
	var problems []string
	ratio := func(name string, v float64) {
		if v < 0 || v > 1 {
			problems = append(problems, fmt.Sprintf("%s must be between 0 and 1", name))
		}
	}
	ratio("shadow_confidence", t.ShadowConfidence)
	ratio("redundancy_cooccurrence", t.RedundancyCooccurrence)
	ratio("redundancy_jaccard", t.RedundancyJaccard)
	ratio("subsumption_containment", t.SubsumptionContainment)
	if t.CorrelationMinIntersection < 0 {
		problems = append(problems, "correlation_min_intersection must be >= 0")
	}
	if t.CorrelationMinLift < 0 {
		problems = append(problems, "correlation_min_lift must be >= 0")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
