package relations

import (
	"fmt"
	"math"

	"github.com/rulesift/rulesift/internal/fuzz"
	"github.com/rulesift/rulesift/internal/matrix"
	"github.com/rulesift/rulesift/internal/rules"
)

// Subject is a rule together with the records it matched.
type Subject struct {
	Rule *rules.Rule
	Hits matrix.Set
	// Position is the subject's index in the Env's execution order.
	Position int
}

// Env is the read-only context shared by the detectors for one run.
type Env struct {
	Subjects   []Subject
	Records    int
	Thresholds Thresholds
	Fuzz       fuzz.Tester
	Seed       uint64
	// Examples returns the texts of the records in a set.
	Examples func(matrix.Set) []string

	blocked []matrix.Set
}

// NewEnv assigns positions to subjects, which must already be in execution
// order, and precomputes for each one the records caught by blocking rules
// that run strictly before it.
func NewEnv(subjects []Subject, records int, thresholds Thresholds, tester fuzz.Tester, seed uint64, examples func(matrix.Set) []string) *Env {
	env := &Env{
		Subjects:   subjects,
		Records:    records,
		Thresholds: thresholds,
		Fuzz:       tester,
		Seed:       seed,
		Examples:   examples,
		blocked:    make([]matrix.Set, len(subjects)),
	}

	running := matrix.NewSet(records)
	start := 0
	for start < len(subjects) {
		end := start
		for end < len(subjects) && !rules.Before(subjects[start].Rule, subjects[end].Rule) {
			end++
		}
		for i := start; i < end; i++ {
			subjects[i].Position = i
			env.blocked[i] = running.Clone()
		}
		for i := start; i < end; i++ {
			if subjects[i].Rule.Blocking() {
				running.UnionWith(subjects[i].Hits)
			}
		}
		start = end
	}

	return env
}

// Intercepted counts the subject's matches that an earlier blocking rule
// also matches.
func (e *Env) Intercepted(s Subject) int {
	return s.Hits.IntersectCount(e.blocked[s.Position])
}

// Detector inspects an ordered pair where a runs no later than b.
type Detector func(env *Env, a, b Subject) []Relationship

var detectors = map[Kind]Detector{
	Shadowing:   DetectShadowing,
	Redundancy:  DetectRedundancy,
	Correlation: DetectCorrelation,
	Subsumption: DetectSubsumption,
}

// Detect runs the detectors for kinds, in the order given.
func Detect(env *Env, kinds []Kind, a, b Subject) []Relationship {
	var out []Relationship
	for _, kind := range kinds {
		if detect, ok := detectors[kind]; ok {
			out = append(out, detect(env, a, b)...)
		}
	}
	return out
}

func DetectShadowing(env *Env, a, b Subject) []Relationship {
	if !rules.Before(a.Rule, b.Rule) || !a.Rule.Blocking() {
		return nil
	}
	total := b.Hits.Count()
	if total == 0 || a.Hits.IntersectCount(b.Hits) == 0 {
		return nil
	}

	intercepted := env.Intercepted(b)
	confidence := float64(intercepted) / float64(total)
	if intercepted < 1 || confidence <= env.Thresholds.ShadowConfidence {
		return nil
	}

	return []Relationship{{
		Kind:              Shadowing,
		RuleA:             a.Rule.ID,
		RuleB:             b.Rule.ID,
		Confidence:        confidence,
		EvidenceCount:     intercepted,
		ConflictingFields: ConflictingFields(a.Rule.Definition, b.Rule.Definition),
		Description: fmt.Sprintf("Rule %s shadows rule %s: %d of %d matches are blocked by earlier rules",
			a.Rule.ID, b.Rule.ID, intercepted, total),
		Metrics: map[string]float64{"intercepted": float64(intercepted), "matches": float64(total)},
	}}
}

func DetectRedundancy(env *Env, a, b Subject) []Relationship {
	countA, countB := a.Hits.Count(), b.Hits.Count()
	if countA == 0 || countB == 0 {
		return nil
	}
	shared := a.Hits.IntersectCount(b.Hits)
	if shared == 0 {
		return nil
	}

	cooccurrence := float64(shared) / float64(min(countA, countB))
	jaccard := float64(shared) / float64(countA+countB-shared)
	if cooccurrence <= env.Thresholds.RedundancyCooccurrence || jaccard <= env.Thresholds.RedundancyJaccard {
		return nil
	}

	return []Relationship{{
		Kind:              Redundancy,
		RuleA:             a.Rule.ID,
		RuleB:             b.Rule.ID,
		Confidence:        cooccurrence,
		EvidenceCount:     shared,
		ConflictingFields: ConflictingFields(a.Rule.Definition, b.Rule.Definition),
		Description: fmt.Sprintf("Rules %s and %s are redundant: they co-occur on %d matches (co-occurrence %.2f, Jaccard %.2f)",
			a.Rule.ID, b.Rule.ID, shared, cooccurrence, jaccard),
		Metrics: map[string]float64{"cooccurrence": cooccurrence, "jaccard": jaccard},
	}}
}

func DetectCorrelation(env *Env, a, b Subject) []Relationship {
	if env.Records == 0 {
		return nil
	}
	n := float64(env.Records)
	expected := (float64(a.Hits.Count()) / n) * (float64(b.Hits.Count()) / n)
	if expected == 0 {
		return nil
	}

	shared := a.Hits.IntersectCount(b.Hits)
	lift := (float64(shared) / n) / expected
	if shared < env.Thresholds.CorrelationMinIntersection || lift <= env.Thresholds.CorrelationMinLift {
		return nil
	}

	confidence := math.Min(math.Log2(lift)/5+0.2, 1)
	return []Relationship{{
		Kind:              Correlation,
		RuleA:             a.Rule.ID,
		RuleB:             b.Rule.ID,
		Confidence:        math.Max(confidence, 0),
		EvidenceCount:     shared,
		ConflictingFields: ConflictingFields(a.Rule.Definition, b.Rule.Definition),
		Description: fmt.Sprintf("Rules %s and %s are correlated: %d shared matches, lift %.2f",
			a.Rule.ID, b.Rule.ID, shared, lift),
		Metrics: map[string]float64{"lift": lift, "expected": expected, "actual": float64(shared) / n},
	}}
}

// DetectSubsumption tests containment in both directions and may return a
// relationship for each.
func DetectSubsumption(env *Env, a, b Subject) []Relationship {
	var out []Relationship
	if rel, ok := subsumes(env, a, b); ok {
		out = append(out, rel)
	}
	if rel, ok := subsumes(env, b, a); ok {
		out = append(out, rel)
	}
	return out
}

func subsumes(env *Env, general, specific Subject) (Relationship, bool) {
	total := specific.Hits.Count()
	if total == 0 {
		return Relationship{}, false
	}
	shared := general.Hits.IntersectCount(specific.Hits)
	containment := float64(shared) / float64(total)
	if containment < env.Thresholds.SubsumptionContainment {
		return Relationship{}, false
	}

	var examples []string
	if env.Examples != nil {
		examples = env.Examples(specific.Hits)
	}
	rng := fuzz.PairSource(env.Seed, general.Rule.ID, specific.Rule.ID)
	estimate := env.Fuzz.Estimate(rng, general.Rule, examples)

	combined := math.Min(containment, estimate.Ratio)
	if combined < env.Thresholds.SubsumptionContainment {
		return Relationship{}, false
	}

	return Relationship{
		Kind:              Subsumption,
		RuleA:             general.Rule.ID,
		RuleB:             specific.Rule.ID,
		Subsuming:         general.Rule.ID,
		Subsumed:          specific.Rule.ID,
		Confidence:        combined,
		EvidenceCount:     shared,
		ConflictingFields: ConflictingFields(general.Rule.Definition, specific.Rule.Definition),
		Description: fmt.Sprintf("Rule %s subsumes rule %s: covers %d of %d matches, fuzz ratio %.2f over %d samples",
			general.Rule.ID, specific.Rule.ID, shared, total, estimate.Ratio, estimate.Trials),
		Metrics: map[string]float64{
			"containment": containment,
			"fuzz_ratio":  estimate.Ratio,
			"fuzz_trials": float64(estimate.Trials),
		},
	}, true
}
