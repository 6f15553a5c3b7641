// Package profile derives per-rule usage figures and a proposed evaluation
// order from a match matrix.
package profile

import (
	"sort"

	"github.com/rulesift/rulesift/internal/matrix"
)

const (
	// RarelyUsedRatio flags rules matching less than this share of the mean.
	RarelyUsedRatio = 0.1
	// HighVolumeRatio flags rules matching more than this multiple of the mean.
	HighVolumeRatio = 2.0
	// NoisyEffectiveness is the labeled-hit share below which a busy rule is
	// flagged noisy.
	NoisyEffectiveness = 0.3
)

// Score weights.
const (
	weightHits          = 0.35
	weightEffectiveness = 0.25
	weightFrequency     = 0.15
	weightFlags         = 0.15
	weightLogged        = 0.10

	penaltyRarelyUsed = 0.3
	penaltyNoisy      = 0.2
)

// RuleProfile holds one rule's usage figures. Positions are 1-based over the
// analyzed rules in execution order.
type RuleProfile struct {
	RuleID         string  `json:"rule_id" yaml:"rule_id"`
	Phase          int     `json:"phase" yaml:"phase"`
	Hits           int     `json:"hits" yaml:"hits"`
	LoggedHits     int     `json:"logged_hits" yaml:"logged_hits"`
	MatchFrequency float64 `json:"match_frequency" yaml:"match_frequency"`
	// Effectiveness is the share of hits on records labeled with an attack
	// type. Without any labels in the traffic every matching rule scores 1.
	Effectiveness  float64 `json:"effectiveness" yaml:"effectiveness"`
	RarelyUsed     bool    `json:"rarely_used" yaml:"rarely_used"`
	HighVolume     bool    `json:"high_volume" yaml:"high_volume"`
	Noisy          bool    `json:"noisy" yaml:"noisy"`
	Score          float64 `json:"score" yaml:"score"`
	Position       int     `json:"position" yaml:"position"`
	NewPosition    int     `json:"new_position" yaml:"new_position"`
	PositionChange int     `json:"position_change" yaml:"position_change"`
}

// Profile is the usage summary of one analysis run.
type Profile struct {
	MeanHits float64       `json:"mean_hits" yaml:"mean_hits"`
	Rules    []RuleProfile `json:"rules" yaml:"rules"`

	// Order lists rule ids in the proposed order. Rules never leave their
	// phase.
	Order []string `json:"order" yaml:"order"`

	// EstimatedImprovement is the percentage drop in hit-weighted evaluation
	// position under Order.
	EstimatedImprovement float64 `json:"estimated_improvement" yaml:"estimated_improvement"`
}

// Build profiles every rule of m.
func Build(m *matrix.Matrix) Profile {
	compiled := m.Rules()
	if len(compiled) == 0 {
		return Profile{}
	}

	records := m.Records()
	labeled := m.Labeled()
	haveLabels := !labeled.Empty()

	out := Profile{Rules: make([]RuleProfile, len(compiled))}
	total, maxHits := 0, 0
	for pos, rule := range compiled {
		hits := m.HitsAt(pos)
		p := RuleProfile{
			RuleID:     rule.ID,
			Phase:      rule.Phase,
			Hits:       hits.Count(),
			LoggedHits: m.LoggedHits(pos),
			Position:   pos + 1,
		}
		if records > 0 {
			p.MatchFrequency = float64(p.Hits) / float64(records)
		}
		switch {
		case p.Hits == 0:
		case haveLabels:
			p.Effectiveness = float64(hits.IntersectCount(labeled)) / float64(p.Hits)
		default:
			p.Effectiveness = 1
		}
		total += p.Hits
		maxHits = max(maxHits, p.Hits)
		out.Rules[pos] = p
	}
	out.MeanHits = float64(total) / float64(len(compiled))

	for i := range out.Rules {
		p := &out.Rules[i]
		hits := float64(p.Hits)
		p.RarelyUsed = hits < out.MeanHits*RarelyUsedRatio
		p.HighVolume = hits > out.MeanHits*HighVolumeRatio
		p.Noisy = haveLabels && p.Effectiveness < NoisyEffectiveness && hits > out.MeanHits
		p.Score = score(*p, maxHits)
	}

	rank(&out)
	return out
}

func score(p RuleProfile, maxHits int) float64 {
	hitScore := 0.0
	if maxHits > 0 {
		hitScore = float64(p.Hits) / float64(maxHits)
	}
	frequency := min(p.MatchFrequency*10, 1)

	flags := 0.0
	if p.HighVolume {
		flags += 0.3
	}
	if !p.RarelyUsed {
		flags += 0.4
	}
	if !p.Noisy {
		flags += 0.3
	}

	logged := 0.0
	if p.LoggedHits > 0 {
		logged = 1
	}

	s := weightHits*hitScore +
		weightEffectiveness*p.Effectiveness +
		weightFrequency*frequency +
		weightFlags*flags +
		weightLogged*logged
	if p.RarelyUsed {
		s -= penaltyRarelyUsed
	}
	if p.Noisy {
		s -= penaltyNoisy
	}
	return max(0, min(s, 1))
}

// rank orders rules by score within their phase and estimates the gain.
func rank(p *Profile) {
	order := make([]int, len(p.Rules))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := p.Rules[order[i]], p.Rules[order[j]]
		if a.Phase != b.Phase {
			return a.Phase < b.Phase
		}
		return a.Score > b.Score
	})

	p.Order = make([]string, len(order))
	current, proposed := 0, 0
	for newPos, idx := range order {
		r := &p.Rules[idx]
		r.NewPosition = newPos + 1
		r.PositionChange = r.Position - r.NewPosition
		p.Order[newPos] = r.RuleID
		current += r.Position * r.Hits
		proposed += r.NewPosition * r.Hits
	}
	if current > 0 && proposed < current {
		p.EstimatedImprovement = float64(current-proposed) / float64(current) * 100
	}
}

// RarelyUsed returns ids of rarely used rules in execution order.
func (p Profile) RarelyUsed() []string {
	return p.collect(func(r RuleProfile) bool { return r.RarelyUsed })
}

// Noisy returns ids of noisy rules in execution order.
func (p Profile) Noisy() []string {
	return p.collect(func(r RuleProfile) bool { return r.Noisy })
}

// Promoted returns ids of rules the proposed order moves earlier.
func (p Profile) Promoted() []string {
	return p.collect(func(r RuleProfile) bool { return r.PositionChange > 0 })
}

func (p Profile) collect(keep func(RuleProfile) bool) []string {
	var out []string
	for _, r := range p.Rules {
		if keep(r) {
			out = append(out, r.RuleID)
		}
	}
	return out
}
