package fuzz

import (
	"hash/fnv"
	"math/rand/v2"
)

const (
	DefaultTrials       = 200
	DefaultRandomTrials = 50
	DefaultMinLength    = 5
	DefaultMaxLength    = 40
)

// Acceptor is anything that can decide whether it matches a string.
type Acceptor interface {
	Accepts(input string) bool
}

// Tester estimates how much of one rule's language another rule accepts.
// The estimate is statistical: real examples when there are some, random
// printable strings otherwise.
type Tester struct {
	Trials       int `json:"trials" yaml:"trials" mapstructure:"trials"`
	RandomTrials int `json:"random_trials" yaml:"random_trials" mapstructure:"random_trials"`
	MinLength    int `json:"min_length" yaml:"min_length" mapstructure:"min_length"`
	MaxLength    int `json:"max_length" yaml:"max_length" mapstructure:"max_length"`
}

func DefaultTester() Tester {
	return Tester{
		Trials:       DefaultTrials,
		RandomTrials: DefaultRandomTrials,
		MinLength:    DefaultMinLength,
		MaxLength:    DefaultMaxLength,
	}
}

// Estimate is the result of one containment test.
type Estimate struct {
	Ratio  float64 `json:"ratio"`
	Trials int     `json:"trials"`
	Hits   int     `json:"hits"`
	Random bool    `json:"random"`
}

func (t Tester) withDefaults() Tester {
	d := DefaultTester()
	if t.Trials <= 0 {
		t.Trials = d.Trials
	}
	if t.RandomTrials <= 0 {
		t.RandomTrials = d.RandomTrials
	}
	if t.MinLength <= 0 {
		t.MinLength = d.MinLength
	}
	if t.MaxLength < t.MinLength {
		t.MaxLength = max(d.MaxLength, t.MinLength)
	}
	return t
}

// Estimate returns the fraction of sampled inputs that subsuming accepts.
// Samples come from examples (strings the subsumed rule matched); when there
// are none, random strings are generated instead.
func (t Tester) Estimate(rng *rand.Rand, subsuming Acceptor, examples []string) Estimate {
	t = t.withDefaults()

	var samples []string
	random := len(examples) == 0
	if random {
		samples = t.randomStrings(rng, min(t.Trials, t.RandomTrials))
	} else {
		samples = sample(rng, examples, t.Trials)
	}

	hits := 0
	for _, input := range samples {
		if subsuming.Accepts(input) {
			hits++
		}
	}

	est := Estimate{Trials: len(samples), Hits: hits, Random: random}
	if est.Trials > 0 {
		est.Ratio = float64(hits) / float64(est.Trials)
	}
	return est
}

// sample picks up to n examples without replacement.
func sample(rng *rand.Rand, examples []string, n int) []string {
	if len(examples) <= n {
		return examples
	}
	picked := append([]string(nil), examples...)
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(picked)-i)
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked[:n]
}

func (t Tester) randomStrings(rng *rand.Rand, n int) []string {
	out := make([]string, n)
	for i := range out {
		length := t.MinLength + rng.IntN(t.MaxLength-t.MinLength+1)
		buf := make([]byte, length)
		for j := range buf {
			buf[j] = byte(' ' + rng.IntN('~'-' '+1))
		}
		out[i] = string(buf)
	}
	return out
}

// PairSource returns a generator seeded from seed and the two rule ids, so
// each pair draws the same numbers regardless of evaluation order.
func PairSource(seed uint64, subsuming, subsumed string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(subsuming))
	h.Write([]byte{0})
	h.Write([]byte(subsumed))
	return rand.New(rand.NewPCG(seed, h.Sum64()))
}
