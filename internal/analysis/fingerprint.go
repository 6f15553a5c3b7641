package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/rulesift/rulesift/internal/fuzz"
	"github.com/rulesift/rulesift/internal/relations"
	"github.com/rulesift/rulesift/internal/rules"
	"github.com/rulesift/rulesift/internal/traffic"
)

// Fingerprint identifies the inputs and result-affecting options of a run.
// Runs with equal fingerprints produce equal results.
func Fingerprint(defs []rules.Definition, records []traffic.Record, opts Options) (string, error) {
	opts = opts.withDefaults()
	prune := !opts.DisablePruning && opts.Workers <= 1

	payload := struct {
		Rules         []rules.Definition   `json:"rules"`
		Records       []traffic.Record     `json:"records"`
		Detectors     []relations.Kind     `json:"detectors"`
		Thresholds    relations.Thresholds `json:"thresholds"`
		Fuzz          fuzz.Tester          `json:"fuzz"`
		Seed          uint64               `json:"seed"`
		Prune         bool                 `json:"prune"`
		UseLoggedHits bool                 `json:"use_logged_hits"`
		Suggestions   bool                 `json:"suggestions"`
	}{
		Rules:         defs,
		Records:       records,
		Detectors:     opts.Detectors,
		Thresholds:    opts.Thresholds,
		Fuzz:          opts.Fuzz,
		Seed:          opts.Seed,
		Prune:         prune,
		UseLoggedHits: opts.UseLoggedHits,
		Suggestions:   opts.Advisor != nil,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
