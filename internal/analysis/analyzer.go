package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rulesift/rulesift/internal/advisor"
	"github.com/rulesift/rulesift/internal/fuzz"
	"github.com/rulesift/rulesift/internal/logging"
	"github.com/rulesift/rulesift/internal/matrix"
	"github.com/rulesift/rulesift/internal/observability"
	"github.com/rulesift/rulesift/internal/profile"
	"github.com/rulesift/rulesift/internal/relations"
	"github.com/rulesift/rulesift/internal/report"
	"github.com/rulesift/rulesift/internal/rules"
	"github.com/rulesift/rulesift/internal/traffic"
)

// sharedSampleSize caps the transaction ids attached to each relationship.
const sharedSampleSize = 5

var (
	// ErrBadInput marks caller mistakes such as duplicate rule ids.
	ErrBadInput = errors.New("bad input")
	// ErrInternal marks a failure inside the analysis itself.
	ErrInternal = errors.New("internal analysis failure")
)

type Options struct {
	Detectors  []relations.Kind
	Thresholds relations.Thresholds
	Fuzz       fuzz.Tester
	Seed       uint64
	// DisablePruning evaluates pairs involving rules already found shadowed.
	DisablePruning bool
	// Workers above 1 spreads the pair sweep over goroutines. Pruning is
	// off in that mode.
	Workers       int
	UseLoggedHits bool
	Advisor       advisor.Advisor
	Logger        *slog.Logger
	Metrics       *observability.Metrics
}

func DefaultOptions() Options {
	return Options{
		Detectors:  append([]relations.Kind(nil), relations.Kinds...),
		Thresholds: relations.DefaultThresholds(),
		Fuzz:       fuzz.DefaultTester(),
		Workers:    1,
	}
}

func (o Options) withDefaults() Options {
	if len(o.Detectors) == 0 {
		o.Detectors = append([]relations.Kind(nil), relations.Kinds...)
	}
	if o.Thresholds == (relations.Thresholds{}) {
		o.Thresholds = relations.DefaultThresholds()
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	return o
}

// Analyzer runs the relationship analysis over a rule table and a traffic
// table.
type Analyzer struct {
	opts Options
}

func New(opts Options) *Analyzer {
	return &Analyzer{opts: opts.withDefaults()}
}

func (a *Analyzer) Options() Options {
	return a.opts
}

// Run compiles the rules, simulates them over records and infers pairwise
// relationships. On error no partial result is returned.
func (a *Analyzer) Run(ctx context.Context, defs []rules.Definition, records []traffic.Record) (result report.AnalysisResult, err error) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.opts.Logger.Error("analysis panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			result = report.AnalysisResult{}
			err = fmt.Errorf("%w: %v", ErrInternal, r)
		}
		status := "ok"
		switch {
		case err == nil:
		case errors.Is(err, ErrBadInput):
			status = "bad_input"
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			status = "canceled"
		default:
			status = "error"
		}
		a.opts.Metrics.ObserveRun(status)
		a.opts.Metrics.ObserveStage("total", time.Since(started))
	}()

	return a.run(ctx, defs, records)
}

func (a *Analyzer) run(ctx context.Context, defs []rules.Definition, records []traffic.Record) (report.AnalysisResult, error) {
	log := a.opts.Logger
	if err := validate(defs, a.opts); err != nil {
		return report.AnalysisResult{}, err
	}

	records = append([]traffic.Record(nil), records...)
	var warnings []string
	for _, id := range traffic.AssignIDs(records) {
		warnings = append(warnings, fmt.Sprintf("duplicate transaction id %q", id))
	}

	stage := time.Now()
	compiled, skipped, fallbacks := a.compile(defs)
	a.opts.Metrics.ObserveStage("compile", time.Since(stage))

	stage = time.Now()
	engine := rules.NewEngine(compiled)
	m, err := matrix.Build(ctx, engine, records, matrix.Options{UseLoggedHits: a.opts.UseLoggedHits})
	if err != nil {
		return report.AnalysisResult{}, fmt.Errorf("build match matrix: %w", err)
	}
	a.opts.Metrics.ObserveStage("matrix", time.Since(stage))

	subjects := make([]relations.Subject, len(m.Rules()))
	ruleHits := make(map[string]int, len(subjects))
	loggedHits := make(map[string]int, len(subjects))
	for pos, rule := range m.Rules() {
		hits := m.HitsAt(pos)
		subjects[pos] = relations.Subject{Rule: rule, Hits: hits}
		ruleHits[rule.ID] = hits.Count()
		loggedHits[rule.ID] = m.LoggedHits(pos)
		a.opts.Metrics.ObserveRuleMatches(rule.ID, rule.Phase, ruleHits[rule.ID])
	}
	env := relations.NewEnv(subjects, m.Records(), a.opts.Thresholds, a.opts.Fuzz, a.opts.Seed, m.Examples)

	stage = time.Now()
	var found []relations.Relationship
	var stats sweepStats
	if a.opts.Workers > 1 {
		if !a.opts.DisablePruning {
			log.Warn("shadow pruning disabled for parallel sweep", slog.Int("workers", a.opts.Workers))
		}
		found, stats, err = sweepParallel(ctx, env, a.opts.Detectors, a.opts.Workers)
	} else {
		found, stats, err = sweep(ctx, env, a.opts.Detectors, !a.opts.DisablePruning)
	}
	if err != nil {
		return report.AnalysisResult{}, err
	}
	a.opts.Metrics.ObserveStage("sweep", time.Since(stage))
	a.opts.Metrics.AddPairs(stats.pairs)
	a.opts.Metrics.AddPruned(stats.pruned)

	for i := range found {
		hitsA, _ := m.Hits(found[i].RuleA)
		hitsB, _ := m.Hits(found[i].RuleB)
		found[i].SharedTransactions = m.TransactionIDs(hitsA.Intersect(hitsB), sharedSampleSize)
	}

	stage = time.Now()
	prof := profile.Build(m)
	a.opts.Metrics.ObserveStage("profile", time.Since(stage))
	order := make([]string, len(m.Rules()))
	for pos, rule := range m.Rules() {
		order[pos] = rule.ID
	}

	definitions := make(map[string]rules.Definition, len(defs))
	for _, def := range defs {
		def.ApplyDefaults()
		definitions[def.ID] = def
	}

	var adv advisor.Advisor
	if a.opts.Advisor != nil {
		adv = advisor.WithFallback(a.opts.Advisor)
	}
	result, err := report.Compile(ctx, report.Input{
		TotalRules:    len(defs),
		AnalyzedRules: len(compiled),
		TotalRecords:  len(records),
		Detectors:     a.opts.Detectors,
		Relationships: found,
		Definitions:   definitions,
		Order:         order,
		Profile:       &prof,
		Skipped:       skipped,
		Fallbacks:     fallbacks,
		RuleHits:      ruleHits,
		LoggedHits:    loggedHits,
		Warnings:      warnings,
	}, adv)
	if err != nil {
		return report.AnalysisResult{}, fmt.Errorf("compile report: %w", err)
	}

	for _, rel := range found {
		a.opts.Metrics.ObserveRelationship(string(rel.Kind))
	}
	log.Info("analysis complete",
		slog.Int("rules", len(defs)),
		slog.Int("records", len(records)),
		slog.Int("relationships", len(found)),
		slog.Int("pairs", stats.pairs),
		slog.Int("pruned", stats.pruned),
	)

	return result, nil
}

func validate(defs []rules.Definition, opts Options) error {
	seen := make(map[string]int, len(defs))
	for i, def := range defs {
		id := strings.TrimSpace(def.ID)
		if id == "" {
			return fmt.Errorf("%w: rule %d has an empty id", ErrBadInput, i)
		}
		if first, ok := seen[id]; ok {
			return fmt.Errorf("%w: duplicate rule id %q at positions %d and %d", ErrBadInput, id, first, i)
		}
		seen[id] = i
	}
	if err := opts.Thresholds.Validate(); err != nil {
		return fmt.Errorf("%w: thresholds: %v", ErrBadInput, err)
	}
	return nil
}

// compile builds matchers and reports the rules that had to be skipped or
// fell back to a literal match.
func (a *Analyzer) compile(defs []rules.Definition) ([]*rules.Rule, []report.SkippedRule, []string) {
	log := a.opts.Logger
	compiled := make([]*rules.Rule, 0, len(defs))
	var skipped []report.SkippedRule
	var fallbacks []string

	for i, def := range defs {
		rule, err := rules.Compile(def, i)
		if err != nil {
			log.Warn("rule skipped", logging.RuleID(def.ID), logging.Reason("unusable"), logging.Error(err))
			a.opts.Metrics.ObserveSkip("unusable")
			skipped = append(skipped, report.SkippedRule{ID: def.ID, Reason: err.Error()})
			continue
		}
		if rule.Fallback {
			log.Warn("pattern compiled as literal", logging.RuleID(def.ID), slog.String("compile_error", rule.CompileError))
			a.opts.Metrics.ObserveSkip("literal_fallback")
			fallbacks = append(fallbacks, def.ID)
		}
		compiled = append(compiled, rule)
	}

	return compiled, skipped, fallbacks
}
