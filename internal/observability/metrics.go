package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	runsTotal          *prometheus.CounterVec
	relationshipsTotal *prometheus.CounterVec
	skippedRulesTotal  *prometheus.CounterVec
	ruleMatchesTotal   *prometheus.CounterVec
	pairsEvaluated     prometheus.Counter
	prunedRules        prometheus.Counter
	stageDuration      *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "rulesift_runs_total", Help: "Total analysis runs"},
			[]string{"status"},
		),
		relationshipsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "rulesift_relationships_total", Help: "Total relationships emitted"},
			[]string{"kind"},
		),
		skippedRulesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "rulesift_skipped_rules_total", Help: "Rules excluded from matching"},
			[]string{"reason"},
		),
		ruleMatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "rulesift_rule_matches_total", Help: "Simulated rule matches"},
			[]string{"rule_id", "phase"},
		),
		pairsEvaluated: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "rulesift_pairs_evaluated_total", Help: "Rule pairs passed to detectors"},
		),
		prunedRules: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "rulesift_pruned_rules_total", Help: "Rules skipped after being shadowed"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rulesift_stage_duration_seconds",
				Help:    "Analysis stage duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.runsTotal,
		m.relationshipsTotal,
		m.skippedRulesTotal,
		m.ruleMatchesTotal,
		m.pairsEvaluated,
		m.prunedRules,
		m.stageDuration,
	)

	return m
}

func (m *Metrics) ObserveRun(status string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRelationship(kind string) {
	if m == nil {
		return
	}
	m.relationshipsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveSkip(reason string) {
	if m == nil {
		return
	}
	m.skippedRulesTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveRuleMatches(ruleID string, phase int, count int) {
	if m == nil || count == 0 {
		return
	}
	m.ruleMatchesTotal.WithLabelValues(ruleID, strconv.Itoa(phase)).Add(float64(count))
}

func (m *Metrics) AddPairs(n int) {
	if m == nil || n == 0 {
		return
	}
	m.pairsEvaluated.Add(float64(n))
}

func (m *Metrics) AddPruned(n int) {
	if m == nil || n == 0 {
		return
	}
	m.prunedRules.Add(float64(n))
}
