package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	metrics.ObserveRun("ok")
	metrics.ObserveStage("sweep", 15*time.Millisecond)
	metrics.ObserveRelationship("SHD")
	metrics.ObserveRelationship("SHD")
	metrics.ObserveSkip("unusable")
	metrics.ObserveRuleMatches("942100", 2, 4)
	metrics.AddPairs(10)
	metrics.AddPruned(1)

	if _, err := reg.Gather(); err != nil {
		t.Fatalf("expected metrics gather to succeed: %v", err)
	}
	if got := testutil.ToFloat64(metrics.relationshipsTotal.WithLabelValues("SHD")); got != 2 {
		t.Fatalf("expected 2 SHD relationships, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.pairsEvaluated); got != 10 {
		t.Fatalf("expected 10 pairs, got %v", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveRun("ok")
	metrics.ObserveStage("sweep", time.Second)
	metrics.AddPairs(1)
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	metrics.ObserveRun("ok")

	path := filepath.Join(t.TempDir(), "metrics", "rulesift.prom")
	if err := WriteTextfile(path, reg); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `rulesift_runs_total{status="ok"} 1`) {
		t.Fatalf("unexpected textfile content:\n%s", data)
	}
}
