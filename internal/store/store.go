package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rulesift/rulesift/internal/report"
)

var ErrRunNotFound = errors.New("analysis run not found")

// Run is one persisted analysis result.
type Run struct {
	ID            string                `json:"id"`
	CreatedAt     time.Time             `json:"created_at"`
	RulesSource   string                `json:"rules_source"`
	TrafficSource string                `json:"traffic_source"`
	Fingerprint   string                `json:"fingerprint"`
	Result        report.AnalysisResult `json:"result"`
}

// Summary is the listing view of a Run.
type Summary struct {
	ID                 string    `json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	RulesSource        string    `json:"rules_source"`
	TrafficSource      string    `json:"traffic_source"`
	Fingerprint        string    `json:"fingerprint"`
	TotalRules         int       `json:"total_rules"`
	TotalRecords       int       `json:"total_records"`
	TotalRelationships int       `json:"total_relationships"`
}

// Repository persists analysis runs. Implementations never modify a saved
// run.
type Repository interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Summary, error)
	Close() error
}

// NewRun stamps a result with a time-ordered id and the current time.
func NewRun(rulesSource, trafficSource, fingerprint string, result report.AnalysisResult) (*Run, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	return &Run{
		ID:            id.String(),
		CreatedAt:     time.Now().UTC(),
		RulesSource:   rulesSource,
		TrafficSource: trafficSource,
		Fingerprint:   fingerprint,
		Result:        result,
	}, nil
}

func (r *Run) Summary() Summary {
	return Summary{
		ID:                 r.ID,
		CreatedAt:          r.CreatedAt,
		RulesSource:        r.RulesSource,
		TrafficSource:      r.TrafficSource,
		Fingerprint:        r.Fingerprint,
		TotalRules:         r.Result.TotalRules,
		TotalRecords:       r.Result.TotalRecords,
		TotalRelationships: r.Result.TotalRelationships,
	}
}

// Validate checks the fields every backend requires.
func (r *Run) Validate() error {
	if r == nil {
		return errors.New("run is nil")
	}
	if r.ID == "" {
		return errors.New("run missing id")
	}
	if _, err := uuid.Parse(r.ID); err != nil {
		return fmt.Errorf("run id %q: %w", r.ID, err)
	}
	if r.CreatedAt.IsZero() {
		return errors.New("run missing created_at")
	}
	return nil
}
