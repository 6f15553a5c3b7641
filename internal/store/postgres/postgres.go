package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rulesift/rulesift/internal/relations"
	"github.com/rulesift/rulesift/internal/store"
)

const queryTimeout = 5 * time.Second

type Repository struct {
	pool *pgxpool.Pool
}

var _ store.Repository = (*Repository)(nil)

func New(ctx context.Context, connString string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	config.MaxConns = 4
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	r := &Repository{pool: pool}
	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_runs (
			id UUID PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			rules_source TEXT NOT NULL,
			traffic_source TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			total_rules INTEGER NOT NULL,
			total_records INTEGER NOT NULL,
			total_relationships INTEGER NOT NULL,
			result JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_runs_created ON analysis_runs(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_runs_fingerprint ON analysis_runs(fingerprint)`,
		`CREATE TABLE IF NOT EXISTS rule_relationships (
			run_id UUID NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			rule_a TEXT NOT NULL,
			rule_b TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			evidence_count INTEGER NOT NULL,
			description TEXT,
			PRIMARY KEY (run_id, seq)
		)`,
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}

// SaveRun inserts the run and its relationship rows in one transaction.
func (r *Repository) SaveRun(ctx context.Context, run *store.Run) error {
	if err := run.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	payload, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO analysis_runs
		(id, created_at, rules_source, traffic_source, fingerprint, total_rules, total_records, total_relationships, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		run.ID,
		run.CreatedAt,
		run.RulesSource,
		run.TrafficSource,
		run.Fingerprint,
		run.Result.TotalRules,
		run.Result.TotalRecords,
		run.Result.TotalRelationships,
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	batch := &pgx.Batch{}
	seq := 0
	for _, kind := range relations.Kinds {
		for _, rel := range run.Result.Relationships[kind] {
			batch.Queue(`
				INSERT INTO rule_relationships
				(run_id, seq, kind, rule_a, rule_b, confidence, evidence_count, description)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, run.ID, seq, string(rel.Kind), rel.RuleA, rel.RuleB, rel.Confidence, rel.EvidenceCount, rel.Description)
			seq++
		}
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert relationships: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *Repository) GetRun(ctx context.Context, id string) (*store.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var (
		run     store.Run
		payload []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, created_at, rules_source, traffic_source, fingerprint, result
		FROM analysis_runs
		WHERE id = $1
	`, id).Scan(&run.ID, &run.CreatedAt, &run.RulesSource, &run.TrafficSource, &run.Fingerprint, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if err := json.Unmarshal(payload, &run.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	run.CreatedAt = run.CreatedAt.UTC()
	return &run, nil
}

func (r *Repository) ListRuns(ctx context.Context, limit int) ([]store.Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT id::text, created_at, rules_source, traffic_source, fingerprint,
			total_rules, total_records, total_relationships
		FROM analysis_runs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []store.Summary
	for rows.Next() {
		var s store.Summary
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.RulesSource, &s.TrafficSource, &s.Fingerprint,
			&s.TotalRules, &s.TotalRecords, &s.TotalRelationships); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.CreatedAt = s.CreatedAt.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}
