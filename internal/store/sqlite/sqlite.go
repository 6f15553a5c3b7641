package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rulesift/rulesift/internal/relations"
	"github.com/rulesift/rulesift/internal/store"
)

type Store struct {
	db *sql.DB
}

var _ store.Repository = (*Store)(nil)

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_ts_unix_ns INTEGER NOT NULL,
			rules_source TEXT NOT NULL,
			traffic_source TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			total_rules INTEGER NOT NULL,
			total_records INTEGER NOT NULL,
			total_relationships INTEGER NOT NULL,
			result_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_ts_unix_ns);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint);`,
		`CREATE TABLE IF NOT EXISTS relationships (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			rule_a TEXT NOT NULL,
			rule_b TEXT NOT NULL,
			confidence REAL NOT NULL,
			evidence_count INTEGER NOT NULL,
			description TEXT,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_rule_a ON relationships(rule_a);`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_rule_b ON relationships(rule_b);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) SaveRun(ctx context.Context, run *store.Run) error {
	if err := run.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs (
		id, created_ts_unix_ns, rules_source, traffic_source, fingerprint,
		total_rules, total_records, total_relationships, result_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.UnixNano(),
		run.RulesSource,
		run.TrafficSource,
		run.Fingerprint,
		run.Result.TotalRules,
		run.Result.TotalRecords,
		run.Result.TotalRelationships,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO relationships (
		run_id, seq, kind, rule_a, rule_b, confidence, evidence_count, description
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare relationship insert: %w", err)
	}
	defer stmt.Close()

	seq := 0
	for _, kind := range relations.Kinds {
		for _, rel := range run.Result.Relationships[kind] {
			if _, err := stmt.ExecContext(ctx, run.ID, seq, string(rel.Kind), rel.RuleA, rel.RuleB, rel.Confidence, rel.EvidenceCount, rel.Description); err != nil {
				return fmt.Errorf("insert relationship: %w", err)
			}
			seq++
		}
	}

	return tx.Commit()
}

func (s *Store) GetRun(ctx context.Context, id string) (*store.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, created_ts_unix_ns, rules_source, traffic_source, fingerprint, result_json
		FROM runs WHERE id = ?`, id)

	var (
		run     store.Run
		created int64
		payload string
	)
	if err := row.Scan(&run.ID, &created, &run.RulesSource, &run.TrafficSource, &run.Fingerprint, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRunNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	run.CreatedAt = time.Unix(0, created).UTC()
	if err := json.Unmarshal([]byte(payload), &run.Result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &run, nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]store.Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_ts_unix_ns, rules_source, traffic_source, fingerprint,
		total_rules, total_records, total_relationships
		FROM runs ORDER BY created_ts_unix_ns DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []store.Summary
	for rows.Next() {
		var (
			summary store.Summary
			created int64
		)
		if err := rows.Scan(&summary.ID, &created, &summary.RulesSource, &summary.TrafficSource, &summary.Fingerprint,
			&summary.TotalRules, &summary.TotalRecords, &summary.TotalRelationships); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		summary.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, summary)
	}
	return out, rows.Err()
}
