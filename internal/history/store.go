// Package history persists pipeline run records in a local SQLite
// database. History is best-effort: callers log write failures and carry
// on, the pipeline never fails because of it.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// RunRecord is one completed (or failed) pipeline run.
type RunRecord struct {
	ID       string
	Version  string // Derived dev version; empty when extraction failed
	Outcome  string // success|failed|canceled
	Started  time.Time
	Duration time.Duration
	Steps    []StepRecord
}

// StepRecord is the outcome of a single step within a run.
type StepRecord struct {
	Step     string
	Outcome  string // success|failure|skipped
	Duration time.Duration
	Error    string // Empty on success
}

// Store records and queries pipeline runs.
type Store interface {
	RecordRun(ctx context.Context, run RunRecord) error
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a SQLite-backed run store. Parent directories are
// created as needed. Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		version TEXT NOT NULL,
		outcome TEXT NOT NULL,
		started INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS step_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		step TEXT NOT NULL,
		outcome TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);
	CREATE INDEX IF NOT EXISTS idx_steps_run_id ON step_results(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun stores a run and its step results in one transaction.
func (s *SQLiteStore) RecordRun(ctx context.Context, run RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (id, version, outcome, started, duration_ms) VALUES (?, ?, ?, ?, ?)",
		run.ID, run.Version, run.Outcome, run.Started.Unix(), run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, step := range run.Steps {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO step_results (run_id, step, outcome, duration_ms, error) VALUES (?, ?, ?, ?, ?)",
			run.ID, step.Step, step.Outcome, step.Duration.Milliseconds(), step.Error,
		)
		if err != nil {
			return fmt.Errorf("insert step result: %w", err)
		}
	}

	return tx.Commit()
}

// RecentRuns returns up to limit runs, newest first, with step results.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, version, outcome, started, duration_ms FROM runs ORDER BY started DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var started, durationMS int64
		if err := rows.Scan(&r.ID, &r.Version, &r.Outcome, &started, &durationMS); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Started = time.Unix(started, 0)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	for i := range runs {
		steps, err := s.stepsForRun(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Steps = steps
	}
	return runs, nil
}

func (s *SQLiteStore) stepsForRun(ctx context.Context, runID string) ([]StepRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT step, outcome, duration_ms, error FROM step_results WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query step results: %w", err)
	}
	defer rows.Close()

	var steps []StepRecord
	for rows.Next() {
		var st StepRecord
		var durationMS int64
		if err := rows.Scan(&st.Step, &st.Outcome, &durationMS, &st.Error); err != nil {
			return nil, fmt.Errorf("scan step result: %w", err)
		}
		st.Duration = time.Duration(durationMS) * time.Millisecond
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
