// Package sqlite implements the run ledger on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/annolab/seqlabel/pkg/seqlabel/store"
)

// sqliteStore implements store.Store backed by a SQLite file.
type sqliteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at path with WAL mode
// enabled and the schema initialized.
func Open(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL keeps the ledger readable while a run is writing.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist.
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	input_path TEXT NOT NULL,
	output_path TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	processed INTEGER DEFAULT 0,
	failed INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS outcomes (
	run_id TEXT NOT NULL,
	record_index INTEGER NOT NULL,
	status TEXT NOT NULL,
	error_class TEXT,
	attempts INTEGER DEFAULT 0,
	PRIMARY KEY(run_id, record_index),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_outcomes_status ON outcomes(run_id, status);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// CreateRun inserts a new run row.
func (s *sqliteStore) CreateRun(ctx context.Context, r store.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input_path, output_path, started_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.InputPath, r.OutputPath, r.StartedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun stamps completion time and final counts on a run.
func (s *sqliteStore) FinishRun(ctx context.Context, id string, finishedAt time.Time, processed, failed int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, processed = ?, failed = ? WHERE id = ?`,
		finishedAt.UTC().Format(time.RFC3339Nano), processed, failed, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetRun returns one run by id.
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, input_path, output_path, started_at, finished_at, processed, failed
		 FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return store.Run{}, false, nil
	}
	if err != nil {
		return store.Run{}, false, err
	}
	return r, true, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *sqliteStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input_path, output_path, started_at, finished_at, processed, failed
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RecordOutcome upserts the final state of one record. Re-running a record
// (after a resume that re-processes an unflushed tail) overwrites its row.
func (s *sqliteStore) RecordOutcome(ctx context.Context, o store.Outcome) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes (run_id, record_index, status, error_class, attempts)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, record_index) DO UPDATE SET
			status = excluded.status,
			error_class = excluded.error_class,
			attempts = excluded.attempts`,
		o.RunID, o.RecordIndex, o.Status, o.ErrorClass, o.Attempts)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// ListOutcomes returns all outcomes for a run in record order.
func (s *sqliteStore) ListOutcomes(ctx context.Context, runID string) ([]store.Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, record_index, status, error_class, attempts
		 FROM outcomes WHERE run_id = ? ORDER BY record_index`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []store.Outcome
	for rows.Next() {
		var o store.Outcome
		var class sql.NullString
		if err := rows.Scan(&o.RunID, &o.RecordIndex, &o.Status, &class, &o.Attempts); err != nil {
			return nil, err
		}
		o.ErrorClass = class.String
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// FailedIndices returns the record indices that failed terminally in a run.
func (s *sqliteStore) FailedIndices(ctx context.Context, runID string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_index FROM outcomes
		 WHERE run_id = ? AND status = ? ORDER BY record_index`, runID, store.StatusFailed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indices []int
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, err
		}
		indices = append(indices, idx)
	}
	return indices, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (store.Run, error) {
	var r store.Run
	var started string
	var finished sql.NullString
	if err := row.Scan(&r.ID, &r.InputPath, &r.OutputPath, &started, &finished, &r.Processed, &r.Failed); err != nil {
		return store.Run{}, err
	}
	if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
		r.StartedAt = t
	}
	if finished.Valid && finished.String != "" {
		if t, err := time.Parse(time.RFC3339Nano, finished.String); err == nil {
			r.FinishedAt = t
		}
	}
	return r, nil
}
