// Package history persists run summaries to a per-workspace SQLite
// database so previous runs can be inspected after the fact.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"refinery/internal/logging"
	"refinery/internal/refactor"
)

// Store wraps the runs database. Safe for use from a single process;
// SQLite's busy timeout covers the occasional concurrent CLI.
type Store struct {
	db   *sql.DB
	path string
}

// Path returns the database location for a workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, ".refinery", "history.db")
}

// Open opens (creating if needed) the history database for workspace.
func Open(workspace string) (*Store, error) {
	path := Path(workspace)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.HistoryDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.HistoryDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.HistoryDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.History("History store opened at %s", path)
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id           TEXT PRIMARY KEY,
		root             TEXT NOT NULL,
		dry_run          INTEGER NOT NULL,
		started_at       DATETIME NOT NULL,
		duration_ms      INTEGER NOT NULL,
		total_files      INTEGER NOT NULL,
		processed        INTEGER NOT NULL,
		improved         INTEGER NOT NULL,
		skipped          INTEGER NOT NULL,
		failed           INTEGER NOT NULL,
		total_cost       REAL NOT NULL,
		rounds           INTEGER NOT NULL,
		converged        INTEGER NOT NULL,
		budget_exhausted INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS results (
		id      INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id  TEXT NOT NULL REFERENCES runs(run_id),
		file    TEXT NOT NULL,
		round   INTEGER NOT NULL,
		status  TEXT NOT NULL,
		reason  TEXT,
		error   TEXT,
		cost    REAL NOT NULL,
		passes  INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return nil
}

// RecordRun stores a run summary and its per-file results atomically.
func (s *Store) RecordRun(sum *refactor.Summary) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs
			(run_id, root, dry_run, started_at, duration_ms, total_files,
			 processed, improved, skipped, failed, total_cost, rounds,
			 converged, budget_exhausted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID, sum.Root, boolInt(sum.DryRun),
		sum.StartedAt.UTC().Format(time.RFC3339Nano),
		sum.Duration.Milliseconds(), sum.TotalFiles,
		sum.Processed, sum.Improved, sum.Skipped, sum.Failed,
		sum.TotalCost, sum.Rounds,
		boolInt(sum.Converged), boolInt(sum.BudgetExhausted))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", sum.RunID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO results
			(run_id, file, round, status, reason, error, cost, passes, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range sum.Results {
		if _, err := stmt.Exec(sum.RunID, r.File, r.Round, string(r.Status),
			r.Reason, r.Err, r.Cost, r.Passes, r.Duration.Milliseconds()); err != nil {
			return fmt.Errorf("failed to insert result for %s: %w", r.File, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", sum.RunID, err)
	}
	logging.History("Recorded run %s (%d results)", sum.RunID, len(sum.Results))
	return nil
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID           string
	Root            string
	DryRun          bool
	StartedAt       time.Time
	Duration        time.Duration
	TotalFiles      int
	Processed       int
	Improved        int
	Skipped         int
	Failed          int
	TotalCost       float64
	Rounds          int
	Converged       bool
	BudgetExhausted bool
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT run_id, root, dry_run, started_at, duration_ms, total_files,
		       processed, improved, skipped, failed, total_cost, rounds,
		       converged, budget_exhausted
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var dryRun, converged, exhausted int
		var started string
		var durationMs int64
		if err := rows.Scan(&r.RunID, &r.Root, &dryRun, &started, &durationMs,
			&r.TotalFiles, &r.Processed, &r.Improved, &r.Skipped, &r.Failed,
			&r.TotalCost, &r.Rounds, &converged, &exhausted); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.DryRun = dryRun != 0
		r.Converged = converged != 0
		r.BudgetExhausted = exhausted != 0
		r.Duration = time.Duration(durationMs) * time.Millisecond
		if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
			r.StartedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunResults returns the per-file results of one run, in insert order.
func (s *Store) RunResults(runID string) ([]refactor.Result, error) {
	rows, err := s.db.Query(`
		SELECT file, round, status, reason, error, cost, passes, duration_ms
		FROM results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []refactor.Result
	for rows.Next() {
		var r refactor.Result
		var status string
		var durationMs int64
		if err := rows.Scan(&r.File, &r.Round, &status, &r.Reason, &r.Err,
			&r.Cost, &r.Passes, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		r.Status = refactor.Status(status)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
