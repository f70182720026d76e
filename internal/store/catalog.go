package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"barkeep/internal/domain"
)

// Catalog records completed batch runs in a SQLite database so past
// conversions can be inspected without trawling summary files.
type Catalog struct {
	db *sql.DB
	mu sync.Mutex
}

// RunRecord is one catalog row describing a completed batch run.
type RunRecord struct {
	ID                int64
	Kind              string // "csv" or "download"
	Source            string
	StartedAt         string
	CompletedAt       string
	TotalTickers      int
	SuccessfulTickers int
	FailedTickers     int
	TotalDataPoints   int
	RejectedRows      int
	ConversionTime    float64
	SuccessRate       float64
	Partial           bool
}

// RunFailure is one failed ticker of a recorded run.
type RunFailure struct {
	RunID  int64
	Ticker string
	Reason string
}

// NewCatalog opens (or creates) the catalog database at dbPath and runs
// migrations.
func NewCatalog(dbPath string) (*Catalog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so reporting tools can read while a batch run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return c, nil
}

func (c *Catalog) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			kind               TEXT NOT NULL,
			source             TEXT,
			started_at         TEXT NOT NULL,
			completed_at       TEXT NOT NULL,
			total_tickers      INTEGER NOT NULL,
			successful_tickers INTEGER NOT NULL,
			failed_tickers     INTEGER NOT NULL,
			total_data_points  INTEGER NOT NULL,
			rejected_rows      INTEGER NOT NULL,
			conversion_time    REAL NOT NULL,
			success_rate       REAL NOT NULL,
			partial            INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS run_failures (
			run_id INTEGER NOT NULL,
			ticker TEXT NOT NULL,
			reason TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_run ON run_failures(run_id)`,
	}

	for _, s := range stmts {
		if _, err := c.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun inserts a completed run summary and its per-ticker failures,
// returning the new run's catalog ID.
func (c *Catalog) RecordRun(ctx context.Context, kind string, sum *domain.BatchSummary) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	source := sum.SourceFile
	if source == "" {
		source = sum.SourceList
	}

	res, err := c.db.ExecContext(ctx, `INSERT INTO runs
		(kind, source, started_at, completed_at,
		 total_tickers, successful_tickers, failed_tickers,
		 total_data_points, rejected_rows,
		 conversion_time, success_rate, partial)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		kind, source, sum.RunStartedAt, sum.RunCompletedAt,
		sum.TotalTickers, sum.SuccessfulTickers, sum.FailedTickers,
		sum.TotalDataPoints, sum.RejectedRows,
		sum.ConversionTime, sum.SuccessRate, sum.Partial,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	tickers := make([]string, 0, len(sum.Failures))
	for t := range sum.Failures {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	for _, t := range tickers {
		if _, err := c.db.ExecContext(ctx,
			`INSERT INTO run_failures (run_id, ticker, reason) VALUES (?,?,?)`,
			id, t, sum.Failures[t],
		); err != nil {
			return 0, fmt.Errorf("insert failure %s: %w", t, err)
		}
	}
	return id, nil
}

// ListRuns returns the most recent runs, newest first, up to limit.
func (c *Catalog) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT
		id, kind, source, started_at, completed_at,
		total_tickers, successful_tickers, failed_tickers,
		total_data_points, rejected_rows,
		conversion_time, success_rate, partial
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(
			&r.ID, &r.Kind, &r.Source, &r.StartedAt, &r.CompletedAt,
			&r.TotalTickers, &r.SuccessfulTickers, &r.FailedTickers,
			&r.TotalDataPoints, &r.RejectedRows,
			&r.ConversionTime, &r.SuccessRate, &r.Partial,
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListFailures returns the failed tickers recorded for a run, by ticker.
func (c *Catalog) ListFailures(ctx context.Context, runID int64) ([]RunFailure, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT run_id, ticker, reason FROM run_failures WHERE run_id = ? ORDER BY ticker`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failures []RunFailure
	for rows.Next() {
		var f RunFailure
		if err := rows.Scan(&f.RunID, &f.Ticker, &f.Reason); err != nil {
			return nil, err
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// Close closes the underlying database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}
