package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"barkeep/internal/domain"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	t.Cleanup(func() {
		if cerr := c.Close(); cerr != nil {
			t.Errorf("Close: %v", cerr)
		}
	})
	return c
}

func finalizedSummary() *domain.BatchSummary {
	sum := domain.NewBatchSummary()
	sum.TotalTickers = 3
	sum.SuccessfulTickers = 2
	sum.FailedTickers = 1
	sum.TotalDataPoints = 500
	sum.RejectedRows = 4
	sum.SourceFile = "prices.csv"
	sum.TickersCreated = []string{"AAPL", "MSFT"}
	sum.Failures["GHOST"] = "no valid rows"
	sum.Finalize(
		time.Date(2025, 1, 15, 20, 25, 0, 0, time.UTC),
		time.Date(2025, 1, 15, 20, 26, 30, 0, time.UTC),
	)
	return sum
}

func TestCatalogRecordAndListRuns(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	id, err := c.RecordRun(ctx, "csv", finalizedSummary())
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if id == 0 {
		t.Fatal("RecordRun returned id 0")
	}

	runs, err := c.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("ListRuns returned %d runs, want 1", len(runs))
	}

	r := runs[0]
	if r.ID != id {
		t.Errorf("ID = %d, want %d", r.ID, id)
	}
	if r.Kind != "csv" {
		t.Errorf("Kind = %q, want csv", r.Kind)
	}
	if r.Source != "prices.csv" {
		t.Errorf("Source = %q, want prices.csv", r.Source)
	}
	if r.TotalTickers != 3 || r.SuccessfulTickers != 2 || r.FailedTickers != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", r.TotalTickers, r.SuccessfulTickers, r.FailedTickers)
	}
	if r.TotalDataPoints != 500 {
		t.Errorf("TotalDataPoints = %d, want 500", r.TotalDataPoints)
	}
	if r.RejectedRows != 4 {
		t.Errorf("RejectedRows = %d, want 4", r.RejectedRows)
	}
	if r.ConversionTime != 90 {
		t.Errorf("ConversionTime = %v, want 90", r.ConversionTime)
	}
	if r.StartedAt != "2025-01-15 20:25:00" {
		t.Errorf("StartedAt = %q", r.StartedAt)
	}
	if r.Partial {
		t.Error("Partial = true, want false")
	}
}

func TestCatalogListRunsNewestFirst(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	first, err := c.RecordRun(ctx, "csv", finalizedSummary())
	if err != nil {
		t.Fatalf("RecordRun (first): %v", err)
	}
	second, err := c.RecordRun(ctx, "download", finalizedSummary())
	if err != nil {
		t.Fatalf("RecordRun (second): %v", err)
	}

	runs, err := c.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns returned %d runs, want 2", len(runs))
	}
	if runs[0].ID != second || runs[1].ID != first {
		t.Errorf("run order = [%d %d], want [%d %d]", runs[0].ID, runs[1].ID, second, first)
	}

	limited, err := c.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns(1): %v", err)
	}
	if len(limited) != 1 || limited[0].ID != second {
		t.Errorf("ListRuns(1) = %v, want just run %d", limited, second)
	}
}

func TestCatalogRecordsFailures(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	sum := finalizedSummary()
	sum.Failures["ZOMBIE"] = "rate limit exceeded"
	id, err := c.RecordRun(ctx, "download", sum)
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	failures, err := c.ListFailures(ctx, id)
	if err != nil {
		t.Fatalf("ListFailures: %v", err)
	}
	if len(failures) != 2 {
		t.Fatalf("ListFailures returned %d rows, want 2", len(failures))
	}
	if failures[0].Ticker != "GHOST" || failures[1].Ticker != "ZOMBIE" {
		t.Errorf("failure order = [%s %s], want [GHOST ZOMBIE]", failures[0].Ticker, failures[1].Ticker)
	}
	if failures[1].Reason != "rate limit exceeded" {
		t.Errorf("Reason = %q, want rate limit exceeded", failures[1].Reason)
	}
}

func TestCatalogSourceFallsBackToList(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	sum := finalizedSummary()
	sum.SourceFile = ""
	sum.SourceList = "sp500"
	id, err := c.RecordRun(ctx, "download", sum)
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	runs, err := c.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if runs[0].ID != id || runs[0].Source != "sp500" {
		t.Errorf("Source = %q, want sp500", runs[0].Source)
	}
}

func TestCatalogReopen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "catalog.db")
	ctx := context.Background()

	c, err := NewCatalog(dbPath)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	if _, err := c.RecordRun(ctx, "csv", finalizedSummary()); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopening migrates idempotently and sees the prior run.
	c2, err := NewCatalog(dbPath)
	if err != nil {
		t.Fatalf("NewCatalog (reopen): %v", err)
	}
	defer c2.Close()

	runs, err := c2.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("ListRuns after reopen returned %d runs, want 1", len(runs))
	}
}
