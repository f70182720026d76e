// Package batch orchestrates whole conversion runs: many CSV files or many
// symbols in, stored series plus one BatchSummary out.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"barkeep/internal/domain"
	"barkeep/internal/download"
	"barkeep/internal/ingest"
	"barkeep/internal/store"
)

// Fetcher is the single-symbol download operation the orchestrator drives.
type Fetcher interface {
	Fetch(ctx context.Context, ticker string) (*domain.Series, error)
}

// Compile-time interface check.
var _ Fetcher = (*download.Downloader)(nil)

// Orchestrator runs batches strictly sequentially: one file or one symbol at
// a time, in input order. A unit failure is recorded in the summary and the
// run continues; only a store write failure aborts. Cancellation between
// units stops the run with a partial summary covering the processed units.
type Orchestrator struct {
	store   store.SeriesStore
	engine  *ingest.Engine
	fetcher Fetcher
	now     func() time.Time
	log     *slog.Logger

	// progressEvery is the symbol interval between download progress logs.
	// CSV runs log every file.
	progressEvery int
}

// NewOrchestrator creates an Orchestrator writing to st. The engine handles
// CSV units and fetcher handles download units; either may be nil when the
// caller only runs the other kind.
func NewOrchestrator(st store.SeriesStore, eng *ingest.Engine, fetcher Fetcher) *Orchestrator {
	return &Orchestrator{
		store:         st,
		engine:        eng,
		fetcher:       fetcher,
		now:           time.Now,
		log:           slog.Default().With("component", "batch"),
		progressEvery: 100,
	}
}

// IngestFiles converts the given CSV files in order.
func (o *Orchestrator) IngestFiles(ctx context.Context, paths []string) (*domain.BatchSummary, error) {
	label := fmt.Sprintf("%d files", len(paths))
	if len(paths) == 1 {
		label = paths[0]
	}
	return o.ingestPaths(ctx, label, paths)
}

// IngestDir converts every *.csv file in dir, sorted by name.
func (o *Orchestrator) IngestDir(ctx context.Context, dir string) (*domain.BatchSummary, error) {
	paths, err := ingest.ListCSVFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	return o.ingestPaths(ctx, dir, paths)
}

func (o *Orchestrator) ingestPaths(ctx context.Context, label string, paths []string) (*domain.BatchSummary, error) {
	if o.engine == nil {
		return nil, fmt.Errorf("no ingest engine configured")
	}

	started := o.now()
	sum := domain.NewBatchSummary()
	sum.SourceFile = label

	o.log.Info("starting csv batch", "files", len(paths), "source", label)

	for i, path := range paths {
		if ctx.Err() != nil {
			sum.Partial = true
			o.log.Warn("run cancelled", "processed", i, "files", len(paths))
			break
		}

		result := o.engine.IngestFile(path)
		sum.RejectedRows += len(result.Rejections)
		if result.Err != nil {
			sum.TotalTickers++
			sum.FailedTickers++
			sum.Failures[filepath.Base(path)] = result.Err.Error()
			o.log.Warn("file failed", "file", path, "err", result.Err)
			continue
		}

		for _, s := range result.Series {
			if err := o.store.WriteSeries(ctx, s); err != nil {
				sum.Partial = true
				o.finish(sum, started)
				return sum, fmt.Errorf("storing %s: %w", s.Ticker, err)
			}
			sum.TotalTickers++
			sum.SuccessfulTickers++
			sum.TotalDataPoints += s.DataPoints
			sum.TickersCreated = append(sum.TickersCreated, s.Ticker)
		}

		o.log.Info("file done",
			"file", filepath.Base(path),
			"series", len(result.Series),
			"rejected", len(result.Rejections),
			"progress", fmt.Sprintf("%d/%d", i+1, len(paths)),
		)
	}

	o.finish(sum, started)
	o.log.Info("csv batch complete",
		"tickers", sum.SuccessfulTickers,
		"failed", sum.FailedTickers,
		"rejected", sum.RejectedRows,
		"elapsed", o.now().Sub(started).Round(time.Second),
	)
	return sum, nil
}

// Download fetches and stores a series for each symbol in order. source
// labels the run in the summary (a universe name or list path); when empty
// the symbol count is used.
func (o *Orchestrator) Download(ctx context.Context, source string, symbols []string) (*domain.BatchSummary, error) {
	if o.fetcher == nil {
		return nil, fmt.Errorf("no download provider configured")
	}

	started := o.now()
	sum := domain.NewBatchSummary()
	if source == "" {
		source = fmt.Sprintf("%d symbols", len(symbols))
	}
	sum.SourceList = source

	o.log.Info("starting download batch", "symbols", len(symbols), "source", source)

	for i, symbol := range symbols {
		if ctx.Err() != nil {
			sum.Partial = true
			o.log.Warn("run cancelled", "processed", i, "symbols", len(symbols))
			break
		}

		s, err := o.fetcher.Fetch(ctx, symbol)
		if err != nil {
			// A cancellation mid-fetch ends the run; the unit is not a
			// failure.
			if ctx.Err() != nil {
				sum.Partial = true
				o.log.Warn("run cancelled", "processed", i, "symbols", len(symbols))
				break
			}
			key := domain.NormalizeTicker(symbol)
			if key == "" {
				key = symbol
			}
			sum.TotalTickers++
			sum.FailedTickers++
			sum.Failures[key] = err.Error()
			o.log.Warn("symbol failed", "symbol", symbol, "err", err)
			continue
		}

		if err := o.store.WriteSeries(ctx, s); err != nil {
			sum.Partial = true
			o.finish(sum, started)
			return sum, fmt.Errorf("storing %s: %w", s.Ticker, err)
		}
		sum.TotalTickers++
		sum.SuccessfulTickers++
		sum.TotalDataPoints += s.DataPoints
		sum.TickersCreated = append(sum.TickersCreated, s.Ticker)

		if (i+1)%o.progressEvery == 0 {
			o.log.Info("progress",
				"done", i+1,
				"total", len(symbols),
				"failed", sum.FailedTickers,
				"elapsed", o.now().Sub(started).Round(time.Second),
			)
		}
	}

	o.finish(sum, started)
	o.log.Info("download batch complete",
		"tickers", sum.SuccessfulTickers,
		"failed", sum.FailedTickers,
		"elapsed", o.now().Sub(started).Round(time.Second),
	)
	return sum, nil
}

// finish stamps the run window and persists the summary. Cancelled and
// aborted runs persist too, so the summary write does not depend on the run
// context.
func (o *Orchestrator) finish(sum *domain.BatchSummary, started time.Time) {
	sum.Finalize(started, o.now())
	if err := o.store.WriteSummary(context.Background(), sum); err != nil {
		o.log.Warn("writing summary failed", "err", err)
	}
}
