// One-shot tool: inspect a stored series, its Parquet mirror, and recent
// conversion runs.
//
// Usage:
//
//	go run cmd/check-series/main.go AAPL
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"barkeep/internal/config"
	"barkeep/internal/domain"
	"barkeep/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: check-series SYMBOL")
		os.Exit(1)
	}
	ticker := domain.NormalizeTicker(os.Args[1])

	cfgPath := "config/barkeep.yaml"
	if p := os.Getenv("BARKEEP_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	jstore := store.NewJSONStore(cfg.Storage.ProcessedDir)

	fmt.Printf("=== %s ===\n\n", ticker)

	// --- Stored series ---
	fmt.Println("--- Stored series ---")
	s, err := jstore.ReadSeries(ctx, ticker)
	switch {
	case errors.Is(err, store.ErrNotFound):
		tickers, _ := jstore.ListTickers(ctx)
		fmt.Printf("  not stored (%d series under %s)\n", len(tickers), cfg.Storage.ProcessedDir)
	case err != nil:
		fmt.Printf("  error: %v\n", err)
	default:
		fmt.Printf("  source:       %s\n", s.Source)
		fmt.Printf("  data points:  %d\n", s.DataPoints)
		fmt.Printf("  range:        %s .. %s\n", s.FirstDate, s.LastDate)
		fmt.Printf("  converted at: %s\n", s.ConvertedAt)
		last := s.Bars[len(s.Bars)-1]
		vol := "n/a"
		if last.Volume != nil {
			vol = fmt.Sprintf("%d", *last.Volume)
		}
		fmt.Printf("  latest bar:   %s O=%g H=%g L=%g C=%g V=%s\n",
			last.Date, last.Open, last.High, last.Low, last.Close, vol)
	}

	// --- Parquet mirror ---
	fmt.Println("\n--- Parquet mirror ---")
	exporter := store.NewParquetExporter(jstore, cfg.Storage.ExportDir)
	records, err := exporter.ReadRecords(ticker)
	if err != nil {
		fmt.Printf("  not exported (%v)\n", err)
	} else {
		fmt.Printf("  %d records under %s\n", len(records), cfg.Storage.ExportDir)
	}

	// --- Recent runs ---
	fmt.Println("\n--- Recent runs ---")
	cat, err := store.NewCatalog(cfg.Storage.CatalogPath)
	if err != nil {
		fmt.Printf("  error: %v\n", err)
		return
	}
	defer cat.Close()

	runs, err := cat.ListRuns(ctx, 5)
	if err != nil {
		fmt.Printf("  error: %v\n", err)
		return
	}
	if len(runs) == 0 {
		fmt.Println("  none recorded")
		return
	}
	fmt.Printf("  %-4s %-9s %-20s %6s %6s %8s %6s\n",
		"ID", "Kind", "Started", "OK", "Fail", "Points", "Rate")
	for _, r := range runs {
		partial := ""
		if r.Partial {
			partial = "  (partial)"
		}
		fmt.Printf("  %-4d %-9s %-20s %6d %6d %8d %5.1f%%%s\n",
			r.ID, r.Kind, r.StartedAt, r.SuccessfulTickers, r.FailedTickers,
			r.TotalDataPoints, r.SuccessRate*100, partial)
	}

	// Surface this symbol's failure reasons, if any run recorded one.
	for _, r := range runs {
		if r.FailedTickers == 0 {
			continue
		}
		failures, err := cat.ListFailures(ctx, r.ID)
		if err != nil {
			continue
		}
		for _, f := range failures {
			if f.Ticker == ticker {
				fmt.Printf("\n  run %d failed %s: %s\n", r.ID, f.Ticker, f.Reason)
			}
		}
	}
}
