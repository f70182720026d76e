// One-shot tool: convert raw OHLC CSV files into canonical JSON series.
//
// Usage:
//
//	go run cmd/csv-import/main.go -file data/raw/aapl.csv
//	go run cmd/csv-import/main.go -dir data/raw
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"barkeep/internal/batch"
	"barkeep/internal/config"
	"barkeep/internal/domain"
	"barkeep/internal/ingest"
	"barkeep/internal/store"
	"barkeep/internal/util"
)

func main() {
	file := flag.String("file", "", "single CSV file to convert")
	dir := flag.String("dir", "", "directory of CSV files to convert")
	flag.Parse()

	if (*file == "") == (*dir == "") {
		fmt.Fprintln(os.Stderr, "usage: csv-import -file FILE | -dir DIR")
		os.Exit(1)
	}

	cfgPath := "config/barkeep.yaml"
	if p := os.Getenv("BARKEEP_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	orch := batch.NewOrchestrator(store.NewJSONStore(cfg.Storage.ProcessedDir), ingest.NewEngine(), nil)

	var sum *domain.BatchSummary
	if *file != "" {
		sum, err = orch.IngestFiles(ctx, []string{*file})
	} else {
		sum, err = orch.IngestDir(ctx, *dir)
	}
	if sum != nil {
		recordRun(cfg.Storage.CatalogPath, "csv", sum)
	}
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}

	slog.Info("import complete",
		"tickers", sum.SuccessfulTickers,
		"failed", sum.FailedTickers,
		"dataPoints", sum.TotalDataPoints,
		"rejectedRows", sum.RejectedRows,
		"successRate", fmt.Sprintf("%.1f%%", sum.SuccessRate*100))
}

// recordRun appends the finished run to the SQLite catalog. Catalog trouble
// is logged rather than fatal: the series documents are already on disk.
func recordRun(dbPath, kind string, sum *domain.BatchSummary) {
	cat, err := store.NewCatalog(dbPath)
	if err != nil {
		slog.Warn("opening run catalog failed", "err", err)
		return
	}
	defer cat.Close()
	if _, err := cat.RecordRun(context.Background(), kind, sum); err != nil {
		slog.Warn("recording run failed", "err", err)
	}
}
