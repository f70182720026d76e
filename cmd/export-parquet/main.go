// One-shot tool: mirror stored JSON series into Parquet files for columnar
// consumers.
//
// Usage:
//
//	go run cmd/export-parquet/main.go
//	go run cmd/export-parquet/main.go -ticker AAPL
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"barkeep/internal/config"
	"barkeep/internal/domain"
	"barkeep/internal/store"
	"barkeep/internal/util"
)

func main() {
	ticker := flag.String("ticker", "", "export a single ticker (default: all stored series)")
	flag.Parse()

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

	jstore := store.NewJSONStore(cfg.Storage.ProcessedDir)
	exporter := store.NewParquetExporter(jstore, cfg.Storage.ExportDir)

	if *ticker != "" {
		records, err := exporter.ExportSeries(ctx, domain.NormalizeTicker(*ticker))
		if err != nil {
			log.Fatalf("export failed: %v", err)
		}
		slog.Info("export complete", "ticker", domain.NormalizeTicker(*ticker), "records", records)
		return
	}

	exported, err := exporter.ExportAll(ctx)
	if err != nil {
		log.Fatalf("export failed: %v", err)
	}
	slog.Info("export complete", "series", exported, "dir", cfg.Storage.ExportDir)
}
