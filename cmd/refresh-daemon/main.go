package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"barkeep/internal/batch"
	"barkeep/internal/config"
	"barkeep/internal/domain"
	"barkeep/internal/download"
	"barkeep/internal/store"
	"barkeep/internal/universe"
	"barkeep/internal/util"
)

func main() {
	runNow := flag.Bool("run-now", false, "run one refresh immediately on startup")
	flag.Parse()

	// Load config.
	cfgPath := "config/barkeep.yaml"
	if p := os.Getenv("BARKEEP_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// Setup logging.
	logFileName := fmt.Sprintf("/tmp/refresh-daemon-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("opening log file: %v", err)
	}
	defer logFile.Close()

	logger := util.NewLoggerTo(io.MultiWriter(os.Stdout, logFile), cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	prov, err := refreshProvider(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if cfg.Download.Provider != "yahoo" {
		log.Fatalf("unknown download provider %q (only yahoo is supported)", cfg.Download.Provider)
	}

	dl := download.NewDownloader(
		download.NewYahooProvider(time.Duration(cfg.Download.RequestTimeout)*time.Second),
		download.NewPacer(time.Duration(cfg.Download.PaceDelayMS)*time.Millisecond),
		download.NewBackoffPolicy(time.Duration(cfg.Download.BackoffBaseSec)*time.Second, cfg.Download.BackoffAttempts),
		cfg.Download.LookbackYears,
	)
	orch := batch.NewOrchestrator(store.NewJSONStore(cfg.Storage.ProcessedDir), nil, dl)
	marker := batch.NewRunMarker(cfg.Storage.DataDir)

	// A slow refresh may still be going when the next trigger fires; the
	// overlapping trigger is skipped, not queued.
	var running atomic.Bool
	doRefresh := func() {
		if !running.CompareAndSwap(false, true) {
			slog.Warn("previous refresh still running, skipping trigger")
			return
		}
		defer running.Store(false)

		today := time.Now().Format(domain.DateLayout)
		if marker.IsCompleted(today) {
			slog.Info("refresh already completed today, skipping", "date", today)
			return
		}

		symbols, err := prov.Symbols(ctx)
		if err != nil {
			slog.Error("listing universe failed", "universe", prov.Name(), "err", err)
			return
		}

		sum, err := orch.Download(ctx, prov.Name(), symbols)
		if sum != nil {
			recordRun(cfg.Storage.CatalogPath, "download", sum)
		}
		if err != nil {
			slog.Error("refresh failed", "err", err)
			return
		}
		slog.Info("refresh complete",
			"tickers", sum.SuccessfulTickers,
			"failed", sum.FailedTickers,
			"dataPoints", sum.TotalDataPoints,
			"partial", sum.Partial)

		// Only a full run counts; a cancelled one is redone next trigger.
		if !sum.Partial {
			if err := marker.MarkCompleted(today); err != nil {
				slog.Warn("writing refresh marker failed", "err", err)
			}
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Refresh.Cron, doRefresh); err != nil {
		log.Fatalf("invalid refresh cron %q: %v", cfg.Refresh.Cron, err)
	}
	c.Start()
	slog.Info("refresh daemon started",
		"cron", cfg.Refresh.Cron, "universe", prov.Name(), "logFile", logFileName)

	if *runNow {
		doRefresh()
	}

	<-ctx.Done()
	slog.Info("shutting down refresh daemon")

	// Stop scheduling and wait for an in-flight refresh; the cancelled run
	// context makes it wind down after the current symbol.
	<-c.Stop().Done()
}

// refreshProvider maps refresh.universe from the config to a symbol source.
func refreshProvider(cfg *config.Config) (universe.Provider, error) {
	switch cfg.Refresh.Universe {
	case "sp500", "file":
		return universe.NewFileProvider(cfg.Universe.SymbolsFile), nil
	case "tradable":
		return universe.NewAlpacaProvider(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, true), nil
	case "all":
		return universe.NewAlpacaProvider(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, false), nil
	default:
		return nil, fmt.Errorf("unknown refresh universe %q (want sp500, tradable, all, or file)", cfg.Refresh.Universe)
	}
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
