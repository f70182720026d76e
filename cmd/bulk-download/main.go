// One-shot tool: download daily history for a universe of symbols into
// canonical JSON series.
//
// Usage:
//
//	go run cmd/bulk-download/main.go -universe sp500
//	go run cmd/bulk-download/main.go -universe tradable -years 10
//	go run cmd/bulk-download/main.go -symbols AAPL,MSFT,GOOG
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
	"strings"
	"syscall"
	"time"

	"barkeep/internal/batch"
	"barkeep/internal/config"
	"barkeep/internal/domain"
	"barkeep/internal/download"
	"barkeep/internal/store"
	"barkeep/internal/universe"
	"barkeep/internal/util"
)

func main() {
	universeFlag := flag.String("universe", "sp500", "symbol universe: sp500 | tradable | all | file")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols, bypasses -universe")
	symbolsFile := flag.String("symbols-file", "", "symbol file for -universe file (default: universe.symbols_file from config)")
	years := flag.Int("years", 0, "lookback years (default: download.lookback_years from config)")
	flag.Parse()

	cfgPath := "config/barkeep.yaml"
	if p := os.Getenv("BARKEEP_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Dual logger: stdout + /tmp log file.
	logFileName := fmt.Sprintf("/tmp/bulk-download-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.Create(logFileName)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	logger := util.NewLoggerTo(io.MultiWriter(os.Stdout, logFile), cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Resolve the symbol list.
	var symbols []string
	var source string
	if *symbolsFlag != "" {
		for _, s := range strings.Split(*symbolsFlag, ",") {
			if t := domain.NormalizeTicker(s); t != "" {
				symbols = append(symbols, t)
			}
		}
	} else {
		prov, err := universeProvider(cfg, *universeFlag, *symbolsFile)
		if err != nil {
			log.Fatalf("%v", err)
		}
		source = prov.Name()
		symbols, err = prov.Symbols(ctx)
		if err != nil {
			log.Fatalf("listing universe %s: %v", source, err)
		}
	}
	if len(symbols) == 0 {
		log.Fatalf("no symbols to download")
	}

	lookback := cfg.Download.LookbackYears
	if *years > 0 {
		lookback = *years
	}

	if cfg.Download.Provider != "yahoo" {
		log.Fatalf("unknown download provider %q (only yahoo is supported)", cfg.Download.Provider)
	}

	dl := download.NewDownloader(
		download.NewYahooProvider(time.Duration(cfg.Download.RequestTimeout)*time.Second),
		download.NewPacer(time.Duration(cfg.Download.PaceDelayMS)*time.Millisecond),
		download.NewBackoffPolicy(time.Duration(cfg.Download.BackoffBaseSec)*time.Second, cfg.Download.BackoffAttempts),
		lookback,
	)

	orch := batch.NewOrchestrator(store.NewJSONStore(cfg.Storage.ProcessedDir), nil, dl)

	slog.Info("starting bulk download",
		"symbols", len(symbols), "source", source, "lookbackYears", lookback, "logFile", logFileName)

	sum, err := orch.Download(ctx, source, symbols)
	if sum != nil {
		recordRun(cfg.Storage.CatalogPath, "download", sum)
	}
	if err != nil {
		log.Fatalf("download failed: %v", err)
	}

	slog.Info("download complete",
		"tickers", sum.SuccessfulTickers,
		"failed", sum.FailedTickers,
		"dataPoints", sum.TotalDataPoints,
		"partial", sum.Partial,
		"successRate", fmt.Sprintf("%.1f%%", sum.SuccessRate*100))
}

// universeProvider maps the -universe flag to a symbol source.
func universeProvider(cfg *config.Config, name, symbolsFile string) (universe.Provider, error) {
	switch name {
	case "sp500":
		return universe.NewFileProvider(cfg.Universe.SymbolsFile), nil
	case "file":
		path := symbolsFile
		if path == "" {
			path = cfg.Universe.SymbolsFile
		}
		return universe.NewFileProvider(path), nil
	case "tradable":
		return universe.NewAlpacaProvider(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, true), nil
	case "all":
		return universe.NewAlpacaProvider(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, false), nil
	default:
		return nil, fmt.Errorf("unknown universe %q (want sp500, tradable, all, or file)", name)
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
