package download

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"barkeep/internal/domain"
	"barkeep/internal/ingest"
)

// Defaults matching the bulk-download behavior of the original importer.
const (
	DefaultPaceDelay       = 1500 * time.Millisecond
	DefaultBackoffBase     = 2 * time.Second
	DefaultBackoffAttempts = 4
	DefaultLookbackYears   = 30
)

// providerHeader is the fixed shape provider rows arrive in. It runs
// through the same schema detection as a CSV header, so API rows and CSV
// rows share one validation path.
var providerHeader = []string{"Date", "Open", "High", "Low", "Close", "Volume"}

var providerMapping, _ = ingest.DetectSchema(providerHeader)

// Downloader fetches one symbol at a time through the pacing and backoff
// policies and assembles the canonical Series.
type Downloader struct {
	provider      Provider
	pacer         *Pacer
	backoff       *BackoffPolicy
	lookbackYears int

	now func() time.Time
	log *slog.Logger
}

// NewDownloader wires a provider to its pacing and backoff policies.
// lookbackYears <= 0 selects the 30-year default.
func NewDownloader(provider Provider, pacer *Pacer, backoff *BackoffPolicy, lookbackYears int) *Downloader {
	if lookbackYears <= 0 {
		lookbackYears = DefaultLookbackYears
	}
	return &Downloader{
		provider:      provider,
		pacer:         pacer,
		backoff:       backoff,
		lookbackYears: lookbackYears,
		now:           time.Now,
		log:           slog.Default().With("component", "download"),
	}
}

// Fetch downloads the full lookback window for one ticker. The request is
// paced against the previous successful fetch, retried under the backoff
// policy while the provider reports rate limiting, and its rows validated
// exactly like CSV rows. Terminal errors are the caller's to record; one
// ticker's failure never aborts a batch.
func (d *Downloader) Fetch(ctx context.Context, ticker string) (*domain.Series, error) {
	symbol := domain.NormalizeTicker(ticker)
	if symbol == "" {
		return nil, fmt.Errorf("unusable ticker %q", ticker)
	}

	if err := d.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	var rows [][]string
	err := d.backoff.Execute(ctx, func() error {
		var ferr error
		rows, ferr = d.provider.FetchRows(ctx, symbol, d.lookbackYears)
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", symbol, err)
	}
	d.pacer.Record()

	bars := make([]domain.Bar, 0, len(rows))
	rejected := 0
	for i, record := range rows {
		bar, _, rej := ingest.ValidateRow(providerMapping, record, i+1)
		if rej != nil {
			rejected++
			continue
		}
		bars = append(bars, bar)
	}
	if rejected > 0 {
		d.log.Warn("provider rows failed validation", "symbol", symbol, "rejected", rejected)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: no valid bars returned", symbol)
	}

	return domain.NewSeries(symbol, "api:"+d.provider.Name(), bars, d.now()), nil
}
