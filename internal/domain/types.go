// Package domain defines the canonical data model shared by the CSV ingest
// pipeline, the bulk downloader, and the series store: the Bar, the per-ticker
// Series, and the BatchSummary produced by every orchestrated run.
package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Layouts for all date and timestamp strings in the data model.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

// ---------------------------------------------------------------------------
// Bar
// ---------------------------------------------------------------------------

// Bar is one trading day's OHLCV observation. Volume is nil when the source
// did not carry a volume column; it is omitted from the serialized form.
type Bar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume *int64  `json:"volume,omitempty"`
}

// ---------------------------------------------------------------------------
// Series
// ---------------------------------------------------------------------------

// Series is the canonical per-ticker time series and the unit of persistence.
// Bars are strictly ascending by date with no duplicates; one ingestion or
// download run fully replaces the prior Series for the same ticker.
type Series struct {
	Ticker      string `json:"ticker"`
	DataPoints  int    `json:"data_points"`
	FirstDate   string `json:"first_date"`
	LastDate    string `json:"last_date"`
	Source      string `json:"source"`
	ConvertedAt string `json:"converted_at"`
	Bars        []Bar  `json:"historical_data"`
}

// NewSeries assembles a Series from bars in source order. Duplicate dates
// collapse to the last-seen bar, then the result is sorted ascending by date
// and the derived fields are filled in.
func NewSeries(ticker, source string, bars []Bar, convertedAt time.Time) *Series {
	byDate := make(map[string]Bar, len(bars))
	for _, b := range bars {
		byDate[b.Date] = b
	}

	deduped := make([]Bar, 0, len(byDate))
	for _, b := range byDate {
		deduped = append(deduped, b)
	}
	sort.Slice(deduped, func(i, j int) bool {
		return deduped[i].Date < deduped[j].Date
	})

	s := &Series{
		Ticker:      ticker,
		DataPoints:  len(deduped),
		Source:      source,
		ConvertedAt: convertedAt.Format(TimestampLayout),
		Bars:        deduped,
	}
	if len(deduped) > 0 {
		s.FirstDate = deduped[0].Date
		s.LastDate = deduped[len(deduped)-1].Date
	}
	return s
}

// Validate checks the on-write invariants: non-empty ticker, at least one
// bar, strictly ascending unique dates, and a consistent data_points count.
// Producers drop or fail empty groups, so a violation here is a defect in the
// pipeline, not bad user input.
func (s *Series) Validate() error {
	if s.Ticker == "" {
		return fmt.Errorf("series has empty ticker")
	}
	if len(s.Bars) == 0 {
		return fmt.Errorf("series %s has no bars", s.Ticker)
	}
	if s.DataPoints != len(s.Bars) {
		return fmt.Errorf("series %s: data_points %d != len(bars) %d", s.Ticker, s.DataPoints, len(s.Bars))
	}
	for i := 1; i < len(s.Bars); i++ {
		if s.Bars[i-1].Date >= s.Bars[i].Date {
			return fmt.Errorf("series %s: bars not strictly ascending at index %d (%s >= %s)",
				s.Ticker, i, s.Bars[i-1].Date, s.Bars[i].Date)
		}
	}
	return nil
}

// NormalizeTicker uppercases a raw symbol and strips everything outside
// A-Z, 0-9, '.' and '-' (exchanges use dots and dashes in share classes).
func NormalizeTicker(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// BatchSummary
// ---------------------------------------------------------------------------

// BatchSummary is the aggregated result of one orchestrator run over a set of
// CSV files or ticker symbols. It is created at run start, updated as each
// unit completes, and persisted once at the end (cancelled runs included,
// with Partial set).
type BatchSummary struct {
	TotalTickers      int               `json:"total_tickers"`
	SuccessfulTickers int               `json:"successful_tickers"`
	FailedTickers     int               `json:"failed_tickers"`
	TotalDataPoints   int               `json:"total_data_points"`
	RejectedRows      int               `json:"rejected_rows"`
	SourceFile        string            `json:"source_file,omitempty"`
	SourceList        string            `json:"source_list,omitempty"`
	RunStartedAt      string            `json:"run_started_at"`
	RunCompletedAt    string            `json:"run_completed_at"`
	ConversionTime    float64           `json:"conversion_time"`
	SuccessRate       float64           `json:"success_rate"`
	Partial           bool              `json:"partial"`
	TickersCreated    []string          `json:"tickers_created"`
	Failures          map[string]string `json:"failures"`
}

// NewBatchSummary returns an empty summary with its collections initialized,
// so the serialized form always carries [] and {} rather than null.
func NewBatchSummary() *BatchSummary {
	return &BatchSummary{
		TickersCreated: []string{},
		Failures:       map[string]string{},
	}
}

// Finalize stamps the run window and computes conversion_time and
// success_rate (0 when no tickers were seen).
func (s *BatchSummary) Finalize(started, completed time.Time) {
	s.RunStartedAt = started.Format(TimestampLayout)
	s.RunCompletedAt = completed.Format(TimestampLayout)
	s.ConversionTime = completed.Sub(started).Seconds()
	if s.TotalTickers > 0 {
		s.SuccessRate = float64(s.SuccessfulTickers) / float64(s.TotalTickers)
	} else {
		s.SuccessRate = 0
	}
}
