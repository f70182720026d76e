// Package barkeep is a read-only SDK for consumers of a barkeep data
// directory. It parses the per-ticker JSON series documents and the batch
// summary directly, so downstream tools can depend on it without pulling in
// the converter.
package barkeep

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned when no document exists for the requested ticker.
var ErrNotFound = errors.New("series not found")

const summaryFile = "conversion_summary.json"

// Bar is one trading day's OHLCV observation. Volume is nil when the series
// was converted from a source without volume data.
type Bar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume *int64  `json:"volume,omitempty"`
}

// Series mirrors the on-disk series document: bars ascending by date, one
// document per ticker.
type Series struct {
	Ticker      string `json:"ticker"`
	DataPoints  int    `json:"data_points"`
	FirstDate   string `json:"first_date"`
	LastDate    string `json:"last_date"`
	Source      string `json:"source"`
	ConvertedAt string `json:"converted_at"`
	Bars        []Bar  `json:"historical_data"`
}

// RunSummary mirrors conversion_summary.json, the outcome of the most recent
// conversion run over the directory.
type RunSummary struct {
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

// Reader reads series documents from the processed-data directory of a
// barkeep installation.
type Reader struct {
	dir string
}

// NewReader returns a Reader over dir (the processed_dir of the writer's
// configuration).
func NewReader(dir string) *Reader {
	return &Reader{dir: dir}
}

// Series loads the document for ticker. Lookup is case-insensitive; documents
// are keyed by uppercase ticker.
func (r *Reader) Series(ticker string) (*Series, error) {
	name := strings.ToUpper(strings.TrimSpace(ticker))
	data, err := os.ReadFile(filepath.Join(r.dir, name+".json"))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading series %s: %w", name, err)
	}

	var s Series
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing series %s: %w", name, err)
	}
	return &s, nil
}

// Tickers lists the stored tickers in sorted order. A missing directory reads
// as empty.
func (r *Reader) Tickers() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", r.dir, err)
	}

	var tickers []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == summaryFile || !strings.HasSuffix(name, ".json") {
			continue
		}
		tickers = append(tickers, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(tickers)
	return tickers, nil
}

// LastRun loads the summary of the most recent conversion run, or ErrNotFound
// when no run has written one yet.
func (r *Reader) LastRun() (*RunSummary, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, summaryFile))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", summaryFile, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading summary: %w", err)
	}

	var sum RunSummary
	if err := json.Unmarshal(data, &sum); err != nil {
		return nil, fmt.Errorf("parsing summary: %w", err)
	}
	return &sum, nil
}
