package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"barkeep/internal/domain"
)

// ImportResult is the outcome of ingesting one CSV file: the per-ticker
// series it produced, the rows excluded by validation, and the file-level
// error when no series could be produced at all.
type ImportResult struct {
	SourceFile string
	Series     []*domain.Series
	Rejections []Rejection
	Err        error
}

// Engine turns CSV files into canonical per-ticker series. Ingestion has no
// side effects; the caller decides what to persist.
type Engine struct {
	now func() time.Time
}

// NewEngine creates a ready-to-use Engine.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// IngestFile ingests one CSV file. The schema is detected from the header
// row; validated bars are grouped by ticker (or by the filename-derived
// ticker when the source has no ticker column), sorted ascending with
// duplicate dates collapsing to the last-seen row, and returned as one
// series per ticker in order of first appearance. Groups left with zero
// valid bars are dropped: an empty ticker is neither a success nor a
// failure.
func (e *Engine) IngestFile(path string) *ImportResult {
	source := filepath.Base(path)
	result := &ImportResult{SourceFile: source}

	f, err := os.Open(path)
	if err != nil {
		result.Err = fmt.Errorf("opening %s: %w", source, err)
		return result
	}
	defer f.Close()

	e.ingest(f, source, TickerFromFilename(path), result)
	return result
}

func (e *Engine) ingest(r io.Reader, source, fallbackTicker string, result *ImportResult) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		// An empty file has no date column; real read failures surface as-is.
		if errors.Is(err, io.EOF) {
			result.Err = ErrDateColumnMissing
		} else {
			result.Err = fmt.Errorf("reading header of %s: %w", source, err)
		}
		return
	}

	mapping, err := DetectSchema(header)
	if err != nil {
		result.Err = err
		return
	}

	groups := make(map[string][]domain.Bar)
	var order []string

	row := 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			// A mangled line loses its fields; reject it and keep reading.
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				result.Rejections = append(result.Rejections, Rejection{Row: row, Reason: ReasonMissingField})
				continue
			}
			result.Err = fmt.Errorf("reading %s: %w", source, err)
			return
		}

		bar, rawTicker, rej := ValidateRow(mapping, record, row)
		if rej != nil {
			result.Rejections = append(result.Rejections, *rej)
			continue
		}

		ticker := fallbackTicker
		if mapping.HasTicker() {
			ticker = domain.NormalizeTicker(rawTicker)
		}
		if ticker == "" {
			result.Rejections = append(result.Rejections, Rejection{Row: row, Reason: ReasonMissingField})
			continue
		}

		if _, seen := groups[ticker]; !seen {
			order = append(order, ticker)
		}
		groups[ticker] = append(groups[ticker], bar)
	}

	at := e.now()
	for _, ticker := range order {
		result.Series = append(result.Series, domain.NewSeries(ticker, source, groups[ticker], at))
	}
}

// ListCSVFiles returns the *.csv files directly under dir, sorted by name.
// Batch runs process files in this order.
func ListCSVFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("globbing %s: %w", dir, err)
	}
	return matches, nil
}
