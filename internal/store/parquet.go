package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"barkeep/internal/domain"
)

// BarRecord is the Parquet schema for exported series data. Dates become UTC
// midnight timestamps; a bar without volume carries a null.
type BarRecord struct {
	Ticker    string  `parquet:"ticker"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    *int64  `parquet:"volume,optional"`
}

// ParquetExporter mirrors stored series into one Parquet file per ticker for
// columnar consumers. The JSON store stays the source of truth; an export is
// a full rewrite of the ticker's file.
type ParquetExporter struct {
	store SeriesStore
	Dir   string
}

// NewParquetExporter creates an exporter reading from store and writing
// under dir.
func NewParquetExporter(store SeriesStore, dir string) *ParquetExporter {
	return &ParquetExporter{store: store, Dir: dir}
}

// ExportSeries mirrors one ticker's series to <Dir>/<TICKER>.parquet and
// returns the number of records written.
func (e *ParquetExporter) ExportSeries(ctx context.Context, ticker string) (int, error) {
	s, err := e.store.ReadSeries(ctx, ticker)
	if err != nil {
		return 0, err
	}

	records := barRecords(s)
	if err := writeParquetFile(e.exportPath(s.Ticker), records); err != nil {
		return 0, fmt.Errorf("exporting %s: %w", s.Ticker, err)
	}
	return len(records), nil
}

// ExportAll mirrors every stored series and returns the number of tickers
// exported. A storage or encoding error stops the export.
func (e *ParquetExporter) ExportAll(ctx context.Context) (int, error) {
	tickers, err := e.store.ListTickers(ctx)
	if err != nil {
		return 0, err
	}

	exported := 0
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return exported, err
		}
		if _, err := e.ExportSeries(ctx, ticker); err != nil {
			return exported, err
		}
		exported++
	}
	return exported, nil
}

// ReadRecords loads a ticker's exported records, for verification tooling.
func (e *ParquetExporter) ReadRecords(ticker string) ([]BarRecord, error) {
	return readParquetFile[BarRecord](e.exportPath(ticker))
}

// exportPath returns the Parquet file path for a ticker.
// Layout: <Dir>/<TICKER>.parquet
func (e *ParquetExporter) exportPath(ticker string) string {
	return filepath.Join(e.Dir, domain.NormalizeTicker(ticker)+".parquet")
}

// barRecords flattens a series into Parquet records. Dates were validated on
// ingest, so every bar parses.
func barRecords(s *domain.Series) []BarRecord {
	records := make([]BarRecord, 0, len(s.Bars))
	for _, b := range s.Bars {
		t, err := time.Parse(domain.DateLayout, b.Date)
		if err != nil {
			continue
		}
		records = append(records, BarRecord{
			Ticker:    s.Ticker,
			Timestamp: t.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}
	return records
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
