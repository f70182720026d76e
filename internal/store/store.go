// Package store persists converted series: one JSON document per ticker as
// the primary form, a Parquet mirror for columnar consumers, and a SQLite
// catalog of completed batch runs.
package store

import (
	"context"
	"errors"

	"barkeep/internal/domain"
)

// ErrNotFound reports that no series is stored for the requested ticker.
var ErrNotFound = errors.New("series not found")

// SeriesStore persists and retrieves converted ticker series.
type SeriesStore interface {
	// WriteSeries persists a series, fully replacing any previous version
	// stored for the same ticker.
	WriteSeries(ctx context.Context, s *domain.Series) error

	// ReadSeries returns the stored series for the given ticker, or an
	// error wrapping ErrNotFound when none exists.
	ReadSeries(ctx context.Context, ticker string) (*domain.Series, error)

	// ListTickers returns all tickers with a stored series, sorted.
	ListTickers(ctx context.Context) ([]string, error)

	// WriteSummary persists the aggregate summary of a batch run.
	WriteSummary(ctx context.Context, sum *domain.BatchSummary) error
}
