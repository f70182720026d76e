package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"barkeep/internal/domain"
)

// Compile-time interface check.
var _ SeriesStore = (*JSONStore)(nil)

// summaryFile is the batch summary document written next to the per-ticker
// series files.
const summaryFile = "conversion_summary.json"

// JSONStore implements SeriesStore with one pretty-printed JSON document per
// ticker in a flat directory. Writes go through a temp file and a rename, so
// a reader never observes a half-written document.
type JSONStore struct {
	Dir string
}

// NewJSONStore creates a JSONStore rooted at the given directory.
func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{Dir: dir}
}

// WriteSeries persists s to <Dir>/<TICKER>.json, replacing any previous
// version of the same ticker.
func (st *JSONStore) WriteSeries(_ context.Context, s *domain.Series) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("refusing to store series: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", s.Ticker, err)
	}
	return st.writeAtomic(st.seriesPath(s.Ticker), append(data, '\n'))
}

// ReadSeries loads the stored series for ticker.
func (st *JSONStore) ReadSeries(_ context.Context, ticker string) (*domain.Series, error) {
	path := st.seriesPath(ticker)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", ticker, ErrNotFound)
		}
		return nil, err
	}
	var s domain.Series
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &s, nil
}

// ListTickers returns the tickers with a stored series, sorted.
func (st *JSONStore) ListTickers(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(st.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
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

// WriteSummary persists the batch summary next to the series files.
func (st *JSONStore) WriteSummary(_ context.Context, sum *domain.BatchSummary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	return st.writeAtomic(filepath.Join(st.Dir, summaryFile), append(data, '\n'))
}

// seriesPath returns the document path for a ticker. Documents are keyed by
// the uppercase ticker, so "aapl" and "AAPL" address the same file.
func (st *JSONStore) seriesPath(ticker string) string {
	return filepath.Join(st.Dir, domain.NormalizeTicker(ticker)+".json")
}

// writeAtomic writes data to path via a temp file in the same directory
// followed by a rename.
func (st *JSONStore) writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(st.Dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(st.Dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
