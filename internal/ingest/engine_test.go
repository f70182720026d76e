package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeCSV drops a fixture file into dir and returns its path.
func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
	return path
}

func TestIngestFileGroupsByTicker(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "market_data.csv",
		"Date,Ticker,Open,High,Low,Close,Volume\n"+
			"2024-01-02,AAPL,185.0,186.5,184.0,185.5,50000000\n"+
			"2024-01-03,AAPL,185.5,187.0,185.0,186.0,45000000\n"+
			"2024-01-02,MSFT,400.0,405.0,399.0,403.0,30000000\n")

	r := NewEngine().IngestFile(path)
	if r.Err != nil {
		t.Fatalf("IngestFile returned error: %v", r.Err)
	}
	if len(r.Series) != 2 {
		t.Fatalf("got %d series, want 2", len(r.Series))
	}
	if r.Series[0].Ticker != "AAPL" || r.Series[1].Ticker != "MSFT" {
		t.Errorf("series order = [%s, %s], want [AAPL, MSFT] (first appearance)", r.Series[0].Ticker, r.Series[1].Ticker)
	}
	if r.Series[0].DataPoints != 2 {
		t.Errorf("AAPL data_points = %d, want 2", r.Series[0].DataPoints)
	}
	if r.Series[1].DataPoints != 1 {
		t.Errorf("MSFT data_points = %d, want 1", r.Series[1].DataPoints)
	}
	if r.Series[0].Source != "market_data.csv" {
		t.Errorf("source = %q, want market_data.csv", r.Series[0].Source)
	}
	if len(r.Rejections) != 0 {
		t.Errorf("got %d rejections, want 0", len(r.Rejections))
	}
}

func TestIngestFileMissingDateColumn(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "prices.csv",
		"Price,Open,High,Low,Close\n"+
			"185.0,185.0,186.5,184.0,185.5\n")

	r := NewEngine().IngestFile(path)
	if !errors.Is(r.Err, ErrDateColumnMissing) {
		t.Fatalf("Err = %v, want ErrDateColumnMissing", r.Err)
	}
	if len(r.Series) != 0 {
		t.Errorf("got %d series, want 0 (no partial success without dates)", len(r.Series))
	}
}

func TestIngestFileTickerFromFilename(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "TSLA.csv",
		"Date,Open,High,Low,Close,Volume\n"+
			"2024-01-02,250.0,255.0,248.0,252.0,90000000\n")

	r := NewEngine().IngestFile(path)
	if r.Err != nil {
		t.Fatalf("IngestFile returned error: %v", r.Err)
	}
	if len(r.Series) != 1 {
		t.Fatalf("got %d series, want 1", len(r.Series))
	}
	if r.Series[0].Ticker != "TSLA" {
		t.Errorf("ticker = %q, want TSLA (derived from filename)", r.Series[0].Ticker)
	}
}

func TestIngestFileDuplicateDateLastWins(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "dup.csv",
		"Date,Ticker,Open,High,Low,Close\n"+
			"2024-01-02,AAPL,1,2,0.5,1.5\n"+
			"2024-01-03,AAPL,2,3,1.5,2.5\n"+
			"2024-01-02,AAPL,9,10,8,9.5\n")

	r := NewEngine().IngestFile(path)
	if r.Err != nil {
		t.Fatalf("IngestFile returned error: %v", r.Err)
	}
	s := r.Series[0]
	if s.DataPoints != 2 {
		t.Fatalf("data_points = %d, want 2 (duplicate collapsed)", s.DataPoints)
	}
	if s.Bars[0].Date != "2024-01-02" || s.Bars[0].Close != 9.5 {
		t.Errorf("bar[0] = %+v, want last-seen row for 2024-01-02", s.Bars[0])
	}
	if s.FirstDate != "2024-01-02" || s.LastDate != "2024-01-03" {
		t.Errorf("range = [%s, %s]", s.FirstDate, s.LastDate)
	}
}

func TestIngestFileRejectsBadRows(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "mixed.csv",
		"Date,Ticker,Open,High,Low,Close,Volume\n"+
			"2024-01-02,AAPL,185.0,186.5,184.0,185.5,50000000\n"+
			"2024-01-03,AAPL,5,4,6,5,100\n"+ // high < low
			"not-a-date,AAPL,1,2,0.5,1.5,100\n"+
			"2024-01-04,AAPL,185.5,187.0,185.0,186.0,45000000\n")

	r := NewEngine().IngestFile(path)
	if r.Err != nil {
		t.Fatalf("IngestFile returned error: %v", r.Err)
	}
	if len(r.Rejections) != 2 {
		t.Fatalf("got %d rejections, want 2: %+v", len(r.Rejections), r.Rejections)
	}
	if r.Rejections[0].Reason != ReasonOHLCInvariant || r.Rejections[0].Row != 2 {
		t.Errorf("rejection[0] = %+v, want row 2 %s", r.Rejections[0], ReasonOHLCInvariant)
	}
	if r.Rejections[1].Reason != ReasonUnparseableDate || r.Rejections[1].Row != 3 {
		t.Errorf("rejection[1] = %+v, want row 3 %s", r.Rejections[1], ReasonUnparseableDate)
	}
	if r.Series[0].DataPoints != 2 {
		t.Errorf("surviving data_points = %d, want 2", r.Series[0].DataPoints)
	}
}

func TestIngestFileDropsEmptyTickerGroup(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "partial.csv",
		"Date,Ticker,Open,High,Low,Close\n"+
			"2024-01-02,AAPL,1,2,0.5,1.5\n"+
			"bogus,GHOST,1,2,0.5,1.5\n")

	r := NewEngine().IngestFile(path)
	if r.Err != nil {
		t.Fatalf("IngestFile returned error: %v", r.Err)
	}
	if len(r.Series) != 1 || r.Series[0].Ticker != "AAPL" {
		t.Fatalf("series = %+v, want only AAPL (GHOST had zero valid rows)", r.Series)
	}
	if len(r.Rejections) != 1 {
		t.Errorf("got %d rejections, want 1", len(r.Rejections))
	}
}

func TestIngestFileIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "stable.csv",
		"Date,Ticker,Open,High,Low,Close,Volume\n"+
			"2024-01-03,AAPL,185.5,187.0,185.0,186.0,45000000\n"+
			"2024-01-02,AAPL,185.0,186.5,184.0,185.5,50000000\n")

	e := NewEngine()
	first := e.IngestFile(path)
	second := e.IngestFile(path)
	if first.Err != nil || second.Err != nil {
		t.Fatalf("errors: %v / %v", first.Err, second.Err)
	}

	a, err := json.Marshal(first.Series[0].Bars)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := json.Marshal(second.Series[0].Bars)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("historical_data differs between identical runs:\n  %s\n  %s", a, b)
	}
}

func TestListCSVFiles(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "b.csv", "Date,Open,High,Low,Close\n")
	writeCSV(t, dir, "a.csv", "Date,Open,High,Low,Close\n")
	writeCSV(t, dir, "notes.txt", "ignored")

	files, err := ListCSVFiles(dir)
	if err != nil {
		t.Fatalf("ListCSVFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	if filepath.Base(files[0]) != "a.csv" || filepath.Base(files[1]) != "b.csv" {
		t.Errorf("order = %v, want sorted by name", files)
	}
}
