package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

// Three daily bars for early January 2024, with the middle bar null as
// the chart API reports for halted sessions.
const chartBody = `{
  "chart": {
    "result": [
      {
        "timestamp": [1704153600, 1704240000, 1704326400],
        "indicators": {
          "quote": [
            {
              "open":   [185.0, null, 186.0],
              "high":   [186.5, null, 187.25],
              "low":    [184.0, null, 185.0],
              "close":  [185.5, null, 186.5],
              "volume": [50000000, null, null]
            }
          ]
        }
      }
    ],
    "error": null
  }
}`

func TestYahooFetchRows(t *testing.T) {
	var gotPath, gotAgent string
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	p := NewYahooProvider(5 * time.Second)
	p.BaseURL = srv.URL
	p.now = func() time.Time { return time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC) }

	rows, err := p.FetchRows(context.Background(), "AAPL", 30)
	if err != nil {
		t.Fatalf("FetchRows: %v", err)
	}

	if gotPath != "/v8/finance/chart/AAPL" {
		t.Errorf("path = %q, want /v8/finance/chart/AAPL", gotPath)
	}
	if got := gotQuery["interval"]; len(got) != 1 || got[0] != "1d" {
		t.Errorf("interval = %v, want [1d]", got)
	}
	if len(gotQuery["period1"]) != 1 || len(gotQuery["period2"]) != 1 {
		t.Errorf("query missing period1/period2: %v", gotQuery)
	}
	if gotAgent == "" {
		t.Error("request sent without a User-Agent")
	}

	// The null middle bar is skipped; the last bar has a null volume,
	// which becomes an empty cell.
	want := [][]string{
		{"2024-01-02", "185", "186.5", "184", "185.5", "50000000"},
		{"2024-01-04", "186", "187.25", "185", "186.5", ""},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

func TestYahooFetchRowsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewYahooProvider(5 * time.Second)
	p.BaseURL = srv.URL

	_, err := p.FetchRows(context.Background(), "AAPL", 1)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("FetchRows = %v, want ErrRateLimited", err)
	}
}

func TestYahooFetchRowsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewYahooProvider(5 * time.Second)
	p.BaseURL = srv.URL

	_, err := p.FetchRows(context.Background(), "AAPL", 1)
	if err == nil {
		t.Fatal("FetchRows should fail on a 500 response")
	}
	if errors.Is(err, ErrRateLimited) {
		t.Errorf("FetchRows = %v, should not be ErrRateLimited", err)
	}
}

func TestYahooFetchRowsChartError(t *testing.T) {
	body := `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	p := NewYahooProvider(5 * time.Second)
	p.BaseURL = srv.URL

	_, err := p.FetchRows(context.Background(), "NOSUCH", 1)
	if err == nil {
		t.Fatal("FetchRows should surface the chart error")
	}
}

func TestYahooName(t *testing.T) {
	p := NewYahooProvider(5 * time.Second)
	if got := p.Name(); got != "yahoo" {
		t.Errorf("Name = %q, want yahoo", got)
	}
}
