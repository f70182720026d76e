package download

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"barkeep/internal/domain"
)

// Provider fetches raw daily rows for one symbol. Rows arrive in the
// canonical Date,Open,High,Low,Close,Volume order and are validated exactly
// like CSV rows downstream. Implementations signal a remote rate limit with
// ErrRateLimited; any other error is terminal for the symbol.
type Provider interface {
	Name() string
	FetchRows(ctx context.Context, symbol string, lookbackYears int) ([][]string, error)
}

// YahooProvider pulls daily bars from the Yahoo Finance v8 chart API.
type YahooProvider struct {
	// BaseURL without a trailing slash; tests point it at a local server.
	BaseURL string

	client *http.Client
	now    func() time.Time
}

// NewYahooProvider creates a provider with a bounded-timeout HTTP client. A
// request that neither succeeds nor returns a rate-limit status within the
// timeout is a transport failure and is not retried.
func NewYahooProvider(timeout time.Duration) *YahooProvider {
	return &YahooProvider{
		BaseURL: "https://query1.finance.yahoo.com",
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

// Name identifies the provider in series provenance ("api:yahoo").
func (p *YahooProvider) Name() string { return "yahoo" }

// chartResponse mirrors the slice of the v8 chart payload we consume.
// Value arrays use pointers because Yahoo emits null for halted sessions.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchRows requests the daily chart for the lookback window ending now and
// flattens it into raw rows. Null bars (no session data) are skipped.
func (p *YahooProvider) FetchRows(ctx context.Context, symbol string, lookbackYears int) ([][]string, error) {
	end := p.now()
	start := end.AddDate(-lookbackYears, 0, 0)

	u := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		p.BaseURL, url.PathEscape(symbol), start.Unix(), end.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d", symbol, resp.StatusCode)
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, fmt.Errorf("decoding chart for %s: %w", symbol, err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("%s: chart error %s: %s", symbol, chart.Chart.Error.Code, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("%s: empty chart result", symbol)
	}

	res := chart.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%s: chart result has no quote data", symbol)
	}
	quote := res.Indicators.Quote[0]

	rows := make([][]string, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		open, ok := val(quote.Open, i)
		if !ok {
			continue
		}
		high, ok := val(quote.High, i)
		if !ok {
			continue
		}
		low, ok := val(quote.Low, i)
		if !ok {
			continue
		}
		closePx, ok := val(quote.Close, i)
		if !ok {
			continue
		}

		volume := ""
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = strconv.FormatInt(*quote.Volume[i], 10)
		}

		rows = append(rows, []string{
			time.Unix(ts, 0).UTC().Format(domain.DateLayout),
			formatPrice(open),
			formatPrice(high),
			formatPrice(low),
			formatPrice(closePx),
			volume,
		})
	}
	return rows, nil
}

// val fetches a possibly-null chart value.
func val(arr []*float64, i int) (float64, bool) {
	if i >= len(arr) || arr[i] == nil {
		return 0, false
	}
	return *arr[i], true
}

// formatPrice renders a price with the shortest round-tripping decimal form.
func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
