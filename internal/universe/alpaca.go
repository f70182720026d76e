package universe

import (
	"context"
	"fmt"
	"sort"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"barkeep/internal/domain"
)

// Compile-time interface check.
var _ Provider = (*AlpacaProvider)(nil)

// assetLister is the slice of the Alpaca client the provider uses.
type assetLister interface {
	GetAssets(req alpaca.GetAssetsRequest) ([]alpaca.Asset, error)
}

// AlpacaProvider lists active US equities from the Alpaca assets API. With
// TradableOnly set it keeps only assets Alpaca marks tradable.
type AlpacaProvider struct {
	client       assetLister
	TradableOnly bool
}

// NewAlpacaProvider creates a provider using the given Alpaca credentials.
// baseURL overrides the default trading API endpoint when non-empty.
func NewAlpacaProvider(apiKey, apiSecret, baseURL string, tradableOnly bool) *AlpacaProvider {
	opts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if baseURL != "" {
		opts.BaseURL = baseURL
	}
	return &AlpacaProvider{
		client:       alpaca.NewClient(opts),
		TradableOnly: tradableOnly,
	}
}

// Name identifies the universe variant.
func (p *AlpacaProvider) Name() string {
	if p.TradableOnly {
		return "alpaca:tradable"
	}
	return "alpaca:all"
}

// Symbols lists active US equity symbols, sorted.
func (p *AlpacaProvider) Symbols(_ context.Context) ([]string, error) {
	assets, err := p.client.GetAssets(alpaca.GetAssetsRequest{
		Status:     "active",
		AssetClass: "us_equity",
	})
	if err != nil {
		return nil, fmt.Errorf("GetAssets: %w", err)
	}

	seen := make(map[string]struct{}, len(assets))
	symbols := make([]string, 0, len(assets))
	for _, a := range assets {
		if p.TradableOnly && !a.Tradable {
			continue
		}
		sym := domain.NormalizeTicker(a.Symbol)
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}
