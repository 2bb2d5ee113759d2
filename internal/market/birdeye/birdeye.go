// Package birdeye adapts the BirdEye aggregator API into a market.Provider:
// the first, price-and-address-bearing link in the enrichment chain.
package birdeye

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tokenpulse/tokenpulse/internal/apperrors"
	"github.com/tokenpulse/tokenpulse/internal/market"
	"github.com/tokenpulse/tokenpulse/internal/telemetry/tracker"
)

// Provider queries BirdEye's token-trending/search surface for a symbol's
// address and current price, grounded on the teacher's
// internal/clients/birdeye.Client.GetTrendingTokens/getRequest shape.
type Provider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	tracker    *tracker.APICallTracker
}

func New(baseURL, apiKey string, tr *tracker.APICallTracker) *Provider {
	return &Provider{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		tracker:    tr,
	}
}

func (p *Provider) Name() string { return "birdeye" }

type searchResponse struct {
	Data struct {
		Items []struct {
			Symbol   string  `json:"symbol"`
			Address  string  `json:"address"`
			Price    float64 `json:"price"`
			Change24 float64 `json:"priceChange24hPercent"`
			LogoURI  string  `json:"logoURI"`
			Decimals int     `json:"decimals"`
		} `json:"items"`
	} `json:"data"`
	Success bool `json:"success"`
}

func (p *Provider) Lookup(ctx context.Context, symbol string) (*market.PartialInfo, error) {
	if p == nil || p.apiKey == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/defi/v3/search?keyword=%s", p.baseURL, url.QueryEscape(symbol))
	finish := func(error) {}
	if p.tracker != nil {
		finish = p.tracker.TrackCall(ctx, "birdeye", "/defi/v3/search")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		finish(err)
		return nil, apperrors.NewTransientError("build birdeye request", err)
	}
	req.Header.Set("X-API-KEY", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		finish(err)
		return nil, apperrors.NewTransientError("birdeye request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		finish(nil)
		return nil, apperrors.NewRateLimitError("birdeye rate limited")
	}
	if resp.StatusCode >= 500 {
		err := fmt.Errorf("birdeye status %d", resp.StatusCode)
		finish(err)
		return nil, apperrors.NewTransientError("birdeye server error", err)
	}
	if resp.StatusCode != http.StatusOK {
		finish(nil)
		return nil, nil
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		finish(err)
		return nil, apperrors.NewParseError("birdeye decode", err)
	}
	finish(nil)

	for _, item := range parsed.Data.Items {
		if item.Symbol != symbol {
			continue
		}
		info := &market.PartialInfo{Chain: "solana"}
		if item.Address != "" {
			addr := item.Address
			info.Address = &addr
		}
		if item.Price != 0 {
			price := item.Price
			info.PriceUsd = &price
		}
		if item.Change24 != 0 {
			change := item.Change24
			info.Change24h = &change
		}
		if item.LogoURI != "" {
			logo := item.LogoURI
			info.LogoURL = &logo
		}
		if item.Decimals != 0 {
			decimals := item.Decimals
			info.Decimals = &decimals
		}
		return info, nil
	}
	return nil, nil
}

var _ market.Provider = (*Provider)(nil)
