// Package jupiter adapts Jupiter's token-list/price registry into a
// market.Provider: the second, fill-the-gaps link in the enrichment chain.
package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tokenpulse/tokenpulse/internal/apperrors"
	"github.com/tokenpulse/tokenpulse/internal/market"
	"github.com/tokenpulse/tokenpulse/internal/telemetry/tracker"
)

// Provider queries Jupiter's token list and price-v2 endpoints, grounded
// on the teacher's internal/clients/jupiter.Client (GetCoinInfo/
// GetCoinPrices), adapted from mint-address to symbol lookups.
type Provider struct {
	httpClient *http.Client
	baseURL    string
	tracker    *tracker.APICallTracker
}

func New(baseURL string, tr *tracker.APICallTracker) *Provider {
	return &Provider{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		tracker:    tr,
	}
}

func (p *Provider) Name() string { return "jupiter" }

type tokenListEntry struct {
	Symbol   string   `json:"symbol"`
	Address  string   `json:"address"`
	Decimals int      `json:"decimals"`
	LogoURI  string   `json:"logoURI"`
	Tags     []string `json:"tags"`
}

type priceResponse struct {
	Data map[string]struct {
		Price string `json:"price"`
	} `json:"data"`
}

func (p *Provider) Lookup(ctx context.Context, symbol string) (*market.PartialInfo, error) {
	entry, err := p.findInTokenList(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	info := &market.PartialInfo{Chain: "solana"}
	addr := entry.Address
	info.Address = &addr
	if entry.Decimals != 0 {
		d := entry.Decimals
		info.Decimals = &d
	}
	if entry.LogoURI != "" {
		logo := entry.LogoURI
		info.LogoURL = &logo
	}
	if len(entry.Tags) > 0 {
		info.Tags = entry.Tags
	}

	if price, ok := p.fetchPrice(ctx, entry.Address); ok {
		info.PriceUsd = &price
	}
	return info, nil
}

func (p *Provider) findInTokenList(ctx context.Context, symbol string) (*tokenListEntry, error) {
	endpoint := fmt.Sprintf("%s/tokens/v1/all", p.baseURL)
	finish := func(error) {}
	if p.tracker != nil {
		finish = p.tracker.TrackCall(ctx, "jupiter", "/tokens/v1/all")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		finish(err)
		return nil, apperrors.NewTransientError("build jupiter request", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		finish(err)
		return nil, apperrors.NewTransientError("jupiter request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		finish(nil)
		return nil, apperrors.NewRateLimitError("jupiter rate limited")
	}
	if resp.StatusCode >= 500 {
		err := fmt.Errorf("jupiter status %d", resp.StatusCode)
		finish(err)
		return nil, apperrors.NewTransientError("jupiter server error", err)
	}
	if resp.StatusCode != http.StatusOK {
		finish(nil)
		return nil, nil
	}

	var entries []tokenListEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		finish(err)
		return nil, apperrors.NewParseError("jupiter decode", err)
	}
	finish(nil)

	for _, e := range entries {
		if e.Symbol == symbol {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

func (p *Provider) fetchPrice(ctx context.Context, address string) (float64, bool) {
	endpoint := fmt.Sprintf("%s/price/v2?ids=%s", p.baseURL, address)
	finish := func(error) {}
	if p.tracker != nil {
		finish = p.tracker.TrackCall(ctx, "jupiter", "/price/v2")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		finish(err)
		return 0, false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		finish(err)
		return 0, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		finish(nil)
		return 0, false
	}

	var parsed priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		finish(err)
		return 0, false
	}
	finish(nil)

	entry, ok := parsed.Data[address]
	if !ok {
		return 0, false
	}
	price, err := strconv.ParseFloat(entry.Price, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

var _ market.Provider = (*Provider)(nil)
