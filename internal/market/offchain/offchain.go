// Package offchain adapts a metadata-URI fetcher (IPFS/Arweave/HTTP gateway
// fallback) into a market.Provider: the third, logo/description-filling
// link in the enrichment chain.
package offchain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tokenpulse/tokenpulse/internal/apperrors"
	"github.com/tokenpulse/tokenpulse/internal/market"
	"github.com/tokenpulse/tokenpulse/internal/telemetry/tracker"
)

// SymbolRegistry resolves a symbol to the metadata URI offchain should
// fetch; an on-chain token-list lookup in production, a static map in
// tests. Out of scope to implement for real (no Non-goal names it
// explicitly, but nothing else in this spec needs a general symbol->URI
// directory either, so it is injected rather than built).
type SymbolRegistry interface {
	MetadataURI(ctx context.Context, symbol string) (string, bool)
}

// Provider fetches off-chain JSON metadata (description, logo, tags) for a
// symbol's URI, grounded on the teacher's
// internal/service/coin/enrich.go fetchOffChainMetadataWithFallback /
// resolveIPFSGateway gateway-fallback chain.
type Provider struct {
	httpClient *http.Client
	registry   SymbolRegistry
	tracker    *tracker.APICallTracker
}

func New(registry SymbolRegistry, tr *tracker.APICallTracker) *Provider {
	return &Provider{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		registry:   registry,
		tracker:    tr,
	}
}

func (p *Provider) Name() string { return "offchain" }

var ipfsGateways = []string{
	"https://ipfs.io/ipfs/",
	"https://dweb.link/ipfs/",
	"https://cloudflare-ipfs.com/ipfs/",
}

var arweaveGateways = []string{
	"https://arweave.net/",
}

type metadataPayload struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	Tags        []string `json:"tags"`
}

func (p *Provider) Lookup(ctx context.Context, symbol string) (*market.PartialInfo, error) {
	uri, ok := p.registry.MetadataURI(ctx, symbol)
	if !ok || uri == "" {
		return nil, nil
	}

	payload, err := p.fetchWithFallback(ctx, uri)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}

	info := &market.PartialInfo{}
	if payload.Image != "" {
		logo := payload.Image
		info.LogoURL = &logo
	}
	if payload.Description != "" {
		desc := payload.Description
		info.Description = &desc
	}
	if len(payload.Tags) > 0 {
		info.Tags = payload.Tags
	}
	return info, nil
}

func (p *Provider) fetchWithFallback(ctx context.Context, uri string) (*metadataPayload, error) {
	uri = strings.TrimSpace(uri)
	switch {
	case strings.HasPrefix(uri, "ipfs://"):
		return p.fetchAcrossGateways(ctx, ipfsGateways, strings.TrimPrefix(uri, "ipfs://"))
	case strings.HasPrefix(uri, "ar://"):
		return p.fetchAcrossGateways(ctx, arweaveGateways, strings.TrimPrefix(uri, "ar://"))
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return p.fetchOne(ctx, uri)
	default:
		return nil, nil
	}
}

func (p *Provider) fetchAcrossGateways(ctx context.Context, gateways []string, id string) (*metadataPayload, error) {
	var lastErr error
	for _, gw := range gateways {
		payload, err := p.fetchOne(ctx, gw+id)
		if err == nil {
			return payload, nil
		}
		if apperrors.IsRateLimit(err) {
			return nil, err
		}
		lastErr = err
	}
	if lastErr == nil {
		return nil, nil
	}
	return nil, apperrors.NewTransientError("all gateways failed", lastErr)
}

func (p *Provider) fetchOne(ctx context.Context, url string) (*metadataPayload, error) {
	finish := func(error) {}
	if p.tracker != nil {
		finish = p.tracker.TrackCall(ctx, "offchain", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		finish(err)
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		finish(err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		finish(nil)
		return nil, apperrors.NewRateLimitError("offchain gateway rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("status %d for %s", resp.StatusCode, url)
		finish(err)
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, apperrors.NewTransientError("offchain gateway server error", err)
		}
		return nil, err
	}

	var payload metadataPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		finish(err)
		return nil, err
	}
	finish(nil)
	return &payload, nil
}

var _ market.Provider = (*Provider)(nil)
