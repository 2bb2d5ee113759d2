// Package market implements the MarketEnricher: an ordered, field-by-field
// fallback chain of on-chain providers merged into a CoinEntry per symbol.
package market

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tokenpulse/tokenpulse/internal/apperrors"
	"github.com/tokenpulse/tokenpulse/internal/model"
	"github.com/tokenpulse/tokenpulse/internal/retry"
)

// PartialInfo carries whatever subset of on-chain fields a Provider could
// find for a symbol. Zero-value fields are treated as "not supplied", not
// as real zeros, which is why the pointer/slice fields are used throughout.
type PartialInfo struct {
	Address     *string
	Chain       string
	PriceUsd    *float64
	Change24h   *float64
	LogoURL     *string
	Decimals    *int
	Tags        []string
	Description *string
}

// Provider is one link in the ordered on-chain enrichment chain (for
// example: an aggregator, a token-list registry, a metadata API).
type Provider interface {
	Name() string
	Lookup(ctx context.Context, symbol string) (*PartialInfo, error)
}

// Limits bounds one enricher run.
type Limits struct {
	Parallelism      int
	PerCallTimeout   time.Duration
	ProviderCooldown time.Duration
}

// Enricher attempts an ordered provider chain per symbol, merging results
// field-by-field and preferring the earliest provider with a non-empty
// value, per spec.md §4.4.
type Enricher struct {
	providers []Provider
	limits    Limits

	mu       sync.Mutex
	coolDown map[string]time.Time
}

func New(providers []Provider, limits Limits) *Enricher {
	if limits.Parallelism <= 0 {
		limits.Parallelism = 4
	}
	if limits.PerCallTimeout <= 0 {
		limits.PerCallTimeout = 10 * time.Second
	}
	if limits.ProviderCooldown <= 0 {
		limits.ProviderCooldown = 30 * time.Second
	}
	return &Enricher{
		providers: providers,
		limits:    limits,
		coolDown:  make(map[string]time.Time),
	}
}

// Run enriches every TokenRecord into a CoinEntry, with parallelism bounded
// by Limits.Parallelism. A CoinEntry is emitted for every TokenRecord, even
// if every provider missed (spec.md §4.4.3 / §8 Enrichment coverage).
func (e *Enricher) Run(ctx context.Context, records []model.TokenRecord) []model.CoinEntry {
	entries := make([]model.CoinEntry, len(records))
	sem := make(chan struct{}, e.limits.Parallelism)
	var wg sync.WaitGroup

	for i, rec := range records {
		wg.Add(1)
		go func(i int, rec model.TokenRecord) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			entries[i] = e.enrichOne(ctx, rec)
		}(i, rec)
	}
	wg.Wait()
	return entries
}

func (e *Enricher) enrichOne(ctx context.Context, rec model.TokenRecord) model.CoinEntry {
	entry := model.FromTokenRecord(rec)
	// UpdatedAt tracks the latest contributing post's timestamp rather than
	// wall-clock time, so coin-data.json stays bitwise-identical across runs
	// for identical inputs (spec.md §4.4 Determinism).
	if entry.LatestPost != nil {
		entry.UpdatedAt = entry.LatestPost.Timestamp
	}

	for _, p := range e.providers {
		if ctx.Err() != nil {
			break
		}
		if e.onCooldown(p.Name()) {
			continue
		}

		info, err := e.callWithRetry(ctx, p, rec.Symbol)
		if err != nil {
			if apperrors.IsRateLimit(err) {
				e.setCooldown(p.Name())
			}
			slog.Debug("provider lookup failed", slog.String("provider", p.Name()), slog.String("symbol", rec.Symbol), slog.Any("err", err))
			continue
		}
		if info == nil {
			continue
		}
		mergePreferEarliest(&entry, info)
	}
	return entry
}

func (e *Enricher) callWithRetry(ctx context.Context, p Provider, symbol string) (*PartialInfo, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.limits.PerCallTimeout)
	defer cancel()

	var info *PartialInfo
	err := retry.Do(callCtx, func(err error) bool { return !apperrors.IsRateLimit(err) }, func() error {
		var innerErr error
		info, innerErr = p.Lookup(callCtx, symbol)
		return innerErr
	})
	return info, err
}

func (e *Enricher) onCooldown(provider string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	until, ok := e.coolDown[provider]
	return ok && timeNow().Before(until)
}

func (e *Enricher) setCooldown(provider string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.coolDown[provider] = timeNow().Add(e.limits.ProviderCooldown)
}

// mergePreferEarliest copies every non-empty field from info into entry,
// but only for fields entry does not already carry — the provider chain is
// walked in order, so the first non-empty value wins. Chain is the one
// exception: any provider that reports a non-empty Chain overwrites it.
func mergePreferEarliest(entry *model.CoinEntry, info *PartialInfo) {
	if entry.Address == nil && info.Address != nil {
		entry.Address = info.Address
	}
	if info.Chain != "" {
		entry.Chain = info.Chain
	}
	if entry.PriceUsd == nil && info.PriceUsd != nil {
		entry.PriceUsd = info.PriceUsd
	}
	if entry.Change24h == nil && info.Change24h != nil {
		entry.Change24h = info.Change24h
	}
	if entry.LogoURL == nil && info.LogoURL != nil {
		entry.LogoURL = info.LogoURL
	}
	if entry.Decimals == nil && info.Decimals != nil {
		entry.Decimals = info.Decimals
	}
	if len(entry.Tags) == 0 && len(info.Tags) > 0 {
		entry.Tags = info.Tags
	}
	if entry.Description == nil && info.Description != nil {
		entry.Description = info.Description
	}
}

// timeNow is a seam so provider cool-down clocks stay mockable in tests without
// reaching for a wall-clock dependency injection framework.
var timeNow = time.Now
