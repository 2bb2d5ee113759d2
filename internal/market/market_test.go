package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenpulse/tokenpulse/internal/apperrors"
	"github.com/tokenpulse/tokenpulse/internal/model"
)

type stubProvider struct {
	name    string
	byToken map[string]*PartialInfo
	err     map[string]error
	calls   map[string]int
}

func newStub(name string) *stubProvider {
	return &stubProvider{name: name, byToken: map[string]*PartialInfo{}, err: map[string]error{}, calls: map[string]int{}}
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Lookup(ctx context.Context, symbol string) (*PartialInfo, error) {
	p.calls[symbol]++
	if err, ok := p.err[symbol]; ok {
		return nil, err
	}
	return p.byToken[symbol], nil
}

func strp(s string) *string   { return &s }
func f64p(f float64) *float64 { return &f }

func TestEnricher_FallbackOrderMergesFieldByField(t *testing.T) {
	// spec.md §8 scenario 3.
	p1 := newStub("p1")
	p1.byToken["BONK"] = &PartialInfo{Address: strp("Xx"), PriceUsd: f64p(0.00002)}

	p2 := newStub("p2")
	p2.byToken["BONK"] = &PartialInfo{LogoURL: strp("u")}

	p3 := newStub("p3")
	p3.byToken["BONK"] = &PartialInfo{Decimals: intp(5), LogoURL: strp("u2")}

	e := New([]Provider{p1, p2, p3}, Limits{})
	entries := e.Run(context.Background(), []model.TokenRecord{{Symbol: "BONK"}})

	require.Len(t, entries, 1)
	entry := entries[0]
	require.NotNil(t, entry.Address)
	assert.Equal(t, "Xx", *entry.Address)
	require.NotNil(t, entry.PriceUsd)
	assert.Equal(t, 0.00002, *entry.PriceUsd)
	require.NotNil(t, entry.LogoURL)
	assert.Equal(t, "u", *entry.LogoURL, "the earliest provider to supply logoUrl wins")
	require.NotNil(t, entry.Decimals)
	assert.Equal(t, 5, *entry.Decimals, "decimals has no earlier supplier, so p3's value is used")
}

func intp(i int) *int { return &i }

func TestEnricher_CoverageEveryRecordProducesAnEntry(t *testing.T) {
	p1 := newStub("p1") // misses everything
	e := New([]Provider{p1}, Limits{})

	records := []model.TokenRecord{{Symbol: "AAA"}, {Symbol: "BBB"}, {Symbol: "CCC"}}
	entries := e.Run(context.Background(), records)

	require.Len(t, entries, len(records))
	symbols := map[string]bool{}
	for _, e := range entries {
		symbols[e.Symbol] = true
		assert.Nil(t, e.Address)
		assert.Nil(t, e.PriceUsd)
	}
	for _, r := range records {
		assert.True(t, symbols[r.Symbol])
	}
}

func TestEnricher_MissingProviderStillYieldsFullCoverage(t *testing.T) {
	// spec.md §8 scenario 6: a disabled provider (no credential) must not
	// break enrichment coverage for symbols it alone would have served.
	p1 := newStub("p1")
	p3 := newStub("p3")
	p3.byToken["ONLYP2"] = nil // p2 is simply absent from the chain

	e := New([]Provider{p1, p3}, Limits{})
	entries := e.Run(context.Background(), []model.TokenRecord{{Symbol: "ONLYP2"}})

	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].Address)
	assert.Nil(t, entries[0].PriceUsd)
}

func TestEnricher_RateLimitSetsProviderCooldown(t *testing.T) {
	rateLimited := newStub("rl")
	rateLimited.err["AAA"] = apperrors.NewRateLimitError("rate limited")
	rateLimited.err["BBB"] = apperrors.NewRateLimitError("rate limited")

	e := New([]Provider{rateLimited}, Limits{Parallelism: 1, ProviderCooldown: time.Hour})

	e.Run(context.Background(), []model.TokenRecord{{Symbol: "AAA"}})
	assert.Equal(t, 1, rateLimited.calls["AAA"])

	e.Run(context.Background(), []model.TokenRecord{{Symbol: "BBB"}})
	assert.Equal(t, 0, rateLimited.calls["BBB"], "a provider on cooldown must be skipped for subsequent symbols")
}

func TestEnricher_DefaultsApplied(t *testing.T) {
	e := New(nil, Limits{})
	assert.Equal(t, 4, e.limits.Parallelism)
	assert.Equal(t, 10*time.Second, e.limits.PerCallTimeout)
	assert.Equal(t, 30*time.Second, e.limits.ProviderCooldown)
}
