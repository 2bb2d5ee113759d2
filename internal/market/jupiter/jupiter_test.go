package jupiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenpulse/tokenpulse/internal/apperrors"
)

func newServer(t *testing.T, tokenListBody, priceBody string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/tokens/v1/all"):
			w.Write([]byte(tokenListBody))
		case strings.Contains(r.URL.Path, "/price/v2"):
			w.Write([]byte(priceBody))
		default:
			t.Fatalf("unexpected request to %s", r.URL.Path)
		}
	}))
}

func TestLookup_JoinsTokenListAndPrice(t *testing.T) {
	srv := newServer(t,
		`[{"symbol":"BONK","address":"Addr1","decimals":5,"logoURI":"logo.png","tags":["meme"]}]`,
		`{"data":{"Addr1":{"price":"0.00002"}}}`,
	)
	defer srv.Close()

	p := New(srv.URL, nil)
	info, err := p.Lookup(context.Background(), "BONK")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "solana", info.Chain)
	require.NotNil(t, info.Address)
	assert.Equal(t, "Addr1", *info.Address)
	require.NotNil(t, info.Decimals)
	assert.Equal(t, 5, *info.Decimals)
	require.NotNil(t, info.LogoURL)
	assert.Equal(t, "logo.png", *info.LogoURL)
	assert.Equal(t, []string{"meme"}, info.Tags)
	require.NotNil(t, info.PriceUsd)
	assert.Equal(t, 0.00002, *info.PriceUsd)
}

func TestLookup_SymbolNotInTokenListReturnsNil(t *testing.T) {
	srv := newServer(t, `[{"symbol":"DOGE","address":"a"}]`, `{"data":{}}`)
	defer srv.Close()

	p := New(srv.URL, nil)
	info, err := p.Lookup(context.Background(), "BONK")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestLookup_PriceLookupFailureStillReturnsOtherFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/tokens/v1/all") {
			w.Write([]byte(`[{"symbol":"BONK","address":"Addr1","decimals":5}]`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := New(srv.URL, nil)
	info, err := p.Lookup(context.Background(), "BONK")
	require.NoError(t, err)
	require.NotNil(t, info)
	require.NotNil(t, info.Address)
	assert.Nil(t, info.PriceUsd, "a failed price fetch must not fail the whole lookup")
}

func TestLookup_RateLimitOnTokenListPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := New(srv.URL, nil)
	_, err := p.Lookup(context.Background(), "BONK")
	require.Error(t, err)
	assert.True(t, apperrors.IsRateLimit(err))
}
