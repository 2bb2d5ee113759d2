// Package cache provides a small generic cache used to memoize resolver
// results.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/v3/cache"
	"github.com/eko/gocache/v3/store"
)

// Generic is a type-parameterized get/set cache backed by ristretto through
// gocache's generic store adapter.
type Generic[T any] struct {
	cacheManager *cache.Cache[T]
	logPrefix    string
}

// New builds a Generic cache sized for a few hundred thousand short-lived
// entries (resolver memoization keys).
func New[T any](logPrefix string) (*Generic[T], error) {
	ristrettoCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 25,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	ristrettoStore := store.NewRistretto(ristrettoCache)
	return &Generic[T]{
		cacheManager: cache.New[T](ristrettoStore),
		logPrefix:    logPrefix,
	}, nil
}

func (g *Generic[T]) Get(ctx context.Context, key string) (T, bool) {
	val, err := g.cacheManager.Get(ctx, key)
	if err != nil {
		var zero T
		return zero, false
	}
	return val, true
}

func (g *Generic[T]) Set(ctx context.Context, key string, value T, expiration time.Duration) {
	if err := g.cacheManager.Set(ctx, key, value, store.WithExpiration(expiration)); err != nil {
		slog.Warn("cache set failed", slog.String("cache", g.logPrefix), slog.String("key", key), slog.Any("err", err))
	}
}

func (g *Generic[T]) Delete(ctx context.Context, key string) {
	if err := g.cacheManager.Delete(ctx, key); err != nil {
		slog.Warn("cache delete failed", slog.String("cache", g.logPrefix), slog.String("key", key), slog.Any("err", err))
	}
}
