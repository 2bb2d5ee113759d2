// Package resolve implements the TokenResolver: a serializing queue in
// front of a slow network oracle, with a cheap regex fast path.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/tokenpulse/tokenpulse/internal/cache"
	"github.com/tokenpulse/tokenpulse/internal/model"
	"github.com/tokenpulse/tokenpulse/internal/retry"
)

var symbolPattern = regexp.MustCompile(`\$([A-Z]{2,5})\b`)

// Oracle is the slow, rate-limited external symbol-identification service.
// Out of scope per SPEC_FULL.md §1 to implement for real; callers inject a
// production client or a test double.
type Oracle interface {
	Identify(ctx context.Context, prompt string) (symbol string, err error)
}

// SymbolStore is the narrow interface the resolver needs to persist a
// resolved symbol back onto its owning Post.
type SymbolStore interface {
	UpdatePostSymbol(postID int64, symbol string) error
}

// Resolver serializes calls to Oracle behind a global concurrency-1
// semaphore, since the oracle rate-limits aggressively.
type Resolver struct {
	oracle   Oracle
	store    SymbolStore
	sem      chan struct{}
	memo     *cache.Generic[string]
	commentK int
}

func New(oracle Oracle, store SymbolStore, memo *cache.Generic[string], commentsConsidered int) *Resolver {
	return &Resolver{
		oracle:   oracle,
		store:    store,
		sem:      make(chan struct{}, 1),
		memo:     memo,
		commentK: commentsConsidered,
	}
}

// Submit resolves post asynchronously and, on success, writes the symbol
// back onto the stored Post. It never blocks the caller.
func (r *Resolver) Submit(post model.Post) {
	go func() {
		symbol, ok := r.Resolve(context.Background(), post)
		if !ok {
			return
		}
		if err := r.store.UpdatePostSymbol(post.ID, symbol); err != nil {
			slog.Error("failed to persist resolved symbol", slog.Int64("postID", post.ID), slog.Any("err", err))
		}
	}()
}

// Resolve identifies post's token symbol, memoized by post.ID. Fast path:
// a single unambiguous `$TICKER` match in the title. Slow path: the
// network oracle, gated behind the global semaphore and retried with
// backoff; a symbol-less result is returned (not an error) after retries
// are exhausted, matching spec.md §4.2's "Post remains symbol-less" rule.
func (r *Resolver) Resolve(ctx context.Context, post model.Post) (string, bool) {
	key := fmt.Sprintf("post:%d", post.ID)
	if r.memo != nil {
		if cached, found := r.memo.Get(ctx, key); found {
			if cached == "" {
				return "", false
			}
			return cached, true
		}
	}

	if symbol, ok := fastPathMatch(post.Title); ok {
		r.remember(ctx, key, symbol)
		return symbol, true
	}

	symbol, ok := r.slowPath(ctx, post)
	r.remember(ctx, key, symbol)
	return symbol, ok
}

func (r *Resolver) remember(ctx context.Context, key, symbol string) {
	if r.memo != nil {
		r.memo.Set(ctx, key, symbol, 0)
	}
}

func fastPathMatch(title string) (string, bool) {
	matches := symbolPattern.FindAllStringSubmatch(title, -1)
	distinct := map[string]struct{}{}
	for _, m := range matches {
		distinct[strings.ToUpper(m[1])] = struct{}{}
	}
	if len(distinct) != 1 {
		return "", false
	}
	for sym := range distinct {
		return sym, true
	}
	return "", false
}

func (r *Resolver) slowPath(ctx context.Context, post model.Post) (string, bool) {
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return "", false
	}
	defer func() { <-r.sem }()

	k := r.commentK
	if k > len(post.Comments) {
		k = len(post.Comments)
	}
	prompt := post.Title + "\n" + post.Content + "\n" + strings.Join(post.Comments[:k], "\n")

	var symbol string
	err := retry.Do(ctx, nil, func() error {
		var innerErr error
		symbol, innerErr = r.oracle.Identify(ctx, prompt)
		return innerErr
	})
	if err != nil {
		slog.Debug("oracle resolution failed after retries", slog.Int64("postID", post.ID), slog.Any("err", err))
		return "", false
	}
	if strings.TrimSpace(symbol) == "" {
		return "", false
	}
	return strings.ToUpper(strings.TrimSpace(symbol)), true
}
