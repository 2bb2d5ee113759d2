// Package scrape implements the ScrapeCoordinator: bounded-concurrency
// fan-out over source workers, shared dedup, and persisted append.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tokenpulse/tokenpulse/internal/eventbus"
	"github.com/tokenpulse/tokenpulse/internal/fetcher"
	"github.com/tokenpulse/tokenpulse/internal/model"
	"github.com/tokenpulse/tokenpulse/internal/retry"
)

// Candidate is a raw post parsed off a listing page, before an ID is
// assigned and before comments are fetched.
type Candidate struct {
	Platform     string
	Title        string
	Content      string
	Author       string
	Timestamp    time.Time
	PostAge      string
	Upvotes      int
	CommentCount int
	Link         string
	HasComments  bool
}

// Worker scrapes one source. Implementations are injected per source kind;
// the coordinator is agnostic to what a "source" actually is.
type Worker interface {
	// FetchListing returns the next page of candidates, or io.EOF-like
	// behavior communicated via an empty slice once pages are exhausted.
	FetchListing(ctx context.Context, f fetcher.PageFetcher, page int) ([]Candidate, error)
	// FetchComments returns up to max comment bodies for a candidate.
	FetchComments(ctx context.Context, f fetcher.PageFetcher, c Candidate, max int) ([]string, error)
	// Scroll advances the listing page so FetchListing returns new items.
	Scroll(ctx context.Context, f fetcher.PageFetcher) error
}

// Source pairs a name with the Worker that scrapes it and the PageFetcher
// factory used to give that worker an isolated browser tab.
type Source struct {
	Name       string
	Worker     Worker
	NewFetcher func(ctx context.Context) fetcher.PageFetcher
}

// Limits bounds one coordinator run.
type Limits struct {
	MaxConcurrentSources int
	MaxPagesPerSource    int
	CommentsPerPost      int
	ScrollsPerPage       int
}

// TokenResolver is the narrow interface the coordinator needs from
// internal/resolve to submit a Post for asynchronous symbol identification.
type TokenResolver interface {
	Submit(post model.Post)
}

// PostStore is the narrow interface the coordinator needs from
// internal/store to persist posts. AppendPost assigns the ID itself,
// atomically with the append, so ID order can never invert append order
// under concurrent sources.
type PostStore interface {
	AppendPost(p model.Post) (int64, error)
}

// SeenSet is the narrow dedup interface the coordinator needs.
type SeenSet interface {
	CheckAndAdd(key string) bool
}

// Stats summarizes one coordinator run.
type Stats struct {
	PostsScraped  int
	SourcesFailed int
}

// Coordinator runs N source workers in parallel under a shared dedup set
// and append-only store.
type Coordinator struct {
	store    PostStore
	seen     SeenSet
	resolver TokenResolver
	bus      *eventbus.Bus
}

// NewCoordinator builds a Coordinator. bus may be nil, in which case
// per-source progress is not broadcast as ThreadUpdate events.
func NewCoordinator(store PostStore, seen SeenSet, resolver TokenResolver, bus *eventbus.Bus) *Coordinator {
	return &Coordinator{store: store, seen: seen, resolver: resolver, bus: bus}
}

// publishThread broadcasts a per-source log line as a ThreadUpdate event,
// per spec.md §4.6/§6.
func (c *Coordinator) publishThread(sourceTag, line string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(eventbus.ThreadUpdate{SourceTag: sourceTag, Line: line})
}

// Run launches one task per source, bounded by limits.MaxConcurrentSources,
// each terminating on cutoffAge, wallBudget, page limit, or ctx
// cancellation.
func (c *Coordinator) Run(ctx context.Context, sources []Source, cutoffAge, wallBudget time.Duration, limits Limits) Stats {
	sem := make(chan struct{}, max(1, limits.MaxConcurrentSources))
	var wg sync.WaitGroup
	var mu sync.Mutex
	stats := Stats{}

	runCtx, cancel := context.WithTimeout(ctx, wallBudget)
	defer cancel()

	for _, src := range sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			n, err := c.runSource(runCtx, src, cutoffAge, limits)
			mu.Lock()
			stats.PostsScraped += n
			if err != nil {
				stats.SourcesFailed++
				slog.Error("source task failed", slog.String("source", src.Name), slog.Any("err", err))
			}
			mu.Unlock()
		}(src)
	}

	wg.Wait()
	return stats
}

func (c *Coordinator) runSource(ctx context.Context, src Source, cutoffAge time.Duration, limits Limits) (int, error) {
	f := src.NewFetcher(ctx)
	defer f.Close()

	c.publishThread(src.Name, fmt.Sprintf("starting scrape, up to %d page(s)", max(1, limits.MaxPagesPerSource)))

	count := 0
	for page := 0; page < max(1, limits.MaxPagesPerSource); page++ {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}

		var candidates []Candidate
		err := retry.Do(ctx, nil, func() error {
			var innerErr error
			candidates, innerErr = src.Worker.FetchListing(ctx, f, page)
			return innerErr
		})
		if err != nil {
			c.publishThread(src.Name, fmt.Sprintf("page %d: fetch failed: %v", page, err))
			return count, err
		}
		if len(candidates) == 0 {
			break
		}
		c.publishThread(src.Name, fmt.Sprintf("page %d: %d candidate(s)", page, len(candidates)))

		allOld := true
		for _, cand := range candidates {
			if time.Since(cand.Timestamp) <= cutoffAge {
				allOld = false
			}
			if c.handleCandidate(ctx, src, f, cand, limits) {
				count++
			}
		}
		if allOld {
			break
		}

		for i := 0; i < limits.ScrollsPerPage; i++ {
			if err := src.Worker.Scroll(ctx, f); err != nil {
				break
			}
		}
	}
	c.publishThread(src.Name, fmt.Sprintf("finished: %d post(s) stored", count))
	return count, nil
}

func (c *Coordinator) handleCandidate(ctx context.Context, src Source, f fetcher.PageFetcher, cand Candidate, limits Limits) bool {
	key := src.Name + "\x00" + cand.Link
	if !c.seen.CheckAndAdd(key) {
		return false
	}

	var comments []string
	if cand.HasComments {
		_ = retry.Do(ctx, nil, func() error {
			var err error
			comments, err = src.Worker.FetchComments(ctx, f, cand, limits.CommentsPerPost)
			return err
		})
	}

	post := model.Post{
		Source:       src.Name,
		Platform:     cand.Platform,
		Title:        cand.Title,
		Content:      cand.Content,
		Author:       cand.Author,
		Timestamp:    cand.Timestamp,
		PostAge:      cand.PostAge,
		Upvotes:      cand.Upvotes,
		CommentCount: cand.CommentCount,
		Comments:     comments,
		Link:         cand.Link,
	}

	var id int64
	err := retry.Do(ctx, nil, func() error {
		var innerErr error
		id, innerErr = c.store.AppendPost(post)
		return innerErr
	})
	if err != nil {
		slog.Error("dropping post after retries exhausted", slog.String("link", post.Link), slog.Any("err", err))
		return false
	}
	post.ID = id

	if c.resolver != nil {
		c.resolver.Submit(post)
	}
	return true
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
