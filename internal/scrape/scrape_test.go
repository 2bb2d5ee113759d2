package scrape

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenpulse/tokenpulse/internal/eventbus"
	"github.com/tokenpulse/tokenpulse/internal/fetcher"
	"github.com/tokenpulse/tokenpulse/internal/model"
)

type fakeFetcher struct{ closed bool }

func (f *fakeFetcher) Navigate(context.Context, string) error        { return nil }
func (f *fakeFetcher) WaitVisible(context.Context, string) error     { return nil }
func (f *fakeFetcher) Click(context.Context, string) error           { return nil }
func (f *fakeFetcher) Nodes(context.Context, string) ([]fetcher.Node, error) {
	return nil, nil
}
func (f *fakeFetcher) TextContent(context.Context, string) (string, error) { return "", nil }
func (f *fakeFetcher) AttributeValue(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeFetcher) Scroll(context.Context, int) error { return nil }
func (f *fakeFetcher) Close() error                      { f.closed = true; return nil }

// pagedWorker serves pages[i] for page i and nothing once the pages run
// out, so a coordinator run terminates cleanly once it drains.
type pagedWorker struct {
	pages [][]Candidate
}

func (w *pagedWorker) FetchListing(ctx context.Context, f fetcher.PageFetcher, page int) ([]Candidate, error) {
	if page >= len(w.pages) {
		return nil, nil
	}
	return w.pages[page], nil
}

func (w *pagedWorker) FetchComments(ctx context.Context, f fetcher.PageFetcher, c Candidate, max int) ([]string, error) {
	return nil, nil
}

func (w *pagedWorker) Scroll(ctx context.Context, f fetcher.PageFetcher) error { return nil }

type memStore struct {
	mu     sync.Mutex
	nextID int64
	posts  []model.Post
}

func (s *memStore) AppendPost(p model.Post) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p.ID = s.nextID
	s.posts = append(s.posts, p)
	return p.ID, nil
}

type memSeen struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemSeen() *memSeen { return &memSeen{seen: map[string]bool{}} }

func (s *memSeen) CheckAndAdd(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[key] {
		return false
	}
	s.seen[key] = true
	return true
}

func source(name string, cands []Candidate) Source {
	return Source{
		Name:   name,
		Worker: &pagedWorker{pages: [][]Candidate{cands}},
		NewFetcher: func(ctx context.Context) fetcher.PageFetcher {
			return &fakeFetcher{}
		},
	}
}

func TestCoordinator_DedupAcrossSources(t *testing.T) {
	// spec.md §8 scenario 2.
	store := &memStore{}
	seen := newMemSeen()
	coord := NewCoordinator(store, seen, nil, nil)

	sources := []Source{
		source("A", []Candidate{{Link: "L", Timestamp: time.Now()}}),
		source("B", []Candidate{{Link: "L", Timestamp: time.Now()}}),
	}

	stats := coord.Run(context.Background(), sources, time.Hour, time.Minute, Limits{MaxConcurrentSources: 2, MaxPagesPerSource: 1})
	assert.Equal(t, 2, stats.PostsScraped, "(A,L) and (B,L) are distinct keys and both must be stored")
	assert.Len(t, store.posts, 2)

	// A second run emitting the same (A, L) must add nothing new.
	store2 := &memStore{}
	coord2 := NewCoordinator(store2, seen, nil, nil)
	rerun := source("A", []Candidate{{Link: "L", Timestamp: time.Now()}})
	coord2.Run(context.Background(), []Source{rerun}, time.Hour, time.Minute, Limits{MaxConcurrentSources: 1, MaxPagesPerSource: 1})
	assert.Empty(t, store2.posts, "a duplicate (A, L) key must not be persisted again")
}

func TestCoordinator_MonotoneIDs(t *testing.T) {
	store := &memStore{}
	seen := newMemSeen()
	coord := NewCoordinator(store, seen, nil, nil)

	cands := []Candidate{
		{Link: "L1", Timestamp: time.Now()},
		{Link: "L2", Timestamp: time.Now()},
		{Link: "L3", Timestamp: time.Now()},
	}
	coord.Run(context.Background(), []Source{source("A", cands)}, time.Hour, time.Minute, Limits{MaxConcurrentSources: 1, MaxPagesPerSource: 1})

	require.Len(t, store.posts, 3)
	var last int64
	for _, p := range store.posts {
		assert.Greater(t, p.ID, last)
		last = p.ID
	}
}

func TestCoordinator_CutoffAgeStopsSource(t *testing.T) {
	store := &memStore{}
	seen := newMemSeen()
	coord := NewCoordinator(store, seen, nil, nil)

	old := time.Now().Add(-48 * time.Hour)
	worker := &pagedWorker{pages: [][]Candidate{
		{{Link: "old1", Timestamp: old}},
		{{Link: "shouldnotreach", Timestamp: time.Now()}},
	}}
	src := Source{Name: "A", Worker: worker, NewFetcher: func(ctx context.Context) fetcher.PageFetcher { return &fakeFetcher{} }}

	coord.Run(context.Background(), []Source{src}, 24*time.Hour, time.Minute, Limits{MaxConcurrentSources: 1, MaxPagesPerSource: 5})

	require.Len(t, store.posts, 1)
	assert.Equal(t, "old1", store.posts[0].Link, "a page entirely older than cutoffAge must stop the source before the next page")
}

func TestCoordinator_PublishesThreadUpdatePerSource(t *testing.T) {
	// spec.md §4.6/§6: per-source scrape progress must be broadcast as
	// threadUpdate events, tagged with the source that produced them.
	store := &memStore{}
	seen := newMemSeen()
	bus := eventbus.New()
	sub := bus.Subscribe()
	coord := NewCoordinator(store, seen, nil, bus)

	coord.Run(context.Background(), []Source{source("A", []Candidate{{Link: "L", Timestamp: time.Now()}})}, time.Hour, time.Minute, Limits{MaxConcurrentSources: 1, MaxPagesPerSource: 1})

	var sawThreadUpdateForA bool
drain:
	for {
		select {
		case ev := <-sub.Events:
			if tu, ok := ev.(eventbus.ThreadUpdate); ok && tu.SourceTag == "A" {
				sawThreadUpdateForA = true
			}
		default:
			break drain
		}
	}
	assert.True(t, sawThreadUpdateForA, "the coordinator must publish at least one threadUpdate tagged with the source name")
}

func TestCoordinator_FetcherClosedAfterSource(t *testing.T) {
	store := &memStore{}
	seen := newMemSeen()
	coord := NewCoordinator(store, seen, nil, nil)

	f := &fakeFetcher{}
	src := Source{
		Name:       "A",
		Worker:     &pagedWorker{pages: [][]Candidate{{{Link: "L", Timestamp: time.Now()}}}},
		NewFetcher: func(ctx context.Context) fetcher.PageFetcher { return f },
	}
	coord.Run(context.Background(), []Source{src}, time.Hour, time.Minute, Limits{MaxConcurrentSources: 1, MaxPagesPerSource: 1})
	assert.True(t, f.closed)
}
