// Package supervisor implements the PipelineSupervisor: the Idle/Scraping/
// Processing state machine that sequences the scrape/aggregate/enrich
// stages, debounces file-change-driven re-runs, and guarantees at-most-one
// pipeline in flight.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tokenpulse/tokenpulse/internal/apperrors"
	"github.com/tokenpulse/tokenpulse/internal/eventbus"
	"github.com/tokenpulse/tokenpulse/internal/model"
)

// Scraper runs the scrape stage until cancelled or naturally complete and
// reports how many posts it persisted.
type Scraper interface {
	Run(ctx context.Context) (postsScraped int, err error)
}

// Aggregator runs the sentiment stage over whatever is currently in the
// ScrapeStore.
type Aggregator interface {
	Run(ctx context.Context) (tokenCount int, err error)
}

// Enricher runs the market-enrichment stage over whatever is currently in
// the SentimentStore.
type Enricher interface {
	Run(ctx context.Context) (coinCount int, err error)
}

// Supervisor owns the state machine described in spec.md §4.5. State
// transitions are guarded by a plain mutex (not the teacher's
// single-goroutine-owns-state-via-channel-select idiom) because
// /api/scraper/status must answer synchronously without routing through a
// dedicated goroutine.
type Supervisor struct {
	scraper    Scraper
	aggregator Aggregator
	enricher   Enricher
	bus        *eventbus.Bus

	debounceWindow time.Duration

	mu           sync.Mutex
	state        model.PipelineStateName
	scraperCtx   context.Context
	scraperStop  context.CancelFunc
	pendingRerun bool
	debounceGen  int
}

func New(scraper Scraper, aggregator Aggregator, enricher Enricher, bus *eventbus.Bus, debounceWindow time.Duration) *Supervisor {
	return &Supervisor{
		scraper:        scraper,
		aggregator:     aggregator,
		enricher:       enricher,
		bus:            bus,
		debounceWindow: debounceWindow,
		state:          model.StateIdle,
	}
}

// State reports the current state, safe for concurrent / HTTP-handler use.
func (s *Supervisor) State() model.PipelineStateName {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start launches the scraper stage. It returns a conflict error if a
// pipeline is already in flight, matching the at-most-one discipline.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != model.StateIdle {
		s.mu.Unlock()
		return apperrors.NewConflictError("pipeline already running")
	}
	scraperCtx, cancel := context.WithCancel(ctx)
	s.state = model.StateScraping
	s.scraperCtx = scraperCtx
	s.scraperStop = cancel
	s.mu.Unlock()

	go s.runScrapeThenChain(scraperCtx)
	return nil
}

// Stop terminates an in-flight scraper (proceeding to Processing with
// whatever was already persisted) or is a conflict if the supervisor is
// idle. A stop during Processing is a no-op per spec.md §4.5.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	switch s.state {
	case model.StateIdle:
		s.mu.Unlock()
		return apperrors.NewConflictError("pipeline not running")
	case model.StateProcessing:
		s.mu.Unlock()
		return nil
	}
	cancel := s.scraperStop
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

func (s *Supervisor) runScrapeThenChain(ctx context.Context) {
	exitCode := 0
	slog.Info("stage starting", slog.String("stage", string(model.StageScraper)))
	postsScraped, err := s.scraper.Run(ctx)
	if err != nil && ctx.Err() == nil {
		s.publishError(model.StageScraper, err)
		s.toIdle()
		return
	}
	if err != nil {
		exitCode = 1
	}
	slog.Info("stage finished", slog.String("stage", string(model.StageScraper)), slog.Int("postsScraped", postsScraped))
	s.bus.Publish(eventbus.ScrapeStopped{ExitCode: exitCode})

	s.mu.Lock()
	s.state = model.StateProcessing
	s.mu.Unlock()

	s.runProcessing(context.Background())
}

// runProcessing runs aggregator then enricher sequentially, publishes
// coinsUpdated on success, and re-enters Processing once more if a rerun
// was requested while this pass was in flight.
func (s *Supervisor) runProcessing(ctx context.Context) {
	for {
		slog.Info("stage starting", slog.String("stage", string(model.StageAggregator)))
		tokenCount, err := s.aggregator.Run(ctx)
		if err != nil {
			s.publishError(model.StageAggregator, err)
			s.toIdle()
			return
		}
		slog.Info("stage finished", slog.String("stage", string(model.StageAggregator)), slog.Int("tokenCount", tokenCount))

		slog.Info("stage starting", slog.String("stage", string(model.StageEnricher)))
		coinCount, err := s.enricher.Run(ctx)
		if err != nil {
			s.publishError(model.StageEnricher, err)
			s.toIdle()
			return
		}
		slog.Info("stage finished", slog.String("stage", string(model.StageEnricher)), slog.Int("coinCount", coinCount))

		s.bus.Publish(eventbus.CoinsUpdated{Count: coinCount})

		s.mu.Lock()
		if s.pendingRerun {
			s.pendingRerun = false
			s.mu.Unlock()
			continue
		}
		s.state = model.StateIdle
		s.mu.Unlock()
		return
	}
}

func (s *Supervisor) publishError(stage model.PipelineStage, err error) {
	slog.Error("pipeline stage failed", slog.String("stage", string(stage)), slog.Any("err", err))
	s.bus.Publish(eventbus.ErrorEvent{Stage: string(stage), Message: err.Error()})
}

func (s *Supervisor) toIdle() {
	s.mu.Lock()
	s.state = model.StateIdle
	s.mu.Unlock()
}

// OnFileChange is the file-watcher's entry point. While Idle it starts (or
// resets) a debounceWindow quiescence timer; the chain launches only once
// the window elapses without another change. While Processing, it sets a
// pending-rerun flag instead of launching immediately, per spec.md §4.5.
func (s *Supervisor) OnFileChange(ctx context.Context) {
	s.mu.Lock()
	switch s.state {
	case model.StateScraping:
		s.mu.Unlock()
		return
	case model.StateProcessing:
		s.pendingRerun = true
		s.mu.Unlock()
		return
	}

	s.debounceGen++
	gen := s.debounceGen
	s.mu.Unlock()

	go s.waitDebounce(ctx, gen)
}

func (s *Supervisor) waitDebounce(ctx context.Context, gen int) {
	timer := time.NewTimer(s.debounceWindow)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	s.mu.Lock()
	if gen != s.debounceGen || s.state != model.StateIdle {
		s.mu.Unlock()
		return
	}
	s.state = model.StateProcessing
	s.mu.Unlock()

	s.runProcessing(context.Background())
}
