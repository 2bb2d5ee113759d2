// Command pipeline boots the scrape/aggregate/enrich supervisor and its
// REST + WebSocket control plane. Grounded on the teacher's cmd/api/main.go
// bootstrap shape (config load, slog handler selection, otel init, signal
// handling), trimmed to this domain's dependency graph.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tokenpulse/tokenpulse/internal/cache"
	"github.com/tokenpulse/tokenpulse/internal/config"
	"github.com/tokenpulse/tokenpulse/internal/eventbus"
	"github.com/tokenpulse/tokenpulse/internal/fetcher"
	"github.com/tokenpulse/tokenpulse/internal/httpapi"
	"github.com/tokenpulse/tokenpulse/internal/logger"
	"github.com/tokenpulse/tokenpulse/internal/market"
	"github.com/tokenpulse/tokenpulse/internal/market/birdeye"
	"github.com/tokenpulse/tokenpulse/internal/market/jupiter"
	"github.com/tokenpulse/tokenpulse/internal/market/offchain"
	"github.com/tokenpulse/tokenpulse/internal/pipeline"
	"github.com/tokenpulse/tokenpulse/internal/resolve"
	"github.com/tokenpulse/tokenpulse/internal/scrape"
	"github.com/tokenpulse/tokenpulse/internal/scrape/listing"
	"github.com/tokenpulse/tokenpulse/internal/sentiment"
	"github.com/tokenpulse/tokenpulse/internal/store"
	"github.com/tokenpulse/tokenpulse/internal/supervisor"
	"github.com/tokenpulse/tokenpulse/internal/telemetry/otel"
	"github.com/tokenpulse/tokenpulse/internal/telemetry/tracker"
)

var configPath = flag.String("config", ".env", "path to the .env configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	bus := eventbus.New()

	slog.SetDefault(logger.New(cfg.Environment, slog.LevelInfo, bus))
	slog.Info("configuration loaded", slog.String("env", cfg.Environment), slog.Int("port", cfg.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry, err := otel.InitTelemetry(ctx, otel.Config{
		ServiceName:    "tokenpulse-pipeline",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		slog.Error("failed to init telemetry", slog.Any("err", err))
		os.Exit(1)
	}
	defer telemetry.Shutdown(context.Background())
	apiTracker := tracker.New(telemetry)

	stores, err := store.New(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open stores", slog.Any("err", err))
		os.Exit(1)
	}

	resolverMemo, err := cache.New[string]("resolver")
	if err != nil {
		slog.Error("failed to build resolver cache", slog.Any("err", err))
		os.Exit(1)
	}

	oracle := resolve.NewHTTPOracle(cfg.TokenOracleURL, cfg.TokenOracleKey)
	resolver := resolve.New(oracle, stores, resolverMemo, cfg.CommentsPerPost)

	coordinator := scrape.NewCoordinator(stores, stores.Seen, resolver, bus)
	sources := buildSources(cfg)

	aggregator := sentiment.New(naiveScorer{})

	providers := buildProviders(cfg, apiTracker)
	enricher := market.New(providers, market.Limits{
		Parallelism:      cfg.EnrichParallelism,
		PerCallTimeout:   10 * time.Second,
		ProviderCooldown: cfg.ProviderCooldown,
	})

	scraperStage := &pipeline.ScraperStage{
		Coordinator: coordinator,
		Sources:     sources,
		CutoffAge:   cfg.MaxPostAge,
		WallBudget:  cfg.WallBudget,
		Limits: scrape.Limits{
			MaxConcurrentSources: cfg.MaxConcurrentSources,
			MaxPagesPerSource:    cfg.MaxPagesPerSource,
			CommentsPerPost:      cfg.CommentsPerPost,
			ScrollsPerPage:       cfg.ScrollsPerPage,
		},
	}
	aggregatorStage := &pipeline.AggregatorStage{Scrape: stores.Scrape, Sentiment: stores.Sentiment, Aggregator: aggregator}
	enricherStage := &pipeline.EnricherStage{Sentiment: stores.Sentiment, Coin: stores.Coin, Enricher: enricher}

	sup := supervisor.New(scraperStage, aggregatorStage, enricherStage, bus, cfg.DebounceWindow)

	watcher, err := supervisor.NewWatcher(sup, stores.Scrape.Path(), bus, stores.Scrape)
	if err != nil {
		slog.Error("failed to start file watcher", slog.Any("err", err))
		os.Exit(1)
	}
	go watcher.Run(ctx)

	handlers := httpapi.NewScraperHandlers(ctx, sup, stores.Scrape)
	router := httpapi.NewRouter(handlers, bus, cfg.CorsOrigins, func() eventbus.Event {
		posts, _ := stores.Scrape.Read()
		return eventbus.InitialSnapshot{Posts: posts}
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router.Setup(cfg.WSPath),
	}

	go func() {
		slog.Info("http server listening", slog.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", slog.Any("err", err))
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", slog.Any("err", err))
	}
	slog.Info("shutdown complete")
}

// buildSources wires one listing.Worker per supported source; a real
// deployment supplies its own selector sets per subreddit/forum via
// configuration. A minimal default is provided so the binary is runnable
// out of the box.
func buildSources(cfg *config.Config) []scrape.Source {
	worker := listing.New("reddit", listing.Selectors{
		ListURL:      "https://old.reddit.com/r/CryptoMoonShots/new/",
		Row:          "div.thing",
		Title:        "a.title",
		Link:         "a.title",
		Author:       "a.author",
		Upvotes:      "div.score.unvoted",
		CommentCount: "a.comments",
		CommentBody:  "div.usertext-body",
	})
	return []scrape.Source{
		{
			Name:   "r/CryptoMoonShots",
			Worker: worker,
			NewFetcher: func(ctx context.Context) fetcher.PageFetcher {
				return fetcher.NewChromeFetcher(ctx)
			},
		},
	}
}

func buildProviders(cfg *config.Config, apiTracker *tracker.APICallTracker) []market.Provider {
	var providers []market.Provider
	if cfg.BirdeyeAPIKey != "" {
		providers = append(providers, birdeye.New("https://public-api.birdeye.so", cfg.BirdeyeAPIKey, apiTracker))
	}
	if cfg.JupiterBaseURL != "" {
		providers = append(providers, jupiter.New(cfg.JupiterBaseURL, apiTracker))
	}
	providers = append(providers, offchain.New(noopRegistry{}, apiTracker))
	return providers
}

// naiveScorer is a placeholder Scorer: the real NLP sentiment model is an
// injected out-of-scope dependency per spec.md §1. It returns neutral
// sentiment so the binary runs end-to-end without a live model wired in.
type naiveScorer struct{}

func (naiveScorer) Score(string) float64 { return 0 }

// noopRegistry is a placeholder market.offchain.SymbolRegistry; production
// deployments supply one backed by the Jupiter/BirdEye token-list results
// already fetched earlier in the same chain.
type noopRegistry struct{}

func (noopRegistry) MetadataURI(ctx context.Context, symbol string) (string, bool) { return "", false }
