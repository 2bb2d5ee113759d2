// Package pipeline adapts the scrape/sentiment/market packages and the
// three stores into the Scraper/Aggregator/Enricher interfaces
// internal/supervisor drives, including the empty-ScrapeStore
// preserve-existing-coins rule from spec.md §4.5.
package pipeline

import (
	"context"
	"time"

	"github.com/tokenpulse/tokenpulse/internal/market"
	"github.com/tokenpulse/tokenpulse/internal/model"
	"github.com/tokenpulse/tokenpulse/internal/scrape"
	"github.com/tokenpulse/tokenpulse/internal/sentiment"
	"github.com/tokenpulse/tokenpulse/internal/store"
)

// ScraperStage wraps scrape.Coordinator with the source list and limits a
// deployment configures, implementing supervisor.Scraper.
type ScraperStage struct {
	Coordinator *scrape.Coordinator
	Sources     []scrape.Source
	CutoffAge   time.Duration
	WallBudget  time.Duration
	Limits      scrape.Limits
}

func (s *ScraperStage) Run(ctx context.Context) (int, error) {
	stats := s.Coordinator.Run(ctx, s.Sources, s.CutoffAge, s.WallBudget, s.Limits)
	return stats.PostsScraped, nil
}

// AggregatorStage wraps sentiment.Aggregator with the Scrape/Sentiment
// stores, implementing supervisor.Aggregator.
type AggregatorStage struct {
	Scrape     *store.Document[model.Post]
	Sentiment  *store.Document[model.TokenRecord]
	Aggregator *sentiment.Aggregator
}

func (a *AggregatorStage) Run(ctx context.Context) (int, error) {
	posts, err := a.Scrape.Read()
	if err != nil {
		return 0, err
	}
	records := a.Aggregator.Run(posts)
	if err := a.Sentiment.Replace(records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// EnricherStage wraps market.Enricher with the Sentiment/Coin stores,
// implementing supervisor.Enricher. Per spec.md §4.5, if the ScrapeStore
// (and therefore the recomputed SentimentStore) is currently empty, any
// existing CoinStore contents are preserved rather than wiped, to avoid UI
// flicker when the watched file is briefly deleted or truncated mid-write.
type EnricherStage struct {
	Sentiment *store.Document[model.TokenRecord]
	Coin      *store.Document[model.CoinEntry]
	Enricher  *market.Enricher
}

func (e *EnricherStage) Run(ctx context.Context) (int, error) {
	records, err := e.Sentiment.Read()
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		existing, err := e.Coin.Read()
		if err != nil {
			return 0, err
		}
		return len(existing), nil
	}

	entries := e.Enricher.Run(ctx, records)
	if err := e.Coin.Replace(entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}
