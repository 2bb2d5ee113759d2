// Package model holds the data types shared across every pipeline stage.
package model

import "time"

// Post is a single scraped social-media item.
type Post struct {
	ID           int64     `json:"id"`
	Source       string    `json:"source"`
	Platform     string    `json:"platform"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Author       string    `json:"author"`
	Timestamp    time.Time `json:"timestamp"`
	PostAge      string    `json:"postAge"`
	Upvotes      int       `json:"upvotes"`
	CommentCount int       `json:"commentCount"`
	Comments     []string  `json:"comments"`
	Link         string    `json:"link"`
	TokenSymbol  *string   `json:"tokenSymbol,omitempty"`
}

// Key returns the (source, link) composite key used for deduplication.
func (p Post) Key() string {
	return p.Source + "\x00" + p.Link
}

// TokenRecord is the per-symbol sentiment aggregation.
type TokenRecord struct {
	Symbol             string  `json:"symbol"`
	Posts              []Post  `json:"posts"`
	RawSentiment       float64 `json:"rawSentiment"`
	AggregateSentiment float64 `json:"aggregateSentiment"`
	Engagement         float64 `json:"engagement"`
	Confidence         int     `json:"confidence"`
	Recommendation     string  `json:"recommendation"`
}

const (
	RecommendationBuy  = "BUY"
	RecommendationHold = "HOLD"
	RecommendationSell = "SELL"
)

// Recommendation implements the confidence -> recommendation invariant.
func Recommendation(confidence int) string {
	switch {
	case confidence >= 75:
		return RecommendationBuy
	case confidence >= 55:
		return RecommendationHold
	default:
		return RecommendationSell
	}
}

// CoinEntry is a TokenRecord enriched with on-chain market data.
type CoinEntry struct {
	Symbol             string  `json:"symbol"`
	Posts              []Post  `json:"posts"`
	RawSentiment       float64 `json:"rawSentiment"`
	AggregateSentiment float64 `json:"aggregateSentiment"`
	Engagement         float64 `json:"engagement"`
	Confidence         int     `json:"confidence"`
	Recommendation     string  `json:"recommendation"`

	Address     *string    `json:"address,omitempty"`
	Chain       string     `json:"chain,omitempty"`
	PriceUsd    *float64   `json:"priceUsd,omitempty"`
	Change24h   *float64   `json:"change24h,omitempty"`
	LogoURL     *string    `json:"logoUrl,omitempty"`
	Decimals    *int       `json:"decimals,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Description *string    `json:"description,omitempty"`
	LatestPost  *Post      `json:"latestPost,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// FromTokenRecord seeds a CoinEntry's sentiment fields from a TokenRecord,
// with Chain defaulted to "solana" and every other market field unset.
func FromTokenRecord(r TokenRecord) CoinEntry {
	entry := CoinEntry{
		Symbol:             r.Symbol,
		Posts:              r.Posts,
		RawSentiment:       r.RawSentiment,
		AggregateSentiment: r.AggregateSentiment,
		Engagement:         r.Engagement,
		Confidence:         r.Confidence,
		Recommendation:     r.Recommendation,
		Chain:              "solana",
	}
	entry.LatestPost = latestPost(r.Posts)
	return entry
}

func latestPost(posts []Post) *Post {
	if len(posts) == 0 {
		return nil
	}
	latest := posts[0]
	for _, p := range posts[1:] {
		if p.Timestamp.After(latest.Timestamp) {
			latest = p
		}
	}
	return &latest
}

// PipelineStage names one of the three sequential pipeline stages.
type PipelineStage string

const (
	StageScraper    PipelineStage = "scraper"
	StageAggregator PipelineStage = "aggregator"
	StageEnricher   PipelineStage = "enricher"
)

// PipelineStateName is one of the supervisor's three states.
type PipelineStateName string

const (
	StateIdle       PipelineStateName = "idle"
	StateScraping   PipelineStateName = "scraping"
	StateProcessing PipelineStateName = "processing"
)
