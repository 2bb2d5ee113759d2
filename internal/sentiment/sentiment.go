// Package sentiment implements the SentimentAggregator: groups posts by
// token symbol and computes per-token raw/aggregate/engagement scores.
package sentiment

import (
	"math"
	"sort"

	"github.com/tokenpulse/tokenpulse/internal/model"
)

const (
	engagementAlpha     = 5.0
	engagementReference = 500.0

	weightRaw        = 0.3
	weightAggregate  = 0.5
	weightEngagement = 0.2
)

// Scorer is the injected pure sentiment function, out of scope to implement
// per spec.md §1: Score maps arbitrary text to a value in [-1, 1].
type Scorer interface {
	Score(text string) float64
}

// Aggregator consumes a ScrapeStore snapshot and produces a SentimentStore.
type Aggregator struct {
	scorer Scorer
}

func New(scorer Scorer) *Aggregator {
	return &Aggregator{scorer: scorer}
}

// Run groups posts by TokenSymbol (symbol-less posts are discarded) and
// computes one TokenRecord per distinct symbol, sorted by symbol for stable
// output.
func (a *Aggregator) Run(posts []model.Post) []model.TokenRecord {
	groups := groupBySymbol(posts)

	symbols := make([]string, 0, len(groups))
	for sym := range groups {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	records := make([]model.TokenRecord, 0, len(symbols))
	for _, sym := range symbols {
		records = append(records, a.score(sym, groups[sym]))
	}
	return records
}

func groupBySymbol(posts []model.Post) map[string][]model.Post {
	groups := make(map[string][]model.Post)
	for _, p := range posts {
		if p.TokenSymbol == nil || *p.TokenSymbol == "" {
			continue
		}
		groups[*p.TokenSymbol] = append(groups[*p.TokenSymbol], p)
	}
	return groups
}

func (a *Aggregator) score(symbol string, posts []model.Post) model.TokenRecord {
	raw := a.rawSentiment(posts)
	aggregate := a.aggregateSentiment(posts)
	engagement := a.engagement(posts)
	confidence := confidenceOf(raw, aggregate, engagement)

	return model.TokenRecord{
		Symbol:             symbol,
		Posts:              posts,
		RawSentiment:       round4(raw),
		AggregateSentiment: round4(aggregate),
		Engagement:         round4(engagement),
		Confidence:         confidence,
		Recommendation:     model.Recommendation(confidence),
	}
}

// rawSentiment is the unweighted mean of score(title ++ " " ++ content)
// over the group, normalized from [-1, 1] into [0, 1].
func (a *Aggregator) rawSentiment(posts []model.Post) float64 {
	if len(posts) == 0 {
		return normalizeToUnit(0)
	}
	var sum float64
	for _, p := range posts {
		sum += a.scorer.Score(p.Title + " " + p.Content)
	}
	return normalizeToUnit(sum / float64(len(posts)))
}

// aggregateSentiment is the engagement-weighted mean of
// score(title ++ " " ++ content ++ joined(comments)), weighted by
// log(1+upvotes) + 0.5*log(1+commentCount), normalized into [0, 1].
func (a *Aggregator) aggregateSentiment(posts []model.Post) float64 {
	if len(posts) == 0 {
		return normalizeToUnit(0)
	}
	var weightedSum, weightTotal float64
	for _, p := range posts {
		text := p.Title + " " + p.Content
		for _, c := range p.Comments {
			text += " " + c
		}
		weight := math.Log(1+float64(p.Upvotes)) + 0.5*math.Log(1+float64(p.CommentCount))
		weightedSum += weight * a.scorer.Score(text)
		weightTotal += weight
	}
	if weightTotal == 0 {
		return normalizeToUnit(0)
	}
	return normalizeToUnit(weightedSum / weightTotal)
}

// engagement scales combined upvotes, comments, and post count against a
// fixed reference volume, capped at 1.
func (a *Aggregator) engagement(posts []model.Post) float64 {
	var upvotes, comments float64
	for _, p := range posts {
		upvotes += float64(p.Upvotes)
		comments += float64(p.CommentCount)
	}
	score := (upvotes + 0.5*comments + engagementAlpha*float64(len(posts))) / engagementReference
	return math.Min(1, score)
}

func confidenceOf(raw, aggregate, engagement float64) int {
	combined := weightRaw*raw + weightAggregate*aggregate + weightEngagement*engagement
	combined = clamp(0, 1, combined)
	return int(math.Round(100 * combined))
}

func normalizeToUnit(x float64) float64 {
	return (x + 1) / 2
}

func clamp(lo, hi, x float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
