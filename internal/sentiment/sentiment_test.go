package sentiment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenpulse/tokenpulse/internal/model"
)

// fixedScorer returns a canned value for any text containing key, 0 otherwise.
type fixedScorer struct {
	byPrefix map[string]float64
	fallback float64
}

func (s fixedScorer) Score(text string) float64 {
	for prefix, v := range s.byPrefix {
		if strings.Contains(text, prefix) {
			return v
		}
	}
	return s.fallback
}

func sym(s string) *string { return &s }

func TestAggregator_SingleSourceSingleTokenBuyScenario(t *testing.T) {
	// spec.md §8 scenario 1: $PEP mooning, upvotes=10, no comments, score=0.8.
	scorer := fixedScorer{byPrefix: map[string]float64{"$PEP mooning": 0.8}}
	agg := New(scorer)

	posts := []model.Post{
		{
			TokenSymbol:  sym("PEP"),
			Title:        "$PEP mooning",
			Content:      "",
			Upvotes:      10,
			CommentCount: 0,
			Comments:     nil,
		},
	}

	records := agg.Run(posts)
	require.Len(t, records, 1)
	rec := records[0]

	assert.Equal(t, "PEP", rec.Symbol)
	assert.InDelta(t, 0.9, rec.RawSentiment, 1e-9)
	assert.InDelta(t, 0.9, rec.AggregateSentiment, 1e-9)
	assert.InDelta(t, 0.03, rec.Engagement, 1e-9)
	assert.Equal(t, 73, rec.Confidence)
	assert.Equal(t, model.RecommendationHold, rec.Recommendation)
}

func TestAggregator_DiscardsSymbollessPosts(t *testing.T) {
	agg := New(fixedScorer{})
	posts := []model.Post{
		{Title: "no symbol here"},
		{TokenSymbol: sym(""), Title: "empty symbol"},
		{TokenSymbol: sym("BONK"), Title: "$BONK to the moon"},
	}

	records := agg.Run(posts)
	require.Len(t, records, 1)
	assert.Equal(t, "BONK", records[0].Symbol)
}

func TestAggregator_GroupingCompleteness(t *testing.T) {
	agg := New(fixedScorer{})
	posts := []model.Post{
		{ID: 1, TokenSymbol: sym("AAA"), Title: "a1"},
		{ID: 2, TokenSymbol: sym("BBB"), Title: "b1"},
		{ID: 3, TokenSymbol: sym("AAA"), Title: "a2"},
		{ID: 4, Title: "no symbol"},
	}

	records := agg.Run(posts)
	bySymbol := map[string]model.TokenRecord{}
	for _, r := range records {
		bySymbol[r.Symbol] = r
	}

	require.Contains(t, bySymbol, "AAA")
	require.Contains(t, bySymbol, "BBB")

	var aaaIDs []int64
	for _, p := range bySymbol["AAA"].Posts {
		aaaIDs = append(aaaIDs, p.ID)
	}
	assert.ElementsMatch(t, []int64{1, 3}, aaaIDs)

	var bbbIDs []int64
	for _, p := range bySymbol["BBB"].Posts {
		bbbIDs = append(bbbIDs, p.ID)
	}
	assert.ElementsMatch(t, []int64{2}, bbbIDs)
}

func TestAggregator_RecommendationIsPureFunctionOfConfidence(t *testing.T) {
	agg := New(fixedScorer{})
	records := agg.Run([]model.Post{{TokenSymbol: sym("X"), Title: "x"}})
	require.Len(t, records, 1)
	assert.Equal(t, model.Recommendation(records[0].Confidence), records[0].Recommendation)
}

func TestAggregator_EngagementCapsAtOne(t *testing.T) {
	agg := New(fixedScorer{})
	posts := []model.Post{
		{TokenSymbol: sym("HUGE"), Title: "huge", Upvotes: 100000, CommentCount: 100000},
	}
	records := agg.Run(posts)
	require.Len(t, records, 1)
	assert.Equal(t, 1.0, records[0].Engagement)
}

func TestAggregator_OutputSortedBySymbol(t *testing.T) {
	agg := New(fixedScorer{})
	posts := []model.Post{
		{TokenSymbol: sym("ZZZ"), Title: "z"},
		{TokenSymbol: sym("AAA"), Title: "a"},
		{TokenSymbol: sym("MMM"), Title: "m"},
	}
	records := agg.Run(posts)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"AAA", "MMM", "ZZZ"}, []string{records[0].Symbol, records[1].Symbol, records[2].Symbol})
}
