// Package listing implements a generic selector-driven scrape.Worker: one
// concrete source kind (a CSS-selector-addressable post listing page) out
// of however many a deployment wires up. Grounded on the teacher's
// internal/service/coin/scraper.go modal-table scraping selectors
// (scrapeModalRowSelector/scrapeModalLinkSelector/scrapeModalNameSelector),
// generalized from a single hardcoded Birdeye trending-token modal to an
// arbitrary social-listing page described by Selectors.
package listing

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/tokenpulse/tokenpulse/internal/fetcher"
	"github.com/tokenpulse/tokenpulse/internal/scrape"
)

// Selectors describes where, on one listing page, to find each post field.
// One Selectors value is configured per source.
type Selectors struct {
	ListURL        string
	Row            string // one post row/card
	Title          string // relative to Row
	Link           string // relative to Row, an href-bearing anchor
	Author         string // relative to Row
	Upvotes        string // relative to Row
	CommentCount   string // relative to Row
	CommentBody    string // within a comment thread page
	LoadMoreButton string // pagination control, clicked between pages
}

// Worker scrapes one source described by Selectors. It implements
// scrape.Worker.
type Worker struct {
	Platform  string
	Selectors Selectors
}

func New(platform string, selectors Selectors) *Worker {
	return &Worker{Platform: platform, Selectors: selectors}
}

func (w *Worker) FetchListing(ctx context.Context, f fetcher.PageFetcher, page int) ([]scrape.Candidate, error) {
	if page == 0 {
		if err := f.Navigate(ctx, w.Selectors.ListURL); err != nil {
			return nil, err
		}
	}
	if err := f.WaitVisible(ctx, w.Selectors.Row); err != nil {
		return nil, err
	}

	rows, err := f.Nodes(ctx, w.Selectors.Row)
	if err != nil {
		return nil, err
	}

	candidates := make([]scrape.Candidate, 0, len(rows))
	for range rows {
		cand, ok := w.parseRow(ctx, f)
		if ok {
			candidates = append(candidates, cand)
		}
	}
	return candidates, nil
}

func (w *Worker) parseRow(ctx context.Context, f fetcher.PageFetcher) (scrape.Candidate, bool) {
	title, err := f.TextContent(ctx, w.Selectors.Title)
	if err != nil || title == "" {
		return scrape.Candidate{}, false
	}
	link, ok, err := f.AttributeValue(ctx, w.Selectors.Link, "href")
	if err != nil || !ok || link == "" {
		return scrape.Candidate{}, false
	}
	author, _ := f.TextContent(ctx, w.Selectors.Author)
	upvoteText, _ := f.TextContent(ctx, w.Selectors.Upvotes)
	commentText, _ := f.TextContent(ctx, w.Selectors.CommentCount)

	upvotes := parseCount(upvoteText)
	commentCount := parseCount(commentText)

	return scrape.Candidate{
		Platform:     w.Platform,
		Title:        title,
		Author:       author,
		Timestamp:    time.Now(),
		PostAge:      "just now",
		Upvotes:      upvotes,
		CommentCount: commentCount,
		Link:         link,
		HasComments:  commentCount > 0,
	}, true
}

func (w *Worker) FetchComments(ctx context.Context, f fetcher.PageFetcher, c scrape.Candidate, max int) ([]string, error) {
	if err := f.Navigate(ctx, c.Link); err != nil {
		return nil, err
	}
	if err := f.WaitVisible(ctx, w.Selectors.CommentBody); err != nil {
		return nil, nil
	}
	nodes, err := f.Nodes(ctx, w.Selectors.CommentBody)
	if err != nil {
		return nil, err
	}

	comments := make([]string, 0, min(len(nodes), max))
	for i := range nodes {
		if i >= max {
			break
		}
		text, err := f.TextContent(ctx, w.Selectors.CommentBody)
		if err != nil {
			continue
		}
		comments = append(comments, text)
	}
	return comments, nil
}

func (w *Worker) Scroll(ctx context.Context, f fetcher.PageFetcher) error {
	if w.Selectors.LoadMoreButton != "" {
		return f.Click(ctx, w.Selectors.LoadMoreButton)
	}
	return f.Scroll(ctx, 2000)
}

// parseCount normalizes human-readable counters ("1.2k", "340") into ints,
// grounded on the teacher's parseVolume small-pure-helper style in
// internal/service/coin/scraper.go.
func parseCount(raw string) int {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return 0
	}
	multiplier := 1.0
	switch {
	case strings.HasSuffix(raw, "k"):
		multiplier = 1000
		raw = strings.TrimSuffix(raw, "k")
	case strings.HasSuffix(raw, "m"):
		multiplier = 1_000_000
		raw = strings.TrimSuffix(raw, "m")
	}
	raw = strings.ReplaceAll(raw, ",", "")
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return int(val * multiplier)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

var _ scrape.Worker = (*Worker)(nil)
