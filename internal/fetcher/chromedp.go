package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// ChromeFetcher drives a single headless Chrome tab via chromedp. One
// instance is owned by exactly one scrape task; it is not safe for
// concurrent use, matching the teacher's one-PageFetcher-per-source-task
// pattern in its trending-token scraper.
type ChromeFetcher struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewChromeFetcher allocates a fresh browser tab under parent. Every
// operation runs on the tab's context; the ctx arguments of the methods are
// not consulted and no per-operation timeout is applied.
func NewChromeFetcher(parent context.Context) *ChromeFetcher {
	ctx, cancel := chromedp.NewContext(parent)
	return &ChromeFetcher{ctx: ctx, cancel: cancel}
}

func (f *ChromeFetcher) Navigate(ctx context.Context, url string) error {
	return chromedp.Run(f.ctx, chromedp.Navigate(url))
}

func (f *ChromeFetcher) WaitVisible(ctx context.Context, selector string) error {
	return chromedp.Run(f.ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (f *ChromeFetcher) Click(ctx context.Context, selector string) error {
	return chromedp.Run(f.ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (f *ChromeFetcher) Nodes(ctx context.Context, selector string) ([]Node, error) {
	var nodes []*cdp.Node
	if err := chromedp.Run(f.ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll)); err != nil {
		return nil, fmt.Errorf("nodes %q: %w", selector, err)
	}
	out := make([]Node, len(nodes))
	for i := range nodes {
		out[i] = Node{Selector: selector, Index: i}
	}
	return out, nil
}

func (f *ChromeFetcher) TextContent(ctx context.Context, selector string) (string, error) {
	var text string
	if err := chromedp.Run(f.ctx, chromedp.Text(selector, &text, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return "", fmt.Errorf("text %q: %w", selector, err)
	}
	return text, nil
}

func (f *ChromeFetcher) AttributeValue(ctx context.Context, selector, attr string) (string, bool, error) {
	var value string
	var ok bool
	if err := chromedp.Run(f.ctx, chromedp.AttributeValue(selector, attr, &value, &ok, chromedp.ByQuery)); err != nil {
		return "", false, fmt.Errorf("attribute %q %q: %w", selector, attr, err)
	}
	return value, ok, nil
}

func (f *ChromeFetcher) Scroll(ctx context.Context, dy int) error {
	return chromedp.Run(f.ctx, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", dy), nil))
}

func (f *ChromeFetcher) Close() error {
	f.cancel()
	return nil
}

// DefaultNavigationTimeout mirrors the teacher's per-task 45s timeout in
// enrichScrapedTokens; ChromeFetcher itself does not apply it.
const DefaultNavigationTimeout = 45 * time.Second
