// Package fetcher defines the browser-automation abstraction every scrape
// Worker drives, plus a chromedp-backed production implementation.
package fetcher

import "context"

// PageFetcher is the minimal browser-automation surface a scrape Worker
// needs. It is deliberately narrow: navigate, wait, click, and read — the
// same shape the teacher's scraping code drove chromedp through directly.
type PageFetcher interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	Nodes(ctx context.Context, selector string) ([]Node, error)
	TextContent(ctx context.Context, selector string) (string, error)
	AttributeValue(ctx context.Context, selector, attr string) (string, bool, error)
	Scroll(ctx context.Context, dy int) error
	Close() error
}

// Node is an opaque handle to a matched DOM node, scoped to the selector
// that produced it; fields read from it are relative to that node.
type Node struct {
	Selector string
	Index    int
}
