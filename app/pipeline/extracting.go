package pipeline

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/rss-scout/app/feed"
)

type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Extractor interface {
	Run(data []byte, pageURL string) (string, error)
}

// Extracting fills an empty content body from the article page before
// delegating. Failures fall back to forwarding the item unchanged.
type Extracting struct {
	next      Pipeline
	fetcher   PageFetcher
	extractor Extractor
}

func NewExtracting(next Pipeline, fetcher PageFetcher, extractor Extractor) *Extracting {
	return &Extracting{next: next, fetcher: fetcher, extractor: extractor}
}

func (e *Extracting) Process(ctx context.Context, item feed.Item) (Outcome, error) {
	if item.Content == "" || item.Content == item.Description {
		if content, ok := e.extract(ctx, item.Link); ok {
			item.Content = content
		}
	}
	return e.next.Process(ctx, item)
}

func (e *Extracting) extract(ctx context.Context, link string) (string, bool) {
	data, err := e.fetcher.Fetch(ctx, link)
	if err != nil {
		slog.Debug("Content extraction skipped, article fetch failed", "link", link, "error", err)
		return "", false
	}

	content, err := e.extractor.Run(data, link)
	if err != nil {
		slog.Debug("Content extraction failed", "link", link, "error", err)
		return "", false
	}

	return content, true
}
