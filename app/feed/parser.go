package feed

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/mmcdole/gofeed/rss"
)

const DefaultMaxItems = 50

var (
	imgSrcPattern = regexp.MustCompile(`(?i)<img[^>]+src\s*=\s*["']([^"']+)["']`)
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
)

type Parser struct {
	fetcher  *Fetcher
	filterer *Filterer
	maxItems int
	now      func() time.Time
}

func NewParser(fetcher *Fetcher, filterer *Filterer, maxItems int) *Parser {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Parser{
		fetcher:  fetcher,
		filterer: filterer,
		maxItems: maxItems,
		now:      time.Now,
	}
}

// Parse fetches src.URL and returns its valid items. A single malformed
// entry is dropped; only an unreachable feed (ErrFetch) or a document that
// is neither RSS nor Atom (ErrParse) fails the call.
func (p *Parser) Parse(ctx context.Context, src Definition) (*ParseResult, error) {
	data, err := p.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return nil, err
	}
	return p.Run(data, src)
}

// Run parses an already fetched document.
func (p *Parser) Run(data []byte, src Definition) (*ParseResult, error) {
	format, parsed, err := p.sniff(data)
	if err != nil {
		return nil, err
	}

	source := cmp.Or(src.Name, parsed.Title)
	now := p.now()

	items := make([]Item, 0, min(len(parsed.Items), p.maxItems))
	dropped, rejected := 0, 0
	for _, entry := range parsed.Items {
		if len(items) >= p.maxItems {
			break
		}
		if entry == nil {
			continue
		}

		item, ok := p.normalizeItem(entry, source, src.Category, now)
		if !ok {
			dropped++
			continue
		}

		if p.filterer != nil {
			if valid, reason := p.filterer.Validate(item); !valid {
				slog.Debug("Item rejected", "feed", source, "link", item.Link, "reason", reason)
				rejected++
				continue
			}
		}

		items = append(items, item)
	}

	slog.Debug("Feed parsed",
		"feed", source,
		"format", format.String(),
		"entries", len(parsed.Items),
		"items", len(items),
		"dropped", dropped,
		"rejected", rejected)

	return &ParseResult{Format: format, Items: items}, nil
}

// sniff tries RSS first and falls back to Atom when RSS yields no items.
// A feed is one format or the other, the results are never merged.
func (p *Parser) sniff(data []byte) (Format, *gofeed.Feed, error) {
	rssFeed, rssErr := parseRSS(data)
	if rssErr == nil && len(rssFeed.Items) > 0 {
		return FormatRSS, rssFeed, nil
	}

	atomFeed, atomErr := parseAtom(data)
	if atomErr == nil {
		return FormatAtom, atomFeed, nil
	}

	// Well-formed RSS with an empty channel is a valid, empty result.
	if rssErr == nil {
		return FormatRSS, rssFeed, nil
	}

	return 0, nil, fmt.Errorf("%w: rss: %v; atom: %v", ErrParse, rssErr, atomErr)
}

func parseRSS(data []byte) (*gofeed.Feed, error) {
	raw, err := (&rss.Parser{}).Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return (&gofeed.DefaultRSSTranslator{}).Translate(raw)
}

func parseAtom(data []byte) (*gofeed.Feed, error) {
	raw, err := (&atom.Parser{}).Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return (&gofeed.DefaultAtomTranslator{}).Translate(raw)
}

func (p *Parser) normalizeItem(entry *gofeed.Item, source string, category Category, now time.Time) (Item, bool) {
	title := plainText(entry.Title)
	link := p.extractLink(entry)
	if title == "" || link == "" {
		slog.Debug("Entry dropped", "feed", source, "title", title, "link", entry.Link, "reason", "missing title or absolute link")
		return Item{}, false
	}

	item := Item{
		Title:       title,
		Description: cmp.Or(plainText(entry.Description), plainText(entry.Content)),
		Link:        link,
		PublishedAt: p.extractPublishedAt(entry, source, now),
		Source:      source,
		Category:    category,
		Keywords:    extractKeywords(entry.Categories),
		Content:     p.extractContent(entry, source),
		GUID:        cmp.Or(strings.TrimSpace(entry.GUID), link),
		Author:      extractAuthor(entry),
	}
	item.ImageURL = p.extractImage(entry, item.Content, source)

	return item, true
}

func (p *Parser) extractLink(entry *gofeed.Item) string {
	if link := strings.TrimSpace(entry.Link); isAbsoluteHTTP(link) {
		return link
	}
	for _, link := range entry.Links {
		if link = strings.TrimSpace(link); isAbsoluteHTTP(link) {
			return link
		}
	}
	return ""
}

func (p *Parser) extractPublishedAt(entry *gofeed.Item, source string, now time.Time) time.Time {
	if entry.PublishedParsed != nil {
		return *entry.PublishedParsed
	}
	if entry.UpdatedParsed != nil {
		return *entry.UpdatedParsed
	}

	candidates := []string{entry.Published, entry.Updated}
	if entry.DublinCoreExt != nil {
		candidates = append(candidates, entry.DublinCoreExt.Date...)
	}
	for _, raw := range candidates {
		if raw = strings.TrimSpace(raw); raw == "" {
			continue
		}
		if t, err := dateparse.ParseAny(raw); err == nil {
			return t
		}
	}

	slog.Debug("Publish date missing, using current time", "feed", source, "link", entry.Link)
	return now
}

func (p *Parser) extractContent(entry *gofeed.Item, source string) string {
	if content := strings.TrimSpace(entry.Content); content != "" {
		return content
	}
	slog.Debug("Full content missing, using description", "feed", source, "link", entry.Link)
	return strings.TrimSpace(entry.Description)
}

func (p *Parser) extractImage(entry *gofeed.Item, content, source string) string {
	if entry.Image != nil && isAbsoluteHTTP(entry.Image.URL) {
		return entry.Image.URL
	}

	for _, enclosure := range entry.Enclosures {
		if enclosure != nil && strings.HasPrefix(strings.ToLower(enclosure.Type), "image/") && isAbsoluteHTTP(enclosure.URL) {
			return enclosure.URL
		}
	}

	if media, ok := entry.Extensions["media"]; ok {
		for _, name := range []string{"content", "thumbnail"} {
			if u := firstMediaURL(media[name]); u != "" {
				return u
			}
		}
	}

	if match := imgSrcPattern.FindStringSubmatch(content); match != nil && isAbsoluteHTTP(match[1]) {
		return match[1]
	}

	slog.Debug("Image missing", "feed", source, "link", entry.Link)
	return ""
}

func firstMediaURL(elements []ext.Extension) string {
	for _, el := range elements {
		if medium, ok := el.Attrs["medium"]; ok && medium != "image" {
			continue
		}
		if u := el.Attrs["url"]; isAbsoluteHTTP(u) {
			return u
		}
	}
	return ""
}

func extractAuthor(entry *gofeed.Item) string {
	if entry.Author != nil && strings.TrimSpace(entry.Author.Name) != "" {
		return strings.TrimSpace(entry.Author.Name)
	}
	for _, author := range entry.Authors {
		if author != nil && strings.TrimSpace(author.Name) != "" {
			return strings.TrimSpace(author.Name)
		}
	}
	return ""
}

func extractKeywords(categories []string) []string {
	seen := make(map[string]bool, len(categories))
	keywords := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		keywords = append(keywords, c)
	}
	return keywords
}

// plainText strips markup and collapses whitespace.
func plainText(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

func isAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
