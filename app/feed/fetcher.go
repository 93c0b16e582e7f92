package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultFetchTimeout = 10 * time.Second
	maxBodySize         = 10 << 20
	feedAcceptHeader    = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
	pageAcceptHeader    = "text/html, application/xhtml+xml;q=0.9, */*;q=0.5"
)

// Fetcher performs outbound requests. All requests of one fetcher share a
// limiter so a cycle never bursts against third-party hosts.
type Fetcher struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	accept     string
	timeout    time.Duration
}

func NewFetcher(httpClient *http.Client, userAgent string, timeout, spacing time.Duration) *Fetcher {
	return newFetcher(httpClient, userAgent, feedAcceptHeader, timeout, spacing)
}

// NewPageFetcher returns a fetcher for article HTML pages with its own limiter.
func NewPageFetcher(httpClient *http.Client, userAgent string, timeout, spacing time.Duration) *Fetcher {
	return newFetcher(httpClient, userAgent, pageAcceptHeader, timeout, spacing)
}

func newFetcher(httpClient *http.Client, userAgent, accept string, timeout, spacing time.Duration) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if spacing > 0 {
		limiter = rate.NewLimiter(rate.Every(spacing), 1)
	}

	return &Fetcher{
		httpClient: httpClient,
		limiter:    limiter,
		userAgent:  userAgent,
		accept:     accept,
		timeout:    timeout,
	}
}

// Fetch downloads the document at url. Every failure wraps ErrFetch.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.do(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP error: %d %s", ErrFetch, resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %w", ErrFetch, err)
	}

	return data, nil
}

// Probe checks that url answers with a success status and an XML content
// type. It does not parse the body. Every failure wraps ErrValidation.
func (f *Fetcher) Probe(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.do(ctx, url)
	if err != nil {
		return fmt.Errorf("%w: feed URL is unreachable: %w", ErrValidation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: feed URL returned HTTP %d", ErrValidation, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isXMLContentType(contentType) {
		return fmt.Errorf("%w: content type is not XML: %q", ErrValidation, contentType)
	}

	slog.Debug("Feed URL probed", "url", url, "content_type", contentType)
	return nil
}

func (f *Fetcher) do(ctx context.Context, url string) (*http.Response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", ErrFetch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", ErrFetch, err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", f.accept)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch URL: %w", ErrFetch, err)
	}

	return resp, nil
}

func isXMLContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "xml") || strings.Contains(ct, "rss") || strings.Contains(ct, "atom")
}
