package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lysyi3m/rss-scout/app/feed"
)

type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeSkipped Outcome = "skipped"
)

// Pipeline is the intake of the downstream content system. Both outcomes
// are final; callers never retry.
type Pipeline interface {
	Process(ctx context.Context, item feed.Item) (Outcome, error)
}

type intakeRequest struct {
	Item feed.Item `json:"item"`
}

type intakeResponse struct {
	Status Outcome `json:"status"`
}

// HTTPClient posts items to a remote intake endpoint.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
}

func NewHTTPClient(endpoint string, httpClient *http.Client, userAgent string, timeout time.Duration) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		endpoint:   endpoint,
		httpClient: httpClient,
		userAgent:  userAgent,
		timeout:    timeout,
	}
}

func (c *HTTPClient) Process(ctx context.Context, item feed.Item) (Outcome, error) {
	body, err := json.Marshal(intakeRequest{Item: item})
	if err != nil {
		return "", fmt.Errorf("failed to encode item: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach content pipeline: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("content pipeline HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var out intakeResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to decode pipeline response: %w", err)
	}

	switch out.Status {
	case OutcomeCreated, OutcomeSkipped:
		return out.Status, nil
	default:
		return "", fmt.Errorf("unexpected pipeline status '%s'", out.Status)
	}
}

// LogOnly is a dry-run intake used when no pipeline endpoint is configured.
type LogOnly struct{}

func (LogOnly) Process(ctx context.Context, item feed.Item) (Outcome, error) {
	slog.Info("Dry run, item not forwarded", "feed", item.Source, "link", item.Link, "title", item.Title)
	return OutcomeSkipped, nil
}
