package apiclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/smukkama/env-monitor/internal/protocol"
)

// StatusError is returned for non-2xx responses
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

// Client reads environmental data from the backend API
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a client for baseURL. retryMax 0 disables retries, which
// leaves recovery to the next scheduled tick or a manual refresh.
func New(baseURL string, timeout time.Duration, retryMax int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	rC := retryablehttp.NewClient()
	rC.Logger = nil
	rC.RetryMax = retryMax
	rC.ErrorHandler = retryablehttp.PassthroughErrorHandler
	httpClient := rC.StandardClient()
	httpClient.Timeout = timeout

	return &Client{baseURL: baseURL, http: httpClient, logger: logger}
}

// Readings fetches the full reading history
func (c *Client) Readings(ctx context.Context) ([]protocol.Reading, error) {
	return c.readings(ctx, "/api/data", nil)
}

// LatestReadings fetches the most recent reading per city
func (c *Client) LatestReadings(ctx context.Context) ([]protocol.Reading, error) {
	return c.readings(ctx, "/api/data", url.Values{"latest_only": {"true"}})
}

func (c *Client) readings(ctx context.Context, path string, query url.Values) ([]protocol.Reading, error) {
	body, err := c.get(ctx, path, query)
	if err != nil {
		return nil, err
	}

	readings, err := protocol.DecodeReadings(body)
	if err != nil {
		// Shape problems are not fatal; the caller sees an empty list.
		c.logger.Warn("unexpected readings payload", "path", path, "error", err)
	}
	return readings, nil
}

// Stats fetches descriptive statistics and the correlation matrix
func (c *Client) Stats(ctx context.Context) (*protocol.Stats, error) {
	body, err := c.get(ctx, "/api/stats", nil)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeStats(body)
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request", "url", u, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: u, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
