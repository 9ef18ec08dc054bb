package hackatime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"challenge-tracker/internal/metrics"
)

const defaultTimeout = 30 * time.Second

// SummaryAPI fetches the aggregated per-category durations for one user over
// a UTC time range.
type SummaryAPI interface {
	Summary(ctx context.Context, userID, apiKey string, startUTC, endUTC time.Time) (json.RawMessage, error)
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig controls how the client reaches the summary API.
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Metrics    *metrics.Recorder
}

// Client calls the time-tracking service's summary endpoint.
type Client struct {
	baseURL    string
	httpClient httpDoer
	metrics    *metrics.Recorder
}

// NewClient constructs a summary API client with the provided configuration.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		metrics:    cfg.Metrics,
	}
}

// Summary fetches and validates the aggregate for a user over [startUTC,
// endUTC], returning the raw payload. Any failure is an UpstreamError.
func (c *Client) Summary(ctx context.Context, userID, apiKey string, startUTC, endUTC time.Time) (json.RawMessage, error) {
	start := time.Now()
	payload, err := c.fetch(ctx, userID, apiKey, startUTC, endUTC)
	if c.metrics != nil {
		c.metrics.RecordUpstreamCall(time.Since(start), err)
	}
	return payload, err
}

func (c *Client) fetch(ctx context.Context, userID, apiKey string, startUTC, endUTC time.Time) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/summary", nil)
	if err != nil {
		return nil, &UpstreamError{Message: "building summary request", Err: err}
	}

	q := req.URL.Query()
	q.Set("user", userID)
	q.Set("from", startUTC.UTC().Format(time.RFC3339))
	q.Set("to", endUTC.UTC().Format(time.RFC3339))
	q.Set("recompute", "true")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Message: "summary request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status: %s", strings.TrimSpace(string(body))),
		}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Message: "reading summary body", Err: err}
	}
	if !json.Valid(payload) {
		return nil, &UpstreamError{Message: "malformed summary payload"}
	}
	return payload, nil
}
