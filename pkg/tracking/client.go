package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/promora-go-api/internal/attribution"
)

// InteractionsPath is the ingestion route on the assessment backend.
const InteractionsPath = "/api/ai-interactions"

// Config describes how to reach the AI-interaction ingestion endpoint.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
	// Correlation extracts the request correlation id forwarded as X-Correlation-ID.
	Correlation func(ctx context.Context) string
}

// Client posts tracking events to the assessment backend.
type Client struct {
	endpoint    string
	http        *http.Client
	logger      zerolog.Logger
	correlation func(ctx context.Context) string
}

// New builds a client for cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("tracking api base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		endpoint: base + InteractionsPath,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:      cfg.Logger.With().Str("component", "tracking_client").Logger(),
		correlation: cfg.Correlation,
	}, nil
}

// Endpoint returns the full ingestion URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Dispatch posts event once. Non-2xx answers and transport errors are reported
// as failed results; nothing is retried.
func (c *Client) Dispatch(ctx context.Context, event attribution.TrackEvent) attribution.DispatchResult {
	payload, err := json.Marshal(event)
	if err != nil {
		return attribution.Failed(event, 0, fmt.Errorf("encode tracking event: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return attribution.Failed(event, 0, fmt.Errorf("build tracking request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.correlation != nil {
		if id := c.correlation(ctx); id != "" {
			req.Header.Set("X-Correlation-ID", id)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return attribution.Failed(event, 0, fmt.Errorf("send tracking event: %w", err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return attribution.Failed(event, resp.StatusCode, fmt.Errorf("tracking endpoint returned %d", resp.StatusCode))
	}

	c.logger.Debug().Str("event_type", string(event.EventType)).Int("status", resp.StatusCode).Msg("tracking event delivered")
	return attribution.Sent(event, resp.StatusCode)
}
