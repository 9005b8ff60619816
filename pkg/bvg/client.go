package bvg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bvgboard/pkg/metrics"
	bvgotel "bvgboard/pkg/otel"
	"bvgboard/pkg/types"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBaseURL = "https://v6.bvg.transport.rest"
	DefaultTimeout = 10 * time.Second

	// Query sent with every departures request
	departuresQuery = "duration=30&results=8"

	// Upper bound on a response body; the API normally returns a few KB
	maxBodyBytes = 4 << 20
)

var ErrEmptyStop = errors.New("stop id is empty")

type Client struct {
	httpClient *http.Client
	baseURL    string
	tracer     trace.Tracer
}

// StopData is the raw departures payload for one stop
type StopData struct {
	Body      []byte
	Timestamp time.Time
	StopID    types.StopQuery
}

type Option func(*Client)

// WithBaseURL points the client at another transport.rest instance
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithTimeout bounds every request, including reading the body
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

func NewClient(opts ...Option) *Client {
	// Redirects are followed by the default CheckRedirect policy
	client := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   DefaultTimeout,
	}

	c := &Client{
		httpClient: client,
		baseURL:    DefaultBaseURL,
		tracer:     otel.Tracer("bvg-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DeparturesURL returns the request URL for a stop
func (c *Client) DeparturesURL(stop types.StopQuery) string {
	return fmt.Sprintf("%s/stops/%s/departures?%s", c.baseURL, url.PathEscape(string(stop)), departuresQuery)
}

// Departures returns the raw departures body for stop, or false when nothing
// could be fetched. Failures are logged and traced but never returned: an
// unreachable API and a stop with no departures look the same to callers.
func (c *Client) Departures(ctx context.Context, stop types.StopQuery) ([]byte, bool) {
	data, err := c.FetchDepartures(ctx, stop)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Debug("Departure fetch cancelled", "stop_id", stop)
		} else {
			slog.Warn("Departure fetch failed", "stop_id", stop, "error", err)
		}
		return nil, false
	}
	return data.Body, true
}

// FetchDepartures performs one GET for stop and returns the whole body.
// There are no retries; the next refresh is the retry.
func (c *Client) FetchDepartures(ctx context.Context, stop types.StopQuery) (*StopData, error) {
	reqURL := c.DeparturesURL(stop)

	ctx, span := c.tracer.Start(ctx, "bvg.fetch_departures",
		trace.WithAttributes(
			attribute.String("stop_id", string(stop)),
			attribute.String("http.url", reqURL),
			attribute.String("http.method", http.MethodGet),
		),
	)
	defer span.End()

	start := time.Now()
	data, err := c.fetch(ctx, span, stop, reqURL)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	size := 0
	if data != nil {
		size = len(data.Body)
	}
	metrics.RecordAPIRequest(ctx, outcome, time.Since(start), size)

	return data, err
}

func (c *Client) fetch(ctx context.Context, span trace.Span, stop types.StopQuery, reqURL string) (*StopData, error) {
	if strings.TrimSpace(string(stop)) == "" {
		bvgotel.RecordError(span, ErrEmptyStop, bvgotel.ErrorTypeValidation, false)
		return nil, ErrEmptyStop
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		bvgotel.RecordError(span, err, bvgotel.ErrorTypeValidation, false)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "bvgboard/1.0.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		bvgotel.RecordError(span, err, bvgotel.ClassifyNetworkError(err), true)
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.String("http.response.content_type", resp.Header.Get("Content-Type")),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Keep a bit of the error body for debugging
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		bvgotel.RecordError(span, err, bvgotel.ErrorTypeHTTP, resp.StatusCode >= 500)
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		bvgotel.RecordError(span, err, bvgotel.ClassifyNetworkError(err), true)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	span.SetAttributes(attribute.Int("response.size_bytes", len(body)))
	bvgotel.SetSpanOk(span)

	return &StopData{
		Body:      body,
		Timestamp: time.Now(),
		StopID:    stop,
	}, nil
}
