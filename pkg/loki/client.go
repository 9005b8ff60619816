package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	bvgotel "bvgboard/pkg/otel"
	"bvgboard/pkg/types"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const pushPath = "/loki/api/v1/push"

// Client pushes each rendered board to Loki as JSON log lines.
// It satisfies display.Renderer.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	tracer     trace.Tracer
}

type PushRequest struct {
	Streams []Stream `json:"streams"`
}

type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

// departureLine is one departure as logged
type departureLine struct {
	CycleID      string          `json:"cycle_id"`
	StopID       types.StopQuery `json:"stop_id"`
	Station      string          `json:"station"`
	Line         string          `json:"line"`
	Direction    string          `json:"direction"`
	ScheduledAt  string          `json:"scheduled_at"`
	MinutesUntil int             `json:"minutes_until"`
	Position     int             `json:"position"`
}

// summaryLine closes every board so empty refreshes are visible too
type summaryLine struct {
	CycleID     string          `json:"cycle_id"`
	StopID      types.StopQuery `json:"stop_id"`
	Station     string          `json:"station"`
	GeneratedAt time.Time       `json:"generated_at"`
	FetchOK     bool            `json:"fetch_ok"`
	Departures  int             `json:"departures"`
}

func NewClient(baseURL, username, password string) *Client {
	client := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   30 * time.Second,
	}

	return &Client{
		httpClient: client,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		username:   username,
		password:   password,
		tracer:     otel.Tracer("loki-client"),
	}
}

func (c *Client) Name() string {
	return "loki"
}

// Render pushes board as one stream labelled with its stop
func (c *Client) Render(ctx context.Context, board types.Board) error {
	ctx, span := c.tracer.Start(ctx, "loki.push_board",
		trace.WithAttributes(
			attribute.String("cycle_id", board.CycleID),
			attribute.String("stop_id", string(board.StopID)),
			attribute.Int("departures_count", len(board.Departures)),
		),
	)
	defer span.End()

	values, err := logValues(board)
	if err != nil {
		bvgotel.RecordError(span, err, bvgotel.ErrorTypeRender, false)
		return err
	}

	lokiReq := PushRequest{
		Streams: []Stream{
			{
				Stream: map[string]string{
					"job":     bvgotel.ServiceName,
					"service": "departure-board",
					"stop_id": string(board.StopID),
				},
				Values: values,
			},
		},
	}

	reqBody, err := json.Marshal(lokiReq)
	if err != nil {
		bvgotel.RecordError(span, err, bvgotel.ErrorTypeRender, false)
		return fmt.Errorf("failed to marshal Loki request: %w", err)
	}

	url := c.baseURL + pushPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		bvgotel.RecordError(span, err, bvgotel.ErrorTypeValidation, false)
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "bvgboard/1.0.0")

	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
		span.SetAttributes(
			attribute.Bool("auth.enabled", true),
			attribute.String("auth.username", c.username),
		)
	} else {
		span.SetAttributes(attribute.Bool("auth.enabled", false))
	}

	span.SetAttributes(
		attribute.String("http.url", url),
		attribute.Int("request.size_bytes", len(reqBody)),
		attribute.Int("log_lines_count", len(values)),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		bvgotel.RecordError(span, err, bvgotel.ClassifyNetworkError(err), true)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("Loki returned status %d", resp.StatusCode)
		bvgotel.RecordError(span, err, bvgotel.ErrorTypeHTTP, resp.StatusCode >= 500)
		return err
	}

	bvgotel.SetSpanOk(span)
	return nil
}

// logValues builds [timestamp, line] pairs: one per departure in board
// order, then the summary. Timestamps are spaced by a nanosecond so Loki
// keeps the order.
func logValues(board types.Board) ([][]string, error) {
	ts := board.GeneratedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	base := ts.UnixNano()

	values := make([][]string, 0, len(board.Departures)+1)
	for i, d := range board.Departures {
		line, err := json.Marshal(departureLine{
			CycleID:      board.CycleID,
			StopID:       board.StopID,
			Station:      board.StationLabel,
			Line:         d.Line,
			Direction:    d.Direction,
			ScheduledAt:  d.ScheduledAt,
			MinutesUntil: d.MinutesUntil,
			Position:     i + 1,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal departure JSON: %w", err)
		}
		values = append(values, []string{strconv.FormatInt(base+int64(i), 10), string(line)})
	}

	summary, err := json.Marshal(summaryLine{
		CycleID:     board.CycleID,
		StopID:      board.StopID,
		Station:     board.StationLabel,
		GeneratedAt: ts,
		FetchOK:     board.FetchOK,
		Departures:  len(board.Departures),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal summary JSON: %w", err)
	}
	values = append(values, []string{strconv.FormatInt(base+int64(len(board.Departures)), 10), string(summary)})

	return values, nil
}
