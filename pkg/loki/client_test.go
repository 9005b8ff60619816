package loki

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"bvgboard/pkg/types"
)

func testBoard() types.Board {
	return types.Board{
		CycleID:      "8a3c0b6e-1f7d-4c1e-9a55-2b7d2f0c9e11",
		StopID:       "900100003",
		StationLabel: "Alexanderplatz",
		GeneratedAt:  time.Date(2024, 1, 15, 13, 27, 0, 0, time.UTC),
		FetchOK:      true,
		Departures: []types.Departure{
			{Line: "U2", Direction: "Pankow", ScheduledAt: "2024-01-15T14:32:00+01:00", MinutesUntil: 5},
			{Line: "M48", Direction: "Busse", ScheduledAt: "2024-01-15T14:36:00+01:00", MinutesUntil: 9},
		},
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:3100/", "user", "pass")

	if client == nil {
		t.Fatal("NewClient returned nil")
	}
	if client.baseURL != "http://localhost:3100" {
		t.Errorf("baseURL = %q, want %q", client.baseURL, "http://localhost:3100")
	}
	if client.username != "user" {
		t.Errorf("username = %q, want %q", client.username, "user")
	}
	if client.password != "pass" {
		t.Errorf("password = %q, want %q", client.password, "pass")
	}
	if client.Name() != "loki" {
		t.Errorf("Name() = %q, want loki", client.Name())
	}
}

func TestRender_MockServer(t *testing.T) {
	var receivedBody []byte
	var receivedHeaders http.Header
	var receivedPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedPath = r.URL.Path
		receivedHeaders = r.Header
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "")

	if err := client.Render(context.Background(), testBoard()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if receivedPath != "/loki/api/v1/push" {
		t.Errorf("Expected path /loki/api/v1/push, got %s", receivedPath)
	}
	if receivedHeaders.Get("Content-Type") != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", receivedHeaders.Get("Content-Type"))
	}
	if receivedHeaders.Get("User-Agent") != "bvgboard/1.0.0" {
		t.Errorf("Expected User-Agent bvgboard/1.0.0, got %s", receivedHeaders.Get("User-Agent"))
	}

	var pushReq PushRequest
	if err := json.Unmarshal(receivedBody, &pushReq); err != nil {
		t.Fatalf("Failed to parse request body: %v", err)
	}
	if len(pushReq.Streams) != 1 {
		t.Fatalf("Expected 1 stream, got %d", len(pushReq.Streams))
	}

	stream := pushReq.Streams[0]
	expectedLabels := map[string]string{
		"job":     "bvgboard",
		"service": "departure-board",
		"stop_id": "900100003",
	}
	for key, expected := range expectedLabels {
		if stream.Stream[key] != expected {
			t.Errorf("Stream label %q = %q, want %q", key, stream.Stream[key], expected)
		}
	}

	// Two departures plus the summary
	if len(stream.Values) != 3 {
		t.Fatalf("Expected 3 log entries, got %d", len(stream.Values))
	}

	var first map[string]interface{}
	if err := json.Unmarshal([]byte(stream.Values[0][1]), &first); err != nil {
		t.Fatalf("Failed to parse log content JSON: %v", err)
	}
	for _, field := range []string{"cycle_id", "stop_id", "station", "line", "direction", "scheduled_at", "minutes_until", "position"} {
		if _, exists := first[field]; !exists {
			t.Errorf("Expected field %q in log content, not found", field)
		}
	}
	if first["line"] != "U2" || first["minutes_until"] != float64(5) {
		t.Errorf("first line = %v", first)
	}

	var summary map[string]interface{}
	if err := json.Unmarshal([]byte(stream.Values[2][1]), &summary); err != nil {
		t.Fatalf("Failed to parse summary JSON: %v", err)
	}
	if summary["departures"] != float64(2) || summary["fetch_ok"] != true {
		t.Errorf("summary = %v", summary)
	}
}

func TestRender_TimestampsKeepOrder(t *testing.T) {
	values, err := logValues(testBoard())
	if err != nil {
		t.Fatalf("logValues() error = %v", err)
	}

	var prev int64
	for i, v := range values {
		ts, err := strconv.ParseInt(v[0], 10, 64)
		if err != nil {
			t.Fatalf("value %d timestamp %q: %v", i, v[0], err)
		}
		if i > 0 && ts <= prev {
			t.Errorf("timestamp %d = %d not after %d", i, ts, prev)
		}
		prev = ts
	}
}

func TestRender_WithAuthentication(t *testing.T) {
	var authHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "testuser", "testpass")

	if err := client.Render(context.Background(), testBoard()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.HasPrefix(authHeader, "Basic ") {
		t.Errorf("Expected Basic auth, got %q", authHeader)
	}
}

func TestRender_NoAuthenticationWhenEmpty(t *testing.T) {
	var authHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "")

	if err := client.Render(context.Background(), testBoard()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if authHeader != "" {
		t.Errorf("Expected no Authorization header, got %q", authHeader)
	}
}

func TestRender_ErrorOnNon2xx(t *testing.T) {
	tests := []struct {
		statusCode int
		expectErr  bool
	}{
		{http.StatusOK, false},
		{http.StatusNoContent, false},
		{http.StatusBadRequest, true},
		{http.StatusUnauthorized, true},
		{http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.statusCode), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			err := NewClient(server.URL, "", "").Render(context.Background(), testBoard())
			if tt.expectErr && err == nil {
				t.Errorf("Expected error for status %d, got nil", tt.statusCode)
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Unexpected error for status %d: %v", tt.statusCode, err)
			}
		})
	}
}

func TestRender_EmptyBoardStillLogsSummary(t *testing.T) {
	var receivedBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	board := testBoard()
	board.Departures = nil
	board.FetchOK = false

	if err := NewClient(server.URL, "", "").Render(context.Background(), board); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	var pushReq PushRequest
	if err := json.Unmarshal(receivedBody, &pushReq); err != nil {
		t.Fatalf("Failed to parse request body: %v", err)
	}
	values := pushReq.Streams[0].Values
	if len(values) != 1 {
		t.Fatalf("Expected only the summary, got %d entries", len(values))
	}
	if !strings.Contains(values[0][1], `"fetch_ok":false`) {
		t.Errorf("summary = %s", values[0][1])
	}
}

func TestRender_ServerUnavailable(t *testing.T) {
	client := NewClient("http://127.0.0.1:59999", "", "")

	if err := client.Render(context.Background(), testBoard()); err == nil {
		t.Error("Expected error when server is unavailable, got nil")
	}
}

func TestRender_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewClient(server.URL, "", "").Render(ctx, testBoard()); err == nil {
		t.Error("Expected error when context is cancelled, got nil")
	}
}
