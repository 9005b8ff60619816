package display

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"bvgboard/pkg/types"
)

var fixedClock = func() time.Time {
	return time.Date(2024, 1, 15, 14, 27, 0, 0, time.UTC)
}

func board(deps ...types.Departure) types.Board {
	return types.Board{
		CycleID:      "cycle-1",
		StopID:       "900100003",
		StationLabel: "Alexanderplatz",
		Departures:   deps,
	}
}

func render(t *testing.T, b types.Board, opts ...TerminalOption) []string {
	t.Helper()
	var buf bytes.Buffer
	r := NewTerminalRenderer(&buf, append([]TerminalOption{WithWidth(40), WithClock(fixedClock)}, opts...)...)
	if err := r.Render(context.Background(), b); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
}

func TestTerminalRenderer_Header(t *testing.T) {
	got := render(t, board())

	if len(got) < 2 {
		t.Fatalf("got %d lines, want at least 2", len(got))
	}
	want := "Alexanderplatz" + strings.Repeat(" ", 34-len("Alexanderplatz")) + " 14:27"
	if got[0] != want {
		t.Errorf("header = %q, want %q", got[0], want)
	}
	if got[1] != strings.Repeat("─", 40) {
		t.Errorf("rule = %q", got[1])
	}
}

func TestTerminalRenderer_Empty(t *testing.T) {
	got := render(t, board())

	if len(got) != 3 || got[2] != "No departures available" {
		t.Errorf("empty board = %q", got)
	}
}

func TestTerminalRenderer_Rows(t *testing.T) {
	got := render(t, board(
		types.Departure{Line: "U2", Direction: "Pankow", MinutesUntil: 5},
		types.Departure{Line: "M10", Direction: "Warschauer Str.", MinutesUntil: 0},
		types.Departure{Line: "S5", Direction: "Spandau", MinutesUntil: 12},
	))

	rows := got[2:]
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3: %q", len(rows), rows)
	}

	tests := []struct {
		line, direction, countdown string
	}{
		{"U2", "Pankow", "5 min"},
		{"M10", "Warschauer Str.", "now"},
		{"S5", "Spandau", "12 min"},
	}
	row := regexp.MustCompile(`^(.{4}) (.{27}) (.{7})$`)
	for i, tt := range tests {
		m := row.FindStringSubmatch(rows[i])
		if m == nil {
			t.Errorf("row %d = %q does not match layout", i, rows[i])
			continue
		}
		if strings.TrimSpace(m[1]) != tt.line {
			t.Errorf("row %d line = %q, want %q", i, m[1], tt.line)
		}
		if strings.TrimSpace(m[2]) != tt.direction {
			t.Errorf("row %d direction = %q, want %q", i, m[2], tt.direction)
		}
		if strings.TrimSpace(m[3]) != tt.countdown {
			t.Errorf("row %d countdown = %q, want %q", i, m[3], tt.countdown)
		}
		if !strings.HasSuffix(m[3], tt.countdown) {
			t.Errorf("row %d countdown %q not right-aligned", i, m[3])
		}
	}
}

func TestTerminalRenderer_TruncatesLongText(t *testing.T) {
	got := render(t, types.Board{
		StationLabel: "S+U Friedrichstraße Bahnhof (Berlin) Reichstagufer",
		Departures: []types.Departure{
			{Line: "RE1234", Direction: "Frankfurt (Oder) über Erkner, Fürstenwalde und Briesen", MinutesUntil: 3},
		},
	})

	for i, line := range got {
		if w := len([]rune(line)); w > 40 {
			t.Errorf("line %d is %d cells wide: %q", i, w, line)
		}
	}
	if !strings.HasSuffix(got[0], " 14:27") {
		t.Errorf("header lost the clock: %q", got[0])
	}
	if !strings.Contains(got[2], "…") {
		t.Errorf("row not truncated: %q", got[2])
	}
}

func TestTerminalRenderer_StripsControlCharacters(t *testing.T) {
	b := board(types.Departure{Line: "U2\x1b[31m", Direction: "Pankow\r\x1b[2JEvil\ttab", MinutesUntil: 5})
	b.StationLabel = "Alex\x07anderplatz"
	got := render(t, b)

	for i, line := range got {
		if strings.ContainsFunc(line, func(r rune) bool { return r < 0x20 || r == 0x7f }) {
			t.Errorf("line %d carries control characters: %q", i, line)
		}
		if w := len([]rune(line)); w > 40 {
			t.Errorf("line %d is %d cells wide: %q", i, w, line)
		}
	}
	if !strings.Contains(got[2], "Pankow") {
		t.Errorf("direction lost: %q", got[2])
	}
}

func TestTerminalRenderer_LongCountdownNotTruncated(t *testing.T) {
	got := render(t, board(types.Departure{Line: "RE1", Direction: "Frankfurt (Oder) über Erkner", MinutesUntil: 12345}))

	row := got[2]
	if !strings.HasSuffix(row, " 12345 min") {
		t.Errorf("row = %q, want full countdown", row)
	}
	if w := len([]rune(row)); w != 40 {
		t.Errorf("row is %d cells wide, want 40: %q", w, row)
	}
}

func TestTerminalRenderer_ClearScreen(t *testing.T) {
	var buf bytes.Buffer
	r := NewTerminalRenderer(&buf, WithClock(fixedClock), WithClearScreen(true))
	if err := r.Render(context.Background(), board()); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), clearScreen) {
		t.Errorf("output does not start with clear sequence: %q", buf.String())
	}
}

func TestTerminalRenderer_NarrowWidthIgnored(t *testing.T) {
	r := NewTerminalRenderer(&bytes.Buffer{}, WithWidth(5))
	if r.width != DefaultWidth {
		t.Errorf("width = %d, want %d", r.width, DefaultWidth)
	}
}

func TestTerminalRenderer_CancelledContext(t *testing.T) {
	var buf bytes.Buffer
	r := NewTerminalRenderer(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.Render(ctx, board()); !errors.Is(err, context.Canceled) {
		t.Errorf("Render() error = %v, want context.Canceled", err)
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes after cancel", buf.Len())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("screen gone") }

func TestTerminalRenderer_WriteError(t *testing.T) {
	r := NewTerminalRenderer(failingWriter{})
	if err := r.Render(context.Background(), board()); err == nil {
		t.Error("Render() expected error")
	}
}

type recordingRenderer struct {
	name   string
	err    error
	boards []types.Board
}

func (r *recordingRenderer) Render(_ context.Context, b types.Board) error {
	r.boards = append(r.boards, b)
	return r.err
}

func (r *recordingRenderer) Name() string { return r.name }

func TestMulti(t *testing.T) {
	first := &recordingRenderer{name: "first", err: errors.New("push failed")}
	second := &recordingRenderer{name: "second"}

	m := Multi(first, nil, Multi(second))

	err := m.Render(context.Background(), board())
	if err == nil || !strings.Contains(err.Error(), "first: push failed") {
		t.Errorf("Render() error = %v, want first renderer's error", err)
	}
	if len(first.boards) != 1 || len(second.boards) != 1 {
		t.Errorf("renders = %d,%d, want 1,1", len(first.boards), len(second.boards))
	}
}

func TestMulti_NoErrors(t *testing.T) {
	m := Multi(&recordingRenderer{name: "a"}, &recordingRenderer{name: "b"})
	if err := m.Render(context.Background(), board()); err != nil {
		t.Errorf("Render() error = %v", err)
	}
}

func TestName(t *testing.T) {
	if got := Name(&recordingRenderer{name: "loki"}); got != "loki" {
		t.Errorf("Name() = %q, want loki", got)
	}
	if got := Name(NewTerminalRenderer(&bytes.Buffer{})); got != "terminal" {
		t.Errorf("Name() = %q, want terminal", got)
	}
}

func TestLineColor(t *testing.T) {
	tests := []struct {
		line     string
		expected string
	}{
		{"U2", "#DA421E"},
		{"u2", "#DA421E"},
		{"S41", "#AD5937"},
		{"M10", tramColor},
		{"RE1", regionalColor},
		{"100", busColor},
		{"X9", busColor},
		{"N5", busColor},
	}
	for _, tt := range tests {
		if got := LineColor(tt.line); got != tt.expected {
			t.Errorf("LineColor(%q) = %q, want %q", tt.line, got, tt.expected)
		}
	}

	hex := regexp.MustCompile(`^#[0-9a-f]{6}$`)
	for _, line := range []string{"F10", "FEX", "Bus SEV"} {
		c := LineColor(line)
		if !hex.MatchString(c) {
			t.Errorf("LineColor(%q) = %q, want hex colour", line, c)
		}
		if c != LineColor(line) {
			t.Errorf("LineColor(%q) not stable", line)
		}
	}
}
