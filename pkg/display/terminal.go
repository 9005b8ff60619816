package display

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"bvgboard/pkg/types"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	DefaultWidth = 60
	minWidth     = 20

	lineWidth      = 4
	countdownWidth = 7
	clockWidth     = 5

	clearScreen  = "\x1b[H\x1b[2J"
	noDepartures = "No departures available"
)

// TerminalRenderer draws the board as text. Colours and bold are dropped
// automatically when the writer is not a colour terminal.
type TerminalRenderer struct {
	out   io.Writer
	width int
	clock func() time.Time
	clear bool

	header    lipgloss.Style
	timeStyle lipgloss.Style
	rule      lipgloss.Style
	line      lipgloss.Style
	direction lipgloss.Style
	countdown lipgloss.Style
	due       lipgloss.Style
	empty     lipgloss.Style
}

type TerminalOption func(*TerminalRenderer)

// WithWidth sets the board width in cells
func WithWidth(width int) TerminalOption {
	return func(r *TerminalRenderer) {
		if width >= minWidth {
			r.width = width
		}
	}
}

// WithClock sets the clock shown in the header
func WithClock(clock func() time.Time) TerminalOption {
	return func(r *TerminalRenderer) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithClearScreen redraws from the top of the screen on every render
func WithClearScreen(clear bool) TerminalOption {
	return func(r *TerminalRenderer) {
		r.clear = clear
	}
}

func NewTerminalRenderer(out io.Writer, opts ...TerminalOption) *TerminalRenderer {
	lr := lipgloss.NewRenderer(out)

	r := &TerminalRenderer{
		out:   out,
		width: DefaultWidth,
		clock: time.Now,

		header:    lr.NewStyle().Bold(true),
		timeStyle: lr.NewStyle().Bold(true),
		rule:      lr.NewStyle().Faint(true),
		line:      lr.NewStyle().Bold(true),
		direction: lr.NewStyle(),
		countdown: lr.NewStyle(),
		due:       lr.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		empty:     lr.NewStyle().Italic(true),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *TerminalRenderer) Name() string {
	return "terminal"
}

// Render writes the whole board in one write
func (r *TerminalRenderer) Render(ctx context.Context, board types.Board) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	if r.clear {
		b.WriteString(clearScreen)
	}
	b.WriteString(r.Format(board))

	if _, err := io.WriteString(r.out, b.String()); err != nil {
		return fmt.Errorf("failed to write board: %w", err)
	}
	return nil
}

// Format lays out the board: a header with the station label and the time,
// a rule, then one row per departure.
func (r *TerminalRenderer) Format(board types.Board) string {
	var b strings.Builder

	label := fit(board.StationLabel, r.width-clockWidth-1)
	clock := r.clock().Format("15:04")
	b.WriteString(r.header.Render(label))
	b.WriteString(" ")
	b.WriteString(r.timeStyle.Render(clock))
	b.WriteString("\n")

	b.WriteString(r.rule.Render(strings.Repeat("─", r.width)))
	b.WriteString("\n")

	if board.Empty() {
		b.WriteString(r.empty.Render(noDepartures))
		b.WriteString("\n")
		return b.String()
	}

	dirWidth := r.width - lineWidth - countdownWidth - 2
	for _, d := range board.Departures {
		line := r.line.Foreground(lipgloss.Color(LineColor(d.Line)))
		b.WriteString(line.Render(fit(d.Line, lineWidth)))
		b.WriteString(" ")
		// Long countdowns take their extra cells from the direction
		text := d.Countdown()
		cw := max(countdownWidth, runewidth.StringWidth(text))
		b.WriteString(r.direction.Render(fit(d.Direction, dirWidth-(cw-countdownWidth))))
		b.WriteString(" ")

		countdown := r.countdown
		if d.MinutesUntil <= 0 {
			countdown = r.due
		}
		b.WriteString(countdown.Render(runewidth.FillLeft(text, cw)))
		b.WriteString("\n")
	}
	return b.String()
}

// fit truncates or pads s to exactly width cells. Control characters from
// the feed become spaces so they never reach the terminal.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "…")
	}
	return runewidth.FillRight(s, width)
}
