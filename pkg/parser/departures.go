package parser

import (
	"context"
	"iter"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"bvgboard/pkg/metrics"
	bvgotel "bvgboard/pkg/otel"
	"bvgboard/pkg/types"

	"github.com/clbanning/mxj/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Reasons an entry is left off the board
const (
	DiscardNoLine   = "no_line"
	DiscardNoTime   = "no_time"
	DiscardBadTime  = "bad_time"
	DiscardDeparted = "departed"
)

// DepartureParser turns a BVG departures payload into board entries.
// It never fails: anything it cannot use is dropped.
type DepartureParser struct {
	tracer   trace.Tracer
	mode     TimeMode
	location *time.Location
	limit    int
}

type Option func(*DepartureParser)

// WithTimeMode selects offset-aware or wall-clock timestamp handling
func WithTimeMode(mode TimeMode) Option {
	return func(p *DepartureParser) {
		p.mode = mode
	}
}

// WithLocation sets the zone used for timestamps without an offset
// and for wall-clock mode. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(p *DepartureParser) {
		if loc != nil {
			p.location = loc
		}
	}
}

func NewDepartureParser(opts ...Option) *DepartureParser {
	p := &DepartureParser{
		tracer:   otel.Tracer("departure-parser"),
		mode:     TimeModeOffset,
		location: time.Local,
		limit:    types.MaxDepartures,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mode reports the configured time mode
func (p *DepartureParser) Mode() TimeMode {
	return p.mode
}

// candidate is an entry after normalization, before filtering
type candidate struct {
	departure types.Departure
	reason    string
}

// Extract returns at most types.MaxDepartures departures from body, in source
// order, each with MinutesUntil computed against now. Malformed JSON, a
// missing departures array and unusable entries all yield fewer or zero
// results; nil means nothing to show.
func (p *DepartureParser) Extract(ctx context.Context, body []byte, now time.Time) []types.Departure {
	ctx, span := p.tracer.Start(ctx, "parser.extract_departures",
		trace.WithAttributes(
			attribute.Int("payload_size_bytes", len(body)),
			attribute.String("time_mode", p.mode.String()),
		),
	)
	defer span.End()

	start := time.Now()

	entries, err := decodeEntries(body)
	if err != nil {
		bvgotel.RecordError(span, err, bvgotel.ErrorTypeParse, false)
		slog.Debug("Departures payload is not a JSON object", "error", err, "size", len(body))
		metrics.RecordExtraction(ctx, time.Since(start), 0, nil)
		return nil
	}

	discarded := make(map[string]int)
	seq := take(p.limit,
		keep(discarded,
			p.normalize(now,
				window(p.limit, entries))))
	departures := slices.Collect(seq)

	span.SetAttributes(
		attribute.Int("entries_count", len(entries)),
		attribute.Int("departures_count", len(departures)),
	)
	for reason, n := range discarded {
		span.SetAttributes(attribute.Int("discarded."+reason, n))
	}
	bvgotel.SetSpanOk(span)
	metrics.RecordExtraction(ctx, time.Since(start), len(departures), discarded)

	return departures
}

// decodeEntries parses body and returns the raw departures array.
// A payload without a departures array is valid and has no entries.
func decodeEntries(body []byte) ([]interface{}, error) {
	m, err := mxj.NewMapJson(body)
	if err != nil {
		return nil, err
	}

	entries, ok := m["departures"].([]interface{})
	if !ok {
		return nil, nil
	}
	return entries, nil
}

// window yields the first n raw entries. Entries that are not JSON objects
// come through as nil maps so they still use up a slot.
func window(n int, entries []interface{}) iter.Seq[mxj.Map] {
	return func(yield func(mxj.Map) bool) {
		for i, raw := range entries {
			if i >= n {
				return
			}
			entry, _ := raw.(map[string]interface{})
			if !yield(mxj.Map(entry)) {
				return
			}
		}
	}
}

// normalize maps raw entries onto departures with a fresh MinutesUntil.
// Entries without a usable time get MinutesUntil -1.
func (p *DepartureParser) normalize(now time.Time, entries iter.Seq[mxj.Map]) iter.Seq[candidate] {
	return func(yield func(candidate) bool) {
		for entry := range entries {
			if !yield(p.normalizeEntry(now, entry)) {
				return
			}
		}
	}
}

func (p *DepartureParser) normalizeEntry(now time.Time, entry mxj.Map) candidate {
	line, _ := stringAt(entry, "line.name")
	direction, _ := stringAt(entry, "direction")

	c := candidate{
		departure: types.Departure{
			Line:         line,
			Direction:    direction,
			MinutesUntil: -1,
		},
	}

	if when, ok := stringAt(entry, "when"); !ok {
		c.reason = DiscardNoTime
	} else if at, err := ParseWhen(when, p.mode, p.location); err != nil {
		c.departure.ScheduledAt = when
		c.reason = DiscardBadTime
	} else {
		c.departure.ScheduledAt = when
		c.departure.MinutesUntil = MinutesUntil(at, now)
		if c.departure.MinutesUntil < 0 {
			c.reason = DiscardDeparted
		}
	}

	if line == "" {
		c.reason = DiscardNoLine
	}
	return c
}

// keep passes valid departures through and counts the rest by reason
func keep(discarded map[string]int, candidates iter.Seq[candidate]) iter.Seq[types.Departure] {
	return func(yield func(types.Departure) bool) {
		for c := range candidates {
			if !c.departure.Valid() {
				discarded[c.reason]++
				continue
			}
			if !yield(c.departure) {
				return
			}
		}
	}
}

// take stops after n departures
func take(n int, deps iter.Seq[types.Departure]) iter.Seq[types.Departure] {
	return func(yield func(types.Departure) bool) {
		if n <= 0 {
			return
		}
		count := 0
		for d := range deps {
			if !yield(d) {
				return
			}
			count++
			if count >= n {
				return
			}
		}
	}
}

// stringAt reads a scalar at path. JSON null, objects and arrays read as
// absent; numbers and booleans are formatted.
func stringAt(m mxj.Map, path string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, err := m.ValueForPath(path)
	if err != nil || v == nil {
		return "", false
	}

	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
