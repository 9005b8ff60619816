package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bvgboard/pkg/device"
	"bvgboard/pkg/display"
	"bvgboard/pkg/metrics"
	bvgotel "bvgboard/pkg/otel"
	"bvgboard/pkg/station"
	"bvgboard/pkg/types"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Cycle outcomes
const (
	OutcomeOK          = "ok"
	OutcomeEmpty       = "empty"
	OutcomeFetchFailed = "fetch_failed"
	OutcomeCancelled   = "cancelled"
)

// Fetcher returns the raw departures payload for a stop, or false
type Fetcher interface {
	Departures(ctx context.Context, stop types.StopQuery) ([]byte, bool)
}

// Extractor turns a payload into the departures to show at now
type Extractor interface {
	Extract(ctx context.Context, body []byte, now time.Time) []types.Departure
}

// StationSource provides the station for each cycle
type StationSource interface {
	Get() station.Station
	Changed() <-chan struct{}
}

// Clock abstracts time for testing
type Clock interface {
	Now() time.Time
}

// RealClock uses actual system time
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

type Pipeline struct {
	config Config
	tracer trace.Tracer
	cycles int
}

type Config struct {
	Client   Fetcher
	Parser   Extractor
	Renderer display.Renderer
	Stations StationSource
	Device   device.Hooks
	Clock    Clock
	Interval time.Duration

	// FullRefreshEvery flashes the panel after this many cycles.
	// Zero only flashes after the first render.
	FullRefreshEvery int
}

func New(config Config) (*Pipeline, error) {
	switch {
	case config.Client == nil:
		return nil, errors.New("departure client is required")
	case config.Parser == nil:
		return nil, errors.New("departure parser is required")
	case config.Renderer == nil:
		return nil, errors.New("renderer is required")
	case config.Stations == nil:
		return nil, errors.New("station source is required")
	case config.Interval <= 0:
		return nil, errors.New("refresh interval must be positive")
	case config.FullRefreshEvery < 0:
		return nil, errors.New("full refresh period must not be negative")
	}

	if config.Device == nil {
		config.Device = device.Noop{}
	}
	if config.Clock == nil {
		config.Clock = RealClock{}
	}

	return &Pipeline{
		config: config,
		tracer: otel.Tracer("pipeline"),
	}, nil
}

// Run refreshes immediately and then once per interval until ctx is done.
// Cycles never overlap; ticks missed while a cycle runs are dropped. A
// station change triggers a refresh straight away.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.config.Device.PreventSleep(ctx); err != nil {
		slog.Debug("Could not prevent device sleep", "error", err)
	}
	defer func() {
		// ctx is already cancelled here
		allowCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := p.config.Device.AllowSleep(allowCtx); err != nil {
			slog.Debug("Could not allow device sleep", "error", err)
		}
	}()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	slog.Info("Board started", "interval", p.config.Interval, "stop_id", p.config.Stations.Get().StopID)

	p.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Board stopped", "cycles", p.cycles)
			return ctx.Err()
		case <-p.config.Stations.Changed():
			p.cycle(ctx)
			ticker.Reset(p.config.Interval)
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// cycle runs one refresh and any due panel flash
func (p *Pipeline) cycle(ctx context.Context) {
	board, rendered := p.refresh(ctx)
	if !rendered {
		return
	}
	p.cycles++

	every := p.config.FullRefreshEvery
	if p.cycles == 1 || (every > 0 && p.cycles%every == 0) {
		if err := p.config.Device.FullRefresh(ctx); err != nil {
			slog.Debug("Full refresh failed", "cycle_id", board.CycleID, "error", err)
		}
	}
}

// RefreshOnce fetches, extracts and renders one board for the current
// station. A failed fetch renders an empty board. Nothing is rendered once
// ctx is cancelled.
func (p *Pipeline) RefreshOnce(ctx context.Context) types.Board {
	board, _ := p.refresh(ctx)
	return board
}

// refresh reports whether the board reached the renderer
func (p *Pipeline) refresh(ctx context.Context) (types.Board, bool) {
	st := p.config.Stations.Get()
	cycleID := uuid.NewString()

	ctx, span := p.tracer.Start(ctx, "pipeline.refresh",
		trace.WithAttributes(
			attribute.String("cycle_id", cycleID),
			attribute.String("stop_id", string(st.StopID)),
		),
	)
	defer span.End()

	start := time.Now()

	body, ok := p.config.Client.Departures(ctx, st.StopID)

	board := types.Board{
		CycleID:      cycleID,
		StopID:       st.StopID,
		StationLabel: st.Label,
		GeneratedAt:  p.config.Clock.Now(),
		FetchOK:      ok,
	}
	if ok {
		board.Departures = p.config.Parser.Extract(ctx, body, board.GeneratedAt)
	}

	if err := ctx.Err(); err != nil {
		span.SetAttributes(attribute.String("outcome", OutcomeCancelled))
		metrics.RecordCycle(ctx, OutcomeCancelled, time.Since(start))
		return board, false
	}

	outcome := OutcomeOK
	switch {
	case !ok:
		outcome = OutcomeFetchFailed
	case board.Empty():
		outcome = OutcomeEmpty
	}

	if err := p.config.Renderer.Render(ctx, board); err != nil {
		bvgotel.RecordError(span, err, bvgotel.ErrorTypeRender, true)
		slog.Warn("Failed to render board", "cycle_id", cycleID, "error", err)
	} else {
		bvgotel.SetSpanOk(span)
	}

	span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.Int("departures_count", len(board.Departures)),
	)
	metrics.RecordCycle(ctx, outcome, time.Since(start))
	metrics.RecordLastRefresh(board.GeneratedAt)

	slog.Debug("Board refreshed",
		"cycle_id", cycleID,
		"stop_id", st.StopID,
		"outcome", outcome,
		"departures", len(board.Departures),
		"duration", time.Since(start),
	)

	return board, true
}
