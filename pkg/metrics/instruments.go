package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BVG API metrics
var (
	// APIRequestsTotal counts departure requests by outcome
	APIRequestsTotal metric.Int64Counter

	// APIRequestDuration measures departure request latency
	APIRequestDuration metric.Float64Histogram

	// APIResponseBodySize measures the size of departure responses
	APIResponseBodySize metric.Int64Histogram
)

// Parser metrics
var (
	// ParseDuration measures extraction time
	ParseDuration metric.Float64Histogram

	// DeparturesExtracted counts departures kept for display
	DeparturesExtracted metric.Int64Counter

	// DeparturesDiscarded counts entries dropped by reason
	DeparturesDiscarded metric.Int64Counter
)

// Refresh cycle metrics
var (
	// RefreshCyclesTotal counts refresh cycles by outcome
	RefreshCyclesTotal metric.Int64Counter

	// RefreshCycleDuration measures fetch + extract + render
	RefreshCycleDuration metric.Float64Histogram

	// RenderErrorsTotal counts failed renders
	RenderErrorsTotal metric.Int64Counter
)

// initializeInstruments creates all metric instruments
func initializeInstruments() error {
	var err error

	APIRequestsTotal, err = Meter.Int64Counter(
		"bvg.api.requests.total",
		metric.WithDescription("Total BVG departure requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	APIRequestDuration, err = Meter.Float64Histogram(
		"bvg.api.request.duration",
		metric.WithDescription("Duration of BVG departure requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 7.5, 10.0),
	)
	if err != nil {
		return err
	}

	APIResponseBodySize, err = Meter.Int64Histogram(
		"bvg.api.response.body.size",
		metric.WithDescription("Size of BVG departure responses"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(512, 1024, 4096, 16384, 65536, 262144),
	)
	if err != nil {
		return err
	}

	ParseDuration, err = Meter.Float64Histogram(
		"parser.duration",
		metric.WithDescription("Duration of departure extraction"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1),
	)
	if err != nil {
		return err
	}

	DeparturesExtracted, err = Meter.Int64Counter(
		"parser.departures.extracted",
		metric.WithDescription("Departures kept for display"),
		metric.WithUnit("{departure}"),
	)
	if err != nil {
		return err
	}

	DeparturesDiscarded, err = Meter.Int64Counter(
		"parser.departures.discarded",
		metric.WithDescription("Departure entries dropped by reason"),
		metric.WithUnit("{departure}"),
	)
	if err != nil {
		return err
	}

	RefreshCyclesTotal, err = Meter.Int64Counter(
		"board.refresh.cycles.total",
		metric.WithDescription("Total refresh cycles"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return err
	}

	RefreshCycleDuration, err = Meter.Float64Histogram(
		"board.refresh.cycle.duration",
		metric.WithDescription("Duration of refresh cycles"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 15.0),
	)
	if err != nil {
		return err
	}

	RenderErrorsTotal, err = Meter.Int64Counter(
		"board.render.errors.total",
		metric.WithDescription("Failed renders"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// RecordAPIRequest records one departure request. Safe to call with metrics disabled.
func RecordAPIRequest(ctx context.Context, outcome string, duration time.Duration, bodySize int) {
	if !IsEnabled() {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	APIRequestsTotal.Add(ctx, 1, attrs)
	APIRequestDuration.Record(ctx, duration.Seconds(), attrs)
	if bodySize > 0 {
		APIResponseBodySize.Record(ctx, int64(bodySize))
	}
}

// RecordExtraction records the result of one extraction
func RecordExtraction(ctx context.Context, duration time.Duration, kept int, discarded map[string]int) {
	if !IsEnabled() {
		return
	}
	ParseDuration.Record(ctx, duration.Seconds())
	DeparturesExtracted.Add(ctx, int64(kept))
	for reason, n := range discarded {
		if n > 0 {
			DeparturesDiscarded.Add(ctx, int64(n), metric.WithAttributes(attribute.String("reason", reason)))
		}
	}
}

// RecordCycle records a finished refresh cycle
func RecordCycle(ctx context.Context, outcome string, duration time.Duration) {
	if !IsEnabled() {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	RefreshCyclesTotal.Add(ctx, 1, attrs)
	RefreshCycleDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordRenderError counts a failed render
func RecordRenderError(ctx context.Context, renderer string) {
	if !IsEnabled() {
		return
	}
	RenderErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("renderer", renderer)))
}
