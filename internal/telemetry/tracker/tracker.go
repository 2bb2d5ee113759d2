// Package tracker wraps the otel meter with counters/histograms for calls
// made to each market provider.
package tracker

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tokenpulse/tokenpulse/internal/telemetry/otel"
)

// APICallTracker records per-call counts, durations, and errors for an
// external dependency (a market provider).
type APICallTracker struct {
	meter           metric.Meter
	apiCallCounter  metric.Int64Counter
	apiCallDuration metric.Float64Histogram
	activeRequests  metric.Int64UpDownCounter
	errorCounter    metric.Int64Counter
}

func New(t *otel.Telemetry) *APICallTracker {
	tr := &APICallTracker{meter: t.Meter}
	tr.initMetrics()
	return tr
}

func (t *APICallTracker) initMetrics() {
	var err error
	if t.apiCallCounter, err = t.meter.Int64Counter("pipeline.api_calls.count"); err != nil {
		slog.Warn("failed to create api call counter", slog.Any("err", err))
	}
	if t.apiCallDuration, err = t.meter.Float64Histogram(
		"pipeline.api_calls.duration_ms",
		metric.WithExplicitBucketBoundaries(10, 50, 100, 250, 500, 1000, 2500, 5000, 10000),
	); err != nil {
		slog.Warn("failed to create api call duration histogram", slog.Any("err", err))
	}
	if t.activeRequests, err = t.meter.Int64UpDownCounter("pipeline.api_calls.active"); err != nil {
		slog.Warn("failed to create active requests gauge", slog.Any("err", err))
	}
	if t.errorCounter, err = t.meter.Int64Counter("pipeline.api_calls.errors"); err != nil {
		slog.Warn("failed to create api error counter", slog.Any("err", err))
	}
}

// TrackCall records one call to provider/endpoint and returns a finish
// function to call with the outcome once the call completes.
func (t *APICallTracker) TrackCall(ctx context.Context, provider, endpoint string) (finish func(err error)) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("endpoint", endpoint),
	)
	start := time.Now()
	if t.activeRequests != nil {
		t.activeRequests.Add(ctx, 1, attrs)
	}
	if t.apiCallCounter != nil {
		t.apiCallCounter.Add(ctx, 1, attrs)
	}
	return func(err error) {
		if t.activeRequests != nil {
			t.activeRequests.Add(ctx, -1, attrs)
		}
		if t.apiCallDuration != nil {
			t.apiCallDuration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
		}
		if err != nil && t.errorCounter != nil {
			t.errorCounter.Add(ctx, 1, attrs)
		}
	}
}
