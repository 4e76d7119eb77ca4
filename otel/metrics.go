package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/quickbasket/storefront-go/notify"
)

// MetricsHandler translates store events into OpenTelemetry metrics:
// counters for operation outcomes and a histogram of operation durations.
type MetricsHandler struct {
	opSuccesses metric.Int64Counter
	opFailures  metric.Int64Counter
	opDuration  metric.Float64Histogram
}

// NewMetricsHandler creates a MetricsHandler that uses the given meter to
// create instruments for recording store operation metrics.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	successes, err := meter.Int64Counter("storefront.op.successes",
		metric.WithDescription("Number of successful store operations"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("storefront.op.failures",
		metric.WithDescription("Number of failed store operations"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("storefront.op.duration",
		metric.WithDescription("Duration of store operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		opSuccesses: successes,
		opFailures:  failures,
		opDuration:  duration,
	}, nil
}

// Handle processes one store event and records the appropriate metrics.
func (h *MetricsHandler) Handle(e notify.Event) {
	attrs := metric.WithAttributes(
		attribute.String("op", string(e.Op)),
	)

	switch e.Stage {
	case notify.StageSucceeded:
		h.opSuccesses.Add(context.Background(), 1, attrs)
		if e.Elapsed > 0 {
			h.opDuration.Record(context.Background(), e.Elapsed.Seconds(), attrs)
		}
	case notify.StageFailed:
		if e.Level != notify.LevelError {
			return
		}
		h.opFailures.Add(context.Background(), 1, attrs)
		if e.Elapsed > 0 {
			h.opDuration.Record(context.Background(), e.Elapsed.Seconds(), attrs)
		}
	}
}

// Run consumes a subscription until it is closed.
func (h *MetricsHandler) Run(sub notify.Subscription) {
	for e := range sub.Events() {
		h.Handle(e)
	}
}
