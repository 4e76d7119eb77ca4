package otel

import (
	"context"
	"fmt"
	"time"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Providers bundles the SDK providers created by Setup with their
// shutdown function.
type Providers struct {
	Tracer *sdktrace.TracerProvider
	Meter  *sdkmetric.MeterProvider

	shutdown func(context.Context) error
}

// Shutdown flushes and stops the providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// Setup configures OTLP/HTTP trace export and an SDK meter provider, and
// installs both as the global providers. endpoint is host:port of the
// collector, without scheme.
func Setup(ctx context.Context, endpoint, serviceName string) (*Providers, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("otel: endpoint is empty")
	}
	if serviceName == "" {
		serviceName = "storefront"
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otel: create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("otel: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
	)

	otelapi.SetTracerProvider(tp)
	otelapi.SetMeterProvider(mp)

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		tracerErr := tp.Shutdown(ctx)
		meterErr := mp.Shutdown(ctx)
		if tracerErr != nil {
			return tracerErr
		}
		return meterErr
	}

	return &Providers{Tracer: tp, Meter: mp, shutdown: shutdown}, nil
}
