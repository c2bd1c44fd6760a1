// Package telemetry initializes OpenTelemetry tracing and metrics exporters
// and holds the engine's instruments.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Shutdown flushes and stops the providers set up by Init.
type Shutdown func(ctx context.Context) error

// Init configures the global tracer and meter providers. With an empty
// endpoint the global no-op providers stay in place.
func Init(ctx context.Context, endpoint, serviceName, version string, insecure bool) (Shutdown, error) {
	if endpoint == "" {
		return func(ctx context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
	}
	traceExp, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if insecure {
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}
	metricExp, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(15*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		var firstErr error
		if err := tp.Shutdown(ctx); err != nil {
			firstErr = err
		}
		if err := mp.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr
	}, nil
}

// Meter returns the global meter for the given instrumentation scope.
func Meter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}

// Tracer returns the global tracer for the given instrumentation scope.
func Tracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}

var noopMeter = noop.NewMeterProvider().Meter("clipengine")

// CutMetrics are the Cutter's instruments.
type CutMetrics struct {
	Duration    metric.Float64Histogram
	CacheHits   metric.Int64Counter
	CacheMisses metric.Int64Counter
	Failures    metric.Int64Counter
}

// NewCutMetrics registers the Cutter instruments on the global meter.
// Registration errors fall back to no-op instruments.
func NewCutMetrics() CutMetrics {
	meter := Meter("clipengine/cutter")
	var m CutMetrics
	var err error
	if m.Duration, err = meter.Float64Histogram("clipengine.cut.duration",
		metric.WithDescription("Wall-clock time of a cold cut including thumbnail"),
		metric.WithUnit("ms"),
	); err != nil {
		m.Duration, _ = noopMeter.Float64Histogram("clipengine.cut.duration")
	}
	if m.CacheHits, err = meter.Int64Counter("clipengine.cache.hits",
		metric.WithDescription("Cuts served from the content cache"),
	); err != nil {
		m.CacheHits, _ = noopMeter.Int64Counter("clipengine.cache.hits")
	}
	if m.CacheMisses, err = meter.Int64Counter("clipengine.cache.misses",
		metric.WithDescription("Cuts that invoked the transcoder"),
	); err != nil {
		m.CacheMisses, _ = noopMeter.Int64Counter("clipengine.cache.misses")
	}
	if m.Failures, err = meter.Int64Counter("clipengine.cut.failures",
		metric.WithDescription("Cuts that ended in a CutFailure"),
	); err != nil {
		m.Failures, _ = noopMeter.Int64Counter("clipengine.cut.failures")
	}
	return m
}
