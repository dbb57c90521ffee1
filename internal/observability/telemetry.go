// Package observability sets up OpenTelemetry tracing and metrics. Traces
// are exported over OTLP gRPC and metrics through the Prometheus registry
// served on /metrics.
package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Telemetry holds the providers and the service-level instruments.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	logger         *zap.Logger

	requestCounter   metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorCounter     metric.Int64Counter
	cacheHitCounter  metric.Int64Counter
	cacheMissCounter metric.Int64Counter
}

// Config controls exporters and sampling.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// OTLPEndpoint is the collector address. Empty disables trace export.
	OTLPEndpoint string
	SampleRate   float64

	// Registerer receives the metric collector. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// InitTelemetry creates the providers, installs them globally and
// registers the service instruments.
//
// Parameters:
//   - ctx: Context for exporter setup
//   - cfg: Exporter and sampling settings
//   - logger: Zap logger
//
// Returns:
//   - *Telemetry: Providers and instruments
//   - error: Resource, exporter or instrument creation error
func InitTelemetry(ctx context.Context, cfg Config, logger *zap.Logger) (*Telemetry, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tracerProvider, err := initTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracer provider: %w", err)
	}

	meterProvider, err := initMeterProvider(cfg, res)
	if err != nil {
		return nil, fmt.Errorf("failed to init meter provider: %w", err)
	}

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t := &Telemetry{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		Tracer:         tracerProvider.Tracer(cfg.ServiceName),
		Meter:          meterProvider.Meter(cfg.ServiceName),
		logger:         logger,
	}

	if err := t.initInstruments(); err != nil {
		return nil, err
	}

	logger.Info("telemetry initialized",
		zap.Bool("trace_export", cfg.OTLPEndpoint != ""),
		zap.Float64("sample_rate", cfg.SampleRate))

	return t, nil
}

func (t *Telemetry) initInstruments() error {
	var err error

	t.requestCounter, err = t.Meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return err
	}

	t.requestDuration, err = t.Meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	t.errorCounter, err = t.Meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP responses with status >= 500"),
	)
	if err != nil {
		return err
	}

	t.cacheHitCounter, err = t.Meter.Int64Counter(
		"cache_hits_total",
		metric.WithDescription("Total number of weather cache hits"),
	)
	if err != nil {
		return err
	}

	t.cacheMissCounter, err = t.Meter.Int64Counter(
		"cache_misses_total",
		metric.WithDescription("Total number of weather cache misses"),
	)

	return err
}

func initTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	}

	if cfg.OTLPEndpoint != "" {
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}

		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	return sdktrace.NewTracerProvider(opts...), nil
}

func initMeterProvider(cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	registerer := cfg.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(registerer))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	), nil
}

// RecordRequest records one served HTTP request.
func (t *Telemetry) RecordRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	)

	t.requestCounter.Add(ctx, 1, attrs)
	t.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if statusCode >= 500 {
		t.errorCounter.Add(ctx, 1, attrs)
	}
}

// RecordCacheHit counts a weather cache hit. Keys are not recorded as
// attributes since every coordinate pair is a distinct key.
func (t *Telemetry) RecordCacheHit(ctx context.Context, _ string) {
	t.cacheHitCounter.Add(ctx, 1)
}

// RecordCacheMiss counts a weather cache miss.
func (t *Telemetry) RecordCacheMiss(ctx context.Context, _ string) {
	t.cacheMissCounter.Add(ctx, 1)
}

// Shutdown flushes and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.TracerProvider.Shutdown(ctx),
		t.MeterProvider.Shutdown(ctx),
	)
}
