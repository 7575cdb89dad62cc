// Package observability provides slog + OpenTelemetry instrumentation
// for the boundary components: claim-type loads, signal-store appends,
// and compile invocations as measured by hosts.
//
// Core packages (canonical, truth, schema, flow, signing) never import
// this package; the purity check enforces that.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // e.g. "localhost:4317" for gRPC
	BatchTimeout   time.Duration
	Enabled        bool
	Insecure       bool // dev only
}

// DefaultConfig returns development defaults.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "kaori-truth",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		BatchTimeout:   5 * time.Second,
		Enabled:        true,
		Insecure:       true,
	}
}

// Provider manages trace and metric providers plus the domain metrics.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger

	claimTypeLoads  metric.Int64Counter
	signalAppends   metric.Int64Counter
	compileCounter  metric.Int64Counter
	compileDuration metric.Float64Histogram
}

// New creates a provider. With Enabled false it returns a no-op provider
// that still carries the logger.
func New(ctx context.Context, config *Config, logger *slog.Logger) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{config: config, logger: logger}
	if !config.Enabled {
		p.tracer = otel.Tracer(config.ServiceName)
		p.meter = otel.Meter(config.ServiceName)
		return p, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: resource: %w", err)
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(config.OTLPEndpoint)}
	if config.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}

	traceExporter, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("observability: trace exporter: %w", err)
	}
	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("observability: metric exporter: %w", err)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter, sdktrace.WithBatchTimeout(config.BatchTimeout)),
	)
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
	)

	otel.SetTracerProvider(p.tracerProvider)
	otel.SetMeterProvider(p.meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	p.tracer = p.tracerProvider.Tracer(config.ServiceName)
	p.meter = p.meterProvider.Meter(config.ServiceName)

	if err := p.initMetrics(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) initMetrics() error {
	var err error
	if p.claimTypeLoads, err = p.meter.Int64Counter("kaori.claimtype.loads",
		metric.WithDescription("Claim type documents loaded")); err != nil {
		return err
	}
	if p.signalAppends, err = p.meter.Int64Counter("kaori.signals.appended",
		metric.WithDescription("Signals appended to the store")); err != nil {
		return err
	}
	if p.compileCounter, err = p.meter.Int64Counter("kaori.compiles",
		metric.WithDescription("Truth state compilations")); err != nil {
		return err
	}
	if p.compileDuration, err = p.meter.Float64Histogram("kaori.compile.duration_ms",
		metric.WithDescription("Compile wall time in milliseconds")); err != nil {
		return err
	}
	return nil
}

// Tracer returns the provider's tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Logger returns the structured logger.
func (p *Provider) Logger() *slog.Logger { return p.logger }

// RecordClaimTypeLoad counts a loaded claim type.
func (p *Provider) RecordClaimTypeLoad(ctx context.Context, claimTypeID string) {
	if p.claimTypeLoads != nil {
		p.claimTypeLoads.Add(ctx, 1, metric.WithAttributes(attribute.String("claim_type", claimTypeID)))
	}
}

// RecordSignalAppend counts an appended signal.
func (p *Provider) RecordSignalAppend(ctx context.Context, signalType string) {
	if p.signalAppends != nil {
		p.signalAppends.Add(ctx, 1, metric.WithAttributes(attribute.String("signal_type", signalType)))
	}
}

// RecordCompile counts a compile and its host-measured duration.
func (p *Provider) RecordCompile(ctx context.Context, claimTypeID, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("claim_type", claimTypeID),
		attribute.String("status", status),
	)
	if p.compileCounter != nil {
		p.compileCounter.Add(ctx, 1, attrs)
	}
	if p.compileDuration != nil {
		p.compileDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

// Shutdown flushes and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var firstErr error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
