// Package observability provides OpenTelemetry tracing and metrics for
// the safety pipeline: OTLP gRPC export, RED-style counters and
// histograms, and domain counters for validations, crisis detections and
// escalations.
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
	OTLPEndpoint   string        // e.g. "localhost:4317" for gRPC
	SampleRate     float64       // 0.0 to 1.0, default 1.0 (sample all)
	BatchTimeout   time.Duration // how long to wait before sending batched spans
	Enabled        bool
	Insecure       bool // dev only
}

// DefaultConfig returns development defaults with telemetry disabled, so
// library consumers opt in explicitly.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "sentinel",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        false,
		Insecure:       false,
	}
}

// Provider manages OpenTelemetry trace and metric providers. When
// disabled every method is a no-op, which keeps the pipeline usable
// without a collector.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger

	requestCounter   metric.Int64Counter
	errorCounter     metric.Int64Counter
	durationHist     metric.Float64Histogram
	activeOperations metric.Int64UpDownCounter

	validations     metric.Int64Counter
	violations      metric.Int64Counter
	crisisDetected  metric.Int64Counter
	escalations     metric.Int64Counter
	notifyFailures  metric.Int64Counter
	emergencyCalls  metric.Int64Counter
	interventionDur metric.Float64Histogram
}

// New creates a new observability provider.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Provider{
		config: config,
		logger: slog.Default().With("component", "observability"),
	}

	if !config.Enabled {
		p.logger.InfoContext(ctx, "observability disabled")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
			attribute.String("sentinel.component", "safety-pipeline"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if err := p.initTraceProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to init trace provider: %w", err)
	}
	if err := p.initMetricProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to init metric provider: %w", err)
	}

	p.tracer = otel.Tracer("havenmind.sentinel",
		trace.WithInstrumentationVersion(config.ServiceVersion),
	)
	p.meter = otel.Meter("havenmind.sentinel",
		metric.WithInstrumentationVersion(config.ServiceVersion),
	)

	if err := p.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	p.logger.InfoContext(ctx, "observability initialized",
		"service", config.ServiceName,
		"environment", config.Environment,
		"endpoint", config.OTLPEndpoint,
		"sample_rate", config.SampleRate,
	)

	return p, nil
}

func (p *Provider) initTraceProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint),
	}
	if p.config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case p.config.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case p.config.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(p.config.SampleRate)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(p.config.BatchTimeout),
		),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return nil
}

func (p *Provider) initMetricProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint),
	}
	if p.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(15*time.Second),
		)),
	)

	otel.SetMeterProvider(p.meterProvider)
	return nil
}

func (p *Provider) initMetrics() error {
	var err error

	p.requestCounter, err = p.meter.Int64Counter("sentinel.requests.total",
		metric.WithDescription("Total number of pipeline operations"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	p.errorCounter, err = p.meter.Int64Counter("sentinel.errors.total",
		metric.WithDescription("Total number of errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	p.durationHist, err = p.meter.Float64Histogram("sentinel.operation.duration",
		metric.WithDescription("Operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return err
	}

	p.activeOperations, err = p.meter.Int64UpDownCounter("sentinel.operations.active",
		metric.WithDescription("Number of currently active operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return err
	}

	p.validations, err = p.meter.Int64Counter("sentinel.validations.total",
		metric.WithDescription("Total validated messages"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return err
	}

	p.violations, err = p.meter.Int64Counter("sentinel.violations.total",
		metric.WithDescription("Total safety rule violations"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return err
	}

	p.crisisDetected, err = p.meter.Int64Counter("sentinel.crisis.detected.total",
		metric.WithDescription("Total crisis detections"),
		metric.WithUnit("{detection}"),
	)
	if err != nil {
		return err
	}

	p.escalations, err = p.meter.Int64Counter("sentinel.escalations.total",
		metric.WithDescription("Total human escalations"),
		metric.WithUnit("{escalation}"),
	)
	if err != nil {
		return err
	}

	p.notifyFailures, err = p.meter.Int64Counter("sentinel.notifications.failed.total",
		metric.WithDescription("Total failed notification deliveries"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return err
	}

	p.emergencyCalls, err = p.meter.Int64Counter("sentinel.emergency.contacts.total",
		metric.WithDescription("Total emergency service contacts"),
		metric.WithUnit("{contact}"),
	)
	if err != nil {
		return err
	}

	p.interventionDur, err = p.meter.Float64Histogram("sentinel.intervention.duration",
		metric.WithDescription("Crisis intervention lifecycle duration in seconds"),
		metric.WithUnit("s"),
	)
	return err
}

// Shutdown gracefully shuts down the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown trace provider", "error", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown metric provider", "error", err)
		}
	}
	return nil
}

// Tracer returns the configured tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p.tracer == nil {
		return otel.Tracer("havenmind.sentinel")
	}
	return p.tracer
}

// Meter returns the configured meter.
func (p *Provider) Meter() metric.Meter {
	if p.meter == nil {
		return otel.Meter("havenmind.sentinel")
	}
	return p.meter
}

// StartSpan starts a new span with the given name.
func (p *Provider) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, name, opts...)
}

// RecordValidation records one validated message and its outcome level.
func (p *Provider) RecordValidation(ctx context.Context, level string, violations int) {
	if p.validations != nil {
		p.validations.Add(ctx, 1, metric.WithAttributes(attribute.String("safety.level", level)))
	}
	if p.violations != nil && violations > 0 {
		p.violations.Add(ctx, int64(violations), metric.WithAttributes(attribute.String("safety.level", level)))
	}
}

// RecordCrisis records a crisis detection at the given level.
func (p *Provider) RecordCrisis(ctx context.Context, level string) {
	if p.crisisDetected != nil {
		p.crisisDetected.Add(ctx, 1, metric.WithAttributes(attribute.String("crisis.level", level)))
	}
}

// RecordEscalation records a human escalation attempt.
func (p *Provider) RecordEscalation(ctx context.Context, level string) {
	if p.escalations != nil {
		p.escalations.Add(ctx, 1, metric.WithAttributes(attribute.String("crisis.level", level)))
	}
}

// RecordNotifyFailure records a failed notification delivery.
func (p *Provider) RecordNotifyFailure(ctx context.Context, channel string) {
	if p.notifyFailures != nil {
		p.notifyFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("notify.channel", channel)))
	}
}

// RecordEmergencyContact records an emergency service contact attempt.
func (p *Provider) RecordEmergencyContact(ctx context.Context, service string) {
	if p.emergencyCalls != nil {
		p.emergencyCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("emergency.service", service)))
	}
}

// RecordInterventionDuration records the wall time from intervention
// initiation to resolution.
func (p *Provider) RecordInterventionDuration(ctx context.Context, d time.Duration) {
	if p.interventionDur != nil {
		p.interventionDur.Record(ctx, d.Seconds())
	}
}

// RecordError records an error with the given attributes.
func (p *Provider) RecordError(ctx context.Context, err error, attrs ...attribute.KeyValue) {
	if p.errorCounter != nil {
		allAttrs := append(attrs, attribute.String("error.type", fmt.Sprintf("%T", err)))
		p.errorCounter.Add(ctx, 1, metric.WithAttributes(allAttrs...))
	}
}

// TrackOperation tracks an operation from start to finish. Returns a
// function that should be called when the operation completes.
func (p *Provider) TrackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()

	ctx, span := p.StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)

	if p.activeOperations != nil {
		p.activeOperations.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if p.requestCounter != nil {
		p.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}

	return ctx, func(err error) {
		duration := time.Since(start)

		if p.activeOperations != nil {
			p.activeOperations.Add(ctx, -1, metric.WithAttributes(attrs...))
		}
		if p.durationHist != nil {
			p.durationHist.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
		}
		if err != nil {
			span.RecordError(err)
			p.RecordError(ctx, err, attrs...)
		}

		span.End()
	}
}
