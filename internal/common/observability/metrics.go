package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability bundles the otel meter used for pipeline counters and the
// tracer used for per-window spans.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	windowCounter  otelmetric.Int64Counter
	windowDuration otelmetric.Float64Histogram
}

// New registers a prometheus-backed meter provider. Exporter options allow a
// private registry in tests.
func New(serviceName string, opts ...prometheus.Option) *Observability {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)
	o := &Observability{tracerProvider: tp, tracer: tp.Tracer(serviceName)}

	exporter, err := prometheus.New(opts...)
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	windowCounter, _ := meter.Int64Counter(
		"scorecard.windows.processed",
		otelmetric.WithDescription("Number of scoring windows processed"),
	)

	windowDuration, _ := meter.Float64Histogram(
		"scorecard.windows.duration",
		otelmetric.WithDescription("Scoring window processing duration"),
		otelmetric.WithUnit("ms"),
	)

	o.meterProvider = provider
	o.meter = meter
	o.windowCounter = windowCounter
	o.windowDuration = windowDuration
	return o
}

// RegisterSpanProcessor attaches an exporter or recorder to the tracer provider.
func (o *Observability) RegisterSpanProcessor(sp sdktrace.SpanProcessor) {
	if o.tracerProvider != nil {
		o.tracerProvider.RegisterSpanProcessor(sp)
	}
}

// StartSpan opens a span named name; the caller ends it.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := o.tracer
	if tracer == nil {
		tracer = otel.Tracer("cashflow-scorecard")
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordWindowProcessed(ctx context.Context, window, status string) {
	if o.windowCounter != nil {
		o.windowCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("window", window),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordWindowDuration(ctx context.Context, window string, duration time.Duration) {
	if o.windowDuration != nil {
		o.windowDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("window", window),
		))
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
