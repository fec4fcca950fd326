// Package observability configures OpenTelemetry tracing for the service and
// exposes the tracer used by the service layer. HTTP spans come from otelgin
// and SQL spans from the GORM tracing plugin; both report to the provider
// installed by SetupOTel.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"google.golang.org/grpc/credentials"

	"github.com/tbourn/go-anime-catalog/internal/config"
)

// TracerName is the instrumentation scope for catalog spans.
const TracerName = "github.com/tbourn/go-anime-catalog"

// Span attribute keys shared by the service layer.
const (
	KeyAnimeID   = attribute.Key("anime.id")
	KeyAnimeName = attribute.Key("anime.name")
)

// AnimeID tags a span with the catalog id it operates on.
func AnimeID(id int64) attribute.KeyValue { return KeyAnimeID.Int64(id) }

// AnimeName tags a span with the (already validated) anime name.
func AnimeName(name string) attribute.KeyValue { return KeyAnimeName.String(name) }

// pipeline builds the exporter and resource. Tests swap its funcs.
type pipeline struct {
	exporter func(ctx context.Context, opts ...otlptracegrpc.Option) (sdktrace.SpanExporter, error)
	resource func(ctx context.Context, service, version string) (*resource.Resource, error)
}

var defaultPipeline = pipeline{
	exporter: func(ctx context.Context, opts ...otlptracegrpc.Option) (sdktrace.SpanExporter, error) {
		return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	},
	resource: func(ctx context.Context, service, version string) (*resource.Resource, error) {
		return resource.New(ctx,
			resource.WithAttributes(semconv.ServiceName(service), semconv.ServiceVersion(version)),
			resource.WithProcessRuntimeName(),
			resource.WithProcessRuntimeVersion(),
		)
	},
}

// SetupOTel installs a batching OTLP/gRPC tracer provider and W3C
// propagators, returning its shutdown func. When tracing is disabled the
// globals are untouched and the returned func is a no-op. Globals are only
// replaced once exporter and resource construction both succeed.
func SetupOTel(ctx context.Context, cfg config.OTELConfig, version string) (func(context.Context) error, error) {
	return defaultPipeline.install(ctx, cfg, version)
}

func (p pipeline) install(ctx context.Context, cfg config.OTELConfig, version string) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := p.exporter(ctx, exporterOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	res, err := p.resource(ctx, cfg.ServiceName, version)
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

func exporterOptions(cfg config.OTELConfig) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		return append(opts, otlptracegrpc.WithInsecure())
	}
	return append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
}

// sampler honours an upstream decision and otherwise samples by ratio.
func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// StartSpan starts an internal span named name on the global provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan records err (if any) on span and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
