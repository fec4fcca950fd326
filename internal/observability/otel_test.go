package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-anime-catalog/internal/config"
)

// keepGlobals restores the OTel globals when the test ends.
func keepGlobals(t *testing.T) {
	t.Helper()
	tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func enabled(ratio float64) config.OTELConfig {
	return config.OTELConfig{Enabled: true, Insecure: true, Endpoint: "localhost:4317", ServiceName: "catalog-test", SampleRatio: ratio}
}

// countingExporter wraps an in-memory exporter and counts shutdowns.
type countingExporter struct {
	*tracetest.InMemoryExporter
	shutdowns int
}

func (c *countingExporter) Shutdown(ctx context.Context) error {
	c.shutdowns++
	return c.InMemoryExporter.Shutdown(ctx)
}

func fakePipeline(exp sdktrace.SpanExporter) pipeline {
	return pipeline{
		exporter: func(context.Context, ...otlptracegrpc.Option) (sdktrace.SpanExporter, error) { return exp, nil },
		resource: defaultPipeline.resource,
	}
}

func TestSetupOTel_DisabledLeavesGlobals(t *testing.T) {
	keepGlobals(t)
	before := otel.GetTracerProvider()

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{Endpoint: "ignored:4317"}, "dev")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown returned %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatal("disabled tracing must not replace the provider")
	}
}

func TestSetupOTel_DefaultPipelineBuilds(t *testing.T) {
	for _, insecure := range []bool{true, false} {
		keepGlobals(t)
		cfg := enabled(1)
		cfg.Insecure = insecure

		shutdown, err := SetupOTel(context.Background(), cfg, "v1.2.3")
		if err != nil {
			t.Fatalf("insecure=%v: %v", insecure, err)
		}
		if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
			t.Fatalf("insecure=%v: expected *sdktrace.TracerProvider", insecure)
		}
		_ = shutdown(context.Background())
	}
}

func TestInstall_ExportsServiceSpansAndPropagates(t *testing.T) {
	keepGlobals(t)
	exp := tracetest.NewInMemoryExporter()

	shutdown, err := fakePipeline(exp).install(context.Background(), enabled(1), "v9")
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	ctx, span := StartSpan(context.Background(), "AnimeService.Save", AnimeName("Berserk"))
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	EndSpan(span, nil)

	if carrier.Get("traceparent") == "" {
		t.Fatalf("traceparent not injected: %v", carrier)
	}
	if err := otel.GetTracerProvider().(*sdktrace.TracerProvider).ForceFlush(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := exp.GetSpans()
	if len(got) != 1 || got[0].Name != "AnimeService.Save" {
		t.Fatalf("exported spans = %v", got)
	}
	var svc string
	for _, kv := range got[0].Resource.Attributes() {
		if kv.Key == "service.name" {
			svc = kv.Value.AsString()
		}
	}
	if svc != "catalog-test" {
		t.Fatalf("service.name = %q", svc)
	}
}

func TestInstall_FailuresKeepGlobals(t *testing.T) {
	keepGlobals(t)
	tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()

	boom := errors.New("boom")
	exporterFails := pipeline{
		exporter: func(context.Context, ...otlptracegrpc.Option) (sdktrace.SpanExporter, error) { return nil, boom },
		resource: defaultPipeline.resource,
	}
	if _, err := exporterFails.install(context.Background(), enabled(1), "v0"); !errors.Is(err, boom) {
		t.Fatalf("exporter err = %v", err)
	}

	exp := &countingExporter{InMemoryExporter: tracetest.NewInMemoryExporter()}
	resourceFails := fakePipeline(exp)
	resourceFails.resource = func(context.Context, string, string) (*resource.Resource, error) { return nil, boom }
	if _, err := resourceFails.install(context.Background(), enabled(1), "v0"); !errors.Is(err, boom) {
		t.Fatalf("resource err = %v", err)
	}
	if exp.shutdowns != 1 {
		t.Fatalf("exporter should be shut down once after a resource failure, got %d", exp.shutdowns)
	}

	if otel.GetTracerProvider() != tp || otel.GetTextMapPropagator() != prop {
		t.Fatal("globals changed on failure")
	}
}

func TestSampler_RootDecisions(t *testing.T) {
	low := trace.TraceID{}
	high := trace.TraceID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

	cases := []struct {
		ratio float64
		id    trace.TraceID
		want  sdktrace.SamplingDecision
	}{
		{1, high, sdktrace.RecordAndSample},
		{2, high, sdktrace.RecordAndSample},
		{0, low, sdktrace.Drop},
		{-1, low, sdktrace.Drop},
		{0.5, low, sdktrace.RecordAndSample},
		{0.5, high, sdktrace.Drop},
	}
	for _, tc := range cases {
		res := sampler(tc.ratio).ShouldSample(sdktrace.SamplingParameters{
			ParentContext: context.Background(),
			TraceID:       tc.id,
			Name:          "root",
		})
		if res.Decision != tc.want {
			t.Fatalf("sampler(%v) on %s = %v; want %v", tc.ratio, tc.id, res.Decision, tc.want)
		}
	}
}

func TestExporterOptions_Count(t *testing.T) {
	if n := len(exporterOptions(enabled(1))); n != 2 {
		t.Fatalf("insecure options = %d", n)
	}
	cfg := enabled(1)
	cfg.Insecure = false
	if n := len(exporterOptions(cfg)); n != 2 {
		t.Fatalf("tls options = %d", n)
	}
}

func TestStartSpan_RecordsNameAttrsAndError(t *testing.T) {
	keepGlobals(t)

	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))

	_, ok := StartSpan(context.Background(), "AnimeService.FindByIDOrFail", AnimeID(7))
	EndSpan(ok, nil)
	_, bad := StartSpan(context.Background(), "AnimeService.Delete")
	EndSpan(bad, errors.New("anime not found"))

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 ended spans, got %d", len(spans))
	}
	if spans[0].Name() != "AnimeService.FindByIDOrFail" || spans[0].SpanKind() != trace.SpanKindInternal {
		t.Fatalf("unexpected first span: %s %v", spans[0].Name(), spans[0].SpanKind())
	}
	if attrs := spans[0].Attributes(); len(attrs) != 1 || attrs[0].Key != KeyAnimeID || attrs[0].Value.AsInt64() != 7 {
		t.Fatalf("unexpected attributes: %v", attrs)
	}
	if spans[0].Status().Code != codes.Unset {
		t.Fatal("ok span must not carry error status")
	}
	if spans[1].Status().Code != codes.Error || len(spans[1].Events()) == 0 {
		t.Fatalf("error span must record status and event: %+v", spans[1].Status())
	}
	if spans[0].InstrumentationScope().Name != TracerName {
		t.Fatalf("unexpected scope %q", spans[0].InstrumentationScope().Name)
	}
}
