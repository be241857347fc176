package observability

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/talesofaneria/storefront/internal/config"
)

// ----- Helpers -----

func keepGlobals(t *testing.T) {
	t.Helper()
	tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func enabled(name string) config.OTELConfig {
	return config.OTELConfig{Enabled: true, Insecure: true, Endpoint: "localhost:4317", ServiceName: name, SampleRatio: 1}
}

// ----- Tests -----

func TestSetupOTel_DisabledLeavesGlobals(t *testing.T) {
	keepGlobals(t)
	before := otel.GetTracerProvider()

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{Endpoint: "ignored:4317"}, "dev")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatalf("disabled tracing replaced the provider")
	}
}

func TestSetupOTel_InstallsProviderAndPropagators(t *testing.T) {
	keepGlobals(t)

	// The exporter connects lazily; no collector is needed.
	shutdown, err := SetupOTel(context.Background(), enabled("aneria-storefront"), "v1.2.3")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("provider = %T", otel.GetTracerProvider())
	}

	ctx, span := otel.Tracer("cart").Start(context.Background(), "AddItem")
	defer span.End()
	if !span.SpanContext().IsSampled() {
		t.Fatalf("root span not sampled at ratio 1")
	}

	h := http.Header{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
	tp := h.Get("traceparent")
	if !strings.Contains(tp, span.SpanContext().TraceID().String()) {
		t.Fatalf("traceparent = %q", tp)
	}
}

func TestSetupOTel_TLSClient(t *testing.T) {
	keepGlobals(t)
	cfg := enabled("tls")
	cfg.Insecure = false

	orig := newClient
	t.Cleanup(func() { newClient = orig })
	var got int
	newClient = func(opts ...otlptracegrpc.Option) otlptrace.Client {
		got = len(opts)
		return orig(opts...)
	}

	shutdown, err := SetupOTel(context.Background(), cfg, "v1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	_ = shutdown(context.Background())
	if got != 2 {
		t.Fatalf("client options = %d, want endpoint and credentials", got)
	}
}

func TestSetupOTel_FailuresLeaveGlobals(t *testing.T) {
	cases := []struct {
		name  string
		fail  func() func()
	}{
		{"exporter", func() func() {
			orig := newExporter
			newExporter = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
				return nil, errors.New("collector unreachable")
			}
			return func() { newExporter = orig }
		}},
		{"resource", func() func() {
			orig := newResource
			newResource = func(context.Context, string, string) (*resource.Resource, error) {
				return nil, errors.New("conflicting schema url")
			}
			return func() { newResource = orig }
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			keepGlobals(t)
			t.Cleanup(tc.fail())
			tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()

			if _, err := SetupOTel(context.Background(), enabled("svc"), "v0"); err == nil {
				t.Fatalf("expected error")
			}
			if otel.GetTracerProvider() != tp || otel.GetTextMapPropagator() != prop {
				t.Fatalf("globals changed on failure")
			}
		})
	}
}

func TestSamplerFor(t *testing.T) {
	cases := []struct {
		ratio float64
		want  string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tc := range cases {
		if d := samplerFor(tc.ratio).Description(); !strings.Contains(d, "root:"+tc.want) {
			t.Fatalf("ratio %v: %s", tc.ratio, d)
		}
	}
}

func TestServiceResource_CarriesNamespace(t *testing.T) {
	res, err := newResource(context.Background(), "aneria-storefront", "v1")
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}
	if attrs["service.namespace"] != ServiceNamespace || attrs["service.name"] != "aneria-storefront" || attrs["service.version"] != "v1" {
		t.Fatalf("attributes = %v", attrs)
	}
}
