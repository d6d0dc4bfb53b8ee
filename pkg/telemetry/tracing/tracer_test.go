package tracing

import (
	"context"
	"errors"
	"testing"

	"mercator-hq/sentinel/pkg/config"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// withExporter replaces the OTLP exporter, typically with an in-memory one.
func withExporter(exporter sdktrace.SpanExporter) Option {
	return func(o *options) {
		o.exporter = exporter
	}
}

func enabledConfig(sampler string) *config.TracingConfig {
	return &config.TracingConfig{
		Enabled:     true,
		Sampler:     sampler,
		SampleRatio: 1.0,
		Endpoint:    "localhost:4317",
		Insecure:    true,
		ServiceName: "sentinel-test",
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.TracingConfig
		wantErr bool
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
		{
			name:   "disabled tracing",
			config: &config.TracingConfig{Enabled: false, ServiceName: "test-service"},
		},
		{
			name:   "always sampler",
			config: enabledConfig(SamplerAlways),
		},
		{
			name:   "never sampler",
			config: enabledConfig(SamplerNever),
		},
		{
			name:   "parent ratio sampler",
			config: enabledConfig(SamplerParentRatio),
		},
		{
			name:    "unknown sampler",
			config:  enabledConfig("sometimes"),
			wantErr: true,
		},
		{
			name: "ratio out of range",
			config: func() *config.TracingConfig {
				c := enabledConfig(SamplerRatio)
				c.SampleRatio = 1.5
				return c
			}(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config, withExporter(tracetest.NewInMemoryExporter()))
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer tracer.Shutdown(context.Background())

			if tracer.Enabled() != tt.config.Enabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.config.Enabled)
			}
			if tracer.Tracer() == nil {
				t.Error("Tracer() = nil")
			}
		})
	}
}

func TestNewWithOTLPExporter(t *testing.T) {
	// The gRPC connection is lazy, so no collector needs to be running.
	tracer, err := New(enabledConfig(SamplerAlways))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !tracer.Enabled() {
		t.Error("Enabled() = false, want true")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = tracer.Shutdown(ctx)
}

func TestTracerExportsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := New(enabledConfig(SamplerAlways), withExporter(exporter), WithServiceVersion("1.2.3"))
	if err != nil {
		t.Fatal(err)
	}
	defer tracer.Shutdown(context.Background())

	ctx, parent := tracer.Start(context.Background(), "parent")
	_, child := tracer.Start(ctx, "child")
	child.End()
	parent.End()

	if err := tracer.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush() error = %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, want 2", len(spans))
	}
	if spans[0].Name != "child" || spans[1].Name != "parent" {
		t.Errorf("span names = %q, %q, want child, parent", spans[0].Name, spans[1].Name)
	}
	if spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Error("child span is not linked to its parent")
	}

	var service, version string
	for _, attr := range spans[1].Resource.Attributes() {
		switch attr.Key {
		case "service.name":
			service = attr.Value.AsString()
		case "service.version":
			version = attr.Value.AsString()
		}
	}
	if service != "sentinel-test" || version != "1.2.3" {
		t.Errorf("resource service = %q@%q, want sentinel-test@1.2.3", service, version)
	}
}

func TestNeverSamplerExportsNothing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := New(enabledConfig(SamplerNever), withExporter(exporter))
	if err != nil {
		t.Fatal(err)
	}
	defer tracer.Shutdown(context.Background())

	_, span := tracer.Start(context.Background(), "dropped")
	if span.IsRecording() {
		t.Error("span.IsRecording() = true with never sampler")
	}
	span.End()

	if err := tracer.ForceFlush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := len(exporter.GetSpans()); got != 0 {
		t.Errorf("exported %d spans, want 0", got)
	}
}

func TestDisabledTracer(t *testing.T) {
	tracer, err := New(&config.TracingConfig{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}

	ctx, span := tracer.Start(context.Background(), "noop")
	if span.IsRecording() {
		t.Error("span.IsRecording() = true for disabled tracer")
	}
	span.End()

	if got := TraceID(ctx); got != "" {
		t.Errorf("TraceID() = %q, want empty", got)
	}
	if err := tracer.ForceFlush(context.Background()); err != nil {
		t.Errorf("ForceFlush() error = %v", err)
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestTraceAndSpanID(t *testing.T) {
	if TraceID(context.Background()) != "" || SpanID(context.Background()) != "" {
		t.Error("IDs from empty context should be empty")
	}

	tracer, err := New(enabledConfig(SamplerAlways), withExporter(tracetest.NewInMemoryExporter()))
	if err != nil {
		t.Fatal(err)
	}
	defer tracer.Shutdown(context.Background())

	ctx, span := tracer.Start(context.Background(), "ids")
	defer span.End()

	if got := TraceID(ctx); len(got) != 32 {
		t.Errorf("TraceID() = %q, want 32 hex characters", got)
	}
	if got := SpanID(ctx); len(got) != 16 {
		t.Errorf("SpanID() = %q, want 16 hex characters", got)
	}
	if SpanFromContext(ctx) != span {
		t.Error("SpanFromContext() did not return the active span")
	}
}

func TestSetErrorAndStatus(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := New(enabledConfig(SamplerAlways), withExporter(exporter))
	if err != nil {
		t.Fatal(err)
	}
	defer tracer.Shutdown(context.Background())

	_, failed := tracer.Start(context.Background(), "failed")
	SetErrorAttributes(failed, errors.New("boom"), "reload")
	SetError(failed, nil)
	failed.End()

	_, ok := tracer.Start(context.Background(), "ok")
	SetStatus(ok, nil)
	ok.End()

	if err := tracer.ForceFlush(context.Background()); err != nil {
		t.Fatal(err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, want 2", len(spans))
	}
	if spans[0].Status.Code != codes.Error || spans[0].Status.Description != "boom" {
		t.Errorf("failed span status = %+v, want Error(boom)", spans[0].Status)
	}
	if len(spans[0].Events) != 1 {
		t.Errorf("failed span events = %d, want 1 recorded error", len(spans[0].Events))
	}
	if spans[1].Status.Code != codes.Ok {
		t.Errorf("ok span status = %v, want Ok", spans[1].Status.Code)
	}
}
