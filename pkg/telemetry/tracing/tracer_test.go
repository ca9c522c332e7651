package tracing

import (
	"context"
	"errors"
	"math"
	"net/http"
	"testing"
	"time"

	"mercator-hq/tollgate/pkg/config"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func enabledConfig(sampler string) *config.TracingConfig {
	return &config.TracingConfig{
		Enabled:     true,
		Sampler:     sampler,
		SampleRatio: 1.0,
		Exporter:    "otlp",
		Endpoint:    "127.0.0.1:4317",
		ServiceName: "tollgate-test",
		OTLP:        config.OTLPConfig{Insecure: true, Timeout: time.Second},
	}
}

func newRecordingTracer(t *testing.T, sampler string) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tracer, err := New(enabledConfig(sampler), WithExporter(exporter), WithSyncExport())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })

	return tracer, exporter
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.TracingConfig
		wantErr bool
		enabled bool
	}{
		{name: "nil config", config: nil, wantErr: true},
		{name: "disabled", config: &config.TracingConfig{Enabled: false}},
		{
			name: "unknown sampler",
			config: func() *config.TracingConfig {
				c := enabledConfig("sometimes")
				return c
			}(),
			wantErr: true,
		},
		{
			name: "ratio out of range",
			config: func() *config.TracingConfig {
				c := enabledConfig(SamplerRatio)
				c.SampleRatio = 2
				return c
			}(),
			wantErr: true,
		},
		{
			name: "unknown exporter",
			config: func() *config.TracingConfig {
				c := enabledConfig(SamplerAlways)
				c.Exporter = "zipkin"
				return c
			}(),
			wantErr: true,
		},
		{
			name: "otlp without endpoint",
			config: func() *config.TracingConfig {
				c := enabledConfig(SamplerAlways)
				c.Endpoint = ""
				return c
			}(),
			wantErr: true,
		},
		{name: "otlp connects lazily", config: enabledConfig(SamplerRatio), enabled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			defer func() { _ = tracer.Shutdown(ctx) }()

			if tracer.Enabled() != tt.enabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.enabled)
			}
		})
	}
}

func TestTracer_RecordsSpans(t *testing.T) {
	tracer, exporter := newRecordingTracer(t, SamplerAlways)

	ctx, span := tracer.Start(context.Background(), "limits.consume")
	SetDecisionAttributes(span, "agent-1", 5, "exhausted", 2, 1500*time.Millisecond)
	SetStatus(span, nil)
	if TraceID(ctx) == "" || SpanID(ctx) == "" {
		t.Error("expected trace and span IDs in context")
	}
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	got := spans[0]
	if got.Name != "limits.consume" {
		t.Errorf("span name = %q", got.Name)
	}
	if got.Status.Code != codes.Ok {
		t.Errorf("status = %v, want Ok", got.Status.Code)
	}

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range got.Attributes {
		attrs[kv.Key] = kv.Value
	}
	if attrs[AttrBucket].AsString() != "agent-1" {
		t.Errorf("bucket attribute = %v", attrs[AttrBucket])
	}
	if attrs[AttrOutcome].AsString() != "exhausted" {
		t.Errorf("outcome attribute = %v", attrs[AttrOutcome])
	}
	if attrs[AttrRetryAfterMs].AsInt64() != 1500 {
		t.Errorf("retry attribute = %v", attrs[AttrRetryAfterMs])
	}
}

func TestTracer_UnlimitedBalanceAttribute(t *testing.T) {
	tracer, exporter := newRecordingTracer(t, SamplerAlways)

	_, span := tracer.Start(context.Background(), "limits.consume")
	SetDecisionAttributes(span, "vip", 10, "unlimited", math.Inf(1), 0)
	span.End()

	for _, kv := range exporter.GetSpans()[0].Attributes {
		if kv.Key == AttrBalance {
			t.Errorf("infinite balance should not be recorded as a number")
		}
		if kv.Key == AttrRetryAfterMs {
			t.Errorf("zero retry should not be recorded")
		}
	}
}

func TestTracer_SetError(t *testing.T) {
	tracer, exporter := newRecordingTracer(t, SamplerAlways)

	_, span := tracer.Start(context.Background(), "scheduler.snapshot")
	err := errors.New("disk full")
	SetError(span, err)
	SetStatus(span, err)
	SetError(span, nil)
	span.End()

	got := exporter.GetSpans()[0]
	if got.Status.Code != codes.Error || got.Status.Description != "disk full" {
		t.Errorf("status = %+v", got.Status)
	}
	if len(got.Events) != 1 {
		t.Errorf("expected one recorded error event, got %d", len(got.Events))
	}
}

func TestTracer_NeverSampler(t *testing.T) {
	tracer, exporter := newRecordingTracer(t, SamplerNever)

	_, span := tracer.Start(context.Background(), "dropped")
	span.End()

	if n := len(exporter.GetSpans()); n != 0 {
		t.Errorf("expected no exported spans, got %d", n)
	}
}

func TestNoop(t *testing.T) {
	tracer := Noop()

	ctx, span := tracer.Start(context.Background(), "noop")
	span.End()

	if tracer.Enabled() {
		t.Error("noop tracer should be disabled")
	}
	if TraceID(ctx) != "" {
		t.Error("noop span should not carry a trace ID")
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() = %v", err)
	}
}

func TestExtract(t *testing.T) {
	newRecordingTracer(t, SamplerAlways)

	headers := http.Header{}
	headers.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")

	ctx := Extract(context.Background(), headers)
	if got := TraceID(ctx); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("TraceID() = %q", got)
	}

	out := http.Header{}
	Inject(ctx, out)
	if out.Get("traceparent") == "" {
		t.Error("expected traceparent to be injected")
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{"always", SamplerAlways, 0, false},
		{"never", SamplerNever, 0, false},
		{"ratio zero", SamplerRatio, 0, false},
		{"ratio half", SamplerRatio, 0.5, false},
		{"ratio one", SamplerRatio, 1, false},
		{"ratio negative", SamplerRatio, -0.1, true},
		{"ratio above one", SamplerRatio, 1.5, true},
		{"unknown", "unknown", 0.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sampler, err := createSampler(tt.strategy, tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Fatalf("createSampler() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && sampler == nil {
				t.Error("expected non-nil sampler")
			}
		})
	}
}
