package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/server/types"
	"mercator-hq/tollgate/pkg/telemetry/logging"
	"mercator-hq/tollgate/pkg/telemetry/metrics"
	"mercator-hq/tollgate/pkg/telemetry/tracing"
)

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.GetRequestID(r.Context())
	}))

	tests := []struct {
		name     string
		header   string
		wantSame bool
	}{
		{name: "generates request ID when not provided"},
		{name: "uses provided request ID", header: "custom-request-id-12345", wantSame: true},
		{name: "replaces oversized request ID", header: strings.Repeat("x", maxRequestIDLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			got := w.Header().Get(RequestIDHeader)
			if got == "" {
				t.Fatal("Request ID should be set in response header")
			}
			if got != seen {
				t.Errorf("context ID %q does not match header %q", seen, got)
			}
			if tt.wantSame && got != tt.header {
				t.Errorf("Request ID = %v, want %v", got, tt.header)
			}
			if !tt.wantSame && len(got) != 36 {
				t.Errorf("expected a generated UUID, got %q", got)
			}
		})
	}

	t.Run("generates unique IDs for different requests", func(t *testing.T) {
		w1, w2 := httptest.NewRecorder(), httptest.NewRecorder()
		handler.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/test", nil))
		handler.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/test", nil))

		if w1.Header().Get(RequestIDHeader) == w2.Header().Get(RequestIDHeader) {
			t.Error("Request IDs should be unique")
		}
	})
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var resp types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.Error.Type != types.ErrorTypeServerError {
		t.Errorf("error type = %q, want %q", resp.Error.Type, types.ErrorTypeServerError)
	}
	if strings.Contains(w.Body.String(), "boom") {
		t.Error("panic value leaked to the client")
	}
	if !strings.Contains(buf.String(), "panic in handler") {
		t.Errorf("panic not logged: %s", buf.String())
	}
}

func TestRecovery_NoPanic(t *testing.T) {
	handler := Recovery(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTeapot)
	}
}

// newRouter mounts a single route behind the given middleware.
func newRouter(mw ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(mw...)
	r.Get("/v1/buckets/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func TestLogging(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantLevel string
	}{
		{name: "success logs info", path: "/v1/buckets/a", wantLevel: "INFO"},
		{name: "client error logs warn", path: "/v1/buckets/missing", wantLevel: "WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(logging.NewContextHandler(slog.NewJSONHandler(&buf, nil)))
			router := newRouter(RequestID, Logging(logger))

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %v", entry["level"], tt.wantLevel)
			}
			if entry["route"] != "/v1/buckets/{id}" {
				t.Errorf("route = %v, want pattern", entry["route"])
			}
			if entry["request_id"] == nil || entry["request_id"] == "" {
				t.Error("request_id missing from access log")
			}
		})
	}
}

func TestTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := tracing.New(&config.TracingConfig{
		Enabled: true,
		Sampler: tracing.SamplerAlways,
	}, tracing.WithExporter(exporter), tracing.WithSyncExport())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = tracer.Shutdown(t.Context()) }()

	router := newRouter(Tracing(tracer))

	req := httptest.NewRequest(http.MethodGet, "/v1/buckets/agent-1", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	router.ServeHTTP(httptest.NewRecorder(), req)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != "GET /v1/buckets/{id}" {
		t.Errorf("span name = %q", span.Name)
	}
	if got := span.SpanContext.TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace ID = %s, expected the propagated one", got)
	}
}

func TestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Path: "/metrics"}, registry)
	router := newRouter(Metrics(collector))

	for _, path := range []string{"/v1/buckets/a", "/v1/buckets/b", "/v1/buckets/missing"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	expected := `
# HELP tollgate_http_requests_total Total number of admin API requests
# TYPE tollgate_http_requests_total counter
tollgate_http_requests_total{method="GET",route="/v1/buckets/{id}",status="200"} 2
tollgate_http_requests_total{method="GET",route="/v1/buckets/{id}",status="404"} 1
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "tollgate_http_requests_total"); err != nil {
		t.Error(err)
	}
}

func TestMetrics_Disabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: false}, nil)
	for _, c := range []*metrics.Collector{nil, collector} {
		h := Metrics(c)(next)
		if _, ok := h.(http.HandlerFunc); !ok {
			t.Errorf("expected the next handler to be returned unchanged")
		}
	}
}
