package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/limits"
	"mercator-hq/tollgate/pkg/limits/bucket"
	"mercator-hq/tollgate/pkg/limits/cost"
	"mercator-hq/tollgate/pkg/limits/scheduler"
	"mercator-hq/tollgate/pkg/limits/storage"
	"mercator-hq/tollgate/pkg/server/types"
	"mercator-hq/tollgate/pkg/telemetry/metrics"
)

var epoch = time.Unix(1_700_000_000, 0)

type testEnv struct {
	clock   *bucket.ManualClock
	manager *limits.Manager
	sched   *scheduler.Scheduler
	server  *Server
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Cost.Models = map[string]cost.Pricing{
		"gpt-4o": {PromptCostPer1K: 1000, CompletionCostPer1K: 2000},
	}
	if mutate != nil {
		mutate(cfg)
	}

	clock := bucket.NewManualClock(epoch)
	manager := limits.NewManager(limits.Config{Clock: clock})
	sched := scheduler.New(manager, storage.NewMemoryBackend(), scheduler.Config{Clock: clock})

	srv := New(Options{
		Config:    cfg,
		Manager:   manager,
		Scheduler: sched,
		Metrics:   metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry()),
	})
	return &testEnv{clock: clock, manager: manager, sched: sched, server: srv}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
	return v
}

func (e *testEnv) mustCreate(t *testing.T, id string, initial, rate float64) {
	t.Helper()
	if err := e.manager.CreateBucket(id, initial, rate); err != nil {
		t.Fatal(err)
	}
}

func TestServer_PutBucketConcurrentCreate(t *testing.T) {
	env := newTestEnv(t, nil)

	const workers = 16
	codes := make([]int, workers)
	var wg sync.WaitGroup
	for i := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := env.do(t, http.MethodPut, "/v1/buckets/agent-1", `{"initial_balance": 10, "refill_rate": 1}`)
			codes[i] = w.Code
		}()
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusOK:
		default:
			t.Errorf("unexpected status %d", code)
		}
	}
	if created != 1 {
		t.Errorf("%d puts answered 201, want 1", created)
	}
}

func TestServer_PutBucket(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "create", body: `{"initial_balance": 10, "refill_rate": 1}`, wantStatus: http.StatusCreated},
		{name: "replace", body: `{"capacity": 20, "initial_balance": 5, "refill_rate": 2}`, wantStatus: http.StatusOK},
		{name: "negative rate", body: `{"initial_balance": 10, "refill_rate": -1}`, wantStatus: http.StatusBadRequest, wantCode: types.CodeInvalidValue},
		{name: "balance above capacity", body: `{"capacity": 1, "initial_balance": 10}`, wantStatus: http.StatusBadRequest, wantCode: types.CodeInvalidValue},
		{name: "no size", body: `{"refill_rate": 1}`, wantStatus: http.StatusBadRequest, wantCode: types.CodeInvalidValue},
		{name: "unknown field", body: `{"initial_balance": 1, "burst": 2}`, wantStatus: http.StatusBadRequest, wantCode: types.CodeInvalidJSON},
		{name: "not json", body: `{`, wantStatus: http.StatusBadRequest, wantCode: types.CodeInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPut, "/v1/buckets/agent-1", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantCode != "" {
				if got := decode[types.ErrorResponse](t, w).Error.Code; got != tt.wantCode {
					t.Errorf("error code = %q, want %q", got, tt.wantCode)
				}
			}
		})
	}

	state, err := env.manager.Get("agent-1")
	if err != nil {
		t.Fatal(err)
	}
	if limit, _ := state.Capacity.Limit(); limit != 20 || state.Balance != 5 {
		t.Errorf("bucket = %+v, want the replaced definition", state)
	}
}

func TestServer_GetBucket(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mustCreate(t, "agent-1", 10, 1)

	w := env.do(t, http.MethodGet, "/v1/buckets/agent-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	view := decode[types.Bucket](t, w)
	if view.ID != "agent-1" || view.Balance == nil || *view.Balance != 10 || view.Unlimited {
		t.Errorf("unexpected view: %+v", view)
	}

	w = env.do(t, http.MethodGet, "/v1/buckets/missing", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if got := decode[types.ErrorResponse](t, w).Error.Code; got != types.CodeBucketNotFound {
		t.Errorf("error code = %q", got)
	}
}

func TestServer_ListBuckets(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mustCreate(t, "b", 1, 0)
	env.mustCreate(t, "a", 2, 0)

	list := decode[types.BucketList](t, env.do(t, http.MethodGet, "/v1/buckets", ""))
	if list.Count != 2 || list.Buckets[0].ID != "a" || list.Buckets[1].ID != "b" {
		t.Errorf("unexpected list: %+v", list)
	}
}

func TestServer_UnlimitedBucket(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPut, "/v1/buckets/vip", `{"capacity": "unlimited"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/v1/buckets/vip", "")
	if strings.Contains(w.Body.String(), "Inf") {
		t.Fatalf("infinity leaked into JSON: %s", w.Body.String())
	}
	view := decode[types.Bucket](t, w)
	if !view.Unlimited || view.Balance != nil || !view.Capacity.IsUnlimited() {
		t.Errorf("unexpected unlimited view: %+v", view)
	}

	for i := 0; i < 3; i++ {
		w = env.do(t, http.MethodPost, "/v1/buckets/vip/consume", `{"tokens": 1e12}`)
		if w.Code != http.StatusOK {
			t.Fatalf("consume %d: status = %d", i, w.Code)
		}
		decision := decode[types.Decision](t, w)
		if !decision.Allowed || decision.Outcome != string(limits.OutcomeUnlimited) || !decision.Unlimited {
			t.Errorf("unexpected decision: %+v", decision)
		}
	}

	list := env.do(t, http.MethodGet, "/v1/buckets", "")
	if strings.Contains(list.Body.String(), "Inf") {
		t.Errorf("infinity leaked into listing: %s", list.Body.String())
	}
}

func TestServer_Consume(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		body        string
		wantStatus  int
		wantOutcome string
		wantCharged float64
		wantRetry   string
	}{
		{
			name:        "raw tokens allowed",
			id:          "agent-1",
			body:        `{"tokens": 4}`,
			wantStatus:  http.StatusOK,
			wantOutcome: "allowed",
			wantCharged: 4,
		},
		{
			name:        "exhausted with retry after",
			id:          "draining",
			body:        `{"tokens": 9}`,
			wantStatus:  http.StatusTooManyRequests,
			wantOutcome: "exhausted",
			wantCharged: 9,
			wantRetry:   "3", // 5 missing tokens at 2/s
		},
		{
			name:        "exhausted without refill has no retry after",
			id:          "frozen",
			body:        `{"tokens": 2}`,
			wantStatus:  http.StatusTooManyRequests,
			wantOutcome: "exhausted",
			wantCharged: 2,
		},
		{
			name:        "empty request charges one token",
			id:          "agent-1",
			body:        `{}`,
			wantStatus:  http.StatusOK,
			wantOutcome: "allowed",
			wantCharged: 1,
		},
		{
			name:        "usage priced by model",
			id:          "agent-1",
			body:        `{"usage": {"prompt_tokens": 3, "completion_tokens": 2}, "model": "gpt-4o"}`,
			wantStatus:  http.StatusOK,
			wantOutcome: "allowed",
			wantCharged: 7,
		},
		{
			name:        "usage of unpriced model charged raw tokens",
			id:          "agent-1",
			body:        `{"usage": {"prompt_tokens": 3, "completion_tokens": 2}, "model": "unknown"}`,
			wantStatus:  http.StatusOK,
			wantOutcome: "allowed",
			wantCharged: 5,
		},
		{
			name:        "estimated from messages",
			id:          "agent-1",
			body:        `{"messages": [{"role": "user", "content": "hello world!"}], "max_completion_tokens": 0}`,
			wantStatus:  http.StatusOK,
			wantOutcome: "allowed",
			wantCharged: 10, // 1 role + 3 content + 3 message + 3 conversation + 0 completion
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.mustCreate(t, "agent-1", 10, 2)
			env.mustCreate(t, "frozen", 1, 0)
			if err := env.manager.CreateBucketWithCapacity("draining", bucket.Finite(10), 4, 2); err != nil {
				t.Fatal(err)
			}

			w := env.do(t, http.MethodPost, "/v1/buckets/"+tt.id+"/consume", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}

			decision := decode[types.Decision](t, w)
			if decision.Outcome != tt.wantOutcome {
				t.Errorf("outcome = %q, want %q", decision.Outcome, tt.wantOutcome)
			}
			if decision.Charged != tt.wantCharged {
				t.Errorf("charged = %v, want %v", decision.Charged, tt.wantCharged)
			}
			if got := w.Header().Get("Retry-After"); got != tt.wantRetry {
				t.Errorf("Retry-After = %q, want %q", got, tt.wantRetry)
			}
			if decision.Balance == nil {
				t.Error("finite bucket should report a balance")
			}
		})
	}
}

func TestServer_ConsumeErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mustCreate(t, "agent-1", 10, 1)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "absent bucket", path: "/v1/buckets/ghost/consume", body: `{"tokens": 1}`, wantStatus: http.StatusNotFound, wantCode: types.CodeBucketNotFound},
		{name: "negative tokens", path: "/v1/buckets/agent-1/consume", body: `{"tokens": -1}`, wantStatus: http.StatusBadRequest, wantCode: types.CodeInvalidValue},
		{name: "invalid json", path: "/v1/buckets/agent-1/consume", body: `tokens=1`, wantStatus: http.StatusBadRequest, wantCode: types.CodeInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if got := decode[types.ErrorResponse](t, w).Error.Code; got != tt.wantCode {
				t.Errorf("error code = %q, want %q", got, tt.wantCode)
			}
		})
	}

	if balance, _ := env.manager.Balance("agent-1"); balance != 10 {
		t.Errorf("failed requests changed the balance to %v", balance)
	}
}

func TestServer_RefillAndWait(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mustCreate(t, "agent-1", 10, 2)
	if err := env.manager.CreateBucketWithCapacity("frozen", bucket.Finite(5), 0, 0); err != nil {
		t.Fatal(err)
	}

	if w := env.do(t, http.MethodPost, "/v1/buckets/agent-1/consume", `{"tokens": 10}`); w.Code != http.StatusOK {
		t.Fatalf("consume status = %d", w.Code)
	}

	wait := decode[types.Wait](t, env.do(t, http.MethodGet, "/v1/buckets/agent-1/wait?tokens=4", ""))
	if wait.WaitMs != 2000 || wait.Ready {
		t.Errorf("wait = %+v, want 2000ms", wait)
	}

	env.clock.Advance(3 * time.Second)

	view := decode[types.Bucket](t, env.do(t, http.MethodPost, "/v1/buckets/agent-1/refill", ""))
	if view.Balance == nil || *view.Balance != 6 {
		t.Errorf("balance after refill = %v, want 6", view.Balance)
	}

	wait = decode[types.Wait](t, env.do(t, http.MethodGet, "/v1/buckets/agent-1/wait?tokens=4", ""))
	if !wait.Ready || wait.WaitMs != 0 {
		t.Errorf("wait = %+v, want ready", wait)
	}

	refill := decode[types.Refill](t, env.do(t, http.MethodPost, "/v1/refill", ""))
	if refill.Refilled != 2 {
		t.Errorf("refilled = %d, want 2", refill.Refilled)
	}

	errorCases := []struct {
		path       string
		wantStatus int
	}{
		{"/v1/buckets/agent-1/wait", http.StatusBadRequest},
		{"/v1/buckets/agent-1/wait?tokens=lots", http.StatusBadRequest},
		{"/v1/buckets/agent-1/wait?tokens=-1", http.StatusBadRequest},
		{"/v1/buckets/frozen/wait?tokens=5", http.StatusConflict},
		{"/v1/buckets/ghost/wait?tokens=1", http.StatusNotFound},
	}
	for _, tc := range errorCases {
		if w := env.do(t, http.MethodGet, tc.path, ""); w.Code != tc.wantStatus {
			t.Errorf("GET %s: status = %d, want %d", tc.path, w.Code, tc.wantStatus)
		}
	}

	if w := env.do(t, http.MethodPost, "/v1/buckets/ghost/refill", ""); w.Code != http.StatusNotFound {
		t.Errorf("refill of absent bucket: status = %d, want 404", w.Code)
	}
}

func TestServer_DeleteBucket(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mustCreate(t, "agent-1", 10, 1)

	if w := env.do(t, http.MethodDelete, "/v1/buckets/agent-1", ""); w.Code != http.StatusNoContent {
		t.Errorf("first delete: status = %d, want 204", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/v1/buckets/agent-1", ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", w.Code)
	}
}

func TestServer_SnapshotRoundTrip(t *testing.T) {
	source := newTestEnv(t, nil)
	source.mustCreate(t, "agent-1", 100, 2.5)
	if err := source.manager.CreateBucketWithCapacity("vip", bucket.Unlimited(), 0, 0); err != nil {
		t.Fatal(err)
	}
	source.do(t, http.MethodPost, "/v1/buckets/agent-1/consume", `{"tokens": 30}`)

	w := source.do(t, http.MethodGet, "/v1/snapshot", "")
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	snapshot := w.Body.String()

	target := newTestEnv(t, nil)
	target.mustCreate(t, "stale", 1, 0)

	w = target.do(t, http.MethodPut, "/v1/snapshot", snapshot)
	if w.Code != http.StatusOK {
		t.Fatalf("import status = %d (%s)", w.Code, w.Body.String())
	}
	if loaded := decode[types.SnapshotLoaded](t, w); loaded.Buckets != 2 {
		t.Errorf("loaded %d buckets, want 2", loaded.Buckets)
	}

	want, _ := source.manager.Get("agent-1")
	got, err := target.manager.Get("agent-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Balance != want.Balance || got.RefillRate != want.RefillRate || !got.LastRefill.Equal(want.LastRefill) {
		t.Errorf("restored %+v, want %+v", got, want)
	}
	if _, err := target.manager.Get("stale"); err == nil {
		t.Error("import should replace the registry")
	}
}

func TestServer_PutSnapshotRejected(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.Server.MaxBodyBytes = 128 })
	env.mustCreate(t, "keep", 5, 1)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "not json", body: "garbage", wantStatus: http.StatusBadRequest, wantCode: types.CodeMalformedSnapshot},
		{name: "missing fields", body: `{"x": {"balance": 1}}`, wantStatus: http.StatusBadRequest, wantCode: types.CodeMalformedSnapshot},
		{name: "too large", body: `{"x": "` + strings.Repeat("a", 256) + `"}`, wantStatus: http.StatusRequestEntityTooLarge, wantCode: types.CodeRequestTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPut, "/v1/snapshot", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := decode[types.ErrorResponse](t, w).Error.Code; got != tt.wantCode {
				t.Errorf("error code = %q, want %q", got, tt.wantCode)
			}
			if ids := env.manager.Identifiers(); len(ids) != 1 || ids[0] != "keep" {
				t.Errorf("registry changed after rejected import: %v", ids)
			}
		})
	}
}

func TestServer_PersistedSnapshots(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mustCreate(t, "agent-1", 10, 1)

	w := env.do(t, http.MethodPost, "/v1/snapshots", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	saved := decode[types.Snapshot](t, w)
	if saved.ID == "" || saved.BucketCount != 1 || !saved.CreatedAt.Equal(epoch) {
		t.Errorf("unexpected snapshot: %+v", saved)
	}

	env.manager.Remove("agent-1")

	w = env.do(t, http.MethodPost, "/v1/snapshots/"+saved.ID+"/restore", "")
	if w.Code != http.StatusOK {
		t.Fatalf("restore status = %d (%s)", w.Code, w.Body.String())
	}
	if _, err := env.manager.Get("agent-1"); err != nil {
		t.Errorf("bucket not restored: %v", err)
	}

	w = env.do(t, http.MethodPost, "/v1/snapshots/unknown/restore", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown snapshot: status = %d, want 404", w.Code)
	}
}

func TestServer_SnapshotsWithoutScheduler(t *testing.T) {
	cfg := config.DefaultConfig()
	srv := New(Options{Config: cfg, Manager: limits.NewManager(limits.Config{})})

	for _, path := range []string{"/v1/snapshots", "/v1/snapshots/abc/restore"} {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("POST %s: status = %d, want 503", path, w.Code)
		}
	}
}

func TestServer_OperationalEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodGet, "/v1/buckets", "")

	tests := []struct {
		path       string
		wantStatus int
		contains   string
	}{
		{"/health", http.StatusOK, `"status":"ok"`},
		{"/ready", http.StatusOK, `"status":"ready"`},
		{"/version", http.StatusOK, `"go_version"`},
		{"/metrics", http.StatusOK, "tollgate_http_requests_total"},
		{"/nope", http.StatusNotFound, "route_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.path, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("body does not contain %q: %s", tt.contains, w.Body.String())
			}
		})
	}

	if w := env.do(t, http.MethodPost, "/v1/buckets", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /v1/buckets: status = %d, want 405", w.Code)
	}
}

func TestServer_SetCosts(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mustCreate(t, "agent-1", 100, 0)

	env.server.SetCosts(cost.Table{Default: &cost.Pricing{PromptCostPer1K: 2000, CompletionCostPer1K: 2000}})

	decision := decode[types.Decision](t, env.do(t, http.MethodPost, "/v1/buckets/agent-1/consume",
		`{"usage": {"prompt_tokens": 1, "completion_tokens": 1}, "model": "gpt-4o"}`))
	if decision.Charged != 4 {
		t.Errorf("charged = %v, want 4 after the table was replaced", decision.Charged)
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Server.ListenAddress = "127.0.0.1:0"
		cfg.Server.ShutdownTimeout = 2 * time.Second
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for env.server.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server did not start listening")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !env.server.IsRunning() {
		t.Error("IsRunning() = false after start")
	}

	resp, err := http.Get("http://" + env.server.Addr().String() + "/health")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
	if env.server.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
}

func TestServer_Auth(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Server.Auth.Enabled = true
		c.Server.Auth.Keys = []config.APIKeyConfig{{Name: "ci", Key: "sk-ci"}}
	})
	env.mustCreate(t, "tenant", 10, 1)

	w := env.do(t, http.MethodGet, "/v1/buckets/tenant", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/buckets/tenant", nil)
	req.Header.Set("Authorization", "Bearer sk-ci")
	w = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200", w.Code)
	}

	// Probes stay open.
	if w := env.do(t, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Errorf("/health status = %d, want 200", w.Code)
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Server.CORS.Enabled = true
	})

	req := httptest.NewRequest(http.MethodOptions, "/v1/buckets/tenant/consume", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}

func TestServer_RequestIDEchoed(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/buckets", bytes.NewReader(nil))
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q", got)
	}
}
