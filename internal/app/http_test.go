package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/devcard/github-activity/internal/stats"
	"go.uber.org/zap"
)

type fakeEngine struct {
	mu       sync.Mutex
	result   stats.Result
	requests []engineRequest
}

type engineRequest struct {
	identity     stats.Identity
	forceRefresh bool
}

func (e *fakeEngine) GetStats(_ context.Context, identity stats.Identity, forceRefresh bool) stats.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, engineRequest{identity: identity, forceRefresh: forceRefresh})
	return e.result
}

type fakeHealth struct{}

func (fakeHealth) Livez(w http.ResponseWriter, _ *http.Request)   { w.WriteHeader(http.StatusOK) }
func (fakeHealth) Readyz(w http.ResponseWriter, _ *http.Request)  { w.WriteHeader(http.StatusOK) }
func (fakeHealth) Healthz(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func newTestHandler(engine StatsEngine) http.Handler {
	return NewHTTPHandler(engine, NewMetrics(), fakeHealth{}, zap.NewNop())
}

func TestStatsEndpoint(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{result: stats.Result{
		TotalCommits:      120,
		TotalRepositories: 6,
		Languages:         map[string]int{"Go": 4},
	}}
	handler := newTestHandler(engine)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/stats/alice", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}

	var body stats.Result
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.TotalCommits != 120 || body.TotalRepositories != 6 {
		t.Fatalf("body = %+v, want engine result", body)
	}

	if len(engine.requests) != 1 {
		t.Fatalf("engine calls = %d, want 1", len(engine.requests))
	}
	got := engine.requests[0]
	if got.identity.Handle != "alice" || got.identity.CallerToken != "" || got.forceRefresh {
		t.Fatalf("engine request = %+v, want plain alice lookup", got)
	}
}

func TestStatsEndpointPassesBearerTokenAndRefresh(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	handler := newTestHandler(engine)

	request := httptest.NewRequest(http.MethodGet, "/stats/alice?refresh=1", nil)
	request.Header.Set("Authorization", "Bearer ghp_caller")

	handler.ServeHTTP(httptest.NewRecorder(), request)

	if len(engine.requests) != 1 {
		t.Fatalf("engine calls = %d, want 1", len(engine.requests))
	}
	got := engine.requests[0]
	if got.identity.CallerToken != "ghp_caller" {
		t.Fatalf("CallerToken = %q, want ghp_caller", got.identity.CallerToken)
	}
	if !got.forceRefresh {
		t.Fatalf("forceRefresh = false, want true")
	}
}

func TestStatsEndpointIgnoresNonBearerAuthorization(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	handler := newTestHandler(engine)

	request := httptest.NewRequest(http.MethodGet, "/stats/alice", nil)
	request.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	handler.ServeHTTP(httptest.NewRecorder(), request)

	if token := engine.requests[0].identity.CallerToken; token != "" {
		t.Fatalf("CallerToken = %q, want empty for non-bearer auth", token)
	}
}

func TestStatsEndpointDegradedResultStillOK(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{result: stats.Result{RateLimited: true}}
	handler := newTestHandler(engine)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/stats/alice", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with flags in the body", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `"rate_limited":true`) {
		t.Fatalf("body = %s, want rate_limited flag", recorder.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	handler := newTestHandler(engine)

	// Drive one stats request so the counter exists before scraping.
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stats/alice", nil))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	body := recorder.Body.String()
	if !strings.Contains(body, "github_activity_requests_total") {
		t.Fatalf("metrics output missing request counter:\n%s", body)
	}
	if !strings.Contains(body, `outcome="ok"`) {
		t.Fatalf("metrics output missing ok outcome:\n%s", body)
	}
}

func TestHealthRoutes(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(&fakeEngine{})
	for _, path := range []string{"/livez", "/readyz", "/healthz"} {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
		if recorder.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, recorder.Code)
		}
	}
}

func TestOutcomeLabel(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		result stats.Result
		want   string
	}{
		{name: "ok", result: stats.Result{}, want: "ok"},
		{name: "rate_limited", result: stats.Result{RateLimited: true}, want: "rate_limited"},
		{name: "permission_issue", result: stats.Result{PermissionIssue: true}, want: "permission_issue"},
		{
			name:   "rate_limited_wins_over_permission",
			result: stats.Result{RateLimited: true, PermissionIssue: true},
			want:   "rate_limited",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := outcomeLabel(tc.result); got != tc.want {
				t.Fatalf("outcomeLabel() = %q, want %q", got, tc.want)
			}
		})
	}
}
