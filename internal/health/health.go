// Package health exposes liveness and readiness endpoints backed by
// component checks: the cache store and upstream hosting API reachability.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Checker reports the health of one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc struct {
	ComponentName string
	CheckFn       func(ctx context.Context) error
}

// Name returns the component name.
func (c CheckerFunc) Name() string { return c.ComponentName }

// Check runs the component check.
func (c CheckerFunc) Check(ctx context.Context) error {
	if c.CheckFn == nil {
		return nil
	}
	return c.CheckFn(ctx)
}

type componentStatus struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

type report struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// Handler serves the health endpoints.
type Handler struct {
	checkers []Checker
	logger   *zap.Logger
	timeout  time.Duration
}

// NewHandler creates a health handler over the given component checkers.
func NewHandler(logger *zap.Logger, checkers ...Checker) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		checkers: checkers,
		logger:   logger,
		timeout:  5 * time.Second,
	}
}

// Livez always reports success while the process can serve requests.
func (h *Handler) Livez(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, http.StatusOK, report{Status: "ok"})
}

// Readyz reports success only when every component check passes.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	h.serveChecks(w, r)
}

// Healthz reports the same component checks as readiness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.serveChecks(w, r)
}

func (h *Handler) serveChecks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result := report{
		Status:     "ok",
		Components: make(map[string]componentStatus, len(h.checkers)),
	}
	statusCode := http.StatusOK

	for _, checker := range h.checkers {
		err := checker.Check(ctx)
		if err != nil {
			h.logger.Warn("health check failed",
				zap.String("component", checker.Name()),
				zap.Error(err))
			result.Status = "degraded"
			result.Components[checker.Name()] = componentStatus{Error: err.Error()}
			statusCode = http.StatusServiceUnavailable
			continue
		}
		result.Components[checker.Name()] = componentStatus{Healthy: true}
	}

	writeReport(w, statusCode, result)
}

func writeReport(w http.ResponseWriter, statusCode int, result report) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(result)
}

// GitHubProbe checks upstream hosting API reachability, throttled so health
// scrapes do not burn rate-limit quota.
type GitHubProbe struct {
	Probe    func(ctx context.Context) error
	Interval time.Duration
	Now      func() time.Time

	mu        sync.Mutex
	lastRun   time.Time
	lastError error
}

// Name returns the component name.
func (p *GitHubProbe) Name() string { return "github" }

// Check runs the upstream probe if the throttle interval has elapsed,
// otherwise returns the cached outcome.
func (p *GitHubProbe) Check(ctx context.Context) error {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.lastRun.IsZero() && now.Sub(p.lastRun) < p.Interval {
		return p.lastError
	}

	p.lastRun = now
	if p.Probe == nil {
		p.lastError = nil
		return nil
	}
	p.lastError = p.Probe(ctx)
	return p.lastError
}
