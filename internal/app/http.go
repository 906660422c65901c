// Package app wires the HTTP surface: the stats endpoint, Prometheus
// metrics, and health probes.
package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/devcard/github-activity/internal/stats"
	"github.com/devcard/github-activity/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// StatsEngine computes activity statistics for one handle. It never fails;
// degraded computations surface through flags on the result.
type StatsEngine interface {
	GetStats(ctx context.Context, identity stats.Identity, forceRefresh bool) stats.Result
}

// HealthEndpoints exposes the individual health handlers.
type HealthEndpoints interface {
	Livez(w http.ResponseWriter, r *http.Request)
	Readyz(w http.ResponseWriter, r *http.Request)
	Healthz(w http.ResponseWriter, r *http.Request)
}

// NewHTTPHandler wires the stats, metrics, and health endpoints on a single
// mux.
func NewHTTPHandler(engine StatsEngine, metrics *Metrics, healthEndpoints HealthEndpoints, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := chi.NewRouter()
	traceMode := telemetry.TraceMode()

	statsHandler := &statsHandler{
		engine:  engine,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
	router.Method(http.MethodGet, "/stats/{handle}", wrapHTTPHandler(traceMode, "stats", statsHandler))
	router.Handle("/metrics", wrapHTTPHandler(traceMode, "metrics", metrics.Handler()))
	router.Get("/livez", healthEndpoints.Livez)
	router.Get("/readyz", healthEndpoints.Readyz)
	router.Get("/healthz", healthEndpoints.Healthz)
	return router
}

type statsHandler struct {
	engine  StatsEngine
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func (h *statsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handle := strings.TrimSpace(chi.URLParam(r, "handle"))
	if handle == "" {
		http.Error(w, "handle is required", http.StatusBadRequest)
		return
	}

	identity := stats.Identity{
		Handle:      handle,
		CallerToken: bearerToken(r),
	}
	forceRefresh := refreshRequested(r)

	started := h.now()
	result := h.engine.GetStats(r.Context(), identity, forceRefresh)
	h.metrics.ObserveRequest(outcomeLabel(result), h.now().Sub(started))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.Warn("encode stats response failed",
			zap.String("handle", handle),
			zap.Error(err))
	}
}

// bearerToken extracts a caller-supplied token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func refreshRequested(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("refresh")) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func outcomeLabel(result stats.Result) string {
	switch {
	case result.RateLimited:
		return "rate_limited"
	case result.PermissionIssue:
		return "permission_issue"
	default:
		return "ok"
	}
}

func wrapHTTPHandler(traceMode, route string, handler http.Handler) http.Handler {
	if handler == nil {
		handler = http.NotFoundHandler()
	}
	if strings.EqualFold(strings.TrimSpace(traceMode), "off") {
		return handler
	}

	operation := strings.TrimSpace(route)
	if operation == "" {
		operation = "handler"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := otel.Tracer("github-activity/internal/app").Start(
			r.Context(),
			"http.server."+operation,
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			),
		)
		defer span.End()

		recorder := &statusCapturingResponseWriter{
			ResponseWriter: w,
			status:         http.StatusOK,
		}
		handler.ServeHTTP(recorder, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.status_code", recorder.status))
		if recorder.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(recorder.status))
			return
		}
		span.SetStatus(codes.Ok, "request completed")
	})
}

type statusCapturingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingResponseWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
