// Package http exposes the sentinel's operational surface: health,
// readiness, metrics, and the last scored result set. Rendering scores into
// a UI is someone else's job; these endpoints are for operators and probes.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/watershed-sentinel/internal/domain"
	"github.com/couchcryptid/watershed-sentinel/internal/health"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// HealthSummarizer exposes the source health rollup.
type HealthSummarizer interface {
	GetHealthSummary(ctx context.Context) health.Summary
}

// ScoreSource exposes the most recent scored result set.
type ScoreSource interface {
	Latest() []domain.ScoredHuc
}

// Server exposes health, readiness, metrics, and score HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /scores routes.
func NewServer(addr string, ready ReadinessChecker, summarizer HealthSummarizer, scores ScoreSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", handleHealth(summarizer))
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /scores", handleScores(scores))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func handleHealth(summarizer HealthSummarizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary := summarizer.GetHealthSummary(r.Context())
		status := http.StatusOK
		// The process itself is healthy even when upstreams are not; the
		// body carries the per-source detail probes and humans both need.
		writeJSON(w, status, map[string]any{
			"status":  "healthy",
			"sources": summary,
		})
	}
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func handleScores(scores ScoreSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, scores.Latest())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
