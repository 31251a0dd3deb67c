// Package admin serves the operator HTTP surface: health, Prometheus
// metrics and read/delete access to stored records.
package admin

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/roomstore/internal/engine"
	"github.com/roach88/roomstore/internal/metrics"
	"github.com/roach88/roomstore/internal/record"
)

// NewRouter creates the admin router. Deletes go through eng so the room
// policy and feature flags apply to them as to client events.
func NewRouter(logger *slog.Logger, s record.Store, eng *engine.Engine) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(instrument)
	r.Use(requestLogger(logger))
	r.Use(chimw.Recoverer)

	h := NewHandler(logger, s, eng)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", h.Health)
	r.Get("/rooms/{room}", h.Room)
	r.Get("/projects/{id}", h.Project)
	r.Delete("/projects/{id}/variables/{name}", h.DeleteProjectVariable)

	return r
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// instrument records request counts and durations per route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("admin request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}
