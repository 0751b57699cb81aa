// Package api exposes the HTTP interface for the weerwacht service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weerwacht/weerwacht/internal/config"
	"github.com/weerwacht/weerwacht/internal/manager"
	"github.com/weerwacht/weerwacht/internal/metrics"
	"github.com/weerwacht/weerwacht/internal/projection"
)

// Server wires HTTP handlers to the location manager.
type Server struct {
	router  chi.Router
	manager *manager.Manager
	logger  *zap.Logger
	cfg     config.Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(mgr *manager.Manager, cfg config.Config, logger *zap.Logger) *Server {
	s := &Server{
		manager: mgr,
		logger:  logger.Named("api"),
		cfg:     cfg,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/locations", func(r chi.Router) {
			r.Get("/", s.listLocations)
			r.Route("/{slug}", func(r chi.Router) {
				r.Get("/", s.getLocation)
				r.Post("/refresh", s.refreshLocation)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// Ready once every coordinator has completed at least one cycle,
	// successful or not. Before that a scrape may still be in flight.
	for _, slug := range s.manager.Slugs() {
		coord, ok := s.manager.Lookup(slug)
		if !ok {
			continue
		}
		state := coord.State()
		if state.LastCycleID == "" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type locationSummary struct {
	Slug              string `json:"slug"`
	Name              string `json:"name"`
	HasData           bool   `json:"has_data"`
	LastUpdateStatus  string `json:"last_update_status"`
	ConsecutiveErrors int    `json:"consecutive_errors"`
	LastSuccessAt     string `json:"last_success_at,omitempty"`
}

func (s *Server) listLocations(w http.ResponseWriter, _ *http.Request) {
	slugs := s.manager.Slugs()
	out := make([]locationSummary, 0, len(slugs))
	for _, slug := range slugs {
		coord, ok := s.manager.Lookup(slug)
		if !ok {
			continue
		}
		state := coord.State()
		summary := locationSummary{
			Slug:              slug,
			Name:              coord.Name(),
			HasData:           state.HasData(),
			LastUpdateStatus:  string(state.LastUpdateStatus),
			ConsecutiveErrors: state.ConsecutiveErrors,
		}
		if !state.LastSuccessAt.IsZero() {
			summary.LastSuccessAt = state.LastSuccessAt.Format(time.RFC3339)
		}
		out = append(out, summary)
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": out})
}

func (s *Server) getLocation(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	coord, ok := s.manager.Lookup(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown location")
		return
	}
	state := coord.State()
	entities := projection.Project(slug, coord.Name(), state)
	writeJSON(w, http.StatusOK, map[string]any{
		"slug":     slug,
		"name":     coord.Name(),
		"entities": entities,
	})
}

func (s *Server) refreshLocation(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	coord, ok := s.manager.Lookup(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown location")
		return
	}
	state := coord.Refresh(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"slug":               slug,
		"last_update_status": string(state.LastUpdateStatus),
		"consecutive_errors": state.ConsecutiveErrors,
		"has_data":           state.HasData(),
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
