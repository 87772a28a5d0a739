// Package server exposes the scoring pipeline and lead lifecycle over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/raptorflow/lead-engine/internal/cache"
	"github.com/raptorflow/lead-engine/internal/lead"
	"github.com/raptorflow/lead-engine/internal/pipeline"
	"github.com/raptorflow/lead-engine/internal/store"
)

// Server wires HTTP routes to the pipeline, store, and lifecycle manager.
// The cache may be nil when response caching is disabled.
type Server struct {
	store    store.Store
	pipeline *pipeline.Pipeline
	manager  *lead.Manager
	cache    cache.Cache
}

func New(st store.Store, p *pipeline.Pipeline, m *lead.Manager, c cache.Cache) *Server {
	return &Server{store: st, pipeline: p, manager: m, cache: c}
}

// Routes builds the chi router for the API surface.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/classify", s.handleClassify)
		r.Post("/classify/batch", s.handleClassifyBatch)

		r.Route("/leads", func(r chi.Router) {
			r.Get("/", s.handleListLeads)
			r.Get("/{id}", s.handleGetLead)
			r.Post("/{id}/status", s.handleLeadStatus)
			r.Post("/{id}/override", s.handleOverride)
			r.Get("/{id}/overrides", s.handleOverrideHistory)
		})

		r.Post("/sweep", s.handleSweep)
		r.Get("/cache/stats", s.handleCacheStats)
		r.Delete("/cache", s.handleCacheClear)
	})

	return r
}

// ListenAndServe binds srv.Addr and serves until ctx is cancelled.
func ListenAndServe(ctx context.Context, srv *http.Server, drainTimeout time.Duration) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return eris.Wrap(err, "server listen")
	}
	return Serve(ctx, srv, ln, drainTimeout)
}

// Serve runs srv on ln until ctx is cancelled, then drains in-flight
// requests under a fresh deadline. The caller's context is already dead
// at shutdown time, so it cannot serve as the drain timeout.
func Serve(ctx context.Context, srv *http.Server, ln net.Listener, drainTimeout time.Duration) error {
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server serve")
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps service errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, lead.ErrNotFound), eris.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "lead not found")
	case eris.Is(err, lead.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
