// Package server exposes the local diagnostics HTTP API: health, version,
// queue status, and a manual sync trigger.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/fieldsync/fieldsync/internal/core/cache"
	"github.com/fieldsync/fieldsync/internal/core/queue"
	"github.com/fieldsync/fieldsync/internal/core/ratelimit"
	servermw "github.com/fieldsync/fieldsync/internal/server/middleware"
)

// Deps are the components the diagnostics endpoints read from.
type Deps struct {
	Queue   *queue.Queue
	Limiter *ratelimit.Limiter
	Cache   *cache.Cache
	Version string
}

// Server is the diagnostics HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	addr   string
	deps   Deps
	logger *zap.Logger
}

// New creates a diagnostics server bound to addr.
func New(addr string, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(servermw.RequestID)
	r.Use(servermw.Recovery(logger))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		servermw.WriteError(w, req, http.StatusNotFound, "NOT_FOUND", "the requested resource was not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		servermw.WriteError(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "the requested method is not allowed for this resource")
	})

	s := &Server{
		router: r,
		addr:   addr,
		deps:   deps,
		logger: logger,
	}
	s.registerRoutes()

	return s
}

// Start blocks serving HTTP until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting diagnostics server", zap.String("addr", s.addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("shutting down diagnostics server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
