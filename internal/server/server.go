// Package server exposes the gateway over HTTP.
package server

import (
	"context"
	"net/http"

	"github.com/Sternrassler/snowball-gateway/internal/config"
	"github.com/Sternrassler/snowball-gateway/pkg/credential"
	"github.com/Sternrassler/snowball-gateway/pkg/gateway"
	"github.com/Sternrassler/snowball-gateway/pkg/normalize"
	"github.com/Sternrassler/snowball-gateway/pkg/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Invoker runs catalog operations. Satisfied by *gateway.Gateway.
type Invoker interface {
	Invoke(ctx context.Context, op gateway.Operation, profile normalize.Profile) (any, error)
	Fetch(ctx context.Context, op gateway.Operation) ([]byte, error)
}

// BatchFetcher fans an operation out over symbols. Satisfied by *batch.Fetcher.
type BatchFetcher interface {
	FetchSymbols(ctx context.Context, name string, symbols []string, args map[string]string, profile normalize.Profile) (map[string]any, error)
}

// PoolReporter exposes credential health. Satisfied by *credential.Pool.
type PoolReporter interface {
	Snapshot() []credential.Status
}

// LimiterReporter exposes pacing state. Satisfied by *ratelimit.Limiter.
type LimiterReporter interface {
	State() ratelimit.State
}

// Pinger checks a backing store. Satisfied by *cache.Manager.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the components the handlers serve from. Batch and Cache are optional.
type Deps struct {
	Gateway Invoker
	Batch   BatchFetcher
	Pool    PoolReporter
	Limiter LimiterReporter
	Cache   Pinger
}

// Server represents the HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	cfg     config.ServerConfig
	deps    Deps
	inbound *rate.Limiter
	logger  zerolog.Logger
}

// New creates a new HTTP server instance
func New(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		deps:   deps,
		logger: log.With().Str("component", "server").Logger(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.inbound = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(requestMetrics)
	s.router.Use(middleware.Recoverer)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.registerRoutes()
	return s
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}
