package server

import (
	"net/http"

	"github.com/Sternrassler/snowball-gateway/pkg/metrics"
	"github.com/go-chi/chi/v5"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Get("/ops", s.handleListOps)
		r.Get("/ops/{operation}", s.handleInvoke)
		r.Get("/batch/{operation}", s.handleBatch)
		r.Get("/status", s.handleStatus)
	})
}
