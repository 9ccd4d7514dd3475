// Package httpapi exposes the Migration Job Orchestrator over HTTP:
// the five /api/migrations REST routes, a WebSocket progress route
// (/api/migrations/jobs/{id}/ws), and a health endpoint, routed with
// chi and validated with go-playground/validator.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/mirajehossain/tenantmigrator/internal/logger"
	"github.com/mirajehossain/tenantmigrator/internal/notify"
	"github.com/mirajehossain/tenantmigrator/internal/orchestrator"
	"github.com/mirajehossain/tenantmigrator/internal/query"
)

// Server wires the Orchestrator, Query interface, and Hub into chi
// routes.
type Server struct {
	Orchestrator *orchestrator.Orchestrator
	Query        *query.Interface
	Hub          *notify.Hub
	Log          *logger.Logger

	validate *validator.Validate
	upgrader websocket.Upgrader
}

func NewServer(orch *orchestrator.Orchestrator, q *query.Interface, hub *notify.Hub, log *logger.Logger) *Server {
	return &Server{
		Orchestrator: orch,
		Query:        q,
		Hub:          hub,
		Log:          log,
		validate:     validator.New(),
		upgrader:     websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Router builds the chi router for this server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api/migrations", func(r chi.Router) {
		r.Post("/validate", s.handleValidate)
		r.Post("/start", s.handleStart)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Delete("/jobs/{id}", s.handleDeleteJob)
		r.Get("/jobs/{id}/ws", s.handleWatch)
	})
	r.Get("/app/health/", s.handleHealth)

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.Log.Info("request", map[string]any{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		})
	})
}
