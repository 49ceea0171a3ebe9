// Package server provides the HTTP API for ad-hoc runs, budget status, and
// cycle history.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/audit"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/budget"
	labelerotel "github.com/ghelleks/email-labeler-agent-sub001/internal/otel"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/trigger"
)

const requestTimeout = 5 * time.Minute

// Server holds the HTTP API dependencies.
type Server struct {
	router    *chi.Mux
	runner    trigger.CycleRunner
	tracker   *budget.Tracker
	audits    *audit.Store // optional
	apiToken  string       // empty disables auth
	startTime time.Time
}

// New creates the API server and mounts all routes.
func New(runner trigger.CycleRunner, tracker *budget.Tracker, audits *audit.Store, apiToken string) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		runner:    runner,
		tracker:   tracker,
		audits:    audits,
		apiToken:  apiToken,
		startTime: time.Now(),
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(requestTimeout))
	s.router.Use(labelerotel.Middleware())

	s.router.Get("/healthz", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.apiToken))
		r.Post("/api/run", s.handleRun)
		r.Get("/api/budget", s.handleBudget)
		r.Get("/api/cycles", s.handleCycles)
	})

	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the server on addr.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
