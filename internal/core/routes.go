package core

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the global middleware chain and all endpoints.
//
// Middleware order matters: the recoverer is outermost so it catches panics
// from everything below, the request ID must exist before the logger runs,
// and admin auth applies only to the operator routes.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger))

	s.router.Get("/health", s.HandleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.AdminAuth)
			r.Post("/alerts/sweep", s.HandleTriggerSweep)
		})
	})
}

// HandleTriggerSweep runs one alert sweep synchronously and returns its
// aggregate result. The scheduled Lambda is the normal driver; this endpoint
// exists for operators to force a sweep after an incident or config change.
func (s *Server) HandleTriggerSweep(w http.ResponseWriter, r *http.Request) {
	result, err := s.Sweeper.Run(r.Context())
	if err != nil {
		s.Logger.ErrorContext(r.Context(), "manual sweep failed", "error", err)
		Error(w, r, err)
		return
	}

	JSON(w, r, http.StatusOK, APIResponse{Data: result})
}
