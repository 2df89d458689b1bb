// Package core provides the HTTP chassis for the floodwatch API: a chi router
// with the cross-cutting middleware chain, the health endpoint, and the
// operator-facing sweep trigger.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"floodwatch/internal/config"
	"floodwatch/internal/types"
)

// SweepRunner triggers one alert sweep. *scheduler.Sweeper satisfies it.
type SweepRunner interface {
	Run(ctx context.Context) (types.SweepResult, error)
}

// Server bundles the API's dependencies so tests can inject substitutes.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Sweeper      SweepRunner
	HealthProbes []HealthProbe

	router *chi.Mux
}

// NewServer validates the required dependencies and prepares the router.
// Routes are mounted separately via MountRoutes so tests can customize
// registration.
func NewServer(cfg *config.Config, sweeper SweepRunner, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if sweeper == nil {
		return nil, fmt.Errorf("sweeper must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:  cfg,
		Logger:  logger,
		Sweeper: sweeper,
		router:  chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler for http.ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.router
}
