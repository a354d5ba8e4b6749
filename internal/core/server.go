// Package core provides the API chassis for the Rainbowcast service.
// It builds the chi router and enforces the cross-cutting concerns (panic
// recovery, request correlation, logging, security headers, error envelopes)
// before requests reach the prediction handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rainbowcast/internal/config"
)

// Server bundles the chassis dependencies. Domain handlers register their
// routes through V1RouteRegistrars, which keeps core free of handler imports.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// HealthProbes are checked concurrently by the /health endpoint.
	HealthProbes []HealthProbe

	// V1RouteRegistrars mount domain routes under /v1. Populated by the
	// application entry point before MountRoutes is called.
	V1RouteRegistrars []func(chi.Router)

	router *chi.Mux

	// closers run during Shutdown, in registration order.
	closers []func(context.Context) error
}

// NewServer validates the chassis dependencies and prepares the router.
// Routes are mounted separately via MountRoutes so tests can customize
// registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers a cleanup function to run during Shutdown.
func (s *Server) OnShutdown(fn func(context.Context) error) {
	s.closers = append(s.closers, fn)
}

// Shutdown runs registered cleanup functions (pool closes, watcher stops).
// The first error is returned but remaining closers still run.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var firstErr error
	for _, closer := range s.closers {
		if err := closer(ctx); err != nil {
			s.Logger.Error("shutdown cleanup failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	s.Logger.Info("server shutdown complete")
	return firstErr
}
