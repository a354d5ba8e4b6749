package core

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultRequestTimeout = 29 * time.Second

// defaultRedactedHeaders lists header names masked in request logs.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
}

// MountRoutes registers the global middleware chain, the /v1 route group,
// and the top-level health endpoint.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	s.router.Route("/v1", s.mountV1)

	s.router.Get("/health", s.HandleHealth)
	s.router.Get("/version", s.HandleVersion)
}

// registerGlobalMiddleware applies middleware in strict order:
//
//  1. Recoverer       - outermost, catches all panics.
//  2. ContextTimeout  - soft deadline on the request context.
//  3. RequestID       - correlation ID for logs and responses.
//  4. SecurityHeaders - present on all responses, including errors.
//  5. RequestLogger   - structured logging with redacted headers.
//  6. CORS            - browser access control.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
}

// mountV1 registers all v1 endpoints via registrars populated by main. The
// indirection avoids import cycles between core and handler packages.
func (s *Server) mountV1(r chi.Router) {
	for _, registrar := range s.V1RouteRegistrars {
		registrar(r)
	}
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}

func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Server.CORSAllowedOrigins) > 0 {
		return s.Config.Server.CORSAllowedOrigins
	}
	return []string{"*"}
}

// HandleVersion reports build metadata injected at compile time.
func (s *Server) HandleVersion(w http.ResponseWriter, r *http.Request) {
	build := s.Config.Build
	JSON(w, r, http.StatusOK, map[string]string{
		"service":    s.Config.Service,
		"version":    build.Version,
		"commit":     build.Commit,
		"build_time": build.BuildTime,
	})
}
