// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

/*
Package api wires together the edge host router, the middleware chain, and
all domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport (chi).
  - The host router runs OUTSIDE chi: host-based rewrites must happen
    before path-based route matching.
  - Only this package and cmd/api are allowed to import net/http server
    primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sentinelhq/sentinel/internal/apikey"
	"github.com/sentinelhq/sentinel/internal/audit"
	"github.com/sentinelhq/sentinel/internal/auth"
	"github.com/sentinelhq/sentinel/internal/command"
	"github.com/sentinelhq/sentinel/internal/guard"
	"github.com/sentinelhq/sentinel/internal/onboarding"
	"github.com/sentinelhq/sentinel/internal/panel"
	"github.com/sentinelhq/sentinel/internal/platform/config"
	"github.com/sentinelhq/sentinel/internal/platform/constants"
	"github.com/sentinelhq/sentinel/internal/platform/metrics"
	"github.com/sentinelhq/sentinel/internal/platform/middleware"
	"github.com/sentinelhq/sentinel/internal/router"
	"github.com/sentinelhq/sentinel/internal/tenant"
)

// # Server Definitions

// Server wraps the edge-wrapped chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all domain-specific HTTP handler sets.
//
// # Usage
//
// New domains add a field here — no other change to server.go is required.
type Handlers struct {
	// Liveness is the /api/health handler — 200 whenever the process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /api/ready handler — 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// Auth handles the Discord OAuth flow and session lifecycle.
	Auth *auth.Handler

	// Audit serves the activity log and its CSV export.
	Audit *audit.Handler

	// Commands serves the safety policy and execution endpoints.
	Commands *command.Handler

	// Integrations manages per-tenant settings and the ER:LC snapshot.
	Integrations *tenant.Handler

	// Panels serves the feature flag map and the generic panel CRUD.
	Panels *panel.Handler

	// Onboarding serves the computed onboarding status.
	Onboarding *onboarding.Handler

	// APIKeys manages programmatic access keys for the API host.
	APIKeys *apikey.Handler
}

// # Server Initialization

// NewServer builds the full transport stack.
//
// # Layering
//
//	host router (rewrites, redirects, security headers, CSRF cookie)
//	└─ chi: request ID → logging → timeout → rate limit → recovery
//	   → metrics → authentication
//	   └─ /api/auth (anonymous), /metrics, probes
//	   └─ /api/* (session required, mutations CSRF-gated)
func NewServer(ctx context.Context, cfg *config.Config, log *slog.Logger, sessions middleware.SessionParser, keys middleware.KeyVerifier, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(middleware.RateLimit(ctx))
	r.Use(middleware.PanicRecovery())
	r.Use(metrics.Instrument)
	r.Use(middleware.Authenticate(sessions, keys))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated probes and the Prometheus scrape target.
	r.Get("/api/health", h.Liveness)
	r.Get("/api/ready", h.Readiness)
	r.Handle("/metrics", metrics.Handler())

	// # Application API
	r.Route("/api", func(api chi.Router) {
		// The auth surface manages its own gating: the login POST is
		// origin-checked and everything else is cookie lifecycle.
		api.Mount("/auth", h.Auth.Routes())

		api.Group(func(protected chi.Router) {
			protected.Use(middleware.RequireSession)
			protected.Use(middleware.CSRF(cfg.AppOrigin, guard.Options{
				RequireCSRF:         true,
				RequireClientHeader: true,
			}))

			protected.Mount("/audit", h.Audit.Routes())
			protected.Mount("/commands", h.Commands.Routes())
			protected.Mount("/integrations", h.Integrations.Routes())
			protected.Mount("/features", h.Panels.FeatureRoutes())
			protected.Mount("/panels", h.Panels.PanelRoutes())
			protected.Mount("/onboarding", h.Onboarding.Routes())
			protected.Mount("/apikeys", h.APIKeys.Routes())
		})
	})

	// The edge router must see every request before chi does.
	edge := router.New(cfg)

	return &Server{
		log: log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           edge.Middleware(r),
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
