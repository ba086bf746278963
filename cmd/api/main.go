// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

// Command api is the entry point for the Sentinel HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire integration clients and domain services.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentinelhq/sentinel/internal/api"
	"github.com/sentinelhq/sentinel/internal/apikey"
	"github.com/sentinelhq/sentinel/internal/audit"
	"github.com/sentinelhq/sentinel/internal/auth"
	"github.com/sentinelhq/sentinel/internal/command"
	"github.com/sentinelhq/sentinel/internal/integration/discord"
	"github.com/sentinelhq/sentinel/internal/integration/erlc"
	"github.com/sentinelhq/sentinel/internal/integration/roblox"
	"github.com/sentinelhq/sentinel/internal/onboarding"
	"github.com/sentinelhq/sentinel/internal/panel"
	"github.com/sentinelhq/sentinel/internal/platform/config"
	"github.com/sentinelhq/sentinel/internal/platform/constants"
	"github.com/sentinelhq/sentinel/internal/platform/metrics"
	"github.com/sentinelhq/sentinel/internal/platform/migration"
	pgstore "github.com/sentinelhq/sentinel/internal/platform/postgres"
	redisstore "github.com/sentinelhq/sentinel/internal/platform/redis"
	"github.com/sentinelhq/sentinel/internal/platform/sec"
	"github.com/sentinelhq/sentinel/internal/tenant"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("[Sentinel] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("dashboard_host", cfg.DashboardHost),
	)

	// Root context for startup. A 30s deadline surfaces misconfiguration
	// quickly instead of hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Metrics & Session Codec ────────────────────────────────────────
	metrics.Init()

	codec, err := sec.NewSessionCodec(cfg.SessionSecret)
	must(log, err, "initialize session codec")

	// ── 7. Integration Clients ────────────────────────────────────────────
	discordClient := discord.New(cfg.DiscordClientID, cfg.DiscordClientSecret, cfg.DiscordRedirectURL)
	erlcClient := erlc.New(cfg.ERLCGlobalAPIKey)
	robloxClient := roblox.New()

	// ── 8. Health Handlers ────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 9. Domain Wiring ──────────────────────────────────────────────────
	auditService := audit.NewService(audit.NewPostgresStore(pool))
	auditHandler := audit.NewHandler(auditService)

	tenantService := tenant.NewService(tenant.NewPostgresStore(pool), auditService)
	tenantHandler := tenant.NewHandler(tenantService, erlcClient)

	commandStore := command.NewPostgresStore(pool)
	commandService := command.NewService(commandStore, erlcClient, robloxClient, tenantService, auditService, discordClient)
	commandHandler := command.NewHandler(commandService)

	panelService := panel.NewService(panel.NewPostgresStore(pool), auditService)
	panelHandler := panel.NewHandler(panelService)

	onboardingService := onboarding.NewService(
		tenantKeyCheck{tenants: tenantService},
		policyCheck{store: commandStore},
	)
	onboardingHandler := onboarding.NewHandler(onboardingService, cfg.CookieDomain, cfg.IsProduction())

	apikeyService := apikey.NewService(apikey.NewPostgresStore(pool), auditService, cfg.APIKeySecret)
	apikeyHandler := apikey.NewHandler(apikeyService)

	authService := auth.NewService(discordClient, auth.NewRedisNonceStore(rdb), codec, auditService)
	authHandler := auth.NewHandler(authService, auth.HandlerConfig{
		AppOrigin:    cfg.AppOrigin,
		CookieDomain: cfg.CookieDomain,
		DashboardURL: cfg.Scheme() + "://" + cfg.DashboardHost,
		Secure:       cfg.IsProduction(),
	})

	// ── 10. HTTP Server ───────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:     liveness,
		Readiness:    readiness,
		Auth:         authHandler,
		Audit:        auditHandler,
		Commands:     commandHandler,
		Integrations: tenantHandler,
		Panels:       panelHandler,
		Onboarding:   onboardingHandler,
		APIKeys:      apikeyHandler,
	}

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	server := api.NewServer(serverCtx, cfg, log, authService, apikeyService, handlers)

	// ── 11. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// # Onboarding Adapters

// tenantKeyCheck adapts the tenant service to the onboarding settings check.
type tenantKeyCheck struct {
	tenants *tenant.Service
}

func (a tenantKeyCheck) HasERLCKey(ctx context.Context, userID string) (bool, error) {
	settings, err := a.tenants.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return settings.HasERLCKey(), nil
}

// policyCheck adapts the command store to the onboarding policy check.
type policyCheck struct {
	store command.Store
}

func (a policyCheck) HasPolicy(ctx context.Context, userID string) (bool, error) {
	policy, err := a.store.GetPolicy(ctx, userID)
	if err != nil {
		return false, err
	}
	return policy != nil, nil
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
