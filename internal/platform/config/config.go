// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, Router) via constructors.
  - Zero Hidden State: No global variables are used to store config.

Each absent required secret fails fast at startup with a descriptive error
rather than silently degrading at request time.
*/
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Sentinel API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Host surfaces. The edge router decides between the marketing site,
	// the dashboard app, and the API-only surface from these names.
	MarketingHost string `env:"MARKETING_HOST,required"` // e.g. sentinelhq.dev
	DashboardHost string `env:"DASHBOARD_HOST,required"` // e.g. app.sentinelhq.dev
	APIHost       string `env:"API_HOST,required"`       // e.g. api.sentinelhq.dev

	// CookieDomain is the shared parent domain for cross-surface cookies.
	CookieDomain string `env:"COOKIE_DOMAIN,required"` // e.g. .sentinelhq.dev

	// AppOrigin overrides the expected Origin for CSRF validation.
	// When empty, the request's own scheme+host is used.
	AppOrigin string `env:"APP_ORIGIN"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis) — OAuth nonce store.
	RedisURL string `env:"REDIS_URL,required"`

	// Session signing secret (HMAC-SHA256).
	SessionSecret string `env:"SESSION_SECRET,required"`

	// APIKeySecret signs programmatic API key tokens (HS256).
	APIKeySecret string `env:"API_KEY_SECRET,required"`

	// Discord OAuth / bot credentials.
	DiscordClientID     string `env:"DISCORD_CLIENT_ID,required"`
	DiscordClientSecret string `env:"DISCORD_CLIENT_SECRET,required"`
	DiscordRedirectURL  string `env:"DISCORD_REDIRECT_URL,required"`
	DiscordBotToken     string `env:"DISCORD_BOT_TOKEN"`

	// ERLCGlobalAPIKey is the optional fallback key used when a tenant has
	// not configured their own ER:LC server key.
	ERLCGlobalAPIKey string `env:"ERLC_GLOBAL_API_KEY"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	// Hostnames are compared case-insensitively everywhere downstream.
	cfg.MarketingHost = strings.ToLower(cfg.MarketingHost)
	cfg.DashboardHost = strings.ToLower(cfg.DashboardHost)
	cfg.APIHost = strings.ToLower(cfg.APIHost)

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Scheme returns the URL scheme for absolute redirects built by the router.
func (c *Config) Scheme() string {
	if c.IsDevelopment() {
		return "http"
	}
	return "https"
}
