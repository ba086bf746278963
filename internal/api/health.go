// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package api

import (
	"log/slog"
	"net/http"

	"github.com/sentinelhq/sentinel/internal/platform/respond"
)

// HealthDependencies holds the injectable dependency checkers for /api/ready.
type HealthDependencies struct {
	// CheckDatabase pings the PostgreSQL pool.
	CheckDatabase func() error

	// CheckCache pings the Redis client.
	CheckCache func() error
}

type healthHandler struct {
	dependencies HealthDependencies
	logger       *slog.Logger
}

// NewHealthHandlers creates the /api/health and /api/ready http.HandlerFuncs.
func NewHealthHandlers(deps HealthDependencies, logger *slog.Logger) (liveness, readiness http.HandlerFunc) {
	handler := &healthHandler{dependencies: deps, logger: logger}
	return handler.liveness, handler.readiness
}

// liveness handles GET /api/health.
func (handler *healthHandler) liveness(writer http.ResponseWriter, _ *http.Request) {
	respond.OK(writer, map[string]string{"status": "ok"})
}

// readiness handles GET /api/ready.
func (handler *healthHandler) readiness(writer http.ResponseWriter, _ *http.Request) {
	type checkResult struct {
		Name  string `json:"name"`
		IsOK  bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}

	results := make([]checkResult, 0, 2)
	isSystemReady := true

	check := func(name string, probe func() error) {
		if probe == nil {
			return
		}
		result := checkResult{Name: name, IsOK: true}
		if err := probe(); err != nil {
			result.IsOK = false
			result.Error = err.Error()
			isSystemReady = false
			handler.logger.Error("readiness_check_failed",
				slog.String("dependency", name), slog.Any("error", err))
		}
		results = append(results, result)
	}

	check("postgres", handler.dependencies.CheckDatabase)
	check("redis", handler.dependencies.CheckCache)

	status := "ready"
	if !isSystemReady {
		status = "degraded"
		respond.JSON(writer, http.StatusServiceUnavailable, map[string]any{
			"status": status,
			"checks": results,
		})
		return
	}

	respond.OK(writer, map[string]any{
		"status": status,
		"checks": results,
	})
}
