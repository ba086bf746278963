// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

/*
Package middleware provides the cross-cutting HTTP processing chain.

It acts as a series of decorators around the standard http.Handler, injecting
traceability, safety, and security into every request lifecycle.

Standard Stack:

  - Trace: RequestID generation for log correlation.
  - Log: Structured activity logging (slog).
  - Guard: Rate limiting, session/API-key authentication, CSRF validation.
  - Safe: Panic recovery to prevent server crashes.

This package ensures that domain handlers can focus purely on business logic
without worrying about infrastructure-level concerns.
*/
package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sentinelhq/sentinel/internal/platform/apperr"
	"github.com/sentinelhq/sentinel/internal/platform/constants"
	"github.com/sentinelhq/sentinel/internal/platform/ctxutil"
	"github.com/sentinelhq/sentinel/internal/platform/respond"
	"github.com/sentinelhq/sentinel/pkg/uuid"
)

// # Request Tracing

// RequestID attaches a correlation ID to every request for log tracing.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// Honor an inbound ID from a trusted proxy, otherwise mint a
			// time-sortable UUIDv7.
			requestID := request.Header.Get(constants.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New()
			}

			ctx := ctxutil.WithRequestID(request.Context(), requestID)
			writer.Header().Set(constants.HeaderXRequestID, requestID)

			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// # Activity Logging

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (recorder *statusRecorder) WriteHeader(code int) {
	recorder.status = code
	recorder.ResponseWriter.WriteHeader(code)
}

// StructuredLogger logs every request status and performance metrics.
// It also injects a request-specific logger into the context.
func StructuredLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			startTime := time.Now()
			requestLogger := logger.With(
				slog.String("request_id", ctxutil.GetRequestID(request.Context())),
				slog.String("method", request.Method),
				slog.String("path", request.URL.Path),
				slog.String("host", request.Host),
				slog.String("ip", RealIP(request)),
			)

			ctx := ctxutil.WithLogger(request.Context(), requestLogger)
			wrappedWriter := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}

			next.ServeHTTP(wrappedWriter, request.WithContext(ctx))

			latency := time.Since(startTime).Milliseconds()
			logLevel := slog.LevelInfo
			if wrappedWriter.status >= 500 {
				logLevel = slog.LevelError
			} else if wrappedWriter.status >= 400 {
				logLevel = slog.LevelWarn
			}

			logAttrs := []any{
				slog.Int("status", wrappedWriter.status),
				slog.Int64("latency_ms", latency),
				slog.String("user_agent", request.UserAgent()),
			}

			if session := ctxutil.GetSession(ctx); session != nil {
				logAttrs = append(logAttrs, slog.String("user_id", session.User.ID))
			}

			requestLogger.Log(ctx, logLevel, "http_request_finished", logAttrs...)
		})
	}
}

// # Rate Limiting

type rateLimitClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit limits requests per IP using the token bucket algorithm.
//
// The per-IP table is owned by the returned middleware, and a background
// goroutine evicts idle entries until the given context is cancelled.
func RateLimit(ctx context.Context) func(http.Handler) http.Handler {
	var mu sync.Mutex
	clients := make(map[string]*rateLimitClient)

	go func() {
		ticker := time.NewTicker(constants.RateLimitCleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				mu.Lock()
				for ip, clientInfo := range clients {
					if time.Since(clientInfo.lastSeen) > constants.RateLimitClientTTL {
						delete(clients, ip)
					}
				}
				mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			clientIP := RealIP(request)

			mu.Lock()
			clientInfo, found := clients[clientIP]
			if !found {
				clientInfo = &rateLimitClient{
					limiter: rate.NewLimiter(
						rate.Limit(constants.DefaultRateLimitRPS),
						constants.DefaultRateLimitBurst,
					),
				}
				clients[clientIP] = clientInfo
			}
			clientInfo.lastSeen = time.Now()

			allowed := clientInfo.limiter.Allow()
			mu.Unlock()

			if !allowed {
				respond.Error(writer, request, apperr.RateLimited(1))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// # Reliability & Safety

// PanicRecovery recovers from panics, logs the stack trace, and returns 500.
func PanicRecovery() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			defer func() {
				if recovered := recover(); recovered != nil {
					stackTrace := make([]byte, 2048)
					length := runtime.Stack(stackTrace, false)

					logger := ctxutil.GetLogger(request.Context())
					logger.ErrorContext(request.Context(), "panic_recovered",
						slog.Any("error", recovered),
						slog.String("stack", string(stackTrace[:length])),
					)

					respond.Error(writer, request, apperr.Internal(nil))
				}
			}()

			next.ServeHTTP(writer, request)
		})
	}
}

// # Middleware Helpers

// RealIP extracts the client IP, respecting common proxy headers.
func RealIP(request *http.Request) string {
	if ip := request.Header.Get(constants.HeaderXRealIP); ip != "" {
		return ip
	}

	if forwarded := request.Header.Get(constants.HeaderXForwardedFor); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	host, _, _ := net.SplitHostPort(request.RemoteAddr)
	return host
}
