// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sentinelhq/sentinel/internal/apikey"
	"github.com/sentinelhq/sentinel/internal/guard"
	"github.com/sentinelhq/sentinel/internal/platform/apperr"
	"github.com/sentinelhq/sentinel/internal/platform/constants"
	"github.com/sentinelhq/sentinel/internal/platform/ctxutil"
	"github.com/sentinelhq/sentinel/internal/platform/respond"
	"github.com/sentinelhq/sentinel/internal/platform/sec"
)

// SessionParser verifies a session cookie value.
//
// # Why an interface?
//
// Defining the slice here decouples the middleware from the auth service
// implementation, allowing mocks during unit testing.
type SessionParser interface {
	ParseSession(token string) *sec.Session
}

// KeyVerifier resolves a bearer API key to its owning tenant.
type KeyVerifier interface {
	Verify(ctx context.Context, token string) (*apikey.Key, error)
}

// Authenticate resolves the caller's identity from either credential.
//
// # Flow
//  1. A session cookie, if present and valid, wins.
//  2. Otherwise an 'Authorization: Bearer <token>' API key is accepted
//     (when a verifier is configured; the API host passes one, the
//     dashboard host does not).
//  3. Anonymous requests proceed; RequireSession decides per-route.
//
// A malformed Bearer header is rejected outright rather than treated as
// anonymous, so a caller holding a broken key learns immediately.
func Authenticate(sessions SessionParser, keys KeyVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			if cookie, err := request.Cookie(constants.SessionCookieName); err == nil {
				if session := sessions.ParseSession(cookie.Value); session != nil {
					ctx := ctxutil.WithSession(request.Context(), session)
					next.ServeHTTP(writer, request.WithContext(ctx))
					return
				}
			}

			authHeader := request.Header.Get(constants.HeaderAuthorization)
			if authHeader == "" || keys == nil {
				next.ServeHTTP(writer, request)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				respond.Error(writer, request, apperr.Unauthorized("Invalid authorization format"))
				return
			}

			key, err := keys.Verify(request.Context(), parts[1])
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			// API-key callers get a synthetic session carrying the owning
			// tenant, so downstream handlers are credential-agnostic.
			session := &sec.Session{User: sec.SessionUser{ID: key.UserID, Username: key.Name}}
			ctx := ctxutil.WithSession(request.Context(), session)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireSession blocks requests that are not authenticated.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate].
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if ctxutil.GetSession(request.Context()) == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// CSRF enforces the layered mutation defenses from the guard package.
//
// Safe methods pass untouched. API-key callers are exempt: a bearer header
// cannot be attached cross-site, which is the attack CSRF defends against,
// and programmatic clients have no cookie jar to double-submit from.
func CSRF(appOrigin string, opts guard.Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			if request.Header.Get(constants.HeaderAuthorization) != "" {
				if _, err := request.Cookie(constants.SessionCookieName); err != nil {
					next.ServeHTTP(writer, request)
					return
				}
			}

			if err := guard.ValidateMutationRequest(request, appOrigin, opts); err != nil {
				respond.Error(writer, request, apperr.Forbidden(err.Error()))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
