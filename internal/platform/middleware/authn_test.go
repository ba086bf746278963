// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelhq/sentinel/internal/apikey"
	"github.com/sentinelhq/sentinel/internal/guard"
	"github.com/sentinelhq/sentinel/internal/platform/apperr"
	"github.com/sentinelhq/sentinel/internal/platform/constants"
	"github.com/sentinelhq/sentinel/internal/platform/ctxutil"
	"github.com/sentinelhq/sentinel/internal/platform/sec"
)

type fakeSessions struct {
	sessions map[string]*sec.Session
}

func (f *fakeSessions) ParseSession(token string) *sec.Session {
	return f.sessions[token]
}

type fakeKeys struct {
	keys map[string]*apikey.Key
}

func (f *fakeKeys) Verify(_ context.Context, token string) (*apikey.Key, error) {
	if key, ok := f.keys[token]; ok {
		return key, nil
	}
	return nil, apperr.Unauthorized("Invalid API key")
}

// echoUserID terminates the chain and reports the resolved identity.
func echoUserID() http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if session := ctxutil.GetSession(request.Context()); session != nil {
			_, _ = writer.Write([]byte(session.User.ID))
			return
		}
		_, _ = writer.Write([]byte("anonymous"))
	})
}

func TestAuthenticate_CredentialResolution(t *testing.T) {
	sessions := &fakeSessions{sessions: map[string]*sec.Session{
		"good-session": {User: sec.SessionUser{ID: "111", Username: "alice"}},
	}}
	keys := &fakeKeys{keys: map[string]*apikey.Key{
		"good-key": {ID: "k1", UserID: "222", Name: "ci"},
	}}

	handler := Authenticate(sessions, keys)(echoUserID())

	run := func(mutate func(*http.Request)) *httptest.ResponseRecorder {
		request := httptest.NewRequest(http.MethodGet, "/api/audit", nil)
		mutate(request)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		return recorder
	}

	t.Run("session_cookie_wins", func(t *testing.T) {
		recorder := run(func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: "good-session"})
			r.Header.Set(constants.HeaderAuthorization, "Bearer good-key")
		})
		assert.Equal(t, "111", recorder.Body.String())
	})

	t.Run("bearer_key_resolves_tenant", func(t *testing.T) {
		recorder := run(func(r *http.Request) {
			r.Header.Set(constants.HeaderAuthorization, "Bearer good-key")
		})
		assert.Equal(t, "222", recorder.Body.String())
	})

	t.Run("invalid_key_is_401", func(t *testing.T) {
		recorder := run(func(r *http.Request) {
			r.Header.Set(constants.HeaderAuthorization, "Bearer forged")
		})
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("malformed_bearer_is_401", func(t *testing.T) {
		recorder := run(func(r *http.Request) {
			r.Header.Set(constants.HeaderAuthorization, "Token abc")
		})
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("tampered_session_falls_through_anonymous", func(t *testing.T) {
		recorder := run(func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: "tampered"})
		})
		assert.Equal(t, "anonymous", recorder.Body.String())
	})
}

func TestRequireSession(t *testing.T) {
	sessions := &fakeSessions{sessions: map[string]*sec.Session{
		"good-session": {User: sec.SessionUser{ID: "111"}},
	}}
	handler := Authenticate(sessions, nil)(RequireSession(echoUserID()))

	t.Run("anonymous_blocked", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/audit", nil))
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("authenticated_passes", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodGet, "/api/audit", nil)
		request.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: "good-session"})
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "111", recorder.Body.String())
	})
}

func TestCSRF_MutationGate(t *testing.T) {
	const origin = "https://app.sentinelhq.dev"
	handler := CSRF(origin, guard.Options{RequireCSRF: true, RequireClientHeader: true})(echoUserID())

	run := func(method string, mutate func(*http.Request)) *httptest.ResponseRecorder {
		request := httptest.NewRequest(method, "/api/commands", nil)
		mutate(request)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		return recorder
	}

	armed := func(r *http.Request) {
		r.Header.Set(constants.HeaderOrigin, origin)
		r.Header.Set(constants.HeaderTrustedClient, constants.HeaderTrustedClientValue)
		r.Header.Set(constants.HeaderCSRF, "tok-1")
		r.AddCookie(&http.Cookie{Name: constants.CSRFCookieName, Value: "tok-1"})
		r.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: "s"})
	}

	t.Run("get_is_never_challenged", func(t *testing.T) {
		recorder := run(http.MethodGet, func(*http.Request) {})
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("fully_armed_post_passes", func(t *testing.T) {
		recorder := run(http.MethodPost, armed)
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("csrf_header_cookie_mismatch_is_403", func(t *testing.T) {
		recorder := run(http.MethodPost, func(r *http.Request) {
			armed(r)
			r.Header.Set(constants.HeaderCSRF, "tok-2")
		})
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})

	t.Run("foreign_origin_is_403", func(t *testing.T) {
		recorder := run(http.MethodPost, func(r *http.Request) {
			armed(r)
			r.Header.Set(constants.HeaderOrigin, "https://evil.example")
		})
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})

	t.Run("bearer_caller_without_cookies_is_exempt", func(t *testing.T) {
		recorder := run(http.MethodPost, func(r *http.Request) {
			r.Header.Set(constants.HeaderAuthorization, "Bearer some-key")
		})
		assert.Equal(t, http.StatusOK, recorder.Code)
	})
}
