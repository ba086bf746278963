// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelhq/sentinel/internal/audit"
	"github.com/sentinelhq/sentinel/internal/integration/discord"
	"github.com/sentinelhq/sentinel/internal/platform/apperr"
	"github.com/sentinelhq/sentinel/internal/platform/constants"
	"github.com/sentinelhq/sentinel/internal/platform/sec"
)

// # Fakes

type fakeProvider struct {
	exchangeErr error
	identity    discord.Identity
	codes       []string
}

func (f *fakeProvider) AuthorizeURL(state string) string {
	return "https://discord.test/oauth2/authorize?state=" + state
}

func (f *fakeProvider) ExchangeCode(_ context.Context, code string) (*discord.Token, error) {
	f.codes = append(f.codes, code)
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &discord.Token{AccessToken: "access-" + code, TokenType: "Bearer"}, nil
}

func (f *fakeProvider) FetchIdentity(_ context.Context, _ string) (*discord.Identity, error) {
	return &f.identity, nil
}

type fakeNonces struct {
	states  map[string]bool
	intents map[string]bool
}

func newFakeNonces() *fakeNonces {
	return &fakeNonces{states: map[string]bool{}, intents: map[string]bool{}}
}

func (f *fakeNonces) SaveState(_ context.Context, nonce string, _ time.Duration) error {
	f.states[nonce] = true
	return nil
}

func (f *fakeNonces) ConsumeState(_ context.Context, nonce string) error {
	if !f.states[nonce] {
		return apperr.NotFound("OAuth state")
	}
	delete(f.states, nonce)
	return nil
}

func (f *fakeNonces) SaveIntent(_ context.Context, nonce string, _ time.Duration) error {
	f.intents[nonce] = true
	return nil
}

func (f *fakeNonces) ConsumeIntent(_ context.Context, nonce string) error {
	if !f.intents[nonce] {
		return apperr.NotFound("OAuth intent")
	}
	delete(f.intents, nonce)
	return nil
}

type fakeRecorder struct {
	actions []string
}

func (f *fakeRecorder) Record(_ context.Context, input audit.RecordInput) (*audit.Event, error) {
	f.actions = append(f.actions, input.Action)
	return &audit.Event{}, nil
}

func newTestService(t *testing.T, provider *fakeProvider) (*Service, *fakeNonces, *fakeRecorder) {
	t.Helper()
	codec, err := sec.NewSessionCodec("auth-test-secret")
	require.NoError(t, err)
	nonces := newFakeNonces()
	recorder := &fakeRecorder{}
	return NewService(provider, nonces, codec, recorder), nonces, recorder
}

// # Tests

/*
TestLoginFlow_RoundTrip drives a full begin→callback cycle and verifies the
minted session parses back to the Discord identity.
*/
func TestLoginFlow_RoundTrip(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{identity: discord.Identity{
		ID:          "100200300400500600",
		Username:    "chief",
		DisplayName: "Chief",
	}}
	service, nonces, recorder := newTestService(t, provider)

	start, err := service.BeginLogin(ctx)
	require.NoError(t, err)
	assert.Contains(t, start.AuthorizeURL, "state="+start.State)
	assert.NotEqual(t, start.State, start.Intent)
	assert.True(t, nonces.states[start.State])
	assert.True(t, nonces.intents[start.Intent])

	bundle, err := service.CompleteLogin(ctx, "the-code", start.State, start.State, start.Intent)
	require.NoError(t, err)
	assert.Equal(t, []string{"the-code"}, provider.codes)
	assert.NotEmpty(t, bundle.CSRFToken)

	session := service.ParseSession(bundle.Token)
	require.NotNil(t, session)
	assert.Equal(t, "100200300400500600", session.User.ID)
	assert.Equal(t, "chief", session.User.Username)

	assert.Equal(t, []string{"login.succeeded"}, recorder.actions)
}

/*
TestCompleteLogin_Rejections pins the callback gate order: state equality,
intent presence, then Redis consumption. The code is never exchanged when
any gate fails.
*/
func TestCompleteLogin_Rejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		setup      func(service *Service) (code, state, cookieState, cookieIntent string)
		wantStatus int
	}{
		{
			name: "missing_code",
			setup: func(service *Service) (string, string, string, string) {
				start, _ := service.BeginLogin(ctx)
				return "", start.State, start.State, start.Intent
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "state_query_differs_from_cookie",
			setup: func(service *Service) (string, string, string, string) {
				start, _ := service.BeginLogin(ctx)
				return "code", "attacker-state", start.State, start.Intent
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "missing_intent_cookie",
			setup: func(service *Service) (string, string, string, string) {
				start, _ := service.BeginLogin(ctx)
				return "code", start.State, start.State, ""
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "state_not_in_redis",
			setup: func(service *Service) (string, string, string, string) {
				// Cookie and query agree but the server never issued it.
				return "code", "fabricated", "fabricated", "fabricated-intent"
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "replayed_state",
			setup: func(service *Service) (string, string, string, string) {
				start, _ := service.BeginLogin(ctx)
				_, err := service.CompleteLogin(ctx, "code", start.State, start.State, start.Intent)
				require.NoError(t, err)
				return "code", start.State, start.State, start.Intent
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{identity: discord.Identity{ID: "1", Username: "u"}}
			service, _, _ := newTestService(t, provider)

			code, state, cookieState, cookieIntent := tt.setup(service)
			exchangesBefore := len(provider.codes)

			_, err := service.CompleteLogin(ctx, code, state, cookieState, cookieIntent)
			require.Error(t, err)
			appErr := apperr.As(err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.wantStatus, appErr.HTTPStatus)
			assert.Len(t, provider.codes, exchangesBefore, "code must not be exchanged on a failed gate")
		})
	}
}

/*
TestCallbackEndpoint_CookieLifecycle runs the HTTP layer: success sets the
session and CSRF cookies and clears the oauth pair; failure clears the oauth
pair and redirects to the login page.
*/
func TestCallbackEndpoint_CookieLifecycle(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{identity: discord.Identity{ID: "100200300400500600", Username: "chief"}}
	service, _, _ := newTestService(t, provider)

	handler := NewHandler(service, HandlerConfig{
		CookieDomain: ".sentinelhq.dev",
		DashboardURL: "https://app.sentinelhq.dev",
		Secure:       true,
	})

	router := chi.NewRouter()
	router.Mount("/api/auth", handler.Routes())

	callback := func(state, cookieState, cookieIntent string) *http.Response {
		request := httptest.NewRequest(http.MethodGet, "/api/auth/discord/callback?code=c&state="+state, nil)
		if cookieState != "" {
			request.AddCookie(&http.Cookie{Name: constants.OAuthStateCookieName, Value: cookieState})
		}
		if cookieIntent != "" {
			request.AddCookie(&http.Cookie{Name: constants.OAuthIntentCookieName, Value: cookieIntent})
		}
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, request)
		return recorder.Result()
	}

	cookiesByName := func(response *http.Response) map[string]*http.Cookie {
		out := map[string]*http.Cookie{}
		for _, cookie := range response.Cookies() {
			out[cookie.Name] = cookie
		}
		return out
	}

	t.Run("success", func(t *testing.T) {
		start, err := service.BeginLogin(ctx)
		require.NoError(t, err)

		response := callback(start.State, start.State, start.Intent)
		assert.Equal(t, http.StatusTemporaryRedirect, response.StatusCode)
		assert.Equal(t, "https://app.sentinelhq.dev/", response.Header.Get("Location"))

		cookies := cookiesByName(response)
		require.Contains(t, cookies, constants.SessionCookieName)
		assert.True(t, cookies[constants.SessionCookieName].HttpOnly)
		require.Contains(t, cookies, constants.CSRFCookieName)
		assert.False(t, cookies[constants.CSRFCookieName].HttpOnly)

		require.Contains(t, cookies, constants.OAuthStateCookieName)
		assert.Equal(t, -1, cookies[constants.OAuthStateCookieName].MaxAge)

		session := service.ParseSession(cookies[constants.SessionCookieName].Value)
		require.NotNil(t, session)
		assert.Equal(t, "100200300400500600", session.User.ID)
	})

	t.Run("failure_redirects_to_login", func(t *testing.T) {
		response := callback("bogus", "bogus", "bogus")
		assert.Equal(t, http.StatusTemporaryRedirect, response.StatusCode)
		assert.Equal(t, "https://app.sentinelhq.dev/login?error=auth_failed", response.Header.Get("Location"))

		cookies := cookiesByName(response)
		assert.NotContains(t, cookies, constants.SessionCookieName)
		require.Contains(t, cookies, constants.OAuthIntentCookieName)
		assert.Equal(t, -1, cookies[constants.OAuthIntentCookieName].MaxAge)
	})
}

/*
TestLoginEndpoint_OriginGate confirms the POST initiation is origin-gated
while the GET alias is not.
*/
func TestLoginEndpoint_OriginGate(t *testing.T) {
	provider := &fakeProvider{identity: discord.Identity{ID: "1", Username: "u"}}
	service, _, _ := newTestService(t, provider)
	handler := NewHandler(service, HandlerConfig{
		AppOrigin:    "https://app.sentinelhq.dev",
		CookieDomain: ".sentinelhq.dev",
		DashboardURL: "https://app.sentinelhq.dev",
		Secure:       true,
	})

	router := chi.NewRouter()
	router.Mount("/api/auth", handler.Routes())

	t.Run("foreign_origin_rejected", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, "/api/auth/discord/login", nil)
		request.Header.Set(constants.HeaderOrigin, "https://evil.example")
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, request)
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})

	t.Run("trusted_origin_accepted", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, "/api/auth/discord/login", nil)
		request.Header.Set(constants.HeaderOrigin, "https://app.sentinelhq.dev")
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, request)
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "authorize_url")
	})

	t.Run("start_alias_redirects", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodGet, "/api/auth/discord/start", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, request)
		assert.Equal(t, http.StatusTemporaryRedirect, recorder.Code)
		assert.Contains(t, recorder.Header().Get("Location"), "https://discord.test/oauth2/authorize")
	})
}
