// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sentinelhq/sentinel/internal/guard"
	"github.com/sentinelhq/sentinel/internal/platform/apperr"
	"github.com/sentinelhq/sentinel/internal/platform/constants"
	"github.com/sentinelhq/sentinel/internal/platform/respond"
)

// HandlerConfig carries the deployment facts the cookie lifecycle needs.
type HandlerConfig struct {
	// AppOrigin is the expected Origin for the login POST. Empty means the
	// request's own origin.
	AppOrigin string

	// CookieDomain is the shared parent domain for cross-surface cookies.
	CookieDomain string

	// DashboardURL is the absolute URL of the dashboard surface, the
	// destination after a completed or failed callback.
	DashboardURL string

	// Secure marks cookies Secure; disabled only in local development.
	Secure bool
}

// Handler implements the authentication endpoints.
type Handler struct {
	authService *Service
	config      HandlerConfig
}

// NewHandler constructs a new [Handler].
func NewHandler(service *Service, config HandlerConfig) *Handler {
	return &Handler{authService: service, config: config}
}

// Routes returns a [chi.Router] for the auth surface.
//
// # Endpoints
//   - POST /discord/login    : Origin-gated flow initiation; returns the authorize URL.
//   - GET  /discord/start    : First-party alias; redirects straight to Discord.
//   - GET  /discord/callback : Completes the flow and mints the session.
//   - POST /logout           : Clears the session and CSRF cookies.
//   - GET  /session          : Returns the verified session or 401.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Post("/discord/login", handler.login)
	router.Get("/discord/start", handler.start)
	router.Get("/discord/callback", handler.callback)
	router.Post("/logout", handler.logout)
	router.Get("/session", handler.session)
	return router
}

/*
login initiates the OAuth flow for the first-party frontend.

POST /api/auth/discord/login

The origin gate rejects POSTs that did not come from the application's own
pages, so a foreign site cannot plant the intent cookie.

Response:
  - 200: {"authorize_url": "..."}
  - 403: foreign or missing origin
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	if err := guard.ValidateTrustedOrigin(request, handler.config.AppOrigin); err != nil {
		respond.Error(writer, request, apperr.Forbidden("Request origin is not trusted"))
		return
	}

	start, err := handler.authService.BeginLogin(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setOAuthCookies(writer, start)
	respond.OK(writer, map[string]string{"authorize_url": start.AuthorizeURL})
}

/*
start is the GET alias used by first-party full-page redirects, where the
browser navigates rather than fetches and no Origin header is guaranteed.

GET /api/auth/discord/start
*/
func (handler *Handler) start(writer http.ResponseWriter, request *http.Request) {
	begin, err := handler.authService.BeginLogin(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setOAuthCookies(writer, begin)
	http.Redirect(writer, request, begin.AuthorizeURL, http.StatusTemporaryRedirect)
}

/*
callback completes the OAuth flow.

GET /api/auth/discord/callback?code=...&state=...

Browser-facing: failures redirect to the dashboard login page with an error
hint instead of rendering a JSON envelope.
*/
func (handler *Handler) callback(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()

	// The oauth cookies are single-use whatever happens next.
	defer handler.clearOAuthCookies(writer)

	if query.Get("error") != "" {
		http.Redirect(writer, request, handler.config.DashboardURL+"/login?error=access_denied", http.StatusTemporaryRedirect)
		return
	}

	bundle, err := handler.authService.CompleteLogin(
		request.Context(),
		query.Get("code"),
		query.Get("state"),
		cookieValue(request, constants.OAuthStateCookieName),
		cookieValue(request, constants.OAuthIntentCookieName),
	)
	if err != nil {
		http.Redirect(writer, request, handler.config.DashboardURL+"/login?error=auth_failed", http.StatusTemporaryRedirect)
		return
	}

	handler.setCookie(writer, constants.SessionCookieName, bundle.Token, constants.SessionCookieTTL, true, http.SameSiteLaxMode)
	handler.setCookie(writer, constants.CSRFCookieName, bundle.CSRFToken, constants.SessionCookieTTL, false, http.SameSiteLaxMode)

	http.Redirect(writer, request, handler.config.DashboardURL+"/", http.StatusTemporaryRedirect)
}

/*
logout destroys the browser's session.

POST /api/auth/logout

Sessions are stateless, so deletion of the cookies is the whole operation.

Response:
  - 204: always
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	session := handler.authService.ParseSession(cookieValue(request, constants.SessionCookieName))
	handler.authService.RecordLogout(request.Context(), session)

	handler.clearCookie(writer, constants.SessionCookieName, true)
	handler.clearCookie(writer, constants.CSRFCookieName, false)

	respond.NoContent(writer)
}

/*
session returns the verified session for the current request.

GET /api/auth/session

Response:
  - 200: {"user": {...}, "iat": ..., "exp": ...}
  - 401: missing, tampered, or expired session cookie
*/
func (handler *Handler) session(writer http.ResponseWriter, request *http.Request) {
	session := handler.authService.ParseSession(cookieValue(request, constants.SessionCookieName))
	if session == nil {
		respond.Error(writer, request, apperr.Unauthorized("No active session"))
		return
	}

	respond.OK(writer, session)
}

// # Cookie Helpers

func (handler *Handler) setOAuthCookies(writer http.ResponseWriter, start *LoginStart) {
	handler.setCookie(writer, constants.OAuthStateCookieName, start.State, constants.OAuthCookieTTL, true, http.SameSiteLaxMode)

	// Strict: the intent cookie must not ride along on cross-site
	// navigation, only on requests our own pages initiate.
	handler.setCookie(writer, constants.OAuthIntentCookieName, start.Intent, constants.OAuthCookieTTL, true, http.SameSiteStrictMode)
}

func (handler *Handler) clearOAuthCookies(writer http.ResponseWriter) {
	handler.clearCookie(writer, constants.OAuthStateCookieName, true)
	handler.clearCookie(writer, constants.OAuthIntentCookieName, true)
}

func (handler *Handler) setCookie(writer http.ResponseWriter, name, value string, ttl time.Duration, httpOnly bool, sameSite http.SameSite) {
	http.SetCookie(writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   handler.config.CookieDomain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: httpOnly,
		Secure:   handler.config.Secure,
		SameSite: sameSite,
	})
}

func (handler *Handler) clearCookie(writer http.ResponseWriter, name string, httpOnly bool) {
	http.SetCookie(writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   handler.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: httpOnly,
		Secure:   handler.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func cookieValue(request *http.Request, name string) string {
	cookie, err := request.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
