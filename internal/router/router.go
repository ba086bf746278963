// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

/*
Package router implements the host-aware edge middleware.

Every inbound request passes through here before any route handler. The
router inspects the Host header and path to decide between the marketing
site, the dashboard app, and the API-only surface, performing rewrites and
redirects, attaching security headers, enforcing the onboarding gate, and
lazily minting the CSRF cookie.

# Ordering

Host-specific rules run first; the onboarding gate only ever sees the
post-rewrite path, never the raw request path.
*/
package router

import (
	"encoding/json"
	"net"
	"net/http"
	"path"
	"strings"

	"github.com/sentinelhq/sentinel/internal/platform/config"
	"github.com/sentinelhq/sentinel/internal/platform/constants"
	"github.com/sentinelhq/sentinel/internal/platform/sec"
)

// appPrefix is the internal path space the dashboard host serves. The
// dashboard presents unprefixed URLs but serves /app-prefixed content.
const appPrefix = "/app"

// onboardingPresentedPath is the user-visible onboarding URL on the dashboard host.
const onboardingPresentedPath = "/onboarding"

// dashboardModules lists the first path segments that belong to the
// dashboard app. Requests for these on the marketing host are redirected
// (never rewritten) to the dashboard host.
var dashboardModules = map[string]struct{}{
	"onboarding": {}, "integrations": {}, "settings": {}, "moderation": {},
	"activity": {}, "infractions": {}, "sessions": {}, "departments": {},
	"alerts": {}, "team": {}, "rbac": {}, "workflows": {}, "appeals": {},
	"profiles": {}, "logs": {}, "automation": {}, "realtime": {},
	"commands": {}, "backups": {}, "api-keys": {}, "observability": {},
	"billing": {},
}

// dashboardBypassPaths are dashboard-host paths served outside the /app space.
var dashboardBypassPaths = map[string]struct{}{
	"/login": {}, "/access-denied": {}, "/terms": {}, "/privacy": {},
}

// staticExtensions are asset suffixes the router never touches.
var staticExtensions = []string{".svg", ".png", ".jpg", ".jpeg", ".gif", ".webp", ".ico"}

// HostRouter decides, per request, which surface serves it and in what path space.
type HostRouter struct {
	marketingHost string
	dashboardHost string
	apiHost       string
	cookieDomain  string
	scheme        string
	secure        bool
}

// New constructs a HostRouter from the application configuration.
func New(cfg *config.Config) *HostRouter {
	return &HostRouter{
		marketingHost: cfg.MarketingHost,
		dashboardHost: cfg.DashboardHost,
		apiHost:       cfg.APIHost,
		cookieDomain:  cfg.CookieDomain,
		scheme:        cfg.Scheme(),
		secure:        !cfg.IsDevelopment(),
	}
}

// Middleware returns the edge handler wrapping next.
func (hr *HostRouter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requestPath := path.Clean("/" + request.URL.Path)

		// Static assets bypass the router entirely.
		if isStaticAsset(requestPath) {
			next.ServeHTTP(writer, request)
			return
		}

		// Headers are attached to EVERY response the router produces,
		// including redirects, rewrites, and the API-host 404.
		attachSecurityHeaders(writer.Header())

		hostname := normalizeHost(request.Host)
		hasSession := hasCookie(request, constants.SessionCookieName)

		switch hostname {
		case hr.apiHost:
			hr.serveAPIHost(writer, request, next, requestPath)
		case hr.dashboardHost:
			hr.serveDashboardHost(writer, request, next, requestPath, hasSession)
		case hr.marketingHost:
			hr.serveMarketingHost(writer, request, next, requestPath)
		default:
			// Unknown hosts fall through to the default route tree.
			next.ServeHTTP(writer, request)
		}
	})
}

// serveAPIHost restricts the API surface to /api routes, rewriting the
// /auth/* convenience aliases into /api/auth/*.
func (hr *HostRouter) serveAPIHost(writer http.ResponseWriter, request *http.Request, next http.Handler, requestPath string) {
	if requestPath == "/auth" || strings.HasPrefix(requestPath, "/auth/") {
		rewrite(request, "/api"+requestPath)
		next.ServeHTTP(writer, request)
		return
	}

	if !strings.HasPrefix(requestPath, "/api") {
		writer.Header().Set("Content-Type", "application/json; charset=utf-8")
		writer.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(writer).Encode(map[string]string{
			"error": "API host only serves /api routes.",
		})
		return
	}

	next.ServeHTTP(writer, request)
}

// serveDashboardHost canonicalizes dashboard URLs and enforces the onboarding gate.
func (hr *HostRouter) serveDashboardHost(writer http.ResponseWriter, request *http.Request, next http.Handler, requestPath string, hasSession bool) {
	// Only the dashboard surface mints the double-submit token; API 404s
	// and marketing redirects never set cookies.
	hr.mintCSRFCookie(writer, request, hasSession)

	// Marketing-only content does not live on the dashboard host.
	if requestPath == "/features" {
		http.Redirect(writer, request, hr.scheme+"://"+hr.marketingHost+"/", http.StatusPermanentRedirect)
		return
	}

	// Canonicalize: the dashboard host presents unprefixed URLs.
	if requestPath == appPrefix || strings.HasPrefix(requestPath, appPrefix+"/") {
		stripped := strings.TrimPrefix(requestPath, appPrefix)
		if stripped == "" {
			stripped = "/"
		}
		http.Redirect(writer, request, hr.scheme+"://"+hr.dashboardHost+stripped, http.StatusTemporaryRedirect)
		return
	}

	resolvedPath := requestPath
	if !isDashboardBypass(requestPath) {
		// Internal rewrite into the /app path space. The browser URL is untouched.
		resolvedPath = appPrefix + requestPath
		if requestPath == "/" {
			resolvedPath = appPrefix
		}
		rewrite(request, resolvedPath)
	}

	if hr.applyOnboardingGate(writer, request, resolvedPath, hasSession) {
		return
	}

	next.ServeHTTP(writer, request)
}

// serveMarketingHost redirects dashboard-shaped paths to the dashboard host.
func (hr *HostRouter) serveMarketingHost(writer http.ResponseWriter, request *http.Request, next http.Handler, requestPath string) {
	if hr.isDashboardPath(requestPath) {
		target := strings.TrimPrefix(requestPath, appPrefix)
		if target == "" {
			target = "/"
		}
		// Always a redirect, never a rewrite: the marketing host must not
		// serve dashboard content under its own name.
		http.Redirect(writer, request, hr.scheme+"://"+hr.dashboardHost+target, http.StatusTemporaryRedirect)
		return
	}

	next.ServeHTTP(writer, request)
}

// applyOnboardingGate redirects incomplete tenants into onboarding and
// completed tenants out of it. It reports whether it wrote a response.
//
// The gate inspects the POST-rewrite path only (see package ordering note).
func (hr *HostRouter) applyOnboardingGate(writer http.ResponseWriter, request *http.Request, resolvedPath string, hasSession bool) bool {
	if !hasSession || !strings.HasPrefix(resolvedPath, appPrefix) {
		return false
	}

	onboardingDone := cookieValue(request, constants.OnboardingCookieName) == "1"
	onOnboardingPage := resolvedPath == appPrefix+onboardingPresentedPath ||
		strings.HasPrefix(resolvedPath, appPrefix+onboardingPresentedPath+"/")

	if !onboardingDone && !onOnboardingPage {
		http.Redirect(writer, request, hr.scheme+"://"+hr.dashboardHost+onboardingPresentedPath, http.StatusTemporaryRedirect)
		return true
	}

	if onboardingDone && onOnboardingPage {
		http.Redirect(writer, request, hr.scheme+"://"+hr.dashboardHost+"/", http.StatusTemporaryRedirect)
		return true
	}

	return false
}

// mintCSRFCookie lazily seeds the double-submit token for authenticated
// browsers that do not carry one yet.
func (hr *HostRouter) mintCSRFCookie(writer http.ResponseWriter, request *http.Request, hasSession bool) {
	if !hasSession || hasCookie(request, constants.CSRFCookieName) {
		return
	}

	token, err := sec.GenerateSecureToken(32)
	if err != nil {
		// Entropy failure: skip minting, the mutation guard will reject later.
		return
	}

	http.SetCookie(writer, &http.Cookie{
		Name:   constants.CSRFCookieName,
		Value:  token,
		Path:   "/",
		Domain: hr.cookieDomain,
		MaxAge: int(constants.SessionCookieTTL.Seconds()),
		Secure: hr.secure,
		// Readable by the frontend so it can echo the value in the CSRF header.
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	})
}

// isDashboardPath reports whether a marketing-host path belongs to the dashboard app.
func (hr *HostRouter) isDashboardPath(requestPath string) bool {
	if requestPath == "/login" || requestPath == appPrefix || strings.HasPrefix(requestPath, appPrefix+"/") {
		return true
	}
	_, ok := dashboardModules[firstSegment(requestPath)]
	return ok
}

// # Helpers

// normalizeHost strips the port and lowercases the Host header.
func normalizeHost(host string) string {
	if stripped, _, err := net.SplitHostPort(host); err == nil {
		host = stripped
	}
	return strings.ToLower(host)
}

// rewrite swaps the request into a new internal path space.
func rewrite(request *http.Request, newPath string) {
	request.URL.Path = newPath
	request.RequestURI = request.URL.RequestURI()
}

// attachSecurityHeaders sets the fixed security response headers.
func attachSecurityHeaders(header http.Header) {
	header.Set("X-Frame-Options", "DENY")
	header.Set("X-Content-Type-Options", "nosniff")
	header.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	header.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
}

// isDashboardBypass reports whether a dashboard-host path is served outside /app.
func isDashboardBypass(requestPath string) bool {
	if strings.HasPrefix(requestPath, "/api") {
		return true
	}
	_, ok := dashboardBypassPaths[requestPath]
	return ok
}

// isStaticAsset reports whether the path is a static asset the router skips.
func isStaticAsset(requestPath string) bool {
	if strings.HasPrefix(requestPath, "/_next/static") ||
		strings.HasPrefix(requestPath, "/_next/image") ||
		requestPath == "/favicon.ico" ||
		requestPath == "/robots.txt" ||
		requestPath == "/sitemap.xml" {
		return true
	}
	for _, ext := range staticExtensions {
		if strings.HasSuffix(requestPath, ext) {
			return true
		}
	}
	return false
}

// firstSegment returns the first path segment without slashes.
func firstSegment(requestPath string) string {
	trimmed := strings.TrimPrefix(requestPath, "/")
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return trimmed
}

// hasCookie reports whether the named cookie is present with a non-empty value.
func hasCookie(request *http.Request, name string) bool {
	return cookieValue(request, name) != ""
}

// cookieValue returns the named cookie's value or "".
func cookieValue(request *http.Request, name string) string {
	cookie, err := request.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
