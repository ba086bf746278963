// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, cookie names, and cross-cutting keys
that are shared between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Security: Cookie names, lifetimes, and trusted-client headers.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "sentinel-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second

	// UpstreamTimeout bounds every outbound call to Discord, ER:LC, and Roblox.
	// A timed-out upstream is treated the same as a non-2xx response.
	UpstreamTimeout = 8 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Cookies

const (
	// SessionCookieName stores the HMAC-signed session token (HttpOnly, Lax).
	SessionCookieName = "session"

	// CSRFCookieName stores the double-submit CSRF token. Deliberately NOT
	// HttpOnly: the frontend must read it to echo it in the CSRF header.
	CSRFCookieName = "csrf"

	// OAuthStateCookieName stores the OAuth authorize/callback correlation nonce.
	OAuthStateCookieName = "oauth_state"

	// OAuthIntentCookieName marks the OAuth flow as first-party-initiated.
	OAuthIntentCookieName = "oauth_intent"

	// OnboardingCookieName is the client-readable "0"/"1" onboarding hint.
	OnboardingCookieName = "onboarding_complete"

	// SessionCookieTTL is the lifetime of the session and CSRF cookies.
	SessionCookieTTL = 7 * 24 * time.Hour

	// OAuthCookieTTL is the lifetime of the short-lived OAuth nonce cookies.
	OAuthCookieTTL = 10 * time.Minute

	// OnboardingCookieTTL is the lifetime of the onboarding hint cookie.
	OnboardingCookieTTL = 30 * 24 * time.Hour
)

// # Security Headers

const (
	// HeaderCSRF carries the double-submit CSRF token on mutating requests.
	// It must equal the CSRF cookie byte-for-byte.
	HeaderCSRF = "X-Sentinel-CSRF"

	// HeaderTrustedClient is the static trusted-client marker expected from
	// the first-party frontend on mutating requests.
	HeaderTrustedClient = "X-Sentinel-Client"

	// HeaderTrustedClientValue is the only accepted marker value.
	HeaderTrustedClientValue = "sentinel-web"
)

// # Standard Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
	HeaderReferer       = "Referer"
	HeaderAuthorization = "Authorization"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldMeta    = "meta"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldMessage = "message"
	FieldStatus  = "status"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixOAuthState  = "auth:oauth_state:"
	RedisPrefixOAuthIntent = "auth:oauth_intent:"
)
