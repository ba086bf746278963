// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

/*
Package auth implements the Discord OAuth login flow and session lifecycle.

# Flow

 1. The frontend POSTs /api/auth/discord/login from a trusted origin. The
    server mints two nonces: the state nonce (correlates authorize redirect
    with callback) and the intent nonce (proves the flow was first-party
    initiated, not a bare GET from a crafted link). Both live in HttpOnly
    cookies AND in Redis with a 10-minute TTL, and both are single-use.
 2. The browser follows the returned authorize URL to Discord.
 3. Discord redirects back to /api/auth/discord/callback. The callback
    requires the state query parameter to equal the state cookie byte-for-
    byte and both nonces to still exist in Redis; each is consumed on use.
 4. The code is exchanged, the identity fetched, and the signed session
    cookie plus the readable CSRF cookie are set. Oauth cookies are cleared.

Sessions are never persisted server-side: the cookie is self-contained
(see the sec package), so logout is purely cookie deletion.
*/
package auth

import (
	"context"
	"time"
)

// NonceStore persists the single-use OAuth correlation nonces.
type NonceStore interface {
	// SaveState stores the authorize/callback correlation nonce.
	SaveState(ctx context.Context, nonce string, ttl time.Duration) error

	// ConsumeState validates and deletes the state nonce. Absent or
	// expired nonces return apperr.NotFound.
	ConsumeState(ctx context.Context, nonce string) error

	// SaveIntent stores the first-party-initiation marker nonce.
	SaveIntent(ctx context.Context, nonce string, ttl time.Duration) error

	// ConsumeIntent validates and deletes the intent nonce.
	ConsumeIntent(ctx context.Context, nonce string) error
}
