// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

/*
Package apikey implements programmatic access keys for the API host.

A key is an HS256-signed JWT handed to the tenant exactly once at creation.
At rest only a bcrypt hash of the token's SHA-256 digest is stored (bcrypt
operates on the 64-char hex digest because its own input limit is 72
bytes). Verification therefore requires both a valid signature AND a live,
unrevoked row — revocation works even though the JWT itself never expires.
*/
package apikey

import (
	"context"
	"time"
)

// Key is the stored metadata for one API key. The token itself is never
// persisted or returned after creation.
type Key struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`

	TokenHash string `json:"-"`

	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// Revoked reports whether the key has been revoked.
func (k *Key) Revoked() bool { return k.RevokedAt != nil }

// Store is the persistence interface for API keys.
type Store interface {
	// Insert persists a new key row.
	Insert(ctx context.Context, key *Key) error

	// Get returns one key by ID regardless of owner; the service checks
	// ownership and revocation.
	Get(ctx context.Context, keyID string) (*Key, error)

	// ListByUser returns the tenant's keys newest-first.
	ListByUser(ctx context.Context, userID string) ([]Key, error)

	// Revoke marks a tenant's key revoked. Revoking twice is a no-op.
	Revoke(ctx context.Context, userID, keyID string, at time.Time) error

	// TouchLastUsed updates the last-used timestamp. Best-effort.
	TouchLastUsed(ctx context.Context, keyID string, at time.Time) error
}
