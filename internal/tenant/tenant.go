// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

/*
Package tenant manages per-tenant integration settings.

A tenant is a single Discord-authenticated user; every stored row is keyed
by their Discord user ID. Settings hold the ER:LC server key the command
relay authenticates with and the optional Discord webhook URL for alert
delivery.
*/
package tenant

import (
	"context"
	"time"
)

// Settings are the tenant's integration credentials and endpoints.
type Settings struct {
	UserID        string    `json:"user_id"`
	ERLCServerKey string    `json:"-"`
	WebhookURL    string    `json:"webhook_url"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasERLCKey reports whether the tenant configured an ER:LC server key.
func (s *Settings) HasERLCKey() bool { return s.ERLCServerKey != "" }

// Store is the persistence interface for tenant settings.
type Store interface {
	// Get returns the tenant's settings, or nil when none are stored yet.
	Get(ctx context.Context, userID string) (*Settings, error)

	// Save upserts the tenant's settings.
	Save(ctx context.Context, settings *Settings) error
}
