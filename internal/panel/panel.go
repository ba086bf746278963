// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

/*
Package panel implements the tenant feature-flag map and the generic
dashboard panel CRUD.

The dashboard's dozens of near-identical content modules (moderation cases,
infractions, sessions, departments, ...) share one record shape and one
handler, parameterized by feature key. A per-tenant flag map controls which
features respond; disabled and unknown features are indistinguishable from
absent routes (404).
*/
package panel

import (
	"context"
	"time"
)

// KnownFeatures enumerates every feature key a panel can be filed under.
// Keys mirror the dashboard's module segments.
var KnownFeatures = []string{
	"moderation", "infractions", "sessions", "departments", "activity",
	"alerts", "team", "workflows", "appeals", "profiles", "logs",
	"automation", "backups",
}

// IsKnownFeature reports whether the key names a feature at all.
func IsKnownFeature(feature string) bool {
	for _, known := range KnownFeatures {
		if known == feature {
			return true
		}
	}
	return false
}

// Record is one generic panel entry. Payload carries the feature-specific
// fields the dashboard renders; the service treats it as opaque JSON.
type Record struct {
	ID      string         `json:"id"`
	UserID  string         `json:"user_id"`
	Feature string         `json:"feature"`
	Name    string         `json:"name"`
	Slug    string         `json:"slug"`
	Payload map[string]any `json:"payload"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the persistence interface for flags and panel records.
type Store interface {
	// GetFlags returns the tenant's stored flag overrides; missing keys
	// fall back to enabled.
	GetFlags(ctx context.Context, userID string) (map[string]bool, error)

	// SaveFlags replaces the tenant's flag overrides.
	SaveFlags(ctx context.Context, userID string, flags map[string]bool) error

	// InsertRecord persists a new panel record.
	InsertRecord(ctx context.Context, record *Record) error

	// GetRecord returns one record scoped to tenant and feature.
	GetRecord(ctx context.Context, userID, feature, recordID string) (*Record, error)

	// ListRecords returns a feature's records newest-first.
	ListRecords(ctx context.Context, userID, feature string, limit, offset int) ([]Record, int, error)

	// UpdateRecord persists changes to name, slug, and payload.
	UpdateRecord(ctx context.Context, record *Record) error

	// DeleteRecord removes one record scoped to tenant and feature.
	DeleteRecord(ctx context.Context, userID, feature, recordID string) error
}
