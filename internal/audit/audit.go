// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

/*
Package audit implements the append-only activity log.

Every significant tenant action — command attempts, policy edits, panel
mutations, integration changes — is recorded as an immutable [Event].
Events are never updated or deleted; the log only grows.

# Architecture

  - Event: the immutable log entry, with optional before/after state.
  - Service: recording, filtered listing, and CSV export.
  - Store: domain-defined persistence interface, implemented over pgx.
*/
package audit

import (
	"context"
	"time"
)

// DefaultActor is recorded when the caller does not attribute an actor.
const DefaultActor = "System"

// List limits. Requests above MaxListLimit are clamped, never rejected.
const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// Event is one immutable activity log entry.
type Event struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Module  string `json:"module"`
	Action  string `json:"action"`
	Actor   string `json:"actor"`
	Subject string `json:"subject,omitempty"`

	// Before and After capture entity state around a mutation; Metadata
	// carries free-form context. All three are optional.
	Before   map[string]any `json:"before,omitempty"`
	After    map[string]any `json:"after,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// RecordInput carries the fields for a new log entry.
type RecordInput struct {
	UserID   string
	Module   string
	Action   string
	Actor    string
	Subject  string
	Before   map[string]any
	After    map[string]any
	Metadata map[string]any
}

// ListFilter selects events. Zero-valued fields are not filtered on;
// populated fields are exact matches.
type ListFilter struct {
	UserID string
	Module string
	Action string
	Actor  string
	Limit  int
}

// Store is the persistence interface for the audit log.
type Store interface {
	// Insert appends one event. Events are write-once.
	Insert(ctx context.Context, event *Event) error

	// List returns matching events newest-first.
	List(ctx context.Context, filter ListFilter) ([]Event, error)
}
