// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

/*
Package command implements the privileged-command safety policy.

Before any in-game command is relayed to the tenant's ER:LC server it must
pass three gates, evaluated in a fixed order:

 1. Allowlist: the command verb must appear in the tenant's policy
    (case-insensitive).
 2. Cooldown: a whole-second window since the most recent attempt of ANY
    outcome, not just successful ones.
 3. Presence: a non-global target must resolve to a real Roblox identity
    AND be on the live online roster.

Every attempt — pass or fail — produces exactly one [Execution] row and one
audit event. Execution rows are write-once: approvals of queued commands
create a new attempt instead of mutating the old row.

# Cooldown Race

The cooldown gate is a read-then-write without isolation: two simultaneous
requests can both observe an expired window and both pass. The window is a
pacing mechanism, not a security boundary, so the race is accepted rather
than serialized.
*/
package command

import (
	"context"
	"time"
)

// GlobalTarget is the normalized target for server-wide commands. Global
// commands skip the presence gate: there is no single player to verify.
const GlobalTarget = "GLOBAL"

// Result is the terminal outcome of a command attempt.
type Result string

const (
	ResultExecuted Result = "Executed"
	ResultQueued   Result = "Queued"
	ResultBlocked  Result = "Blocked"
)

// Block reasons, surfaced verbatim in POLICY_BLOCKED error codes.
const (
	ReasonAllowlist     = "allowlist"
	ReasonCooldown      = "cooldown"
	ReasonTargetOffline = "target_offline"

	// ReasonUpstream marks attempts that passed every policy gate but could
	// not be relayed to the game server.
	ReasonUpstream = "upstream"

	// ReasonDenied marks queued attempts rejected by an approver.
	ReasonDenied = "denied"
)

// Attempt sources.
const (
	SourceAPI      = "api"
	SourceApproval = "approval"
)

// Policy is the tenant's command safety configuration.
type Policy struct {
	UserID string `json:"user_id"`

	// Allowlist holds the permitted command verbs (e.g. ":kick"). Matching
	// is case-insensitive; an empty list permits nothing.
	Allowlist []string `json:"allowlist"`

	// RequiresApproval queues passing commands instead of relaying them.
	RequiresApproval bool `json:"requires_approval"`

	// CooldownSeconds is the minimum whole-second gap between attempts.
	CooldownSeconds int `json:"cooldown_seconds"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Execution is one immutable command attempt record.
type Execution struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Command string `json:"command"`
	Target  string `json:"target"`

	Result      Result `json:"result"`
	BlockReason string `json:"block_reason,omitempty"`
	Message     string `json:"message,omitempty"`
	Source      string `json:"source"`

	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence interface for policies and execution attempts.
type Store interface {
	// GetPolicy returns the tenant's policy, or nil when none is saved.
	GetPolicy(ctx context.Context, userID string) (*Policy, error)

	// SavePolicy upserts the tenant's policy.
	SavePolicy(ctx context.Context, policy *Policy) error

	// InsertExecution appends one write-once attempt record.
	InsertExecution(ctx context.Context, execution *Execution) error

	// LatestExecution returns the most recent attempt of any outcome, or
	// nil when the tenant has never attempted a command.
	LatestExecution(ctx context.Context, userID string) (*Execution, error)

	// GetExecution returns one attempt scoped to the tenant.
	GetExecution(ctx context.Context, userID, executionID string) (*Execution, error)

	// ListExecutions returns attempts newest-first.
	ListExecutions(ctx context.Context, userID string, limit int) ([]Execution, error)
}
