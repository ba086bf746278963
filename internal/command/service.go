// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package command

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sentinelhq/sentinel/internal/audit"
	"github.com/sentinelhq/sentinel/internal/integration/discord"
	"github.com/sentinelhq/sentinel/internal/integration/erlc"
	"github.com/sentinelhq/sentinel/internal/integration/roblox"
	"github.com/sentinelhq/sentinel/internal/platform/apperr"
	"github.com/sentinelhq/sentinel/internal/platform/metrics"
	"github.com/sentinelhq/sentinel/internal/tenant"
	"github.com/sentinelhq/sentinel/pkg/uuid"
)

// # Collaborator Interfaces

// GameServer is the slice of the ER:LC adapter the policy needs: the live
// roster for the presence gate and the relay for executed commands.
type GameServer interface {
	OnlinePlayers(ctx context.Context, serverKey string) ([]erlc.Player, error)
	RelayCommand(ctx context.Context, serverKey, command string) error
}

// IdentityResolver verifies that a target names a real Roblox account.
type IdentityResolver interface {
	ResolveUsername(ctx context.Context, username string) (*roblox.Identity, error)
}

// SettingsSource supplies the tenant's integration settings.
type SettingsSource interface {
	Get(ctx context.Context, userID string) (*tenant.Settings, error)
}

// Recorder is the slice of the audit service the policy needs.
type Recorder interface {
	Record(ctx context.Context, input audit.RecordInput) (*audit.Event, error)
}

// Alerter delivers best-effort webhook notifications.
type Alerter interface {
	SendWebhookAlert(ctx context.Context, webhookURL string, alert discord.WebhookAlert) error
}

// Service implements the command safety policy state machine.
type Service struct {
	store    Store
	game     GameServer
	resolver IdentityResolver
	settings SettingsSource
	recorder Recorder
	alerter  Alerter
	now      func() time.Time
}

// NewService constructs a [Service] with its collaborators.
func NewService(store Store, game GameServer, resolver IdentityResolver, settings SettingsSource, recorder Recorder, alerter Alerter) *Service {
	return &Service{
		store:    store,
		game:     game,
		resolver: resolver,
		settings: settings,
		recorder: recorder,
		alerter:  alerter,
		now:      time.Now,
	}
}

// ExecuteInput is one inbound command attempt.
type ExecuteInput struct {
	Command string
	Target  string
}

/*
Execute runs one command attempt through the safety gates.

Description: Evaluates allowlist, cooldown, and presence in order; the
first failing gate terminates the attempt as Blocked. Passing attempts are
either relayed to the game server (Executed) or parked for approval
(Queued) per the tenant's policy. Every branch persists exactly one
[Execution] row and one audit event before returning.

Parameters:
  - ctx: context.Context
  - userID: string (Discord user ID)
  - input: ExecuteInput

Returns:
  - *Execution: the persisted attempt record, also attached to Blocked errors
  - error: apperr.PolicyBlocked for gate failures, apperr.Upstream for
    relay failures, storage errors otherwise
*/
func (service *Service) Execute(ctx context.Context, userID string, input ExecuteInput) (*Execution, error) {
	commandText := strings.TrimSpace(input.Command)
	if commandText == "" {
		return nil, apperr.ValidationError("Command is required",
			apperr.FieldError{Field: "command", Message: "must not be empty"})
	}

	execution := &Execution{
		ID:        uuid.New(),
		UserID:    userID,
		Command:   commandText,
		Target:    normalizeTarget(input.Target),
		Source:    SourceAPI,
		CreatedAt: service.now().UTC(),
	}

	policy, err := service.store.GetPolicy(ctx, userID)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		// No saved policy means an empty allowlist: nothing is permitted.
		policy = &Policy{UserID: userID}
	}

	settings, err := service.settings.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Gate 1: allowlist.
	if !allowlisted(policy.Allowlist, commandText) {
		return service.block(ctx, execution, settings.WebhookURL, ReasonAllowlist,
			"Command is not on the allowlist")
	}

	// Gate 2: cooldown, measured against the most recent attempt of ANY
	// outcome. Read-then-write; see the package note on the accepted race.
	remaining, err := service.cooldownRemaining(ctx, policy, userID)
	if err != nil {
		return nil, err
	}
	if remaining > 0 {
		return service.block(ctx, execution, settings.WebhookURL, ReasonCooldown,
			fmt.Sprintf("Cooldown active. Try again in %ds.", remaining))
	}

	// Gate 3: presence, skipped for server-wide commands.
	if execution.Target != GlobalTarget && !service.targetOnline(ctx, settings.ERLCServerKey, execution.Target) {
		return service.block(ctx, execution, settings.WebhookURL, ReasonTargetOffline,
			"Target is not online")
	}

	if policy.RequiresApproval {
		execution.Result = ResultQueued
		execution.Message = "Awaiting approval"
		if err := service.finish(ctx, execution, settings.WebhookURL); err != nil {
			return nil, err
		}
		return execution, nil
	}

	return service.relay(ctx, execution, settings)
}

/*
Approve relays a queued attempt.

Description: Execution rows are write-once, so approval records a NEW
attempt with source "approval" instead of mutating the queued row. The
safety gates are not re-evaluated: they passed when the command was queued.

Parameters:
  - ctx: context.Context
  - userID: string
  - executionID: string (the queued attempt)

Returns:
  - *Execution: the new approval attempt
  - error: apperr.NotFound, apperr.Conflict for non-queued rows, relay errors
*/
func (service *Service) Approve(ctx context.Context, userID, executionID string) (*Execution, error) {
	queued, err := service.queuedExecution(ctx, userID, executionID)
	if err != nil {
		return nil, err
	}

	settings, err := service.settings.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	execution := &Execution{
		ID:        uuid.New(),
		UserID:    userID,
		Command:   queued.Command,
		Target:    queued.Target,
		Source:    SourceApproval,
		CreatedAt: service.now().UTC(),
	}
	return service.relay(ctx, execution, settings)
}

/*
Deny rejects a queued attempt, recording the decision as a new Blocked row.

Parameters:
  - ctx: context.Context
  - userID: string
  - executionID: string (the queued attempt)

Returns:
  - *Execution: the denial record
  - error: apperr.NotFound, apperr.Conflict for non-queued rows
*/
func (service *Service) Deny(ctx context.Context, userID, executionID string) (*Execution, error) {
	queued, err := service.queuedExecution(ctx, userID, executionID)
	if err != nil {
		return nil, err
	}

	settings, err := service.settings.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	execution := &Execution{
		ID:        uuid.New(),
		UserID:    userID,
		Command:   queued.Command,
		Target:    queued.Target,
		Result:    ResultBlocked,
		Source:    SourceApproval,
		CreatedAt: service.now().UTC(),
	}
	execution.BlockReason = ReasonDenied
	execution.Message = "Denied by approver"
	if err := service.finish(ctx, execution, settings.WebhookURL); err != nil {
		return nil, err
	}
	return execution, nil
}

// History returns the tenant's attempts newest-first.
func (service *Service) History(ctx context.Context, userID string, limit int) ([]Execution, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	executions, err := service.store.ListExecutions(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if executions == nil {
		executions = []Execution{}
	}
	return executions, nil
}

// GetPolicy returns the tenant's policy, defaulting to deny-all.
func (service *Service) GetPolicy(ctx context.Context, userID string) (*Policy, error) {
	policy, err := service.store.GetPolicy(ctx, userID)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		policy = &Policy{UserID: userID, Allowlist: []string{}}
	}
	return policy, nil
}

// PolicyInput carries the mutable policy fields.
type PolicyInput struct {
	Allowlist        []string
	RequiresApproval bool
	CooldownSeconds  int
}

/*
SavePolicy upserts the tenant's policy and audits the change.

Description: Allowlist entries are trimmed, lowercased, and deduplicated;
the audit entry captures before and after state.

Returns:
  - *Policy: the stored policy
  - error: validation or storage failures
*/
func (service *Service) SavePolicy(ctx context.Context, userID string, input PolicyInput) (*Policy, error) {
	previous, err := service.GetPolicy(ctx, userID)
	if err != nil {
		return nil, err
	}

	policy := &Policy{
		UserID:           userID,
		Allowlist:        normalizeAllowlist(input.Allowlist),
		RequiresApproval: input.RequiresApproval,
		CooldownSeconds:  input.CooldownSeconds,
		UpdatedAt:        service.now().UTC(),
	}
	if err := service.store.SavePolicy(ctx, policy); err != nil {
		return nil, err
	}

	_, _ = service.recorder.Record(ctx, audit.RecordInput{
		UserID: userID,
		Module: "commands",
		Action: "policy.updated",
		Before: map[string]any{
			"allowlist":         previous.Allowlist,
			"requires_approval": previous.RequiresApproval,
			"cooldown_seconds":  previous.CooldownSeconds,
		},
		After: map[string]any{
			"allowlist":         policy.Allowlist,
			"requires_approval": policy.RequiresApproval,
			"cooldown_seconds":  policy.CooldownSeconds,
		},
	})

	return policy, nil
}

// # State Machine Internals

// relay sends the command to the game server and records the terminal result.
func (service *Service) relay(ctx context.Context, execution *Execution, settings *tenant.Settings) (*Execution, error) {
	if err := service.game.RelayCommand(ctx, settings.ERLCServerKey, execution.Command); err != nil {
		execution.Result = ResultBlocked
		execution.BlockReason = ReasonUpstream
		execution.Message = "Game server rejected the command"
		if finishErr := service.finish(ctx, execution, settings.WebhookURL); finishErr != nil {
			return nil, finishErr
		}
		if appError := apperr.As(err); appError != nil {
			appError.WithPayload(execution)
		}
		return nil, err
	}

	execution.Result = ResultExecuted
	execution.Message = "Relayed to game server"
	if err := service.finish(ctx, execution, settings.WebhookURL); err != nil {
		return nil, err
	}
	return execution, nil
}

// block records a Blocked attempt and returns the policy error carrying it.
func (service *Service) block(ctx context.Context, execution *Execution, webhookURL, reason, message string) (*Execution, error) {
	execution.Result = ResultBlocked
	execution.BlockReason = reason
	execution.Message = message
	if err := service.finish(ctx, execution, webhookURL); err != nil {
		return nil, err
	}
	return execution, apperr.PolicyBlocked(reason, message).WithPayload(execution)
}

// finish persists the attempt and emits its audit event, metric, and alert.
// This is the single exit point enforcing one row + one event per attempt.
func (service *Service) finish(ctx context.Context, execution *Execution, webhookURL string) error {
	if err := service.store.InsertExecution(ctx, execution); err != nil {
		return err
	}

	metrics.ObserveCommandDecision(string(execution.Result))

	// The audit event is part of the attempt's contract: a failed write
	// surfaces as an error rather than reporting a clean outcome. Only the
	// webhook alert below is best-effort.
	if _, err := service.recorder.Record(ctx, audit.RecordInput{
		UserID:  execution.UserID,
		Module:  "commands",
		Action:  "command." + strings.ToLower(string(execution.Result)),
		Subject: execution.Command,
		Metadata: map[string]any{
			"execution_id": execution.ID,
			"target":       execution.Target,
			"reason":       execution.BlockReason,
			"source":       execution.Source,
		},
	}); err != nil {
		return err
	}

	if webhookURL != "" {
		_ = service.alerter.SendWebhookAlert(ctx, webhookURL, discord.WebhookAlert{
			Title:       "Command " + strings.ToLower(string(execution.Result)),
			Description: execution.Command + " → " + execution.Target + ": " + execution.Message,
			Color:       alertColor(execution.Result),
		})
	}
	return nil
}

// cooldownRemaining returns the whole seconds left in the cooldown window,
// or zero when the attempt may proceed. An unreadable history fails closed:
// the gate cannot be verified, so the attempt does not pass it.
func (service *Service) cooldownRemaining(ctx context.Context, policy *Policy, userID string) (int, error) {
	if policy.CooldownSeconds <= 0 {
		return 0, nil
	}

	latest, err := service.store.LatestExecution(ctx, userID)
	if err != nil {
		return 0, err
	}
	if latest == nil {
		return 0, nil
	}

	window := time.Duration(policy.CooldownSeconds) * time.Second
	elapsed := service.now().UTC().Sub(latest.CreatedAt)
	if elapsed >= window {
		return 0, nil
	}
	return int(math.Ceil((window - elapsed).Seconds())), nil
}

// targetOnline reports whether the target resolves to a real Roblox account
// currently on the roster. Upstream failures count as offline: presence
// cannot be verified, so the privileged command is not relayed.
func (service *Service) targetOnline(ctx context.Context, serverKey, target string) bool {
	identity, err := service.resolver.ResolveUsername(ctx, target)
	if err != nil || identity == nil {
		return false
	}

	roster, err := service.game.OnlinePlayers(ctx, serverKey)
	if err != nil {
		return false
	}

	for _, player := range roster {
		if player.RobloxID != 0 && player.RobloxID == identity.ID {
			return true
		}
		if strings.EqualFold(player.Username, identity.Username) {
			return true
		}
	}
	return false
}

// queuedExecution loads an attempt and verifies it is awaiting approval.
func (service *Service) queuedExecution(ctx context.Context, userID, executionID string) (*Execution, error) {
	execution, err := service.store.GetExecution(ctx, userID, executionID)
	if err != nil {
		return nil, err
	}
	if execution.Result != ResultQueued {
		return nil, apperr.Conflict("Only queued commands can be approved or denied")
	}
	return execution, nil
}

// # Helpers

// normalizeTarget maps empty and whitespace-only targets to [GlobalTarget].
func normalizeTarget(target string) string {
	trimmed := strings.TrimSpace(target)
	if trimmed == "" {
		return GlobalTarget
	}
	return trimmed
}

// allowlisted matches the command verb (first token) case-insensitively.
func allowlisted(allowlist []string, commandText string) bool {
	verb := strings.ToLower(strings.Fields(commandText)[0])
	for _, allowed := range allowlist {
		if strings.ToLower(strings.TrimSpace(allowed)) == verb {
			return true
		}
	}
	return false
}

// normalizeAllowlist trims, lowercases, and deduplicates allowlist entries.
func normalizeAllowlist(entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	normalized := make([]string, 0, len(entries))
	for _, entry := range entries {
		verb := strings.ToLower(strings.TrimSpace(entry))
		if verb == "" {
			continue
		}
		if _, dup := seen[verb]; dup {
			continue
		}
		seen[verb] = struct{}{}
		normalized = append(normalized, verb)
	}
	return normalized
}

func alertColor(result Result) int {
	switch result {
	case ResultExecuted:
		return 0x2ECC71
	case ResultQueued:
		return 0xF1C40F
	default:
		return 0xE74C3C
	}
}
