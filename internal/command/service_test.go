// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package command

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelhq/sentinel/internal/audit"
	"github.com/sentinelhq/sentinel/internal/integration/discord"
	"github.com/sentinelhq/sentinel/internal/integration/erlc"
	"github.com/sentinelhq/sentinel/internal/integration/roblox"
	"github.com/sentinelhq/sentinel/internal/platform/apperr"
	"github.com/sentinelhq/sentinel/internal/tenant"
)

const testUser = "100200300400500600"

// # Fakes

type fakeStore struct {
	policy     *Policy
	executions []Execution
	latestErr  error
}

func (store *fakeStore) GetPolicy(context.Context, string) (*Policy, error) {
	return store.policy, nil
}

func (store *fakeStore) SavePolicy(_ context.Context, policy *Policy) error {
	store.policy = policy
	return nil
}

func (store *fakeStore) InsertExecution(_ context.Context, execution *Execution) error {
	store.executions = append(store.executions, *execution)
	return nil
}

func (store *fakeStore) LatestExecution(context.Context, string) (*Execution, error) {
	if store.latestErr != nil {
		return nil, store.latestErr
	}
	if len(store.executions) == 0 {
		return nil, nil
	}
	latest := store.executions[len(store.executions)-1]
	return &latest, nil
}

func (store *fakeStore) GetExecution(_ context.Context, _, id string) (*Execution, error) {
	for i := range store.executions {
		if store.executions[i].ID == id {
			return &store.executions[i], nil
		}
	}
	return nil, apperr.NotFound("Execution")
}

func (store *fakeStore) ListExecutions(_ context.Context, _ string, limit int) ([]Execution, error) {
	executions := append([]Execution(nil), store.executions...)
	if len(executions) > limit {
		executions = executions[:limit]
	}
	return executions, nil
}

type fakeGame struct {
	roster       []erlc.Player
	rosterErr    error
	relayErr     error
	relayed      []string
	rosterCalled int
}

func (game *fakeGame) OnlinePlayers(context.Context, string) ([]erlc.Player, error) {
	game.rosterCalled++
	return game.roster, game.rosterErr
}

func (game *fakeGame) RelayCommand(_ context.Context, _, command string) error {
	if game.relayErr != nil {
		return game.relayErr
	}
	game.relayed = append(game.relayed, command)
	return nil
}

type fakeResolver struct {
	identities map[string]*roblox.Identity
	err        error
}

func (resolver *fakeResolver) ResolveUsername(_ context.Context, username string) (*roblox.Identity, error) {
	if resolver.err != nil {
		return nil, resolver.err
	}
	return resolver.identities[username], nil
}

type fakeSettings struct{ settings tenant.Settings }

func (source *fakeSettings) Get(context.Context, string) (*tenant.Settings, error) {
	copied := source.settings
	return &copied, nil
}

type fakeRecorder struct {
	records []audit.RecordInput
	err     error
}

func (recorder *fakeRecorder) Record(_ context.Context, input audit.RecordInput) (*audit.Event, error) {
	if recorder.err != nil {
		return nil, recorder.err
	}
	recorder.records = append(recorder.records, input)
	return &audit.Event{}, nil
}

type fakeAlerter struct{ alerts []discord.WebhookAlert }

func (alerter *fakeAlerter) SendWebhookAlert(_ context.Context, _ string, alert discord.WebhookAlert) error {
	alerter.alerts = append(alerter.alerts, alert)
	return nil
}

// # Harness

type harness struct {
	service  *Service
	store    *fakeStore
	game     *fakeGame
	resolver *fakeResolver
	recorder *fakeRecorder
	alerter  *fakeAlerter
	clock    *time.Time
}

func newHarness(policy *Policy) *harness {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	h := &harness{
		store: &fakeStore{policy: policy},
		game: &fakeGame{roster: []erlc.Player{
			{Username: "CoolCop", RobloxID: 12345, Permission: "Moderator"},
		}},
		resolver: &fakeResolver{identities: map[string]*roblox.Identity{
			"CoolCop": {ID: 12345, Username: "CoolCop"},
		}},
		recorder: &fakeRecorder{},
		alerter:  &fakeAlerter{},
		clock:    &now,
	}
	h.service = NewService(h.store, h.game, h.resolver, &fakeSettings{
		settings: tenant.Settings{UserID: testUser, ERLCServerKey: "srv-key", WebhookURL: "https://discord.com/api/webhooks/1/x"},
	}, h.recorder, h.alerter)
	h.service.now = func() time.Time { return *h.clock }
	return h
}

func (h *harness) advance(d time.Duration) { *h.clock = h.clock.Add(d) }

// assertOnePerAttempt checks the core invariant: exactly one execution row
// and one command.* audit event for every attempt made so far.
func (h *harness) assertOnePerAttempt(t *testing.T, attempts int) {
	t.Helper()
	assert.Len(t, h.store.executions, attempts)

	commandEvents := 0
	for _, record := range h.recorder.records {
		if record.Module == "commands" && record.Action != "policy.updated" {
			commandEvents++
		}
	}
	assert.Equal(t, attempts, commandEvents)
}

func permissivePolicy() *Policy {
	return &Policy{UserID: testUser, Allowlist: []string{":kick", ":h"}, CooldownSeconds: 0}
}

// # Tests

/*
TestExecute_Allowlist covers case-insensitive matching and the allowlist
block, including the one-row-one-event invariant on the failure branch.
*/
func TestExecute_Allowlist(t *testing.T) {
	t.Run("case_insensitive_match_executes", func(t *testing.T) {
		h := newHarness(permissivePolicy())

		execution, err := h.service.Execute(context.Background(), testUser, ExecuteInput{
			Command: ":KICK CoolCop", Target: "CoolCop",
		})
		require.NoError(t, err)
		assert.Equal(t, ResultExecuted, execution.Result)
		assert.Equal(t, []string{":KICK CoolCop"}, h.game.relayed)
		h.assertOnePerAttempt(t, 1)
	})

	t.Run("unlisted_verb_blocked", func(t *testing.T) {
		h := newHarness(permissivePolicy())

		execution, err := h.service.Execute(context.Background(), testUser, ExecuteInput{
			Command: ":ban CoolCop", Target: "CoolCop",
		})

		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, "POLICY_BLOCKED:allowlist", appError.Code)
		assert.Equal(t, http.StatusBadRequest, appError.HTTPStatus)
		require.NotNil(t, execution)
		assert.Equal(t, ResultBlocked, execution.Result)
		assert.Equal(t, ReasonAllowlist, execution.BlockReason)
		assert.Same(t, execution, appError.Payload)
		assert.Empty(t, h.game.relayed)
		h.assertOnePerAttempt(t, 1)
	})

	t.Run("no_policy_means_deny_all", func(t *testing.T) {
		h := newHarness(nil)

		_, err := h.service.Execute(context.Background(), testUser, ExecuteInput{Command: ":h hello"})
		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, "POLICY_BLOCKED:allowlist", appError.Code)
	})
}

/*
TestExecute_Cooldown verifies the window counts attempts of every outcome
and that the message carries the ceiling of the remaining seconds.
*/
func TestExecute_Cooldown(t *testing.T) {
	policy := permissivePolicy()
	policy.CooldownSeconds = 10
	h := newHarness(policy)

	// First attempt is BLOCKED (allowlist) — it must still arm the cooldown.
	_, err := h.service.Execute(context.Background(), testUser, ExecuteInput{Command: ":ban x"})
	require.Error(t, err)

	h.advance(2500 * time.Millisecond)

	_, err = h.service.Execute(context.Background(), testUser, ExecuteInput{Command: ":h hello"})
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "POLICY_BLOCKED:cooldown", appError.Code)
	// 10s window, 2.5s elapsed: ceil(7.5) = 8.
	assert.Contains(t, appError.Message, "8s")
	h.assertOnePerAttempt(t, 2)

	// Window fully elapsed since the SECOND attempt.
	h.advance(10 * time.Second)
	execution, err := h.service.Execute(context.Background(), testUser, ExecuteInput{Command: ":h hello"})
	require.NoError(t, err)
	assert.Equal(t, ResultExecuted, execution.Result)
	h.assertOnePerAttempt(t, 3)
}

/*
TestExecute_GlobalTargetSkipsPresence covers the empty and whitespace
target normalization and the presence bypass for server-wide commands.
*/
func TestExecute_GlobalTargetSkipsPresence(t *testing.T) {
	for _, target := range []string{"", "   "} {
		h := newHarness(permissivePolicy())
		h.game.rosterErr = apperr.Upstream("ER:LC", 500, nil) // roster must not be consulted

		execution, err := h.service.Execute(context.Background(), testUser, ExecuteInput{
			Command: ":h server restart soon", Target: target,
		})
		require.NoError(t, err)
		assert.Equal(t, GlobalTarget, execution.Target)
		assert.Equal(t, ResultExecuted, execution.Result)
		assert.Zero(t, h.game.rosterCalled)
	}
}

/*
TestExecute_PresenceGate covers offline targets, unresolvable identities,
and upstream roster failures — all Blocked with reason target_offline.
*/
func TestExecute_PresenceGate(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
	}{
		{"target_not_on_roster", func(h *harness) { h.game.roster = nil }},
		{"identity_does_not_resolve", func(h *harness) { h.resolver.identities = nil }},
		{"roster_fetch_fails", func(h *harness) { h.game.rosterErr = apperr.Upstream("ER:LC", 502, nil) }},
		{"resolver_fails", func(h *harness) { h.resolver.err = apperr.Upstream("Roblox", 429, nil) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(permissivePolicy())
			tt.setup(h)

			execution, err := h.service.Execute(context.Background(), testUser, ExecuteInput{
				Command: ":kick CoolCop", Target: "CoolCop",
			})

			appError := apperr.As(err)
			require.NotNil(t, appError)
			assert.Equal(t, "POLICY_BLOCKED:target_offline", appError.Code)
			assert.Equal(t, ReasonTargetOffline, execution.BlockReason)
			assert.Empty(t, h.game.relayed)
			h.assertOnePerAttempt(t, 1)
		})
	}

	t.Run("online_target_matched_by_roblox_id", func(t *testing.T) {
		h := newHarness(permissivePolicy())
		h.game.roster = []erlc.Player{{Username: "renamed_account", RobloxID: 12345}}

		execution, err := h.service.Execute(context.Background(), testUser, ExecuteInput{
			Command: ":kick CoolCop", Target: "CoolCop",
		})
		require.NoError(t, err)
		assert.Equal(t, ResultExecuted, execution.Result)
	})
}

/*
TestExecute_ApprovalFlow covers Queued results and the write-once approval
and denial paths, each creating a new attempt row.
*/
func TestExecute_ApprovalFlow(t *testing.T) {
	newQueued := func(t *testing.T) (*harness, *Execution) {
		t.Helper()
		policy := permissivePolicy()
		policy.RequiresApproval = true
		h := newHarness(policy)

		queued, err := h.service.Execute(context.Background(), testUser, ExecuteInput{
			Command: ":kick CoolCop", Target: "CoolCop",
		})
		require.NoError(t, err)
		require.Equal(t, ResultQueued, queued.Result)
		assert.Empty(t, h.game.relayed) // queued commands are not relayed yet
		return h, queued
	}

	t.Run("approve_creates_new_executed_attempt", func(t *testing.T) {
		h, queued := newQueued(t)

		approved, err := h.service.Approve(context.Background(), testUser, queued.ID)
		require.NoError(t, err)
		assert.Equal(t, ResultExecuted, approved.Result)
		assert.Equal(t, SourceApproval, approved.Source)
		assert.NotEqual(t, queued.ID, approved.ID)
		assert.Equal(t, []string{":kick CoolCop"}, h.game.relayed)
		h.assertOnePerAttempt(t, 2)

		// The queued row is untouched.
		original, err := h.store.GetExecution(context.Background(), testUser, queued.ID)
		require.NoError(t, err)
		assert.Equal(t, ResultQueued, original.Result)
	})

	t.Run("deny_creates_blocked_attempt", func(t *testing.T) {
		h, queued := newQueued(t)

		denied, err := h.service.Deny(context.Background(), testUser, queued.ID)
		require.NoError(t, err)
		assert.Equal(t, ResultBlocked, denied.Result)
		assert.Equal(t, ReasonDenied, denied.BlockReason)
		assert.Empty(t, h.game.relayed)
	})

	t.Run("approving_non_queued_conflicts", func(t *testing.T) {
		h, queued := newQueued(t)
		approved, err := h.service.Approve(context.Background(), testUser, queued.ID)
		require.NoError(t, err)

		_, err = h.service.Approve(context.Background(), testUser, approved.ID)
		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, http.StatusConflict, appError.HTTPStatus)
	})
}

/*
TestExecute_RelayFailure verifies a passing attempt whose relay fails is
still recorded, with the upstream error surfaced.
*/
func TestExecute_RelayFailure(t *testing.T) {
	h := newHarness(permissivePolicy())
	h.game.relayErr = apperr.Upstream("ER:LC", 403, nil)

	_, err := h.service.Execute(context.Background(), testUser, ExecuteInput{
		Command: ":kick CoolCop", Target: "CoolCop",
	})

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, http.StatusBadGateway, appError.HTTPStatus)
	h.assertOnePerAttempt(t, 1)
	require.Len(t, h.store.executions, 1)
	assert.Equal(t, ReasonUpstream, h.store.executions[0].BlockReason)
}

/*
TestSavePolicy_Normalization covers allowlist trimming, lowercasing, and
deduplication, plus the before/after audit capture.
*/
func TestSavePolicy_Normalization(t *testing.T) {
	h := newHarness(nil)

	policy, err := h.service.SavePolicy(context.Background(), testUser, PolicyInput{
		Allowlist:       []string{" :Kick ", ":KICK", ":h", ""},
		CooldownSeconds: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{":kick", ":h"}, policy.Allowlist)

	var policyEvents []audit.RecordInput
	for _, record := range h.recorder.records {
		if record.Action == "policy.updated" {
			policyEvents = append(policyEvents, record)
		}
	}
	require.Len(t, policyEvents, 1)
	assert.Equal(t, []string{":kick", ":h"}, policyEvents[0].After["allowlist"])
}

/*
TestExecute_AuditWriteFailure verifies the audit event is part of the
attempt's contract: when it cannot be written the attempt surfaces the
failure instead of reporting a clean result, on the executed and blocked
branches alike.
*/
func TestExecute_AuditWriteFailure(t *testing.T) {
	t.Run("executed_branch_fails", func(t *testing.T) {
		h := newHarness(permissivePolicy())
		h.recorder.err = errors.New("audit store down")

		execution, err := h.service.Execute(context.Background(), testUser, ExecuteInput{Command: ":h hello"})
		require.Error(t, err)
		assert.Nil(t, apperr.As(err)) // raw storage error, not a policy decision
		assert.Nil(t, execution)
	})

	t.Run("blocked_branch_fails", func(t *testing.T) {
		h := newHarness(permissivePolicy())
		h.recorder.err = errors.New("audit store down")

		execution, err := h.service.Execute(context.Background(), testUser, ExecuteInput{
			Command: ":ban CoolCop", Target: "CoolCop",
		})
		require.Error(t, err)
		assert.Nil(t, apperr.As(err)) // not dressed up as a policy decision
		assert.Nil(t, execution)
	})
}

/*
TestExecute_CooldownStoreFailure verifies the cooldown gate fails closed:
an unreadable attempt history surfaces the storage error rather than waving
the command through.
*/
func TestExecute_CooldownStoreFailure(t *testing.T) {
	policy := permissivePolicy()
	policy.CooldownSeconds = 10
	h := newHarness(policy)
	h.store.latestErr = errors.New("connection reset")

	_, err := h.service.Execute(context.Background(), testUser, ExecuteInput{Command: ":h hello"})
	require.Error(t, err)
	assert.Empty(t, h.game.relayed)
	assert.Empty(t, h.store.executions)
}

/*
TestExecute_WebhookAlertBestEffort verifies alerts accompany terminal
results but their absence or failure never changes the outcome.
*/
func TestExecute_WebhookAlertBestEffort(t *testing.T) {
	h := newHarness(permissivePolicy())

	_, err := h.service.Execute(context.Background(), testUser, ExecuteInput{Command: ":h hi"})
	require.NoError(t, err)
	require.Len(t, h.alerter.alerts, 1)
	assert.Equal(t, "Command executed", h.alerter.alerts[0].Title)
}
