// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

/*
Package onboarding decides whether a tenant has finished initial setup.

The decision is a pure function of tenant state so that the HTTP status
endpoint and the edge router's redirect gate can never disagree: the
endpoint materializes the result into the onboarding cookie, and the
router reads only that cookie.
*/
package onboarding

import "context"

// Status is the tenant's onboarding state.
type Status string

const (
	StatusComplete   Status = "complete"
	StatusIncomplete Status = "incomplete"
)

// State are the facts onboarding is judged on.
type State struct {
	// ERLCKeyConfigured: the tenant saved an ER:LC server key.
	ERLCKeyConfigured bool `json:"erlc_key_configured"`

	// CommandPolicySaved: the tenant saved a command safety policy.
	CommandPolicySaved bool `json:"command_policy_saved"`
}

// ComputeStatus is the single source of truth for onboarding completion:
// a tenant is complete once the game server is connected AND a command
// safety policy exists.
func ComputeStatus(state State) Status {
	if state.ERLCKeyConfigured && state.CommandPolicySaved {
		return StatusComplete
	}
	return StatusIncomplete
}

// SettingsSource reports whether the tenant configured an ER:LC key.
type SettingsSource interface {
	HasERLCKey(ctx context.Context, userID string) (bool, error)
}

// PolicySource reports whether the tenant saved a command policy.
type PolicySource interface {
	HasPolicy(ctx context.Context, userID string) (bool, error)
}

// Service assembles tenant state and computes the status.
type Service struct {
	settings SettingsSource
	policies PolicySource
}

// NewService constructs a [Service].
func NewService(settings SettingsSource, policies PolicySource) *Service {
	return &Service{settings: settings, policies: policies}
}

// Resolve gathers the tenant's state and returns it with its status.
func (service *Service) Resolve(ctx context.Context, userID string) (State, Status, error) {
	hasKey, err := service.settings.HasERLCKey(ctx, userID)
	if err != nil {
		return State{}, StatusIncomplete, err
	}

	hasPolicy, err := service.policies.HasPolicy(ctx, userID)
	if err != nil {
		return State{}, StatusIncomplete, err
	}

	state := State{ERLCKeyConfigured: hasKey, CommandPolicySaved: hasPolicy}
	return state, ComputeStatus(state), nil
}
