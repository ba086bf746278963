// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package auth

import (
	"context"

	"github.com/sentinelhq/sentinel/internal/audit"
	"github.com/sentinelhq/sentinel/internal/integration/discord"
	"github.com/sentinelhq/sentinel/internal/platform/apperr"
	"github.com/sentinelhq/sentinel/internal/platform/constants"
	"github.com/sentinelhq/sentinel/internal/platform/sec"
)

// Provider is the slice of the Discord client the login flow needs.
type Provider interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*discord.Token, error)
	FetchIdentity(ctx context.Context, accessToken string) (*discord.Identity, error)
}

// Recorder is the slice of the audit service the login flow needs.
type Recorder interface {
	Record(ctx context.Context, input audit.RecordInput) (*audit.Event, error)
}

// Service orchestrates the OAuth login flow.
type Service struct {
	provider Provider
	nonces   NonceStore
	codec    *sec.SessionCodec
	recorder Recorder
}

// NewService constructs an auth [Service].
func NewService(provider Provider, nonces NonceStore, codec *sec.SessionCodec, recorder Recorder) *Service {
	return &Service{provider: provider, nonces: nonces, codec: codec, recorder: recorder}
}

// LoginStart carries everything the login handler needs to hand the browser
// off to Discord: the authorize URL plus the two nonce cookie values.
type LoginStart struct {
	AuthorizeURL string
	State        string
	Intent       string
}

// SessionBundle is the product of a completed login: the signed session
// token, a fresh CSRF token, and the authenticated user.
type SessionBundle struct {
	Token     string
	CSRFToken string
	User      sec.SessionUser
}

/*
BeginLogin mints the state and intent nonces and builds the authorize URL.

Description: Both nonces are persisted to Redis with the OAuth cookie TTL so
the callback can prove this server initiated the flow recently. The caller
is responsible for mirroring them into cookies.

Returns:
  - *LoginStart: authorize URL and nonce values
  - error: token generation or storage failures
*/
func (service *Service) BeginLogin(ctx context.Context) (*LoginStart, error) {
	state, err := sec.GenerateSecureToken(32)
	if err != nil {
		return nil, err
	}
	intent, err := sec.GenerateSecureToken(32)
	if err != nil {
		return nil, err
	}

	if err := service.nonces.SaveState(ctx, state, constants.OAuthCookieTTL); err != nil {
		return nil, err
	}
	if err := service.nonces.SaveIntent(ctx, intent, constants.OAuthCookieTTL); err != nil {
		return nil, err
	}

	return &LoginStart{
		AuthorizeURL: service.provider.AuthorizeURL(state),
		State:        state,
		Intent:       intent,
	}, nil
}

/*
CompleteLogin validates the callback and mints a session.

Description: The state query parameter must equal the state cookie
byte-for-byte, and both nonces must still exist in Redis (each is consumed,
so a replayed callback fails). Only then is the code exchanged and the
identity fetched.

Parameters:
  - ctx: context.Context
  - code: authorization code from Discord
  - state: state query parameter from Discord
  - cookieState: value of the oauth_state cookie
  - cookieIntent: value of the oauth_intent cookie

Returns:
  - *SessionBundle: session token, CSRF token, and user identity
  - error: apperr.Unauthorized, apperr.Forbidden, or upstream failures
*/
func (service *Service) CompleteLogin(ctx context.Context, code, state, cookieState, cookieIntent string) (*SessionBundle, error) {
	if code == "" {
		return nil, apperr.Unauthorized("Missing authorization code")
	}
	if state == "" || cookieState == "" || state != cookieState {
		return nil, apperr.Unauthorized("OAuth state mismatch")
	}
	if cookieIntent == "" {
		return nil, apperr.Forbidden("Login flow was not initiated by this application")
	}

	if err := service.nonces.ConsumeState(ctx, state); err != nil {
		return nil, apperr.Unauthorized("OAuth state is invalid or expired")
	}
	if err := service.nonces.ConsumeIntent(ctx, cookieIntent); err != nil {
		return nil, apperr.Forbidden("Login flow was not initiated by this application")
	}

	token, err := service.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	identity, err := service.provider.FetchIdentity(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	user := sec.SessionUser{
		ID:          identity.ID,
		Username:    identity.Username,
		DisplayName: identity.DisplayName,
		AvatarURL:   identity.AvatarURL,
	}

	signed, err := service.codec.CreateSessionToken(user)
	if err != nil {
		return nil, err
	}

	csrfToken, err := sec.GenerateSecureToken(32)
	if err != nil {
		return nil, err
	}

	_, _ = service.recorder.Record(ctx, audit.RecordInput{
		UserID:  user.ID,
		Module:  "auth",
		Action:  "login.succeeded",
		Actor:   user.Username,
		Subject: user.ID,
	})

	return &SessionBundle{Token: signed, CSRFToken: csrfToken, User: user}, nil
}

// ParseSession verifies a session cookie value. Nil means unauthenticated.
func (service *Service) ParseSession(token string) *sec.Session {
	return service.codec.ParseSessionToken(token)
}

// RecordLogout appends the logout audit event. Best-effort by design: the
// cookies are already gone by the time this runs.
func (service *Service) RecordLogout(ctx context.Context, session *sec.Session) {
	if session == nil {
		return
	}
	_, _ = service.recorder.Record(ctx, audit.RecordInput{
		UserID: session.User.ID,
		Module: "auth",
		Action: "logout",
		Actor:  session.User.Username,
	})
}
