// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (session signing, random
// token generation) from the domain logic. It acts as an Infrastructure
// service injected into the Application layer via small interfaces.
package sec

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SessionTTL is how long a signed session token remains valid.
const SessionTTL = 7 * 24 * time.Hour

// SessionUser is the identity payload carried inside a session token.
type SessionUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Session is the decoded, verified content of a session token.
type Session struct {
	User SessionUser `json:"user"`

	// IssuedAt and ExpiresAt are Unix seconds.
	IssuedAt  int64 `json:"iat"`
	ExpiresAt int64 `json:"exp"`
}

// SessionCodec signs and verifies compact session tokens.
//
// # Wire Format
//
//	token = base64url(JSON payload) + "." + base64url(HMAC-SHA256(secret, encoded payload))
//
// The server never persists sessions: validity is purely cryptographic plus
// expiry, so a token is self-contained and revocation happens by cookie
// deletion or natural expiry.
type SessionCodec struct {
	secret []byte
	now    func() time.Time
}

// NewSessionCodec constructs a codec from the server session secret.
func NewSessionCodec(secret string) (*SessionCodec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("sec: session secret is required")
	}
	return &SessionCodec{secret: []byte(secret), now: time.Now}, nil
}

// CreateSessionToken builds and signs a token for the given user.
func (codec *SessionCodec) CreateSessionToken(user SessionUser) (string, error) {
	issuedAt := codec.now()

	session := Session{
		User:      user,
		IssuedAt:  issuedAt.Unix(),
		ExpiresAt: issuedAt.Add(SessionTTL).Unix(),
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("sec: failed to encode session payload: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	signature := codec.sign(encoded)

	return encoded + "." + signature, nil
}

// ParseSessionToken verifies and decodes a token string.
//
// # Failure Semantics
//
// Malformed, tampered, and expired tokens are indistinguishable to the
// caller: every failure returns nil. No partial trust is ever granted.
func (codec *SessionCodec) ParseSessionToken(token string) *Session {
	encoded, signature, found := strings.Cut(token, ".")
	if !found || encoded == "" || signature == "" {
		return nil
	}

	// Constant-time signature comparison prevents timing side-channels.
	expected := codec.sign(encoded)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return nil
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}

	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil
	}

	// Reject incomplete payloads even when correctly signed.
	if session.User.ID == "" || session.IssuedAt == 0 || session.ExpiresAt == 0 {
		return nil
	}

	if session.ExpiresAt <= codec.now().Unix() {
		return nil
	}

	return &session
}

// sign computes the base64url HMAC-SHA256 signature over the encoded payload.
func (codec *SessionCodec) sign(encodedPayload string) string {
	mac := hmac.New(sha256.New, codec.secret)
	mac.Write([]byte(encodedPayload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
