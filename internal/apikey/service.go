// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package apikey

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/sentinelhq/sentinel/internal/audit"
	"github.com/sentinelhq/sentinel/internal/platform/apperr"
	"github.com/sentinelhq/sentinel/internal/platform/sec"
	"github.com/sentinelhq/sentinel/pkg/uuid"
)

// Recorder is the slice of the audit service the key lifecycle needs.
type Recorder interface {
	Record(ctx context.Context, input audit.RecordInput) (*audit.Event, error)
}

// Service implements the API key lifecycle and bearer verification.
type Service struct {
	store    Store
	recorder Recorder
	secret   []byte
	now      func() time.Time
}

// NewService constructs a [Service]. The secret signs key JWTs and must be
// distinct from the session secret.
func NewService(store Store, recorder Recorder, secret string) *Service {
	return &Service{store: store, recorder: recorder, secret: []byte(secret), now: time.Now}
}

// CreatedKey pairs the stored metadata with the one-time plaintext token.
type CreatedKey struct {
	Key   *Key   `json:"key"`
	Token string `json:"token"`
}

/*
Create mints a new API key.

Description: Signs an HS256 JWT carrying the tenant (sub) and key ID (jti),
stores bcrypt(sha256(token)), and returns the plaintext token exactly once.

Parameters:
  - ctx: context.Context
  - userID: string
  - name: string (display label)

Returns:
  - *CreatedKey: metadata plus the one-time token
  - error: signing or storage failures
*/
func (service *Service) Create(ctx context.Context, userID, name string) (*CreatedKey, error) {
	keyID := uuid.New()
	issuedAt := service.now().UTC()

	claims := jwt.MapClaims{
		"sub": userID,
		"jti": keyID,
		"iat": issuedAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(service.secret)
	if err != nil {
		return nil, fmt.Errorf("apikey_sign_failed: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(sec.HashToken(token)), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("apikey_hash_failed: %w", err)
	}

	key := &Key{
		ID:        keyID,
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		TokenHash: string(hash),
		CreatedAt: issuedAt,
	}
	if err := service.store.Insert(ctx, key); err != nil {
		return nil, err
	}

	_, _ = service.recorder.Record(ctx, audit.RecordInput{
		UserID:  userID,
		Module:  "api-keys",
		Action:  "key.created",
		Subject: key.Name,
		After:   map[string]any{"id": key.ID},
	})

	return &CreatedKey{Key: key, Token: token}, nil
}

/*
Verify resolves a bearer token to its owning tenant.

Description: Checks the JWT signature, loads the key row by jti, rejects
revoked keys, and confirms the token against the stored bcrypt hash so a
forged jti cannot borrow another key's row.

Returns:
  - *Key: the live key
  - error: apperr.Unauthorized for every verification failure
*/
func (service *Service) Verify(ctx context.Context, token string) (*Key, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return service.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apperr.Unauthorized("Invalid API key")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperr.Unauthorized("Invalid API key")
	}
	keyID, _ := claims["jti"].(string)
	if keyID == "" {
		return nil, apperr.Unauthorized("Invalid API key")
	}

	key, err := service.store.Get(ctx, keyID)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid API key")
	}
	if key.Revoked() {
		return nil, apperr.Unauthorized("API key revoked")
	}
	if bcrypt.CompareHashAndPassword([]byte(key.TokenHash), []byte(sec.HashToken(token))) != nil {
		return nil, apperr.Unauthorized("Invalid API key")
	}

	_ = service.store.TouchLastUsed(ctx, key.ID, service.now().UTC())
	return key, nil
}

// List returns the tenant's keys newest-first.
func (service *Service) List(ctx context.Context, userID string) ([]Key, error) {
	keys, err := service.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []Key{}
	}
	return keys, nil
}

// Revoke permanently disables a key. The row is kept for the audit trail.
func (service *Service) Revoke(ctx context.Context, userID, keyID string) error {
	if err := service.store.Revoke(ctx, userID, keyID, service.now().UTC()); err != nil {
		return err
	}

	_, _ = service.recorder.Record(ctx, audit.RecordInput{
		UserID: userID,
		Module: "api-keys",
		Action: "key.revoked",
		After:  map[string]any{"id": keyID},
	})
	return nil
}
