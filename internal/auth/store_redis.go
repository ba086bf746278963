// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sentinelhq/sentinel/internal/platform/apperr"
	"github.com/sentinelhq/sentinel/internal/platform/constants"
)

// RedisNonceStore implements [NonceStore] using Redis.
//
// Nonces are stored by value under the taxonomy prefixes from the constants
// package. Redis enforces the TTL; consumption is a GETDEL so a nonce can
// never be replayed even by two racing callbacks.
type RedisNonceStore struct {
	client *redis.Client
}

// NewRedisNonceStore creates a new Redis-backed [NonceStore].
func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client}
}

/*
SaveState stores the authorize/callback correlation nonce with its TTL.

Parameters:
  - ctx: context.Context
  - nonce: string
  - ttl: time.Duration

Returns:
  - error: Storage failures
*/
func (repository *RedisNonceStore) SaveState(ctx context.Context, nonce string, ttl time.Duration) error {
	key := constants.RedisPrefixOAuthState + nonce

	if err := repository.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis_oauth_state_set_failed: %w", err)
	}
	return nil
}

/*
ConsumeState validates and deletes the state nonce in one round-trip.

Description: Returns apperr.NotFound if the nonce is absent, expired, or
already consumed.

Returns:
  - error: apperr.NotFound or connectivity errors
*/
func (repository *RedisNonceStore) ConsumeState(ctx context.Context, nonce string) error {
	key := constants.RedisPrefixOAuthState + nonce

	if err := repository.client.GetDel(ctx, key).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return apperr.NotFound("OAuth state")
		}
		return fmt.Errorf("redis_oauth_state_consume_failed: %w", err)
	}
	return nil
}

/*
SaveIntent stores the first-party-initiation marker nonce with its TTL.

Returns:
  - error: Storage failures
*/
func (repository *RedisNonceStore) SaveIntent(ctx context.Context, nonce string, ttl time.Duration) error {
	key := constants.RedisPrefixOAuthIntent + nonce

	if err := repository.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis_oauth_intent_set_failed: %w", err)
	}
	return nil
}

/*
ConsumeIntent validates and deletes the intent nonce.

Returns:
  - error: apperr.NotFound or connectivity errors
*/
func (repository *RedisNonceStore) ConsumeIntent(ctx context.Context, nonce string) error {
	key := constants.RedisPrefixOAuthIntent + nonce

	if err := repository.client.GetDel(ctx, key).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return apperr.NotFound("OAuth intent")
		}
		return fmt.Errorf("redis_oauth_intent_consume_failed: %w", err)
	}
	return nil
}
