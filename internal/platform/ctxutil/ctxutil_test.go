// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package ctxutil_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelhq/sentinel/internal/platform/ctxutil"
	"github.com/sentinelhq/sentinel/internal/platform/sec"
)

func TestRequestID_RoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ctxutil.GetRequestID(ctx))

	ctx = ctxutil.WithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", ctxutil.GetRequestID(ctx))
}

func TestLogger_FallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, slog.Default(), ctxutil.GetLogger(ctx))

	custom := slog.Default().With(slog.String("scope", "test"))
	ctx = ctxutil.WithLogger(ctx, custom)
	assert.Equal(t, custom, ctxutil.GetLogger(ctx))
}

func TestSession_RoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, ctxutil.GetSession(ctx))

	session := &sec.Session{User: sec.SessionUser{ID: "42", Username: "ops"}}
	ctx = ctxutil.WithSession(ctx, session)

	got := ctxutil.GetSession(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "42", got.User.ID)
}
