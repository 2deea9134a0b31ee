// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

package passkeys

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a running Redis; set REDIS_ADDR to enable.
func redisStore(t *testing.T, ttl time.Duration) *RedisChallengeStore {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	store := NewRedisChallengeStore(rdb, ttl)
	require.NoError(t, store.Ping(context.Background()))
	t.Cleanup(func() { _ = rdb.Close() })
	return store
}

func TestRedisChallengeStorePutTake(t *testing.T) {
	ctx := context.Background()
	store := redisStore(t, time.Minute)

	key := "test:" + uuid.NewString()
	data := &webauthn.SessionData{Challenge: "challenge-1", UserID: []byte("user-1")}
	require.NoError(t, store.Put(ctx, key, data))

	got, err := store.Take(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "challenge-1", got.Challenge)
	assert.Equal(t, []byte("user-1"), got.UserID)

	_, err = store.Take(ctx, key)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestRedisChallengeStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	store := redisStore(t, time.Minute)

	key := "test:" + uuid.NewString()
	require.NoError(t, store.Put(ctx, key, &webauthn.SessionData{Challenge: "first"}))
	require.NoError(t, store.Put(ctx, key, &webauthn.SessionData{Challenge: "second"}))

	got, err := store.Take(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Challenge)
}

func TestRedisChallengeStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := redisStore(t, 50*time.Millisecond)

	key := "test:" + uuid.NewString()
	require.NoError(t, store.Put(ctx, key, &webauthn.SessionData{Challenge: "c"}))
	time.Sleep(100 * time.Millisecond)

	_, err := store.Take(ctx, key)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}
