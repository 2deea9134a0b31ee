// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

package passkeys

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

const redisChallengePrefix = "definvoice:challenge:"

// RedisChallengeStore is a ChallengeStore backed by Redis (or Valkey). Use it
// when the API runs on more than one instance, since the Begin and Complete
// steps of a ceremony may land on different instances. Expiry is enforced by
// Redis key TTLs; Take uses GETDEL so a challenge can be consumed exactly
// once even under concurrent completions.
type RedisChallengeStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisChallengeStore creates a Redis-backed challenge store. A zero TTL
// falls back to 5 minutes; challenges must never live forever in a shared
// store.
func NewRedisChallengeStore(rdb *redis.Client, ttl time.Duration) *RedisChallengeStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisChallengeStore{rdb: rdb, ttl: ttl}
}

// Put stores the pending ceremony data under the key, superseding any prior
// entry and resetting the TTL.
func (s *RedisChallengeStore) Put(ctx context.Context, key string, data *webauthn.SessionData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("can't encode challenge for %q: %w", key, err)
	}

	if err := s.rdb.Set(ctx, redisChallengePrefix+key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("can't store challenge for %q: %w", key, err)
	}
	return nil
}

// Take atomically fetches and deletes the pending ceremony data for the key.
func (s *RedisChallengeStore) Take(ctx context.Context, key string) (*webauthn.SessionData, error) {
	raw, err := s.rdb.GetDel(ctx, redisChallengePrefix+key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("can't fetch challenge for %q: %w", key, err)
	}

	var data webauthn.SessionData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("can't decode challenge for %q: %w", key, err)
	}
	return &data, nil
}

// Ping reports whether the backing Redis is reachable.
func (s *RedisChallengeStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
