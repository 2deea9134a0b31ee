// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

package passkeys

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// AuthKey returns the challenge-store key for a pre-auth authentication
// ceremony. Emails are normalized to lower case so that the Begin and
// Complete steps agree on the key regardless of caller capitalization.
func AuthKey(email string) string {
	return "auth:" + strings.ToLower(strings.TrimSpace(email))
}

// MemoryChallengeStore is a process-local ChallengeStore. Suitable for
// single-instance deployments; a horizontally scaled API needs the Redis
// store so Begin and Complete can land on different instances.
type MemoryChallengeStore struct {
	mu      sync.Mutex
	pending map[string]*challengeEntry
	ttl     time.Duration
}

type challengeEntry struct {
	data     *webauthn.SessionData
	issuedAt time.Time
}

// NewMemoryChallengeStore creates an in-memory challenge store with the given
// TTL. A zero TTL disables expiry.
func NewMemoryChallengeStore(ttl time.Duration) *MemoryChallengeStore {
	return &MemoryChallengeStore{
		pending: make(map[string]*challengeEntry),
		ttl:     ttl,
	}
}

// Put stores the pending ceremony data, overwriting any prior entry for key.
func (s *MemoryChallengeStore) Put(ctx context.Context, key string, data *webauthn.SessionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[key] = &challengeEntry{
		data:     data,
		issuedAt: time.Now(),
	}
	return nil
}

// Take returns and removes the pending ceremony data for key. Expired entries
// are treated as absent.
func (s *MemoryChallengeStore) Take(ctx context.Context, key string) (*webauthn.SessionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pending[key]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	delete(s.pending, key)

	if s.ttl > 0 && time.Since(entry.issuedAt) > s.ttl {
		return nil, ErrChallengeNotFound
	}
	return entry.data, nil
}

// Count returns the number of pending challenges.
func (s *MemoryChallengeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Cleanup removes expired entries and returns how many were removed.
// Expiry is also enforced lazily by Take; Cleanup only bounds memory held by
// abandoned ceremonies.
func (s *MemoryChallengeStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ttl <= 0 {
		return 0
	}

	now := time.Now()
	removed := 0
	for key, entry := range s.pending {
		if now.Sub(entry.issuedAt) > s.ttl {
			delete(s.pending, key)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup on the given interval until the context is
// canceled or the returned cancel function is called.
func (s *MemoryChallengeStore) StartCleanup(ctx context.Context, interval time.Duration) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()

	return cancel
}
