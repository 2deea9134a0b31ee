// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

package store

import (
	"context"
	"sync"

	"github.com/definvoice/definvoice/pkg/passkeys"
)

// Memory is an in-memory passkeys.UserStore for development and testing.
type Memory struct {
	mu      sync.RWMutex
	byID    map[string]*passkeys.User
	byEmail map[string]string
}

// NewMemory creates an empty in-memory user store.
func NewMemory() *Memory {
	return &Memory{
		byID:    make(map[string]*passkeys.User),
		byEmail: make(map[string]string),
	}
}

// GetByID retrieves a user by id.
func (m *Memory) GetByID(ctx context.Context, id string) (*passkeys.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.byID[id]
	if !ok {
		return nil, passkeys.ErrUserNotFound
	}
	return copyUser(user), nil
}

// GetByEmail retrieves a user by email, case-insensitively.
func (m *Memory) GetByEmail(ctx context.Context, email string) (*passkeys.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, passkeys.ErrUserNotFound
	}
	return copyUser(m.byID[id]), nil
}

// Create inserts a new user.
func (m *Memory) Create(ctx context.Context, user *passkeys.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := normalizeEmail(user.Email)
	if _, ok := m.byID[user.ID]; ok {
		return passkeys.ErrUserAlreadyExists
	}
	if _, ok := m.byEmail[email]; ok {
		return passkeys.ErrUserAlreadyExists
	}

	stored := copyUser(user)
	stored.Email = email
	m.byID[user.ID] = stored
	m.byEmail[email] = user.ID
	return nil
}

// AppendCredential appends a credential to the user's list.
func (m *Memory) AppendCredential(ctx context.Context, userID string, cred *passkeys.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.byID[userID]
	if !ok {
		return passkeys.ErrUserNotFound
	}
	user.Credentials = append(user.Credentials, *cred)
	return nil
}

// UpdateCredential replaces the credential with the same local id.
func (m *Memory) UpdateCredential(ctx context.Context, userID string, cred *passkeys.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.byID[userID]
	if !ok {
		return passkeys.ErrUserNotFound
	}
	for i := range user.Credentials {
		if user.Credentials[i].ID == cred.ID {
			user.Credentials[i] = *cred
			return nil
		}
	}
	return passkeys.ErrCredentialNotFound
}

// RemoveCredential removes the credential with the given local id.
func (m *Memory) RemoveCredential(ctx context.Context, userID, credentialID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.byID[userID]
	if !ok {
		return passkeys.ErrUserNotFound
	}
	for i := range user.Credentials {
		if user.Credentials[i].ID == credentialID {
			user.Credentials = append(user.Credentials[:i], user.Credentials[i+1:]...)
			return nil
		}
	}
	return passkeys.ErrCredentialNotFound
}

// Ping always succeeds for the memory backend.
func (m *Memory) Ping(ctx context.Context) error { return nil }

// Count returns the number of users in the store.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

func copyUser(user *passkeys.User) *passkeys.User {
	dup := *user
	dup.Credentials = make([]passkeys.Credential, len(user.Credentials))
	copy(dup.Credentials, user.Credentials)
	return &dup
}
