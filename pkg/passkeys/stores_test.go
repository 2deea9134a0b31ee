// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

package passkeys

import (
	"context"
	"strings"
	"sync"
)

// memoryUserStore is a minimal in-package UserStore for service tests. The
// production stores live in internal/store.
type memoryUserStore struct {
	mu      sync.Mutex
	byID    map[string]*User
	byEmail map[string]string
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

func (s *memoryUserStore) GetByID(ctx context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyTestUser(user), nil
}

func (s *memoryUserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyTestUser(s.byID[id]), nil
}

func (s *memoryUserStore) Create(ctx context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[user.ID]; ok {
		return ErrUserAlreadyExists
	}
	if _, ok := s.byEmail[strings.ToLower(user.Email)]; ok {
		return ErrUserAlreadyExists
	}

	s.byID[user.ID] = copyTestUser(user)
	s.byEmail[strings.ToLower(user.Email)] = user.ID
	return nil
}

func (s *memoryUserStore) AppendCredential(ctx context.Context, userID string, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.Credentials = append(user.Credentials, *cred)
	return nil
}

func (s *memoryUserStore) UpdateCredential(ctx context.Context, userID string, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	for i := range user.Credentials {
		if user.Credentials[i].ID == cred.ID {
			user.Credentials[i] = *cred
			return nil
		}
	}
	return ErrCredentialNotFound
}

func (s *memoryUserStore) RemoveCredential(ctx context.Context, userID, credentialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	for i := range user.Credentials {
		if user.Credentials[i].ID == credentialID {
			user.Credentials = append(user.Credentials[:i], user.Credentials[i+1:]...)
			return nil
		}
	}
	return ErrCredentialNotFound
}

func copyTestUser(user *User) *User {
	dup := *user
	dup.Credentials = make([]Credential, len(user.Credentials))
	copy(dup.Credentials, user.Credentials)
	return &dup
}
