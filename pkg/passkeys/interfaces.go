// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

package passkeys

import (
	"context"

	"github.com/go-webauthn/webauthn/webauthn"
)

// ChallengeStore holds at most one pending ceremony challenge per principal
// key. Challenge state is ephemeral: it lives for the span of a single
// ceremony and is rebuilt empty on process restart, failing any in-flight
// ceremony with ErrChallengeNotFound.
//
// Registration ceremonies are keyed by the authenticated user id;
// authentication ceremonies by AuthKey(email).
type ChallengeStore interface {
	// Put stores the pending ceremony data for a key, silently superseding
	// any prior unconsumed challenge for the same key.
	Put(ctx context.Context, key string, data *webauthn.SessionData) error

	// Take returns the pending ceremony data for a key and atomically removes
	// it. Returns ErrChallengeNotFound if no challenge is pending or it has
	// expired. A second Take for the same key returns ErrChallengeNotFound.
	Take(ctx context.Context, key string) (*webauthn.SessionData, error)
}

// UserStore is the persistence seam to the user aggregate. Credential
// mutations are applied against the owning record (not read-then-write of a
// whole snapshot fetched earlier), so concurrent ceremony completions for one
// user cannot lose updates.
type UserStore interface {
	// GetByID retrieves a user by id. Returns ErrUserNotFound if absent.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	// Returns ErrUserNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Create creates a new user. Returns ErrUserAlreadyExists if the id or
	// email is taken.
	Create(ctx context.Context, user *User) error

	// AppendCredential appends a credential to the user's ordered list.
	// Returns ErrUserNotFound if the user is absent.
	AppendCredential(ctx context.Context, userID string, cred *Credential) error

	// UpdateCredential replaces the credential with the same local id.
	// Returns ErrCredentialNotFound if no such credential exists.
	UpdateCredential(ctx context.Context, userID string, cred *Credential) error

	// RemoveCredential removes the credential with the given local id.
	// Returns ErrCredentialNotFound if no such credential exists.
	RemoveCredential(ctx context.Context, userID, credentialID string) error
}
