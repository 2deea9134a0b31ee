// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/definvoice/definvoice/pkg/passkeys"
)

var (
	usersBucket  = []byte("users")
	emailsBucket = []byte("emails")
)

// Bolt is a passkeys.UserStore backed by bbolt. User records are stored as
// JSON keyed by id, with a secondary email-to-id index bucket. Every
// credential mutation runs inside a single update transaction against the
// current record, which gives the atomic read-modify-write the ceremony
// completions require.
//
// bbolt is single-node storage. Multi-instance deployments keep user records
// in the primary database and only reuse this package's interfaces.
type Bolt struct {
	bdb *bbolt.DB
}

// OpenBolt opens (creating if needed) the database file at path.
func OpenBolt(path string) (*Bolt, error) {
	bdb, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("can't open database %q: %w", path, err)
	}

	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{usersBucket, emailsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("can't initialize database %q: %w", path, err)
	}

	return &Bolt{bdb: bdb}, nil
}

// Close closes the underlying database.
func (b *Bolt) Close() error { return b.bdb.Close() }

// Ping reports whether the database is usable.
func (b *Bolt) Ping(ctx context.Context) error {
	return b.bdb.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(usersBucket) == nil {
			return fmt.Errorf("users bucket missing")
		}
		return nil
	})
}

// GetByID retrieves a user by id.
func (b *Bolt) GetByID(ctx context.Context, id string) (*passkeys.User, error) {
	var user *passkeys.User
	err := b.bdb.View(func(tx *bbolt.Tx) error {
		var err error
		user, err = getUser(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetByEmail retrieves a user by email via the index bucket.
func (b *Bolt) GetByEmail(ctx context.Context, email string) (*passkeys.User, error) {
	var user *passkeys.User
	err := b.bdb.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(emailsBucket).Get([]byte(normalizeEmail(email)))
		if id == nil {
			return passkeys.ErrUserNotFound
		}
		var err error
		user, err = getUser(tx, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create inserts a new user and its email index entry.
func (b *Bolt) Create(ctx context.Context, user *passkeys.User) error {
	email := normalizeEmail(user.Email)
	return b.bdb.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket(usersBucket)
		emails := tx.Bucket(emailsBucket)

		if users.Get([]byte(user.ID)) != nil || emails.Get([]byte(email)) != nil {
			return passkeys.ErrUserAlreadyExists
		}

		stored := *user
		stored.Email = email
		if err := putUser(tx, &stored); err != nil {
			return err
		}
		return emails.Put([]byte(email), []byte(user.ID))
	})
}

// AppendCredential appends a credential to the user's list in one
// transaction.
func (b *Bolt) AppendCredential(ctx context.Context, userID string, cred *passkeys.Credential) error {
	return b.bdb.Update(func(tx *bbolt.Tx) error {
		user, err := getUser(tx, userID)
		if err != nil {
			return err
		}
		user.Credentials = append(user.Credentials, *cred)
		return putUser(tx, user)
	})
}

// UpdateCredential replaces the credential with the same local id.
func (b *Bolt) UpdateCredential(ctx context.Context, userID string, cred *passkeys.Credential) error {
	return b.bdb.Update(func(tx *bbolt.Tx) error {
		user, err := getUser(tx, userID)
		if err != nil {
			return err
		}
		for i := range user.Credentials {
			if user.Credentials[i].ID == cred.ID {
				user.Credentials[i] = *cred
				return putUser(tx, user)
			}
		}
		return passkeys.ErrCredentialNotFound
	})
}

// RemoveCredential removes the credential with the given local id.
func (b *Bolt) RemoveCredential(ctx context.Context, userID, credentialID string) error {
	return b.bdb.Update(func(tx *bbolt.Tx) error {
		user, err := getUser(tx, userID)
		if err != nil {
			return err
		}
		for i := range user.Credentials {
			if user.Credentials[i].ID == credentialID {
				user.Credentials = append(user.Credentials[:i], user.Credentials[i+1:]...)
				return putUser(tx, user)
			}
		}
		return passkeys.ErrCredentialNotFound
	})
}

func getUser(tx *bbolt.Tx, id string) (*passkeys.User, error) {
	raw := tx.Bucket(usersBucket).Get([]byte(id))
	if raw == nil {
		return nil, passkeys.ErrUserNotFound
	}

	var user passkeys.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("can't decode user %q: %w", id, err)
	}
	return &user, nil
}

func putUser(tx *bbolt.Tx, user *passkeys.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("can't encode user %q: %w", user.ID, err)
	}
	return tx.Bucket(usersBucket).Put([]byte(user.ID), raw)
}
