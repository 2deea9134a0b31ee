// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/definvoice/definvoice/pkg/passkeys"
)

// storeUnderTest lets the behavioral suite run against every backend.
type storeUnderTest interface {
	passkeys.UserStore
	Ping(ctx context.Context) error
}

func backends(t *testing.T) map[string]func(t *testing.T) storeUnderTest {
	return map[string]func(t *testing.T) storeUnderTest{
		"memory": func(t *testing.T) storeUnderTest {
			return NewMemory()
		},
		"bbolt": func(t *testing.T) storeUnderTest {
			b, err := OpenBolt(filepath.Join(t.TempDir(), "users.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = b.Close() })
			return b
		},
	}
}

func testUser() *passkeys.User {
	return &passkeys.User{
		ID:          "user-1",
		Email:       "alice@example.com",
		DisplayName: "Alice",
		ProviderUID: "user-1",
	}
}

func testCredential(id string) *passkeys.Credential {
	return &passkeys.Credential{
		ID:           id,
		CredentialID: []byte("cred-" + id),
		PublicKey:    []byte{0x01, 0x02},
		Name:         "Passkey",
		DeviceType:   passkeys.DeviceTypeSingleDevice,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestUserStoreCreateAndGet(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			require.NoError(t, s.Create(ctx, testUser()))

			byID, err := s.GetByID(ctx, "user-1")
			require.NoError(t, err)
			assert.Equal(t, "alice@example.com", byID.Email)
			assert.Equal(t, "Alice", byID.DisplayName)

			byEmail, err := s.GetByEmail(ctx, "alice@example.com")
			require.NoError(t, err)
			assert.Equal(t, "user-1", byEmail.ID)

			// Email lookup is case-insensitive.
			byEmail, err = s.GetByEmail(ctx, "Alice@Example.COM")
			require.NoError(t, err)
			assert.Equal(t, "user-1", byEmail.ID)
		})
	}
}

func TestUserStoreNotFound(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			_, err := s.GetByID(ctx, "nobody")
			assert.ErrorIs(t, err, passkeys.ErrUserNotFound)

			_, err = s.GetByEmail(ctx, "nobody@example.com")
			assert.ErrorIs(t, err, passkeys.ErrUserNotFound)
		})
	}
}

func TestUserStoreCreateDuplicate(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			require.NoError(t, s.Create(ctx, testUser()))

			// Same id.
			err := s.Create(ctx, &passkeys.User{ID: "user-1", Email: "other@example.com"})
			assert.ErrorIs(t, err, passkeys.ErrUserAlreadyExists)

			// Same email, different id and case.
			err = s.Create(ctx, &passkeys.User{ID: "user-2", Email: "ALICE@example.com"})
			assert.ErrorIs(t, err, passkeys.ErrUserAlreadyExists)
		})
	}
}

func TestUserStoreCredentialLifecycle(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			require.NoError(t, s.Create(ctx, testUser()))

			require.NoError(t, s.AppendCredential(ctx, "user-1", testCredential("a")))
			require.NoError(t, s.AppendCredential(ctx, "user-1", testCredential("b")))

			user, err := s.GetByID(ctx, "user-1")
			require.NoError(t, err)
			require.Len(t, user.Credentials, 2)
			assert.Equal(t, "a", user.Credentials[0].ID)
			assert.Equal(t, "b", user.Credentials[1].ID)

			// Update one in place.
			updated := testCredential("a")
			updated.Name = "Work laptop"
			updated.SignCount = 7
			require.NoError(t, s.UpdateCredential(ctx, "user-1", updated))

			user, err = s.GetByID(ctx, "user-1")
			require.NoError(t, err)
			assert.Equal(t, "Work laptop", user.Credentials[0].Name)
			assert.Equal(t, uint32(7), user.Credentials[0].SignCount)
			assert.Equal(t, "Passkey", user.Credentials[1].Name)

			// Remove preserves order of the rest.
			require.NoError(t, s.RemoveCredential(ctx, "user-1", "a"))
			user, err = s.GetByID(ctx, "user-1")
			require.NoError(t, err)
			require.Len(t, user.Credentials, 1)
			assert.Equal(t, "b", user.Credentials[0].ID)
		})
	}
}

func TestUserStoreCredentialErrors(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			require.NoError(t, s.Create(ctx, testUser()))

			err := s.AppendCredential(ctx, "nobody", testCredential("a"))
			assert.ErrorIs(t, err, passkeys.ErrUserNotFound)

			err = s.UpdateCredential(ctx, "user-1", testCredential("missing"))
			assert.ErrorIs(t, err, passkeys.ErrCredentialNotFound)

			err = s.RemoveCredential(ctx, "user-1", "missing")
			assert.ErrorIs(t, err, passkeys.ErrCredentialNotFound)
		})
	}
}

func TestUserStorePing(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			assert.NoError(t, s.Ping(context.Background()))
		})
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Create(ctx, testUser()))
	require.NoError(t, m.AppendCredential(ctx, "user-1", testCredential("a")))

	user, err := m.GetByID(ctx, "user-1")
	require.NoError(t, err)

	// Mutating the returned value must not affect the store.
	user.Credentials[0].Name = "tampered"
	user.DisplayName = "Mallory"

	fresh, err := m.GetByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Passkey", fresh.Credentials[0].Name)
	assert.Equal(t, "Alice", fresh.DisplayName)
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.db")

	b, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, b.Create(ctx, testUser()))
	require.NoError(t, b.AppendCredential(ctx, "user-1", testCredential("a")))
	require.NoError(t, b.Close())

	reopened, err := OpenBolt(path)
	require.NoError(t, err)
	defer reopened.Close()

	user, err := reopened.GetByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	require.Len(t, user.Credentials, 1)
	assert.Equal(t, "a", user.Credentials[0].ID)
}
