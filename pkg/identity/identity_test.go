// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/definvoice/definvoice/pkg/passkeys"
)

var testKey = []byte("test-signing-key-0123456789abcdef")

func newTestService(t *testing.T) *JWTService {
	t.Helper()
	svc, err := NewJWTService(Config{SigningKey: testKey})
	require.NoError(t, err)
	return svc
}

func TestNewJWTService(t *testing.T) {
	_, err := NewJWTService(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing key is required")

	svc, err := NewJWTService(Config{SigningKey: testKey})
	require.NoError(t, err)
	assert.Equal(t, "definvoice", svc.config.Issuer)
	assert.Equal(t, "definvoice", svc.config.Audience)
	assert.Equal(t, 5*time.Minute, svc.config.CustomTokenTTL)
}

func TestMintAndVerifyRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	token, err := svc.MintCustomToken(ctx, &passkeys.AuthenticatedUser{
		UserID:      "user-1",
		Email:       "alice@example.com",
		DisplayName: "Alice",
		ProviderUID: "user-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	principal, err := svc.VerifySession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", principal.UserID)
	assert.Equal(t, "alice@example.com", principal.Email)
	assert.Equal(t, "Alice", principal.DisplayName)
}

func TestVerifySessionRejectsGarbage(t *testing.T) {
	svc := newTestService(t)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := svc.VerifySession(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}

func TestVerifySessionRejectsWrongKey(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	other, err := NewJWTService(Config{SigningKey: []byte("a-completely-different-key------")})
	require.NoError(t, err)

	token, err := other.MintCustomToken(ctx, &passkeys.AuthenticatedUser{
		UserID: "user-1",
		Email:  "alice@example.com",
	})
	require.NoError(t, err)

	_, err = svc.VerifySession(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifySessionRejectsExpired(t *testing.T) {
	ctx := context.Background()
	svc, err := NewJWTService(Config{
		SigningKey:     testKey,
		CustomTokenTTL: -time.Minute,
	})
	require.NoError(t, err)

	token, err := svc.MintCustomToken(ctx, &passkeys.AuthenticatedUser{
		UserID: "user-1",
		Email:  "alice@example.com",
	})
	require.NoError(t, err)

	_, err = svc.VerifySession(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifySessionRejectsWrongAudience(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	other, err := NewJWTService(Config{SigningKey: testKey, Audience: "someone-else"})
	require.NoError(t, err)

	token, err := other.MintCustomToken(ctx, &passkeys.AuthenticatedUser{
		UserID: "user-1",
		Email:  "alice@example.com",
	})
	require.NoError(t, err)

	_, err = svc.VerifySession(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifySessionRejectsUnsignedAlg(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	claims := jwt.MapClaims{
		"sub":   "user-1",
		"email": "alice@example.com",
		"iss":   "definvoice",
		"aud":   "definvoice",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.VerifySession(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifySessionRequiresSubjectAndEmail(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	// A token minted without an email is structurally valid but incomplete.
	token, err := svc.MintCustomToken(ctx, &passkeys.AuthenticatedUser{UserID: "user-1"})
	require.NoError(t, err)

	_, err = svc.VerifySession(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
