// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

// Package identity is the seam to the external identity provider. The REST
// layer uses it to turn session bearer tokens into authenticated principals,
// and the passkey flow uses it to mint the short-lived custom token the SPA
// exchanges for a session after a successful assertion. Sessions themselves
// are minted by the provider, never here.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/definvoice/definvoice/pkg/passkeys"
)

// Sentinel errors for token operations.
var (
	// ErrInvalidToken is returned when a token fails signature, issuer,
	// audience or expiry checks.
	ErrInvalidToken = errors.New("invalid token")
)

// TokenService verifies session tokens and mints post-authentication custom
// tokens.
type TokenService interface {
	// VerifySession validates a bearer token and returns the principal it
	// asserts. Returns ErrInvalidToken on any validation failure.
	VerifySession(ctx context.Context, token string) (*passkeys.Principal, error)

	// MintCustomToken creates a short-lived token asserting a successful
	// passkey authentication, for exchange with the identity provider.
	MintCustomToken(ctx context.Context, user *passkeys.AuthenticatedUser) (string, error)
}

// Config configures the JWT token service.
type Config struct {
	// SigningKey is the shared HMAC secret (required). Loaded from the
	// environment in production, never from the config file.
	SigningKey []byte

	// Issuer is the expected/emitted iss claim. Default: "definvoice".
	Issuer string

	// Audience is the expected/emitted aud claim. Default: "definvoice".
	Audience string

	// CustomTokenTTL bounds minted custom tokens. Default: 5 minutes.
	CustomTokenTTL time.Duration
}

// JWTService is a TokenService backed by HS256 JWTs.
type JWTService struct {
	config Config
}

// NewJWTService creates a JWT token service.
func NewJWTService(cfg Config) (*JWTService, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, fmt.Errorf("signing key is required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "definvoice"
	}
	if cfg.Audience == "" {
		cfg.Audience = "definvoice"
	}
	if cfg.CustomTokenTTL == 0 {
		cfg.CustomTokenTTL = 5 * time.Minute
	}
	return &JWTService{config: cfg}, nil
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Email       string `json:"email"`
	DisplayName string `json:"name,omitempty"`
	ProviderUID string `json:"uid,omitempty"`
}

// VerifySession validates a session bearer token.
func (s *JWTService) VerifySession(ctx context.Context, token string) (*passkeys.Principal, error) {
	claims := &sessionClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.config.SigningKey, nil
	},
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithAudience(s.config.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: missing subject or email", ErrInvalidToken)
	}

	return &passkeys.Principal{
		UserID:      claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
	}, nil
}

// MintCustomToken creates a short-lived custom token for the authenticated
// user.
func (s *JWTService) MintCustomToken(ctx context.Context, user *passkeys.AuthenticatedUser) (string, error) {
	now := time.Now()
	claims := &sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID,
			Issuer:    s.config.Issuer,
			Audience:  jwt.ClaimStrings{s.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.CustomTokenTTL)),
		},
		Email:       user.Email,
		DisplayName: user.DisplayName,
		ProviderUID: user.ProviderUID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.config.SigningKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
