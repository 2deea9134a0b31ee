// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

package passkeys

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Service is the ceremony orchestrator: it issues WebAuthn options, verifies
// ceremony responses against the stored challenge and relying-party
// parameters, and persists credential changes.
type Service struct {
	webauthn   *webauthn.WebAuthn
	config     *Config
	users      UserStore
	challenges ChallengeStore
}

// ServiceParams contains dependencies for creating a passkey service.
type ServiceParams struct {
	// Config is the relying-party configuration (required).
	Config *Config

	// UserStore is the user persistence layer (required).
	UserStore UserStore

	// ChallengeStore holds pending ceremony challenges (required).
	ChallengeStore ChallengeStore
}

// NewService creates a new passkey service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.UserStore == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if params.ChallengeStore == nil {
		return nil, fmt.Errorf("challenge store is required")
	}

	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	wa, err := webauthn.New(params.Config.ToWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}

	return &Service{
		webauthn:   wa,
		config:     params.Config,
		users:      params.UserStore,
		challenges: params.ChallengeStore,
	}, nil
}

// BeginRegistration issues creation options for an authenticated principal.
// The exclude list carries every credential the user has already registered,
// so an authenticator cannot be enrolled twice. Any pending challenge for the
// principal is superseded.
func (s *Service) BeginRegistration(ctx context.Context, p Principal) (*protocol.CredentialCreation, error) {
	user, err := s.ensureUser(ctx, p)
	if err != nil {
		return nil, err
	}

	excludeList := make([]protocol.CredentialDescriptor, len(user.Credentials))
	for i := range user.Credentials {
		cred := &user.Credentials[i]
		excludeList[i] = protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: cred.CredentialID,
			Transport:    cred.Transports,
		}
	}

	options, session, err := s.webauthn.BeginRegistration(&webauthnUser{user: user},
		webauthn.WithExclusions(excludeList),
	)
	if err != nil {
		return nil, WrapError("begin registration", err)
	}

	if err := s.challenges.Put(ctx, user.ID, session); err != nil {
		return nil, WrapError("store challenge", err)
	}

	return options, nil
}

// FinishRegistration verifies the attestation response against the pending
// challenge and, on success, appends the new credential to the principal's
// list. The challenge is consumed whether or not verification succeeds, so a
// failed or replayed completion must restart from BeginRegistration.
func (s *Service) FinishRegistration(ctx context.Context, p Principal, response *protocol.ParsedCredentialCreationData, name string) (*CredentialSummary, error) {
	session, err := s.challenges.Take(ctx, p.UserID)
	if err != nil {
		return nil, WrapError("take challenge", err)
	}

	user, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, WrapError("get user", err)
	}

	wc, err := s.webauthn.CreateCredential(&webauthnUser{user: user}, *session, response)
	if err != nil {
		return nil, &VerificationError{Cause: err}
	}

	cred := NewCredentialFromWebAuthn(wc, name)
	if err := s.users.AppendCredential(ctx, user.ID, cred); err != nil {
		return nil, WrapError("append credential", err)
	}

	summary := cred.Summary()
	return &summary, nil
}

// BeginAuthentication issues assertion options for the account registered
// under email. A user without passkeys is reported identically to an unknown
// user so the endpoint cannot be used to probe which accounts have passkeys.
func (s *Service) BeginAuthentication(ctx context.Context, email string) (*protocol.CredentialAssertion, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, WrapError("get user", err)
	}
	if len(user.Credentials) == 0 {
		return nil, WrapError("get user", ErrUserNotFound)
	}

	options, session, err := s.webauthn.BeginLogin(&webauthnUser{user: user})
	if err != nil {
		return nil, WrapError("begin authentication", err)
	}

	if err := s.challenges.Put(ctx, AuthKey(email), session); err != nil {
		return nil, WrapError("store challenge", err)
	}

	return options, nil
}

// FinishAuthentication verifies the assertion response against the pending
// challenge for AuthKey(email). On success the matched credential's sign
// counter and last-used timestamp are persisted and a minimal principal
// descriptor is returned for the caller to exchange with the identity
// provider. The challenge is consumed on every attempt.
func (s *Service) FinishAuthentication(ctx context.Context, email string, response *protocol.ParsedCredentialAssertionData) (*AuthenticatedUser, error) {
	session, err := s.challenges.Take(ctx, AuthKey(email))
	if err != nil {
		return nil, WrapError("take challenge", err)
	}

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, WrapError("get user", err)
	}

	stored := findByCredentialID(user, response.RawID)
	if stored == nil {
		return nil, WrapError("resolve credential", ErrCredentialNotFound)
	}

	wc, err := s.webauthn.ValidateLogin(&webauthnUser{user: user}, *session, response)
	if err != nil {
		return nil, &VerificationError{Cause: err}
	}

	// The library flags a counter that failed to increase on a
	// counter-supporting authenticator (a cloned-credential signal).
	// Authenticators that always report zero are exempt.
	if wc.Authenticator.CloneWarning {
		return nil, &VerificationError{
			Cause: fmt.Errorf("sign counter regressed: stored %d, asserted %d",
				stored.SignCount, wc.Authenticator.SignCount),
		}
	}

	stored.SignCount = wc.Authenticator.SignCount
	stored.LastUsedAt = time.Now().UTC()
	if err := s.users.UpdateCredential(ctx, user.ID, stored); err != nil {
		return nil, WrapError("update credential", err)
	}

	return &AuthenticatedUser{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		ProviderUID: user.ProviderUID,
	}, nil
}

// ListCredentials returns client-safe summaries of the principal's
// credentials, in registration order. Key material and raw credential ids
// never appear in the summaries.
func (s *Service) ListCredentials(ctx context.Context, userID string) ([]CredentialSummary, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, WrapError("get user", err)
	}

	summaries := make([]CredentialSummary, len(user.Credentials))
	for i := range user.Credentials {
		summaries[i] = user.Credentials[i].Summary()
	}
	return summaries, nil
}

// RenameCredential updates the cosmetic label of one of the principal's
// credentials.
func (s *Service) RenameCredential(ctx context.Context, userID, credentialID, name string) (*CredentialSummary, error) {
	if strings.TrimSpace(name) == "" {
		return nil, WrapError("rename credential", ErrInvalidRequest)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, WrapError("get user", err)
	}

	for i := range user.Credentials {
		if user.Credentials[i].ID == credentialID {
			cred := user.Credentials[i]
			cred.Name = strings.TrimSpace(name)
			if err := s.users.UpdateCredential(ctx, userID, &cred); err != nil {
				return nil, WrapError("update credential", err)
			}
			summary := cred.Summary()
			return &summary, nil
		}
	}
	return nil, WrapError("rename credential", ErrCredentialNotFound)
}

// DeleteCredential removes the credential with the given local id from the
// principal's list. Deleting an id the principal does not own returns
// ErrCredentialNotFound and changes nothing.
func (s *Service) DeleteCredential(ctx context.Context, userID, credentialID string) error {
	if err := s.users.RemoveCredential(ctx, userID, credentialID); err != nil {
		return WrapError("remove credential", err)
	}
	return nil
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}

// ensureUser fetches the principal's user record, creating it on first
// contact. The identity provider has already authenticated the principal, so
// its id and profile fields are trusted here.
func (s *Service) ensureUser(ctx context.Context, p Principal) (*User, error) {
	user, err := s.users.GetByID(ctx, p.UserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, WrapError("get user", err)
	}

	user = &User{
		ID:          p.UserID,
		Email:       normalizeEmail(p.Email),
		DisplayName: p.DisplayName,
		ProviderUID: p.UserID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, WrapError("create user", err)
	}
	return user, nil
}

func findByCredentialID(user *User, rawID []byte) *Credential {
	for i := range user.Credentials {
		if bytes.Equal(user.Credentials[i].CredentialID, rawID) {
			return &user.Credentials[i]
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
