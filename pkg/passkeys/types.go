// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

package passkeys

import (
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// Credential device types.
const (
	DeviceTypeSingleDevice = "single-device"
	DeviceTypeMultiDevice  = "multi-device"
)

// DefaultCredentialName is used when a registration completes without a
// user-supplied label.
const DefaultCredentialName = "Passkey"

// Principal is an authenticated caller as produced by the identity provider:
// a stable user id plus the profile fields needed to build WebAuthn user
// entities.
type Principal struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// AuthenticatedUser is the minimal descriptor returned after a successful
// passkey authentication. The caller exchanges it (plus the minted custom
// token) for a session with the external identity provider; this package
// never mints sessions itself.
type AuthenticatedUser struct {
	UserID      string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	ProviderUID string `json:"providerUid"`
}

// User is the slice of the user aggregate the passkey subsystem operates on:
// identity fields plus the ordered list of registered credentials.
type User struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"display_name"`
	ProviderUID string       `json:"provider_uid"`
	Credentials []Credential `json:"credentials"`
}

// Credential is one registered authenticator, owned by exactly one user.
type Credential struct {
	// ID is the locally generated identifier used for listing and deletion.
	// It is distinct from the authenticator-assigned CredentialID.
	ID string `json:"id"`

	// CredentialID is the credential identifier assigned by the authenticator.
	CredentialID []byte `json:"credential_id"`

	// PublicKey is the credential's public key in COSE format. It is used
	// only for verification and never exposed to clients.
	PublicKey []byte `json:"public_key"`

	// AttestationType indicates the type of attestation used at registration.
	AttestationType string `json:"attestation_type"`

	// Transports lists the transports reported by the authenticator. Used to
	// narrow allowed-credential prompts during authentication.
	Transports []protocol.AuthenticatorTransport `json:"transports,omitempty"`

	// AAGUID is the authenticator's model identifier.
	AAGUID []byte `json:"aaguid"`

	// SignCount is the authenticator's signature counter, updated on every
	// successful authentication. A counter that fails to increase on a
	// counter-supporting authenticator indicates a cloned credential.
	SignCount uint32 `json:"sign_count"`

	// Flags captures the authenticator flags observed at registration.
	Flags CredentialFlags `json:"flags"`

	// DeviceType is DeviceTypeSingleDevice or DeviceTypeMultiDevice.
	DeviceType string `json:"device_type"`

	// BackedUp indicates the authenticator reports cloud backup.
	BackedUp bool `json:"backed_up"`

	// Name is the user-supplied label. Cosmetic only, mutable.
	Name string `json:"name"`

	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// CredentialFlags contains authenticator capability flags.
type CredentialFlags struct {
	UserPresent    bool `json:"user_present"`
	UserVerified   bool `json:"user_verified"`
	BackupEligible bool `json:"backup_eligible"`
	BackupState    bool `json:"backup_state"`
}

// CredentialSummary is the client-facing projection of a Credential. The
// public key and raw credential id are deliberately absent.
type CredentialSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	DeviceType string    `json:"deviceType"`
	BackedUp   bool      `json:"backedUp"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt,omitempty"`
}

// Summary returns the client-facing projection of the credential.
func (c *Credential) Summary() CredentialSummary {
	return CredentialSummary{
		ID:         c.ID,
		Name:       c.Name,
		DeviceType: c.DeviceType,
		BackedUp:   c.BackedUp,
		CreatedAt:  c.CreatedAt,
		LastUsedAt: c.LastUsedAt,
	}
}

// ToWebAuthn converts the credential to the go-webauthn library's type.
func (c *Credential) ToWebAuthn() webauthn.Credential {
	return webauthn.Credential{
		ID:              c.CredentialID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       c.Transports,
		Flags: webauthn.CredentialFlags{
			UserPresent:    c.Flags.UserPresent,
			UserVerified:   c.Flags.UserVerified,
			BackupEligible: c.Flags.BackupEligible,
			BackupState:    c.Flags.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:    c.AAGUID,
			SignCount: c.SignCount,
		},
	}
}

// NewCredentialFromWebAuthn builds a Credential from a freshly verified
// registration. Synced (backup-eligible) credentials are classified as
// multi-device passkeys.
func NewCredentialFromWebAuthn(wc *webauthn.Credential, name string) *Credential {
	if name == "" {
		name = DefaultCredentialName
	}

	deviceType := DeviceTypeSingleDevice
	if wc.Flags.BackupEligible {
		deviceType = DeviceTypeMultiDevice
	}

	return &Credential{
		ID:              uuid.NewString(),
		CredentialID:    wc.ID,
		PublicKey:       wc.PublicKey,
		AttestationType: wc.AttestationType,
		Transports:      wc.Transport,
		AAGUID:          wc.Authenticator.AAGUID,
		SignCount:       wc.Authenticator.SignCount,
		Flags: CredentialFlags{
			UserPresent:    wc.Flags.UserPresent,
			UserVerified:   wc.Flags.UserVerified,
			BackupEligible: wc.Flags.BackupEligible,
			BackupState:    wc.Flags.BackupState,
		},
		DeviceType: deviceType,
		BackedUp:   wc.Flags.BackupState,
		Name:       name,
		CreatedAt:  time.Now().UTC(),
	}
}

// webauthnUser adapts a User to the go-webauthn user entity.
type webauthnUser struct {
	user *User
}

func (u *webauthnUser) WebAuthnID() []byte { return []byte(u.user.ID) }

func (u *webauthnUser) WebAuthnName() string { return u.user.Email }

func (u *webauthnUser) WebAuthnDisplayName() string {
	if u.user.DisplayName == "" {
		return u.user.Email
	}
	return u.user.DisplayName
}

func (u *webauthnUser) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, len(u.user.Credentials))
	for i := range u.user.Credentials {
		creds[i] = u.user.Credentials[i].ToWebAuthn()
	}
	return creds
}
