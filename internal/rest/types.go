// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

package rest

import (
	"encoding/json"

	"github.com/definvoice/definvoice/pkg/passkeys"
)

// registerRequest is the body for completing a registration ceremony.
type registerRequest struct {
	// Response is the authenticator's attestation response, forwarded
	// verbatim from the browser WebAuthn API.
	Response json.RawMessage `json:"response"`

	// Name is an optional label for the new passkey.
	Name string `json:"name,omitempty"`
}

// authOptionsRequest is the body for starting an authentication ceremony.
type authOptionsRequest struct {
	Email string `json:"email"`
}

// authRequest is the body for completing an authentication ceremony.
type authRequest struct {
	Email    string          `json:"email"`
	Response json.RawMessage `json:"response"`
}

// renameRequest is the body for relabeling a passkey.
type renameRequest struct {
	Name string `json:"name"`
}

// authResult is the payload returned after a successful authentication: the
// principal descriptor plus the custom token the SPA exchanges with the
// identity provider for a session.
type authResult struct {
	User  *passkeys.AuthenticatedUser `json:"user"`
	Token string                      `json:"token"`
}

// successResponse is the envelope for successful responses carrying data.
type successResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// messageResponse is the envelope for responses carrying only a message
// (deletions and all failures).
type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
