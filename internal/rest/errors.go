// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

package rest

import (
	"errors"
	"net/http"

	"github.com/definvoice/definvoice/pkg/passkeys"
)

// mapServiceError converts service errors to an HTTP status and a
// client-safe message. Verification detail never reaches the client; the
// handler logs it server-side before calling this.
func mapServiceError(err error) (int, string) {
	switch {
	case errors.Is(err, passkeys.ErrChallengeNotFound):
		return http.StatusBadRequest, "challenge expired or already used, please try again"
	case errors.Is(err, passkeys.ErrVerificationFailed):
		return http.StatusBadRequest, "passkey verification failed, please try again"
	case errors.Is(err, passkeys.ErrUserNotFound):
		return http.StatusNotFound, "no passkeys found for this account"
	case errors.Is(err, passkeys.ErrCredentialNotFound):
		return http.StatusNotFound, "passkey not found"
	case errors.Is(err, passkeys.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid request"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
