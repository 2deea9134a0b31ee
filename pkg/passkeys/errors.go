// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

package passkeys

import (
	"errors"
	"fmt"
)

// Sentinel errors for passkey operations.
var (
	// ErrUserNotFound is returned when a user cannot be found. It is also
	// returned when a user exists but has no registered credentials, so that
	// the two cases are indistinguishable to callers.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists is returned when creating a user that already exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrCredentialNotFound is returned when a credential cannot be found.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrChallengeNotFound is returned when no pending challenge exists for a
	// principal key: no options were issued, the challenge was already
	// consumed, it expired, or the process restarted mid-ceremony.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrVerificationFailed is returned when the ceremony response fails
	// verification: bad signature, origin or RP ID mismatch, or a regressed
	// sign counter. The detailed reason is never surfaced to clients.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrInvalidRequest is returned when a request is malformed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotConfigured is returned when the service is not properly configured.
	ErrNotConfigured = errors.New("passkey service not configured")
)

// Error wraps an error with the operation that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether the target error matches.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapError wraps an error with an operation name if it is not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// VerificationError carries the underlying library error for server-side
// logging while matching ErrVerificationFailed for client-facing handling.
type VerificationError struct {
	Cause error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed: %v", e.Cause)
}

func (e *VerificationError) Unwrap() error { return e.Cause }

// Is reports whether the target error matches ErrVerificationFailed.
func (e *VerificationError) Is(target error) bool {
	return target == ErrVerificationFailed
}

// IsUserNotFound returns true if the error indicates a user was not found.
func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

// IsCredentialNotFound returns true if the error indicates a credential was not found.
func IsCredentialNotFound(err error) bool {
	return errors.Is(err, ErrCredentialNotFound)
}

// IsChallengeNotFound returns true if the error indicates a missing or
// consumed challenge.
func IsChallengeNotFound(err error) bool {
	return errors.Is(err, ErrChallengeNotFound)
}

// IsVerificationFailed returns true if the error indicates verification failed.
func IsVerificationFailed(err error) bool {
	return errors.Is(err, ErrVerificationFailed)
}
