// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

// Package passkeys implements the WebAuthn relying-party side of DefInvoice
// passkey sign-in: challenge issuance, ceremony verification and credential
// bookkeeping.
//
// The package is organized around three pieces:
//
//   - ChallengeStore holds at most one pending ceremony challenge per
//     principal key. Issuing new options overwrites any prior challenge for
//     the same key; completing a ceremony consumes it whether or not
//     verification succeeds.
//
//   - Service is the ceremony orchestrator. It builds creation/assertion
//     options, delegates all cryptographic verification to
//     github.com/go-webauthn/webauthn, and persists the outcome through a
//     UserStore.
//
//   - UserStore is implemented by the application's persistence layer
//     (see internal/store). A user record owns an ordered list of
//     credentials; mutations are applied per record so that two concurrent
//     ceremony completions for the same user cannot lose updates.
//
// Registration requires an already-authenticated Principal (the session
// middleware produces one from the identity provider's token).
// Authentication is anonymous: the caller supplies an email, and challenges
// are keyed under "auth:<email>" until the assertion is verified.
package passkeys
