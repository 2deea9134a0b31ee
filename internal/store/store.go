// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

// Package store provides user persistence for the passkey service: a memory
// backend for development and tests, and a bbolt backend for single-node
// production deployments. Both implement passkeys.UserStore and apply
// credential mutations against the owning record, so concurrent ceremony
// completions for the same user cannot lose updates.
package store

import (
	"context"
	"strings"
)

// Pinger is implemented by backends that can report reachability for the
// readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
