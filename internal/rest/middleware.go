// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/definvoice/definvoice/pkg/passkeys"
)

type contextKey string

const principalKey contextKey = "principal"

// principalFromContext returns the authenticated principal, if any.
func principalFromContext(ctx context.Context) (*passkeys.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*passkeys.Principal)
	return p, ok
}

// authenticate requires a valid bearer token and stores the resulting
// principal in the request context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			h.writeMessage(w, http.StatusUnauthorized, false, "authentication required")
			return
		}

		principal, err := h.tokens.VerifySession(r.Context(), token)
		if err != nil {
			h.logger.Debug("session token rejected", "error", err)
			h.writeMessage(w, http.StatusUnauthorized, false, "authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestLogger logs one line per request.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		h.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
