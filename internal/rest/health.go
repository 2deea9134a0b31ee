// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

package rest

import (
	"context"
	"net/http"
	"time"
)

// Healthz reports process liveness.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	s.handler.writeMessage(w, http.StatusOK, true, "ok")
}

// Readyz reports whether the server's backends are reachable.
func (s *Server) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, p := range s.pingers {
		if err := p.Ping(ctx); err != nil {
			s.handler.logger.Warn("readiness check failed", "backend", name, "error", err)
			s.handler.writeMessage(w, http.StatusServiceUnavailable, false, "backend unavailable: "+name)
			return
		}
	}
	s.handler.writeMessage(w, http.StatusOK, true, "ready")
}
