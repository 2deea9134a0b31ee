// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

// Package rest exposes the passkey service over HTTP. All API routes live
// under /api/v1; health and metrics endpoints sit at the root.
package rest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/definvoice/definvoice/internal/config"
	"github.com/definvoice/definvoice/internal/store"
	"github.com/definvoice/definvoice/pkg/ratelimit"
)

// Server is the HTTP server for the passkey API.
type Server struct {
	handler *Handler
	limiter *ratelimit.Limiter
	pingers map[string]store.Pinger
	httpSrv *http.Server
}

// ServerParams contains dependencies for creating a Server.
type ServerParams struct {
	// Config is the server configuration (required).
	Config *config.Config

	// Handler serves the passkey routes (required).
	Handler *Handler

	// Limiter throttles the public authentication endpoints (required).
	Limiter *ratelimit.Limiter

	// Pingers are checked by the readiness endpoint, keyed by backend name.
	Pingers map[string]store.Pinger

	// Registry serves /metrics. Defaults to the prometheus default registry.
	Registry *prometheus.Registry
}

// NewServer creates the HTTP server and wires its routes.
func NewServer(params ServerParams) (*Server, error) {
	if params.Config == nil {
		return nil, errRequired("config")
	}
	if params.Handler == nil {
		return nil, errRequired("handler")
	}
	if params.Limiter == nil {
		return nil, errRequired("limiter")
	}

	s := &Server{
		handler: params.Handler,
		limiter: params.Limiter,
		pingers: params.Pingers,
	}

	var metricsHandler http.Handler
	if params.Registry != nil {
		metricsHandler = promhttp.HandlerFor(params.Registry, promhttp.HandlerOpts{})
	} else {
		metricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(params.Handler.requestLogger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/passkeys", func(r chi.Router) {
			// Public ceremony endpoints, rate limited per client IP.
			r.Group(func(r chi.Router) {
				r.Use(ratelimit.Middleware(params.Limiter))
				r.Post("/auth-options", params.Handler.AuthOptions)
				r.Post("/auth", params.Handler.Auth)
			})

			// Credential management requires a session.
			r.Group(func(r chi.Router) {
				r.Use(params.Handler.authenticate)
				r.Post("/register-options", params.Handler.RegisterOptions)
				r.Post("/register", params.Handler.Register)
				r.Get("/", params.Handler.List)
				r.Patch("/{id}", params.Handler.Rename)
				r.Delete("/{id}", params.Handler.Delete)
			})
		})
	})

	r.Get("/healthz", s.Healthz)
	r.Get("/readyz", s.Readyz)
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	s.httpSrv = &http.Server{
		Addr:         net.JoinHostPort(params.Config.Server.Host, strconv.Itoa(params.Config.Server.Port)),
		Handler:      r,
		ReadTimeout:  params.Config.Server.ReadTimeout,
		WriteTimeout: params.Config.Server.WriteTimeout,
		IdleTimeout:  params.Config.Server.IdleTimeout,
	}

	return s, nil
}

// Router exposes the wired routes, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.httpSrv.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpSrv.Addr
}

// Start serves until the listener is closed. It never returns
// http.ErrServerClosed.
func (s *Server) Start() error {
	s.handler.logger.Info("http server listening", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.httpSrv.Shutdown(ctx)
}

func errRequired(name string) error {
	return fmt.Errorf("%s is required", name)
}
