// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

package rest

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-webauthn/webauthn/protocol"

	"github.com/definvoice/definvoice/pkg/identity"
	"github.com/definvoice/definvoice/pkg/passkeys"
)

// maxBodySize bounds ceremony request bodies. Attestation responses are a few
// kilobytes; anything near this limit is not a browser.
const maxBodySize = 1 << 20

// Handler serves the passkey HTTP API.
type Handler struct {
	service *passkeys.Service
	tokens  identity.TokenService
	metrics *Metrics
	logger  *slog.Logger
}

// HandlerParams contains dependencies for creating a Handler.
type HandlerParams struct {
	Service *passkeys.Service
	Tokens  identity.TokenService
	Metrics *Metrics
	Logger  *slog.Logger
}

// NewHandler creates the passkey HTTP handler.
func NewHandler(params HandlerParams) (*Handler, error) {
	if params.Service == nil {
		return nil, errRequired("service")
	}
	if params.Tokens == nil {
		return nil, errRequired("token service")
	}
	if params.Metrics == nil {
		return nil, errRequired("metrics")
	}
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: params.Service,
		tokens:  params.Tokens,
		metrics: params.Metrics,
		logger:  logger,
	}, nil
}

// RegisterOptions handles POST /api/v1/passkeys/register-options. It issues
// creation options for the authenticated principal.
func (h *Handler) RegisterOptions(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		h.writeMessage(w, http.StatusUnauthorized, false, "authentication required")
		return
	}

	options, err := h.service.BeginRegistration(r.Context(), *principal)
	if err != nil {
		h.writeServiceError(w, "begin registration", err)
		return
	}

	h.writeData(w, http.StatusOK, options.Response)
}

// Register handles POST /api/v1/passkeys/register. It verifies the
// attestation response and persists the new credential.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		h.writeMessage(w, http.StatusUnauthorized, false, "authentication required")
		return
	}

	var req registerRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if len(req.Response) == 0 {
		h.writeMessage(w, http.StatusBadRequest, false, "missing attestation response")
		return
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(req.Response))
	if err != nil {
		h.logger.Warn("malformed attestation response", "error", err)
		h.metrics.registration(false)
		h.writeMessage(w, http.StatusBadRequest, false, "malformed attestation response")
		return
	}

	summary, err := h.service.FinishRegistration(r.Context(), *principal, parsed, req.Name)
	if err != nil {
		h.metrics.registration(false)
		h.writeServiceError(w, "finish registration", err)
		return
	}

	h.metrics.registration(true)
	h.writeData(w, http.StatusOK, summary)
}

// AuthOptions handles POST /api/v1/passkeys/auth-options. It issues assertion
// options for the account registered under the given email. Public.
func (h *Handler) AuthOptions(w http.ResponseWriter, r *http.Request) {
	var req authOptionsRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" {
		h.writeMessage(w, http.StatusBadRequest, false, "email is required")
		return
	}

	options, err := h.service.BeginAuthentication(r.Context(), req.Email)
	if err != nil {
		h.writeServiceError(w, "begin authentication", err)
		return
	}

	h.writeData(w, http.StatusOK, options.Response)
}

// Auth handles POST /api/v1/passkeys/auth. It verifies the assertion response
// and returns the authenticated user plus a custom token. Public.
func (h *Handler) Auth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || len(req.Response) == 0 {
		h.writeMessage(w, http.StatusBadRequest, false, "email and assertion response are required")
		return
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(req.Response))
	if err != nil {
		h.logger.Warn("malformed assertion response", "error", err)
		h.metrics.authentication(false)
		h.writeMessage(w, http.StatusBadRequest, false, "malformed assertion response")
		return
	}

	user, err := h.service.FinishAuthentication(r.Context(), req.Email, parsed)
	if err != nil {
		h.metrics.authentication(false)
		h.writeServiceError(w, "finish authentication", err)
		return
	}

	token, err := h.tokens.MintCustomToken(r.Context(), user)
	if err != nil {
		h.logger.Error("mint custom token", "error", err)
		h.metrics.authentication(false)
		h.writeMessage(w, http.StatusInternalServerError, false, "internal server error")
		return
	}

	h.metrics.authentication(true)
	h.writeData(w, http.StatusOK, authResult{User: user, Token: token})
}

// List handles GET /api/v1/passkeys. It returns client-safe summaries of the
// principal's credentials.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		h.writeMessage(w, http.StatusUnauthorized, false, "authentication required")
		return
	}

	summaries, err := h.service.ListCredentials(r.Context(), principal.UserID)
	if err != nil {
		h.writeServiceError(w, "list credentials", err)
		return
	}

	h.writeData(w, http.StatusOK, summaries)
}

// Rename handles PATCH /api/v1/passkeys/{id}. It relabels one of the
// principal's credentials.
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		h.writeMessage(w, http.StatusUnauthorized, false, "authentication required")
		return
	}

	var req renameRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	summary, err := h.service.RenameCredential(r.Context(), principal.UserID, chi.URLParam(r, "id"), req.Name)
	if err != nil {
		h.writeServiceError(w, "rename credential", err)
		return
	}

	h.writeData(w, http.StatusOK, summary)
}

// Delete handles DELETE /api/v1/passkeys/{id}. It removes one of the
// principal's credentials.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		h.writeMessage(w, http.StatusUnauthorized, false, "authentication required")
		return
	}

	if err := h.service.DeleteCredential(r.Context(), principal.UserID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, "delete credential", err)
		return
	}

	h.writeMessage(w, http.StatusOK, true, "passkey deleted")
}

// decodeBody decodes a JSON request body into dst, writing the error response
// itself on failure.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	defer io.Copy(io.Discard, body)

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		h.writeMessage(w, http.StatusBadRequest, false, "invalid request body")
		return false
	}
	return true
}

// writeServiceError logs the underlying error and writes the client-safe
// mapping for it.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	status, message := mapServiceError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op, "error", err)
	} else {
		h.logger.Debug(op, "error", err)
	}
	h.writeMessage(w, status, false, message)
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data any) {
	h.writeJSON(w, status, successResponse{Success: true, Data: data})
}

func (h *Handler) writeMessage(w http.ResponseWriter, status int, success bool, message string) {
	h.writeJSON(w, status, messageResponse{Success: success, Message: message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("write response", "error", err)
	}
}
