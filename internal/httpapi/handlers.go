// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/havenwell/haven/internal/identity"
	"github.com/havenwell/haven/internal/observability"
	"github.com/havenwell/haven/pkg/errutil"
)

// Stable client-facing messages. These never reveal internals; the
// invalid-credentials message is identical for unknown emails and wrong
// passwords.
const (
	msgRegistered       = "Registration successful"
	msgLoggedIn         = "Login successful"
	msgDuplicateEmail   = "Email already registered"
	msgInvalidInput     = "Invalid email or password format"
	msgBadCredentials   = "Invalid email or password"
	msgBadRequestBody   = "Invalid request body"
	msgRegisterFailed   = "Server error during registration"
	msgLoginFailed      = "Server error during login"
)

// AuthService is the boundary's view of the auth operations.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*identity.Identity, error)
	Login(ctx context.Context, email, password string) (string, error)
}

// Handler translates wire requests to auth operations and taxonomy
// errors back to fixed statuses.
type Handler struct {
	svc     AuthService
	metrics *observability.Metrics // nil disables counters
	timeout time.Duration
	logger  *slog.Logger
}

// NewHandler creates a Handler. metrics may be nil; a zero timeout
// disables the per-request bound.
func NewHandler(svc AuthService, metrics *observability.Metrics, timeout time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, metrics: metrics, timeout: timeout, logger: logger}
}

// Routes returns the API handler with middleware applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/register", requireJSON(h.handleRegister))
	mux.HandleFunc("POST /api/login", requireJSON(h.handleLogin))
	return withCORS(mux)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: msgBadRequestBody})
		h.countRegistration(observability.OutcomeInvalidInput)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	_, err := h.svc.Register(ctx, req.Email, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, messageResponse{Message: msgRegistered})
		h.countRegistration(observability.OutcomeOK)
	case errors.Is(err, identity.ErrDuplicateIdentity):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: msgDuplicateEmail})
		h.countRegistration(observability.OutcomeDuplicate)
	case errors.Is(err, identity.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: msgInvalidInput})
		h.countRegistration(observability.OutcomeInvalidInput)
	default:
		errutil.LogError(h.logger, "registration failed", err)
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: msgRegisterFailed})
		h.countRegistration(observability.OutcomeError)
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: msgBadRequestBody})
		h.countLogin(observability.OutcomeInvalidInput)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	tok, err := h.svc.Login(ctx, req.Email, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, loginResponse{Token: tok, Message: msgLoggedIn})
		h.countLogin(observability.OutcomeOK)
	case errors.Is(err, identity.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: msgBadCredentials})
		h.countLogin(observability.OutcomeInvalidCredentials)
	default:
		errutil.LogError(h.logger, "login failed", err)
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: msgLoginFailed})
		h.countLogin(observability.OutcomeError)
	}
}

// requestContext bounds a request by the configured timeout. A timed-out
// hash or store call surfaces as a retryable 500, never a half-written
// response.
func (h *Handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return r.Context(), func() {}
	}
	return context.WithTimeout(r.Context(), h.timeout)
}

func (h *Handler) countRegistration(outcome string) {
	if h.metrics != nil {
		h.metrics.RegistrationsTotal.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) countLogin(outcome string) {
	if h.metrics != nil {
		h.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // nothing sensible to do if the client is gone
	json.NewEncoder(w).Encode(body)
}
