// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tankline Contributors

// Package httpapi is the JSON HTTP boundary: routing, auth middleware, and
// the mapping from domain errors to statuses.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/tankline/user-service/internal/account"
	"github.com/tankline/user-service/internal/identity"
)

// Username length bounds, counted in runes after trimming.
const (
	usernameMinLen = 1
	usernameMaxLen = 32
)

// maxBodyBytes bounds request bodies. The largest legitimate request is a
// PGS auth code, well under a kilobyte.
const maxBodyBytes = 16 << 10

// AccountService is the slice of the account service the handlers use.
type AccountService interface {
	Exchange(ctx context.Context, provider identity.Provider, proof string) (*account.ExchangeOutcome, error)
	ValidateSession(ctx context.Context, token string) (string, error)
	Profile(ctx context.Context, accountID string) (*account.Account, error)
	UpdateUsername(ctx context.Context, accountID, username string) (*account.Account, error)
}

// Handler serves the account API endpoints.
type Handler struct {
	service AccountService
	metrics MetricsRecorder
	logger  *slog.Logger
	stage   string
}

// NewHandler creates a Handler.
func NewHandler(service AccountService, metrics MetricsRecorder, logger *slog.Logger, stage string) *Handler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Handler{service: service, metrics: metrics, logger: logger, stage: stage}
}

// ExchangeRequest is the body of POST /auth/exchange.
type ExchangeRequest struct {
	Provider string `json:"provider"`
	Proof    string `json:"proof"`
}

// ExchangeResponse returns the raw session token exactly once, alongside a
// profile snapshot so clients skip a follow-up GET /me.
type ExchangeResponse struct {
	AccountID     string          `json:"account_id"`
	SessionToken  string          `json:"session_token"`
	ExpiresAtUnix int64           `json:"expires_at_unix"`
	IsNewAccount  bool            `json:"is_new_account"`
	Profile       ProfileResponse `json:"profile"`
}

// ProfileResponse is the client view of an account.
type ProfileResponse struct {
	AccountID             string          `json:"account_id"`
	Username              string          `json:"username"`
	UsernameUpdatedAtUnix *int64          `json:"username_updated_at_unix,omitempty"`
	Progression           json.RawMessage `json:"progression"`
	Economy               json.RawMessage `json:"economy"`
	Loadout               json.RawMessage `json:"loadout"`
	CreatedAtUnix         int64           `json:"created_at_unix"`
}

// UpdateUsernameRequest is the body of PATCH /me/username.
type UpdateUsernameRequest struct {
	Username string `json:"username"`
}

// Healthz reports service liveness and the running stage.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "stage": h.stage})
}

// Exchange handles POST /auth/exchange: verify provider proof, bind the
// identity to an account, and issue a session.
func (h *Handler) Exchange(w http.ResponseWriter, r *http.Request) {
	var req ExchangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidRequest(w, "request body must be a JSON object with provider and proof")
		return
	}

	provider, err := identity.ParseProvider(req.Provider)
	if err != nil {
		h.metrics.RecordExchange(req.Provider, "rejected")
		writeError(w, h.logger, err)
		return
	}
	if req.Proof == "" {
		h.metrics.RecordExchange(string(provider), "rejected")
		writeInvalidRequest(w, "proof is required")
		return
	}

	outcome, err := h.service.Exchange(r.Context(), provider, req.Proof)
	if err != nil {
		h.metrics.RecordExchange(string(provider), "failed")
		writeError(w, h.logger, err)
		return
	}
	h.metrics.RecordExchange(string(provider), "ok")

	writeJSON(w, http.StatusOK, ExchangeResponse{
		AccountID:     outcome.Account.AccountID,
		SessionToken:  outcome.SessionToken,
		ExpiresAtUnix: outcome.ExpiresAt.Unix(),
		IsNewAccount:  outcome.IsNewAccount,
		Profile:       profileResponse(&outcome.Account),
	})
}

// Me handles GET /me for an authenticated session.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	acc, err := h.service.Profile(r.Context(), AccountID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse(acc))
}

// UpdateUsername handles PATCH /me/username.
func (h *Handler) UpdateUsername(w http.ResponseWriter, r *http.Request) {
	var req UpdateUsernameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidRequest(w, "request body must be a JSON object with username")
		return
	}

	username := strings.TrimSpace(req.Username)
	if n := utf8.RuneCountInString(username); n < usernameMinLen || n > usernameMaxLen {
		writeInvalidRequest(w, "username must be 1-32 characters")
		return
	}

	acc, err := h.service.UpdateUsername(r.Context(), AccountID(r.Context()), username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse(acc))
}

func profileResponse(acc *account.Account) ProfileResponse {
	resp := ProfileResponse{
		AccountID:     acc.AccountID,
		Username:      acc.Username,
		Progression:   orEmptyObject(acc.Progression),
		Economy:       orEmptyObject(acc.Economy),
		Loadout:       orEmptyObject(acc.Loadout),
		CreatedAtUnix: acc.CreatedAt.Unix(),
	}
	if acc.UsernameUpdatedAt != nil {
		unix := acc.UsernameUpdatedAt.Unix()
		resp.UsernameUpdatedAtUnix = &unix
	}
	return resp
}

func orEmptyObject(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}

// decodeJSON decodes a bounded request body, rejecting trailing garbage.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected trailing data")
	}
	return nil
}
