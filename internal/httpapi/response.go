// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tankline Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tankline/user-service/internal/account"
	"github.com/tankline/user-service/internal/identity"
	"github.com/tankline/user-service/pkg/errutil"
)

// Error codes minted at the HTTP boundary. Domain codes pass through as-is.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInternalError  = "INTERNAL_ERROR"
)

// ErrorResponse is the error payload surfaced to clients. The error field
// carries the bare code string; clients switch on it.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data) //nolint:errcheck // client may disconnect
	}
}

// statusByCode maps domain error codes to HTTP statuses. Codes not listed are
// internal failures: logged server-side, reported as an opaque 500.
var statusByCode = map[string]int{
	CodeInvalidRequest:                  http.StatusBadRequest,
	identity.CodeInvalidProviderProof:   http.StatusUnauthorized,
	identity.CodeProviderNotAllowed:     http.StatusForbidden,
	identity.CodePGSProviderUnavailable: http.StatusServiceUnavailable,
	account.CodeUnauthorized:            http.StatusUnauthorized,
	account.CodeProfileNotFound:         http.StatusNotFound,
	account.CodeAccountCreationFailed:   http.StatusInternalServerError,
}

// clientMessages are the only messages that cross the boundary. Everything
// else is collapsed to a generic message so internal detail never leaks.
var clientMessages = map[string]string{
	identity.CodeInvalidProviderProof:   "provider proof could not be verified",
	identity.CodeProviderNotAllowed:     "identity provider not allowed",
	identity.CodePGSProviderUnavailable: "identity provider unavailable",
	account.CodeUnauthorized:            "invalid or expired session",
	account.CodeProfileNotFound:         "profile not found",
	account.CodeAccountCreationFailed:   "account creation failed",
}

// writeError maps a domain error to its HTTP response and logs failures the
// client isn't told about.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := errutil.Code(err)
	status, known := statusByCode[code]
	if !known {
		errutil.LogError(logger, "request failed", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   CodeInternalError,
			Message: "internal server error",
		})
		return
	}
	if status >= http.StatusInternalServerError {
		errutil.LogError(logger, "request failed", err)
	}

	message := clientMessages[code]
	if message == "" {
		message = err.Error()
	}
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// writeInvalidRequest writes a 400 with a caller-facing message.
func writeInvalidRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   CodeInvalidRequest,
		Message: message,
	})
}
