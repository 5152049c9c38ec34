// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tankline Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/tankline/user-service/internal/account"
)

type contextKey string

const accountIDContextKey contextKey = "account_id"

// SessionValidator recovers the account id behind a presented session token.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (string, error)
}

// AccountID returns the authenticated account id from the request context, or
// "" when the auth middleware was not applied.
func AccountID(ctx context.Context) string {
	accountID, _ := ctx.Value(accountIDContextKey).(string)
	return accountID
}

// Auth creates bearer-session authentication middleware. Requests without a
// well-formed bearer header are rejected before any store access.
func Auth(validator SessionValidator, metrics MetricsRecorder, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				metrics.RecordSessionValidation("rejected")
				writeError(w, logger, errMissingBearer())
				return
			}

			accountID, err := validator.ValidateSession(r.Context(), token)
			if err != nil {
				metrics.RecordSessionValidation("rejected")
				writeError(w, logger, err)
				return
			}
			metrics.RecordSessionValidation("ok")

			ctx := context.WithValue(r.Context(), accountIDContextKey, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func errMissingBearer() error {
	return oops.Code(account.CodeUnauthorized).Errorf("missing bearer token")
}

// bearerToken extracts the token from an Authorization: Bearer header.
// Non-bearer schemes and empty tokens are treated as absent.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// Logging creates request logging middleware.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// Recovery creates panic recovery middleware returning a JSON 500.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						slog.Any("error", rec),
						slog.String("stack", string(debug.Stack())),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
					)
					writeJSON(w, http.StatusInternalServerError, ErrorResponse{
						Error:   CodeInternalError,
						Message: "internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
