// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tankline Contributors

package account

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tankline/user-service/internal/identity"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Error codes surfaced to the HTTP boundary.
const (
	CodeAccountCreationFailed = "ACCOUNT_CREATION_FAILED"
	CodeProfileNotFound       = "PROFILE_NOT_FOUND"
	CodeUnauthorized          = "UNAUTHORIZED"
)

// Account represents a player. account_id is immutable once created and is
// created exactly once per distinct external identity.
type Account struct {
	AccountID         string
	Username          string
	UsernameUpdatedAt *time.Time
	Progression       json.RawMessage
	Economy           json.RawMessage
	Loadout           json.RawMessage
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AuthIdentity binds one external identity to one account. The pair
// (provider, provider_subject) is globally unique.
type AuthIdentity struct {
	Provider        identity.Provider
	ProviderSubject string
	AccountID       string
	CreatedAt       time.Time
}

// Session is one live authentication grant. At most one per account; only the
// token digest is ever stored.
type Session struct {
	AccountID        string
	SessionTokenHash string
	ExpiresAt        time.Time
	CreatedAt        time.Time
}

// NewAccountID generates a fresh, sortable account identifier.
func NewAccountID() string {
	return ulid.Make().String()
}
