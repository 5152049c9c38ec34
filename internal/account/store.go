// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tankline Contributors

package account

import (
	"context"
	"time"

	"github.com/tankline/user-service/internal/identity"
)

// ExchangeParams carries everything the store needs to bind an identity and
// issue a session atomically.
type ExchangeParams struct {
	Provider        identity.Provider
	ProviderSubject string
	Username        string // suggested username for a new account, already trimmed
	TokenHash       string // digest of the session token being issued
	ExpiresAt       time.Time
}

// ExchangeResult is the committed outcome of an exchange.
type ExchangeResult struct {
	Account      Account
	IsNewAccount bool
}

// Store is the transactional persistence boundary for accounts, identities,
// and sessions. Implementations must guarantee:
//
//   - Exchange runs account binding and session issuance in one transaction.
//   - Concurrent first-time exchanges for the same (provider, subject)
//     converge to a single account.
//   - The session upsert is a single statement keyed by account_id, so a
//     re-issue atomically supersedes the prior token.
type Store interface {
	// Exchange maps (provider, provider_subject) to an account, creating the
	// account on first sight, and persists the session row.
	Exchange(ctx context.Context, params ExchangeParams) (*ExchangeResult, error)

	// AccountIDBySession returns the account owning an unexpired session with
	// the given token hash, or ErrNotFound.
	AccountIDBySession(ctx context.Context, tokenHash string, now time.Time) (string, error)

	// AccountByID loads an account, or ErrNotFound.
	AccountByID(ctx context.Context, accountID string) (*Account, error)

	// UpdateUsername sets the username and stamps username_updated_at,
	// returning the updated account, or ErrNotFound.
	UpdateUsername(ctx context.Context, accountID, username string, now time.Time) (*Account, error)
}
