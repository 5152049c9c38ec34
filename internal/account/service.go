// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tankline Contributors

// Package account implements the identity-to-account binding and session
// issuance/validation pipeline.
package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/tankline/user-service/internal/identity"
)

// Service coordinates identity resolution, account binding, and sessions.
type Service struct {
	resolver identity.Resolver
	store    Store
	ttl      time.Duration
	now      func() time.Time
}

// NewService creates a Service.
func NewService(resolver identity.Resolver, store Store, ttl time.Duration) (*Service, error) {
	if resolver == nil {
		return nil, oops.Errorf("identity resolver is required")
	}
	if store == nil {
		return nil, oops.Errorf("account store is required")
	}
	if ttl <= 0 {
		return nil, oops.With("ttl", ttl).Errorf("session ttl must be positive")
	}
	return &Service{
		resolver: resolver,
		store:    store,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ExchangeOutcome is returned to the HTTP boundary after a successful
// exchange. SessionToken is the raw secret; it is not recoverable afterwards.
type ExchangeOutcome struct {
	Account      Account
	SessionToken string
	ExpiresAt    time.Time
	IsNewAccount bool
}

// Exchange verifies provider proof, binds the external identity to an
// account (creating it on first sight), and issues a session. Binding and
// issuance commit in one transaction.
func (s *Service) Exchange(ctx context.Context, provider identity.Provider, proof string) (*ExchangeOutcome, error) {
	id, err := s.resolver.Resolve(ctx, provider, proof)
	if err != nil {
		return nil, err
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, err
	}
	expiresAt := s.now().Add(s.ttl)

	result, err := s.store.Exchange(ctx, ExchangeParams{
		Provider:        id.Provider,
		ProviderSubject: id.Subject,
		Username:        strings.TrimSpace(id.DisplayName),
		TokenHash:       tokenHash,
		ExpiresAt:       expiresAt,
	})
	if err != nil {
		return nil, err
	}

	return &ExchangeOutcome{
		Account:      result.Account,
		SessionToken: token,
		ExpiresAt:    expiresAt,
		IsNewAccount: result.IsNewAccount,
	}, nil
}

// ValidateSession recovers the account id owning an unexpired session for the
// presented token. Missing, superseded, and expired sessions are
// indistinguishable to the caller: all return UNAUTHORIZED.
func (s *Service) ValidateSession(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", oops.Code(CodeUnauthorized).Errorf("no session token presented")
	}

	accountID, err := s.store.AccountIDBySession(ctx, HashSessionToken(token), s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code(CodeUnauthorized).Errorf("invalid session token")
		}
		return "", oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	return accountID, nil
}

// Profile loads the account behind a validated session. A missing row means
// the store and the service disagree about invariants; it surfaces as
// PROFILE_NOT_FOUND and is never retried.
func (s *Service) Profile(ctx context.Context, accountID string) (*Account, error) {
	acc, err := s.store.AccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeProfileNotFound).
				With("account_id", accountID).
				Errorf("session references a missing account")
		}
		return nil, oops.Code("PROFILE_LOAD_FAILED").
			With("account_id", accountID).
			Wrap(err)
	}

	acc.Loadout = EnsureStarterLoadout(acc.Loadout)
	return acc, nil
}

// UpdateUsername sets the account's username and stamps username_updated_at.
// Length rules are enforced at the boundary; the service only trims.
func (s *Service) UpdateUsername(ctx context.Context, accountID, username string) (*Account, error) {
	acc, err := s.store.UpdateUsername(ctx, accountID, strings.TrimSpace(username), s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeProfileNotFound).
				With("account_id", accountID).
				Errorf("session references a missing account")
		}
		return nil, oops.Code("USERNAME_UPDATE_FAILED").
			With("account_id", accountID).
			Wrap(err)
	}
	return acc, nil
}
