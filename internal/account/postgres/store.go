// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tankline Contributors

// Package postgres implements account.Store using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/tankline/user-service/internal/account"
)

// identityConstraint is the unique index enforcing one account per external
// identity. Its rejection is the signal another exchange won the race.
const identityConstraint = "auth_identities_provider_subject_idx"

// DB is the subset of pgxpool.Pool the store uses. Satisfied by
// pgxmock.PgxPoolIface in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Store implements account.Store using PostgreSQL.
type Store struct {
	db DB
}

// NewStore creates a Store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// NewPool opens a pgx connection pool.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	return pool, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return oops.Code("DB_PING_FAILED").Wrap(err)
	}
	return nil
}

const accountColumns = `account_id, username, username_updated_at, progression, economy, loadout, created_at, updated_at`

// Exchange binds (provider, provider_subject) to an account and upserts the
// session, all in one transaction.
//
// Two requests presenting the same new identity concurrently can both miss
// the lookup and both attempt the insert; the unique index rejects the loser.
// That rejection means "someone else just created this identity", so the
// whole exchange is re-run once: the fresh lookup finds the winner's binding
// (the loser's insert blocks until the winner commits, so the binding is
// visible by then). A second rejection is a data-integrity violation.
func (s *Store) Exchange(ctx context.Context, params account.ExchangeParams) (*account.ExchangeResult, error) {
	result, err := s.exchangeOnce(ctx, params)
	if err != nil && isIdentityUniqueViolation(err) {
		result, err = s.exchangeOnce(ctx, params)
		if err != nil && isIdentityUniqueViolation(err) {
			// Not wrapped: oops surfaces the innermost code in a wrap chain,
			// and the caller must see this one.
			return nil, oops.Code(account.CodeAccountCreationFailed).
				With("provider", string(params.Provider)).
				With("provider_subject", params.ProviderSubject).
				Errorf("identity binding race did not converge: %v", err)
		}
	}
	return result, err
}

func (s *Store) exchangeOnce(ctx context.Context, params account.ExchangeParams) (*account.ExchangeResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, oops.Code("EXCHANGE_BEGIN_FAILED").Wrap(err)
	}
	defer func() { _ = tx.Rollback(ctx) }() //nolint:errcheck // no-op after commit

	accountID, isNew, err := s.getOrCreateAccount(ctx, tx, params)
	if err != nil {
		return nil, err
	}

	// Single-statement upsert keyed by account_id: a re-issue overwrites the
	// prior hash and expiry atomically, permanently invalidating the old token.
	_, err = tx.Exec(ctx, `
		INSERT INTO sessions (account_id, session_token_hash, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id) DO UPDATE
		SET session_token_hash = EXCLUDED.session_token_hash,
		    expires_at = EXCLUDED.expires_at
	`, accountID, params.TokenHash, params.ExpiresAt)
	if err != nil {
		return nil, oops.Code("SESSION_UPSERT_FAILED").
			With("operation", "upsert session").
			With("account_id", accountID).
			Wrap(err)
	}

	row := tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_id = $1`, accountID)
	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(account.CodeAccountCreationFailed).
			With("operation", "read back account").
			With("account_id", accountID).
			Errorf("identity binding references a missing account")
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, oops.Code("EXCHANGE_COMMIT_FAILED").
			With("account_id", accountID).
			Wrap(err)
	}

	return &account.ExchangeResult{Account: *acc, IsNewAccount: isNew}, nil
}

func (s *Store) getOrCreateAccount(ctx context.Context, tx pgx.Tx, params account.ExchangeParams) (string, bool, error) {
	const lookup = `SELECT account_id FROM auth_identities WHERE provider = $1 AND provider_subject = $2`

	var accountID string
	err := tx.QueryRow(ctx, lookup, string(params.Provider), params.ProviderSubject).Scan(&accountID)
	if err == nil {
		return accountID, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, oops.Code("IDENTITY_LOOKUP_FAILED").
			With("provider", string(params.Provider)).
			Wrap(err)
	}

	accountID = account.NewAccountID()
	_, err = tx.Exec(ctx, `
		INSERT INTO accounts (account_id, username, loadout)
		VALUES ($1, $2, $3)
	`, accountID, params.Username, account.StarterLoadoutJSON())
	if err != nil {
		return "", false, oops.Code("ACCOUNT_INSERT_FAILED").
			With("account_id", accountID).
			Wrap(err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO auth_identities (provider, provider_subject, account_id)
		VALUES ($1, $2, $3)
	`, string(params.Provider), params.ProviderSubject, accountID)
	if err != nil {
		// Unique violations bubble up with the pg error intact so Exchange
		// can distinguish a lost race from a real failure.
		return "", false, oops.Code("IDENTITY_INSERT_FAILED").
			With("provider", string(params.Provider)).
			Wrap(err)
	}

	return accountID, true, nil
}

// AccountIDBySession returns the account owning an unexpired session with the
// given token hash. Superseded and expired sessions both miss the lookup.
func (s *Store) AccountIDBySession(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	var accountID string
	err := s.db.QueryRow(ctx, `
		SELECT account_id FROM sessions
		WHERE session_token_hash = $1 AND expires_at > $2
	`, tokenHash, now).Scan(&accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", oops.Code("SESSION_NOT_FOUND").Wrap(account.ErrNotFound)
	}
	if err != nil {
		return "", oops.Code("SESSION_GET_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	return accountID, nil
}

// AccountByID loads an account.
func (s *Store) AccountByID(ctx context.Context, accountID string) (*account.Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_id = $1`, accountID)
	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("account_id", accountID).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("account_id", accountID).
			Wrap(err)
	}
	return acc, nil
}

// UpdateUsername sets the username and stamps username_updated_at.
func (s *Store) UpdateUsername(ctx context.Context, accountID, username string, now time.Time) (*account.Account, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE accounts
		SET username = $2, username_updated_at = $3, updated_at = $3
		WHERE account_id = $1
		RETURNING `+accountColumns+`
	`, accountID, username, now)
	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("account_id", accountID).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USERNAME_UPDATE_FAILED").
			With("account_id", accountID).
			Wrap(err)
	}
	return acc, nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func scanAccount(row pgx.Row) (*account.Account, error) {
	var acc account.Account
	err := row.Scan(
		&acc.AccountID,
		&acc.Username,
		&acc.UsernameUpdatedAt,
		&acc.Progression,
		&acc.Economy,
		&acc.Loadout,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}
	return &acc, nil
}

func isIdentityUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgerrcode.UniqueViolation &&
		pgErr.ConstraintName == identityConstraint
}

// Compile-time interface check.
var _ account.Store = (*Store)(nil)
