// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tankline Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tankline/user-service/internal/account"
	"github.com/tankline/user-service/internal/account/postgres"
	"github.com/tankline/user-service/internal/identity"
)

// startAccountStore brings up a PostgreSQL container, runs the migrations,
// and returns a ready store.
func startAccountStore() (*postgres.Store, *pgxpool.Pool, func(), error) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("userservice_test"),
		tcpostgres.WithUsername("userservice"),
		tcpostgres.WithPassword("userservice"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, nil, err
	}

	migrator, err := postgres.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		return nil, nil, nil, err
	}
	if err := migrator.Close(); err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, nil, err
	}

	pool, err := postgres.NewPool(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return postgres.NewStore(pool), pool, cleanup, nil
}

func exchangeInput(subject, tokenHash string, expiresAt time.Time) account.ExchangeParams {
	return account.ExchangeParams{
		Provider:        identity.ProviderDev,
		ProviderSubject: subject,
		Username:        identity.DevDisplayName,
		TokenHash:       tokenHash,
		ExpiresAt:       expiresAt,
	}
}

func freshTokenHash() string {
	_, hash, err := account.GenerateSessionToken()
	Expect(err).NotTo(HaveOccurred())
	return hash
}

var _ = Describe("Store", func() {
	var (
		store   *postgres.Store
		pool    *pgxpool.Pool
		cleanup func()
	)

	BeforeEach(func() {
		var err error
		store, pool, cleanup, err = startAccountStore()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cleanup()
	})

	Describe("session expiry", func() {
		It("rejects a lookup at exactly expires_at and accepts one just before", func() {
			ctx := context.Background()
			expiresAt := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
			hash := freshTokenHash()

			result, err := store.Exchange(ctx, exchangeInput("player-expiry", hash, expiresAt))
			Expect(err).NotTo(HaveOccurred())

			_, err = store.AccountIDBySession(ctx, hash, expiresAt)
			Expect(err).To(MatchError(account.ErrNotFound), "expires_at = now must fail")

			accountID, err := store.AccountIDBySession(ctx, hash, expiresAt.Add(-time.Second))
			Expect(err).NotTo(HaveOccurred(), "now before expires_at must pass")
			Expect(accountID).To(Equal(result.Account.AccountID))

			_, err = store.AccountIDBySession(ctx, hash, expiresAt.Add(time.Second))
			Expect(err).To(MatchError(account.ErrNotFound), "now after expires_at must fail")
		})
	})

	Describe("session supersession", func() {
		It("invalidates the prior token when a session is re-issued", func() {
			ctx := context.Background()
			now := time.Now().UTC()
			expiresAt := now.Add(time.Hour)
			firstHash := freshTokenHash()
			secondHash := freshTokenHash()

			first, err := store.Exchange(ctx, exchangeInput("player-supersede", firstHash, expiresAt))
			Expect(err).NotTo(HaveOccurred())
			Expect(first.IsNewAccount).To(BeTrue())

			second, err := store.Exchange(ctx, exchangeInput("player-supersede", secondHash, expiresAt))
			Expect(err).NotTo(HaveOccurred())
			Expect(second.IsNewAccount).To(BeFalse(), "binding is idempotent")
			Expect(second.Account.AccountID).To(Equal(first.Account.AccountID))

			_, err = store.AccountIDBySession(ctx, firstHash, now)
			Expect(err).To(MatchError(account.ErrNotFound), "superseded token must stop resolving")

			accountID, err := store.AccountIDBySession(ctx, secondHash, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(accountID).To(Equal(first.Account.AccountID))

			var sessionCount int
			err = pool.QueryRow(ctx,
				`SELECT count(*) FROM sessions WHERE account_id = $1`,
				first.Account.AccountID,
			).Scan(&sessionCount)
			Expect(err).NotTo(HaveOccurred())
			Expect(sessionCount).To(Equal(1), "at most one live session per account")
		})
	})

	Describe("concurrent first-time exchanges", func() {
		It("converges on a single account under the unique index", func() {
			ctx := context.Background()
			expiresAt := time.Now().UTC().Add(time.Hour)
			const workers = 8

			type outcome struct {
				result *account.ExchangeResult
				err    error
			}

			start := make(chan struct{})
			outcomes := make(chan outcome, workers)
			var wg sync.WaitGroup
			for range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					<-start
					result, err := store.Exchange(ctx, exchangeInput("player-race", freshTokenHash(), expiresAt))
					outcomes <- outcome{result: result, err: err}
				}()
			}
			close(start)
			wg.Wait()
			close(outcomes)

			var accountIDs []string
			newAccounts := 0
			for o := range outcomes {
				Expect(o.err).NotTo(HaveOccurred())
				accountIDs = append(accountIDs, o.result.Account.AccountID)
				if o.result.IsNewAccount {
					newAccounts++
				}
			}

			Expect(accountIDs).To(HaveLen(workers))
			Expect(accountIDs).To(HaveEach(accountIDs[0]), "all exchanges must see the same account")
			Expect(newAccounts).To(Equal(1), "exactly one exchange creates the account")

			var accountCount int
			err := pool.QueryRow(ctx, `SELECT count(*) FROM accounts`).Scan(&accountCount)
			Expect(err).NotTo(HaveOccurred())
			Expect(accountCount).To(Equal(1))

			var identityCount int
			err = pool.QueryRow(ctx,
				`SELECT count(*) FROM auth_identities WHERE provider = 'dev' AND provider_subject = 'player-race'`,
			).Scan(&identityCount)
			Expect(err).NotTo(HaveOccurred())
			Expect(identityCount).To(Equal(1))
		})
	})
})
