//go:build integration

package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/abhiraj33181/Banking-Management-System/internal/core/domain"
)

// setupPool starts a disposable Postgres container, applies the schema and
// returns a connected pool. Torn down via t.Cleanup.
func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("bank"),
		tcpostgres.WithUsername("bank"),
		tcpostgres.WithPassword("bank"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := ConnectDB(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("schema.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)

	return pool
}

type testBank struct {
	pool     *pgxpool.Pool
	ledger   *LedgerRepository
	accounts *AccountRepository
	accSys   uuid.UUID
	accA     uuid.UUID
	accB     uuid.UUID
}

func newTestBank(t *testing.T) *testBank {
	t.Helper()
	ctx := context.Background()
	pool := setupPool(t)

	users := NewUserRepository(pool)
	accounts := NewAccountRepository(pool)
	ledger := NewLedgerRepository(pool)

	system, err := users.Create(ctx, "system@example.com", "System", "x")
	require.NoError(t, err)
	alice, err := users.Create(ctx, "alice@example.com", "Alice", "x")
	require.NoError(t, err)
	bob, err := users.Create(ctx, "bob@example.com", "Bob", "x")
	require.NoError(t, err)

	accSys, err := accounts.Create(ctx, system.ID)
	require.NoError(t, err)
	accA, err := accounts.Create(ctx, alice.ID)
	require.NoError(t, err)
	accB, err := accounts.Create(ctx, bob.ID)
	require.NoError(t, err)

	return &testBank{pool: pool, ledger: ledger, accounts: accounts, accSys: accSys.ID, accA: accA.ID, accB: accB.ID}
}

// seed funds an account from the system account through the funding path
// so every entry belongs to a transaction.
func (b *testBank) seed(t *testing.T, account uuid.UUID, amount int64, key string) {
	t.Helper()
	ctx := context.Background()
	trx, err := b.ledger.CreatePending(ctx, &domain.Transaction{
		FromAccount:    b.accSys,
		ToAccount:      account,
		Amount:         decimal.NewFromInt(amount),
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	_, err = b.ledger.CommitFunding(ctx, trx)
	require.NoError(t, err)
}

func TestCommitTransferEndToEnd(t *testing.T) {
	bank := newTestBank(t)
	ctx := context.Background()
	bank.seed(t, bank.accA, 500, "seed-a")

	trx, err := bank.ledger.CreatePending(ctx, &domain.Transaction{
		FromAccount:    bank.accA,
		ToAccount:      bank.accB,
		Amount:         decimal.NewFromInt(200),
		IdempotencyKey: "k1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionPending, trx.Status)

	committed, err := bank.ledger.CommitTransfer(ctx, trx, &domain.TransferNotice{
		Recipient: "alice@example.com",
		Name:      "Alice",
		Amount:    trx.Amount,
		ToAccount: bank.accB,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionCompleted, committed.Status)

	balA, err := bank.ledger.Balance(ctx, bank.accA)
	require.NoError(t, err)
	balB, err := bank.ledger.Balance(ctx, bank.accB)
	require.NoError(t, err)
	assert.True(t, balA.Equal(decimal.NewFromInt(300)), "balance A = %s", balA)
	assert.True(t, balB.Equal(decimal.NewFromInt(200)), "balance B = %s", balB)

	// Exactly one DEBIT and one CREDIT of equal amount for the transaction.
	entries, err := bank.ledger.History(ctx, bank.accB, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.EntryCredit, entries[0].Type)
	assert.Equal(t, committed.ID, entries[0].TransactionID)

	// The notification job landed in the same unit.
	var jobs int
	require.NoError(t, bank.pool.QueryRow(ctx, `SELECT count(*) FROM notification_jobs`).Scan(&jobs))
	assert.Equal(t, 1, jobs)
}

func TestCreatePendingDuplicateKey(t *testing.T) {
	bank := newTestBank(t)
	ctx := context.Background()

	trx := &domain.Transaction{
		FromAccount:    bank.accA,
		ToAccount:      bank.accB,
		Amount:         decimal.NewFromInt(10),
		IdempotencyKey: "dup",
	}
	_, err := bank.ledger.CreatePending(ctx, trx)
	require.NoError(t, err)

	_, err = bank.ledger.CreatePending(ctx, trx)
	assert.ErrorIs(t, err, domain.ErrDuplicateIdempotencyKey)
}

func TestCommitTransferInsufficientBalanceAborts(t *testing.T) {
	bank := newTestBank(t)
	ctx := context.Background()
	bank.seed(t, bank.accA, 100, "seed-a")

	trx, err := bank.ledger.CreatePending(ctx, &domain.Transaction{
		FromAccount:    bank.accA,
		ToAccount:      bank.accB,
		Amount:         decimal.NewFromInt(200),
		IdempotencyKey: "k1",
	})
	require.NoError(t, err)

	_, err = bank.ledger.CommitTransfer(ctx, trx, nil)
	var pre *domain.PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.True(t, pre.Balance.Equal(decimal.NewFromInt(100)))

	// No entries leaked and the record is FAILED, not deleted.
	balB, err := bank.ledger.Balance(ctx, bank.accB)
	require.NoError(t, err)
	assert.True(t, balB.IsZero())

	after, err := bank.ledger.FindTransactionByKey(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, domain.TransactionFailed, after.Status)
}

// TestCommitTransferSettledGuardRollsBackEntries proves the unit is
// all-or-nothing: both entry inserts execute before the guarded status
// update, and when the guard finds the record already settled the rollback
// removes them.
func TestCommitTransferSettledGuardRollsBackEntries(t *testing.T) {
	bank := newTestBank(t)
	ctx := context.Background()
	bank.seed(t, bank.accA, 500, "seed-a")

	trx, err := bank.ledger.CreatePending(ctx, &domain.Transaction{
		FromAccount:    bank.accA,
		ToAccount:      bank.accB,
		Amount:         decimal.NewFromInt(200),
		IdempotencyKey: "k1",
	})
	require.NoError(t, err)

	// A concurrent attempt settles the record first.
	_, err = bank.pool.Exec(ctx, `UPDATE transactions SET status = 'COMPLETED' WHERE id = $1`, trx.ID)
	require.NoError(t, err)

	_, err = bank.ledger.CommitTransfer(ctx, trx, nil)
	assert.ErrorIs(t, err, domain.ErrTransactionSettled)

	// The DEBIT and CREDIT written inside the unit are gone.
	var count int
	require.NoError(t, bank.pool.QueryRow(ctx,
		`SELECT count(*) FROM ledger_entries WHERE transaction_id = $1`, trx.ID).Scan(&count))
	assert.Equal(t, 0, count)

	balA, err := bank.ledger.Balance(ctx, bank.accA)
	require.NoError(t, err)
	assert.True(t, balA.Equal(decimal.NewFromInt(500)))
}

func TestBalanceFoldsDebitsAndCredits(t *testing.T) {
	bank := newTestBank(t)
	ctx := context.Background()

	bank.seed(t, bank.accB, 300, "seed-1")
	bank.seed(t, bank.accB, 200, "seed-2")

	trx, err := bank.ledger.CreatePending(ctx, &domain.Transaction{
		FromAccount:    bank.accB,
		ToAccount:      bank.accA,
		Amount:         decimal.NewFromInt(150),
		IdempotencyKey: "k1",
	})
	require.NoError(t, err)
	_, err = bank.ledger.CommitTransfer(ctx, trx, nil)
	require.NoError(t, err)

	balB, err := bank.ledger.Balance(ctx, bank.accB)
	require.NoError(t, err)
	assert.True(t, balB.Equal(decimal.NewFromInt(350)), "balance B = %s", balB)
}
