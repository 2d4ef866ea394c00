package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/abhiraj33181/Banking-Management-System/internal/core/domain"
)

const transactionColumns = `id, from_account, to_account, amount, idempotency_key, status, created_at, updated_at`

// LedgerRepository owns the ledger_entries table and the atomic commit
// protocol around it. Entries are append-only: this repository exposes no
// update or delete path for them.
type LedgerRepository struct {
	db *pgxpool.Pool
}

func NewLedgerRepository(db *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Balance derives the account balance by folding its ledger entries:
// credits minus debits. Never cached; the ledger is the source of truth.
func (r *LedgerRepository) Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN type = 'CREDIT' THEN amount ELSE -amount END), 0)
		FROM ledger_entries
		WHERE account_id = $1
	`
	var balance decimal.Decimal
	if err := r.db.QueryRow(ctx, query, accountID).Scan(&balance); err != nil {
		return decimal.Zero, fmt.Errorf("failed to derive balance: %w", err)
	}
	return balance, nil
}

// FindTransactionByKey returns the transaction owning the idempotency key,
// or (nil, nil).
func (r *LedgerRepository) FindTransactionByKey(ctx context.Context, key string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1`
	return scanTransaction(r.db.QueryRow(ctx, query, key))
}

// CreatePending inserts the transaction in PENDING state. This insert is
// the linearization point for the idempotency key: the UNIQUE constraint
// serializes concurrent attempts, surfaced as ErrDuplicateIdempotencyKey.
func (r *LedgerRepository) CreatePending(ctx context.Context, trx *domain.Transaction) (*domain.Transaction, error) {
	query := `
		INSERT INTO transactions (from_account, to_account, amount, idempotency_key, status)
		VALUES ($1, $2, $3, $4, 'PENDING')
		RETURNING ` + transactionColumns
	created, err := scanTransaction(r.db.QueryRow(ctx, query,
		trx.FromAccount, trx.ToAccount, trx.Amount, trx.IdempotencyKey))
	if isUniqueViolation(err) {
		return nil, domain.ErrDuplicateIdempotencyKey
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return created, nil
}

// CommitTransfer finalizes a transfer as one atomic unit: lock the sender
// row, re-derive its balance, re-check sufficiency, append the DEBIT and
// CREDIT entries, flip the transaction to COMPLETED, and enqueue the
// notification. Either all of it becomes visible or none of it does; on
// abort the transaction record is marked FAILED, never deleted.
func (r *LedgerRepository) CommitTransfer(ctx context.Context, trx *domain.Transaction, notice *domain.TransferNotice) (*domain.Transaction, error) {
	committed, err := r.commit(ctx, trx, notice, true)
	if err != nil {
		r.markFailed(ctx, trx.ID, err)
		return nil, err
	}
	return committed, nil
}

// CommitFunding is the system-funding variant of CommitTransfer: identical
// protocol, but the designated system account may overdraw, so the in-unit
// sufficiency check is skipped and no notification is enqueued.
func (r *LedgerRepository) CommitFunding(ctx context.Context, trx *domain.Transaction) (*domain.Transaction, error) {
	committed, err := r.commit(ctx, trx, nil, false)
	if err != nil {
		r.markFailed(ctx, trx.ID, err)
		return nil, err
	}
	return committed, nil
}

func (r *LedgerRepository) commit(ctx context.Context, trx *domain.Transaction, notice *domain.TransferNotice, checkBalance bool) (*domain.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin commit unit: %w", err)
	}
	// Rollback is a no-op after Commit; this guarantees the unit is released
	// on every exit path.
	defer tx.Rollback(ctx)

	if checkBalance {
		// Lock the sender row so concurrent transfers from the same account
		// serialize here, then re-derive the balance inside the unit. This
		// closes the check-then-act window between the pre-check and the
		// entry writes.
		var lockedID uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, trx.FromAccount).Scan(&lockedID); err != nil {
			return nil, fmt.Errorf("failed to lock sender account: %w", err)
		}

		var balance decimal.Decimal
		err = tx.QueryRow(ctx, `
			SELECT COALESCE(SUM(CASE WHEN type = 'CREDIT' THEN amount ELSE -amount END), 0)
			FROM ledger_entries
			WHERE account_id = $1
		`, trx.FromAccount).Scan(&balance)
		if err != nil {
			return nil, fmt.Errorf("failed to re-derive balance: %w", err)
		}
		if balance.LessThan(trx.Amount) {
			return nil, &domain.PreconditionError{
				Message:   "insufficient balance",
				Balance:   balance,
				Requested: trx.Amount,
			}
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ledger_entries (account_id, transaction_id, type, amount)
		VALUES ($1, $2, 'DEBIT', $3)
	`, trx.FromAccount, trx.ID, trx.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to write debit entry: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ledger_entries (account_id, transaction_id, type, amount)
		VALUES ($1, $2, 'CREDIT', $3)
	`, trx.ToAccount, trx.ID, trx.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to write credit entry: %w", err)
	}

	// Guarded update: only a PENDING or FAILED record may complete. Zero
	// rows means a concurrent attempt with the same key settled it first.
	completed, err := scanTransaction(tx.QueryRow(ctx, `
		UPDATE transactions
		SET status = 'COMPLETED', updated_at = now()
		WHERE id = $1 AND status IN ('PENDING', 'FAILED')
		RETURNING `+transactionColumns, trx.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to complete transaction: %w", err)
	}
	if completed == nil {
		return nil, domain.ErrTransactionSettled
	}

	if notice != nil {
		payload, err := json.Marshal(notice)
		if err != nil {
			return nil, fmt.Errorf("failed to encode notification payload: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO notification_jobs (payload) VALUES ($1)`, payload); err != nil {
			return nil, fmt.Errorf("failed to enqueue notification: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit unit: %w", err)
	}
	return completed, nil
}

// markFailed records the abort on the transaction row, best effort. The
// record stays for the audit trail; a later request with the same key may
// retry it. Skipped when the unit aborted because a peer already settled
// the record.
func (r *LedgerRepository) markFailed(ctx context.Context, id uuid.UUID, cause error) {
	if errors.Is(cause, domain.ErrTransactionSettled) {
		return
	}
	_, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET status = 'FAILED', updated_at = now()
		WHERE id = $1 AND status = 'PENDING'
	`, id)
	if err != nil {
		slog.Error("failed to mark transaction FAILED", "transaction_id", id, "error", err)
	}
}

// History fetches the most recent entries for an account, joined with
// their transactions.
func (r *LedgerRepository) History(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT id, account_id, transaction_id, type, amount, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.TransactionID, &e.Type, &e.Amount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to read entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(&t.ID, &t.FromAccount, &t.ToAccount, &t.Amount,
		&t.IdempotencyKey, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
