// Package transfer implements the transfer state machine: it validates a
// request, consults the idempotency record and the derived balance, and
// delegates the paired DEBIT/CREDIT write to the ledger store's atomic
// commit. Everything it persists goes through the store interfaces below,
// so the whole flow is testable without a database.
package transfer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abhiraj33181/Banking-Management-System/internal/core/domain"
)

// AccountStore resolves accounts. Lookups return (nil, nil) when no row
// matches.
type AccountStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	// FindSystemByUser returns the system funding account owned by the
	// given (trusted) user.
	FindSystemByUser(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
}

// LedgerStore is the ledger's write and read surface. CommitTransfer and
// CommitFunding are the atomic commit coordinator: all their effects become
// visible together or not at all, and on abort the transaction record is
// marked FAILED rather than deleted.
type LedgerStore interface {
	FindTransactionByKey(ctx context.Context, key string) (*domain.Transaction, error)
	Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	// CreatePending persists the transaction in PENDING state. A duplicate
	// idempotency key surfaces as domain.ErrDuplicateIdempotencyKey.
	CreatePending(ctx context.Context, trx *domain.Transaction) (*domain.Transaction, error)
	// CommitTransfer re-checks sender sufficiency under a row lock, writes
	// the DEBIT/CREDIT pair, finalizes the transaction as COMPLETED and
	// enqueues the notice (if any) in one atomic unit.
	CommitTransfer(ctx context.Context, trx *domain.Transaction, notice *domain.TransferNotice) (*domain.Transaction, error)
	// CommitFunding is the system-funding variant: same protocol, but the
	// designated system account may go negative, so no sufficiency check.
	CommitFunding(ctx context.Context, trx *domain.Transaction) (*domain.Transaction, error)
}

// Input is one transfer request. Initiator is the authenticated user, used
// only for the success notification.
type Input struct {
	FromAccount    uuid.UUID
	ToAccount      uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey string
	Initiator      *domain.User
}

// Result is the outcome of Execute. Replayed is true when the idempotency
// key matched an already COMPLETED transaction and no new work was done.
type Result struct {
	Transaction *domain.Transaction
	Replayed    bool
}

type Service struct {
	accounts AccountStore
	ledger   LedgerStore
}

func NewService(accounts AccountStore, ledger LedgerStore) *Service {
	return &Service{accounts: accounts, ledger: ledger}
}

// Execute runs a transfer end to end:
//
//  1. validate inputs
//  2. resolve both accounts
//  3. idempotency check (COMPLETED replays, PENDING rejects, FAILED retries)
//  4. both accounts ACTIVE
//  5. derived balance covers the amount
//  6. create PENDING (the linearization point for the key), then atomic commit
//
// The success notification is enqueued inside the commit unit and delivered
// asynchronously, so its failure can never fail the transfer.
func (s *Service) Execute(ctx context.Context, in Input) (*Result, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	from, to, err := s.resolveAccounts(ctx, in.FromAccount, in.ToAccount)
	if err != nil {
		return nil, err
	}

	existing, err := s.ledger.FindTransactionByKey(ctx, in.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	retrying, res, err := replayOrRetry(existing)
	if err != nil || res != nil {
		return res, err
	}

	if from.Status != domain.AccountActive || to.Status != domain.AccountActive {
		return nil, &domain.PreconditionError{
			Message: "both from account and to account must be active",
		}
	}

	balance, err := s.ledger.Balance(ctx, from.ID)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(in.Amount) {
		return nil, &domain.PreconditionError{
			Message:   "insufficient balance",
			Balance:   balance,
			Requested: in.Amount,
		}
	}

	trx := existing
	if !retrying {
		trx, err = s.createPending(ctx, in)
		if err != nil {
			return nil, err
		}
		if trx.Status == domain.TransactionCompleted {
			// Lost the creation race and the winner already finished.
			return &Result{Transaction: trx, Replayed: true}, nil
		}
	}

	var notice *domain.TransferNotice
	if in.Initiator != nil {
		notice = &domain.TransferNotice{
			Recipient: in.Initiator.Email,
			Name:      in.Initiator.Name,
			Amount:    in.Amount,
			ToAccount: to.ID,
		}
	}

	committed, err := s.ledger.CommitTransfer(ctx, trx, notice)
	if err != nil {
		return s.afterCommitFailure(ctx, in.IdempotencyKey, err)
	}

	slog.Info("transfer completed",
		"transaction_id", committed.ID,
		"from", committed.FromAccount,
		"to", committed.ToAccount,
		"amount", committed.Amount)

	return &Result{Transaction: committed}, nil
}

// SeedInitialFunds moves money from the caller's designated system account
// into toAccount. Trusted-caller variant: the system account is allowed to
// overdraw, but key uniqueness and the commit protocol are unchanged.
func (s *Service) SeedInitialFunds(ctx context.Context, systemUser *domain.User, toAccount uuid.UUID, amount decimal.Decimal, idempotencyKey string) (*Result, error) {
	if toAccount == uuid.Nil {
		return nil, &domain.ValidationError{Message: "to account is required"}
	}
	if idempotencyKey == "" {
		return nil, &domain.ValidationError{Message: "idempotency key is required"}
	}
	if !amount.IsPositive() {
		return nil, &domain.ValidationError{Message: "amount must be a positive number"}
	}

	to, err := s.accounts.FindByID(ctx, toAccount)
	if err != nil {
		return nil, err
	}
	if to == nil {
		return nil, &domain.NotFoundError{Resource: "account", ID: toAccount.String()}
	}

	from, err := s.accounts.FindSystemByUser(ctx, systemUser.ID)
	if err != nil {
		return nil, err
	}
	if from == nil {
		return nil, &domain.NotFoundError{Resource: "system account for user", ID: systemUser.ID.String()}
	}

	existing, err := s.ledger.FindTransactionByKey(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}
	retrying, res, err := replayOrRetry(existing)
	if err != nil || res != nil {
		return res, err
	}

	trx := existing
	if !retrying {
		trx, err = s.createPending(ctx, Input{
			FromAccount:    from.ID,
			ToAccount:      to.ID,
			Amount:         amount,
			IdempotencyKey: idempotencyKey,
		})
		if err != nil {
			return nil, err
		}
		if trx.Status == domain.TransactionCompleted {
			return &Result{Transaction: trx, Replayed: true}, nil
		}
	}

	committed, err := s.ledger.CommitFunding(ctx, trx)
	if err != nil {
		return s.afterCommitFailure(ctx, idempotencyKey, err)
	}

	slog.Info("initial funds seeded", "transaction_id", committed.ID, "to", committed.ToAccount, "amount", committed.Amount)

	return &Result{Transaction: committed}, nil
}

func validate(in Input) error {
	if in.FromAccount == uuid.Nil || in.ToAccount == uuid.Nil {
		return &domain.ValidationError{Message: "from account and to account are required"}
	}
	if in.IdempotencyKey == "" {
		return &domain.ValidationError{Message: "idempotency key is required"}
	}
	if !in.Amount.IsPositive() {
		return &domain.ValidationError{Message: "amount must be a positive number"}
	}
	return nil
}

func (s *Service) resolveAccounts(ctx context.Context, fromID, toID uuid.UUID) (*domain.Account, *domain.Account, error) {
	from, err := s.accounts.FindByID(ctx, fromID)
	if err != nil {
		return nil, nil, err
	}
	if from == nil {
		return nil, nil, &domain.NotFoundError{Resource: "account", ID: fromID.String()}
	}
	to, err := s.accounts.FindByID(ctx, toID)
	if err != nil {
		return nil, nil, err
	}
	if to == nil {
		return nil, nil, &domain.NotFoundError{Resource: "account", ID: toID.String()}
	}
	return from, to, nil
}

// replayOrRetry maps an existing transaction for the key to the idempotency
// contract: COMPLETED replays the prior result, PENDING rejects while the
// earlier attempt is in flight, FAILED lets this attempt reuse the record.
func replayOrRetry(existing *domain.Transaction) (retrying bool, res *Result, err error) {
	if existing == nil {
		return false, nil, nil
	}
	switch existing.Status {
	case domain.TransactionCompleted:
		return false, &Result{Transaction: existing, Replayed: true}, nil
	case domain.TransactionFailed:
		return true, nil, nil
	default:
		return false, nil, &domain.ConflictError{
			Status:  existing.Status,
			Message: "transaction is still processing",
		}
	}
}

// createPending inserts the PENDING record. A duplicate-key race means
// another request owns the key: re-read and follow the found branch instead
// of failing.
func (s *Service) createPending(ctx context.Context, in Input) (*domain.Transaction, error) {
	trx, err := s.ledger.CreatePending(ctx, &domain.Transaction{
		FromAccount:    in.FromAccount,
		ToAccount:      in.ToAccount,
		Amount:         in.Amount,
		IdempotencyKey: in.IdempotencyKey,
		Status:         domain.TransactionPending,
	})
	if err == nil {
		return trx, nil
	}
	if !errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
		return nil, err
	}

	winner, findErr := s.ledger.FindTransactionByKey(ctx, in.IdempotencyKey)
	if findErr != nil {
		return nil, findErr
	}
	if winner == nil {
		// Constraint fired but the row is gone; treat like a mid-flight peer.
		return nil, &domain.ConflictError{Status: domain.TransactionPending, Message: "transaction is still processing"}
	}
	switch winner.Status {
	case domain.TransactionCompleted:
		return winner, nil
	default:
		return nil, &domain.ConflictError{Status: winner.Status, Message: "transaction is still processing"}
	}
}

// afterCommitFailure normalizes a commit-unit abort. A concurrent attempt
// finishing first surfaces as a replay of its result; anything else keeps
// its domain error or becomes a retryable CommitError.
func (s *Service) afterCommitFailure(ctx context.Context, key string, err error) (*Result, error) {
	if errors.Is(err, domain.ErrTransactionSettled) {
		settled, findErr := s.ledger.FindTransactionByKey(ctx, key)
		if findErr == nil && settled != nil && settled.Status == domain.TransactionCompleted {
			return &Result{Transaction: settled, Replayed: true}, nil
		}
		return nil, &domain.ConflictError{Status: domain.TransactionPending, Message: "transaction is still processing"}
	}

	var pre *domain.PreconditionError
	if errors.As(err, &pre) {
		return nil, pre
	}

	slog.Error("transfer commit aborted", "idempotency_key", key, "error", err)
	return nil, &domain.CommitError{Err: err}
}
