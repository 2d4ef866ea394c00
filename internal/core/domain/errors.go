package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors returned by the storage layer.
var (
	// ErrDuplicateIdempotencyKey means another request already owns this
	// idempotency key. Callers resolve it by re-reading the transaction for
	// the key and following its status, never by failing outright.
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already in use")

	// ErrTransactionSettled means a guarded status update found the
	// transaction already finalized by a concurrent attempt.
	ErrTransactionSettled = errors.New("transaction already settled")

	// ErrEmailTaken means a user already exists with the given email.
	ErrEmailTaken = errors.New("email already registered")
)

// ValidationError rejects a request before any state is created.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError reports an unknown entity.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ConflictError reports an idempotency-key collision with an attempt that
// is still in flight (or otherwise not replayable yet).
type ConflictError struct {
	Status  TransactionStatus
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// PreconditionError reports a failed business precondition: an inactive
// account or an insufficient balance. Balance and Requested carry the
// current state for user feedback and are zero for non-balance failures.
type PreconditionError struct {
	Message   string
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

func (e *PreconditionError) Error() string { return e.Message }

// CommitError means the atomic commit unit aborted. The transaction record,
// if already persisted, is left PENDING or marked FAILED; it is never
// deleted. Retryable by the caller.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string { return fmt.Sprintf("transfer commit failed: %v", e.Err) }

func (e *CommitError) Unwrap() error { return e.Err }
