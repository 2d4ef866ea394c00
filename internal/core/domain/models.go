package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle state of an account. Only ACTIVE accounts
// may take part in a transfer.
type AccountStatus string

const (
	AccountActive AccountStatus = "ACTIVE"
	AccountFrozen AccountStatus = "FROZEN"
	AccountClosed AccountStatus = "CLOSED"
)

// TransactionStatus is the lifecycle state of a transfer.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionFailed    TransactionStatus = "FAILED"
	// TransactionReversed is reserved for compensating transfers. Nothing
	// produces it yet, but it is a valid terminal state in the schema and
	// existing records may carry it.
	TransactionReversed TransactionStatus = "REVERSED"
)

// EntryType marks the direction of a ledger entry.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// User owns accounts and authenticates against the API.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	SystemUser   bool      `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Account is read-mostly from the ledger core's point of view: the core
// reads its identity and status but never writes a balance to it. Balance
// is always derived from ledger entries.
type Account struct {
	ID        uuid.UUID     `json:"id"`
	UserID    uuid.UUID     `json:"user"`
	Status    AccountStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Transaction is one transfer intent and its outcome. IdempotencyKey is
// globally unique: at most one transaction can ever exist for a key.
type Transaction struct {
	ID             uuid.UUID         `json:"id"`
	FromAccount    uuid.UUID         `json:"fromAccount"`
	ToAccount      uuid.UUID         `json:"toAccount"`
	Amount         decimal.Decimal   `json:"amount"`
	IdempotencyKey string            `json:"idempotencyKey"`
	Status         TransactionStatus `json:"status"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// LedgerEntry is an immutable signed record of money movement. Entries are
// never updated or deleted; corrections are new offsetting entries under a
// new transaction.
type LedgerEntry struct {
	ID            uuid.UUID       `json:"id"`
	AccountID     uuid.UUID       `json:"account"`
	TransactionID uuid.UUID       `json:"transaction"`
	Type          EntryType       `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// TransferNotice is the payload handed to the notification collaborator
// after a transfer completes.
type TransferNotice struct {
	Recipient string          `json:"recipient"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	ToAccount uuid.UUID       `json:"toAccount"`
}
