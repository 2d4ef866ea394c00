package handler

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abhiraj33181/Banking-Management-System/internal/adapter/middleware"
	"github.com/abhiraj33181/Banking-Management-System/internal/core/domain"
)

// AccountStore is the account surface the handler needs.
type AccountStore interface {
	Create(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]domain.Account, error)
}

// LedgerReader exposes the derived-balance and history reads.
type LedgerReader interface {
	Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	History(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.LedgerEntry, error)
}

type AccountHandler struct {
	Accounts AccountStore
	Ledger   LedgerReader
}

// Create handles POST /api/accounts.
func (h *AccountHandler) Create(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	account, err := h.Accounts.Create(c.Context(), user.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"account": account})
}

// List handles GET /api/accounts: the caller's accounts.
func (h *AccountHandler) List(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	accounts, err := h.Accounts.FindByUser(c.Context(), user.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"accounts": accounts})
}

// GetBalance handles GET /api/accounts/balance/:accountId. The balance is
// derived from ledger entries on every call.
func (h *AccountHandler) GetBalance(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("accountId"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid account id"})
	}

	account, err := h.Accounts.FindByID(c.Context(), accountID)
	if err != nil {
		return respondError(c, err)
	}
	if account == nil {
		return respondError(c, &domain.NotFoundError{Resource: "account", ID: accountID.String()})
	}

	balance, err := h.Ledger.Balance(c.Context(), accountID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"account": accountID, "balance": balance})
}

// History handles GET /api/accounts/:accountId/transactions.
func (h *AccountHandler) History(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("accountId"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid account id"})
	}

	entries, err := h.Ledger.History(c.Context(), accountID, 10)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"entries": entries})
}
