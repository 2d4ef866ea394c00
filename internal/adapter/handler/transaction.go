package handler

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abhiraj33181/Banking-Management-System/internal/adapter/middleware"
	"github.com/abhiraj33181/Banking-Management-System/internal/core/domain"
	"github.com/abhiraj33181/Banking-Management-System/internal/core/transfer"
)

// TransferService is implemented by transfer.Service.
type TransferService interface {
	Execute(ctx context.Context, in transfer.Input) (*transfer.Result, error)
	SeedInitialFunds(ctx context.Context, systemUser *domain.User, toAccount uuid.UUID, amount decimal.Decimal, idempotencyKey string) (*transfer.Result, error)
}

type TransactionHandler struct {
	Service TransferService
}

// Request field names match the persisted transaction shape.
type CreateTransactionRequest struct {
	FromAccount    string          `json:"fromAccount"`
	ToAccount      string          `json:"toAccount"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

type InitialFundsRequest struct {
	ToAccount      string          `json:"toAccount"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

// Create handles POST /api/transactions.
func (h *TransactionHandler) Create(c *fiber.Ctx) error {
	var req CreateTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body"})
	}

	fromID, toID, ok := parseAccountPair(req.FromAccount, req.ToAccount)
	if !ok {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"message": "From account, to account, amount and idempotency key are required for creating a transaction.",
		})
	}

	result, err := h.Service.Execute(c.Context(), transfer.Input{
		FromAccount:    fromID,
		ToAccount:      toID,
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
		Initiator:      middleware.CurrentUser(c),
	})
	if err != nil {
		return respondError(c, err)
	}

	if result.Replayed {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"message":     "Transaction already processed.",
			"transaction": result.Transaction,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message":     "Transaction completed successfully.",
		"transaction": result.Transaction,
	})
}

// InitialFunds handles POST /api/transactions/system/initial-funds. Routed
// behind the system-user middleware.
func (h *TransactionHandler) InitialFunds(c *fiber.Ctx) error {
	var req InitialFundsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body"})
	}

	toID, err := uuid.Parse(req.ToAccount)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"message": "To account, amount and idempotency key are required for creating a transaction.",
		})
	}

	result, err := h.Service.SeedInitialFunds(c.Context(), middleware.CurrentUser(c), toID, req.Amount, req.IdempotencyKey)
	if err != nil {
		return respondError(c, err)
	}

	if result.Replayed {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"message":     "Transaction already processed.",
			"transaction": result.Transaction,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message":     "Initial funds transaction completed successfully.",
		"transaction": result.Transaction,
	})
}

func parseAccountPair(from, to string) (uuid.UUID, uuid.UUID, bool) {
	fromID, err := uuid.Parse(from)
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	toID, err := uuid.Parse(to)
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return fromID, toID, true
}
