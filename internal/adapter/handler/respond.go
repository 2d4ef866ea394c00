package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/abhiraj33181/Banking-Management-System/internal/core/domain"
)

// respondError maps the domain error taxonomy onto HTTP statuses: 4xx for
// validation/not-found/conflict/precondition, 5xx for commit failures and
// anything unexpected. Every response carries a machine-readable status
// plus a human-readable message.
func respondError(c *fiber.Ctx, err error) error {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"status":  "VALIDATION_ERROR",
			"message": validation.Message,
		})
	}

	var notFound *domain.NotFoundError
	if errors.As(err, &notFound) {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{
			"status":  "NOT_FOUND",
			"message": notFound.Error(),
		})
	}

	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		return c.Status(http.StatusConflict).JSON(fiber.Map{
			"status":  "CONFLICT",
			"message": conflict.Message,
		})
	}

	var precondition *domain.PreconditionError
	if errors.As(err, &precondition) {
		body := fiber.Map{
			"status":  "PRECONDITION_FAILED",
			"message": precondition.Message,
		}
		if !precondition.Requested.IsZero() {
			body["balance"] = precondition.Balance
			body["requested"] = precondition.Requested
		}
		return c.Status(http.StatusBadRequest).JSON(body)
	}

	var commit *domain.CommitError
	if errors.As(err, &commit) {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"status":  "COMMIT_FAILED",
			"message": "Transaction could not be committed, please retry.",
		})
	}

	slog.Error("unhandled error", "error", err)
	return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
		"status":  "INTERNAL_ERROR",
		"message": "Something went wrong",
	})
}
