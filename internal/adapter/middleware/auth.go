package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/abhiraj33181/Banking-Management-System/internal/core/domain"
	"github.com/abhiraj33181/Banking-Management-System/internal/core/security"
)

// UserFinder loads the authenticated user. (nil, nil) means unknown id.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// TokenChecker reports whether a token has been voided by logout.
type TokenChecker interface {
	Contains(ctx context.Context, token string) (bool, error)
}

// UserKey is the fiber locals key holding the authenticated *domain.User.
const UserKey = "user"

// Auth rejects requests without a valid, non-blacklisted session token and
// stores the user in locals for the handler.
func Auth(users UserFinder, blacklist TokenChecker, secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractToken(c)
		if token == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
				"message": "Unauthorized access, token is missing",
			})
		}

		voided, err := blacklist.Contains(c.Context(), token)
		if err != nil {
			slog.Error("blacklist lookup failed", "error", err)
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
				"message": "Could not verify session",
			})
		}
		if voided {
			return unauthorized(c)
		}

		userID, err := security.ParseToken(token, secret)
		if err != nil {
			return unauthorized(c)
		}

		user, err := users.FindByID(c.Context(), userID)
		if err != nil {
			slog.Error("user lookup failed", "error", err, "user_id", userID)
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
				"message": "Could not verify session",
			})
		}
		if user == nil {
			return unauthorized(c)
		}

		c.Locals(UserKey, user)
		return c.Next()
	}
}

// SystemOnly additionally requires the system-user flag. Used by the
// trusted initial-funds endpoint.
func SystemOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil || !user.SystemUser {
			return c.Status(http.StatusForbidden).JSON(fiber.Map{
				"message": "Unauthorized access. Only system users are allowed.",
			})
		}
		return c.Next()
	}
}

// CurrentUser returns the user stored by Auth, or nil.
func CurrentUser(c *fiber.Ctx) *domain.User {
	user, _ := c.Locals(UserKey).(*domain.User)
	return user
}

// extractToken returns the session token from the cookie or the
// Authorization header, in that order.
func extractToken(c *fiber.Ctx) string {
	if cookie := c.Cookies("token"); cookie != "" {
		return cookie
	}
	auth := c.Get("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
		"message": "Unauthorized access. token is invalid.",
	})
}
