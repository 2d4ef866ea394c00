package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/abhiraj33181/Banking-Management-System/internal/core/domain"
	"github.com/abhiraj33181/Banking-Management-System/internal/core/security"
)

// UserStore is the user surface the auth handler needs.
type UserStore interface {
	Create(ctx context.Context, email, name, passwordHash string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// TokenVoider blacklists tokens on logout.
type TokenVoider interface {
	Add(ctx context.Context, token string) error
}

type AuthHandler struct {
	Users     UserStore
	Blacklist TokenVoider
	JWTSecret string
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body"})
	}
	if req.Email == "" || req.Name == "" || req.Password == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Email, name and password are required"})
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"message": "Could not create user"})
	}

	user, err := h.Users.Create(c.Context(), req.Email, req.Name, hash)
	if errors.Is(err, domain.ErrEmailTaken) {
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"message": "User already exists with email"})
	}
	if err != nil {
		return respondError(c, err)
	}

	token, err := security.SignToken(user.ID, h.JWTSecret)
	if err != nil {
		slog.Error("failed to sign token", "error", err, "user_id", user.ID)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"message": "Could not create session"})
	}
	setTokenCookie(c, token)

	return c.Status(http.StatusCreated).JSON(fiber.Map{"user": user, "token": token})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body"})
	}

	user, err := h.Users.FindByEmail(c.Context(), req.Email)
	if err != nil {
		return respondError(c, err)
	}
	if user == nil || !security.CheckPassword(req.Password, user.PasswordHash) {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"message": "Email or password is invalid"})
	}

	token, err := security.SignToken(user.ID, h.JWTSecret)
	if err != nil {
		slog.Error("failed to sign token", "error", err, "user_id", user.ID)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"message": "Could not create session"})
	}
	setTokenCookie(c, token)

	return c.JSON(fiber.Map{"user": user, "token": token})
}

// Logout handles POST /api/auth/logout: void the presented token. Logout
// without a token still succeeds.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token := c.Cookies("token")
	if token == "" {
		if auth := c.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
			token = auth[7:]
		}
	}
	if token != "" {
		if err := h.Blacklist.Add(c.Context(), token); err != nil {
			slog.Error("failed to blacklist token", "error", err)
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"message": "Could not log out"})
		}
	}

	c.Cookie(&fiber.Cookie{Name: "token", Value: "", Expires: time.Now().Add(-time.Hour)})
	return c.JSON(fiber.Map{"message": "User logged out successfully."})
}

func setTokenCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     "token",
		Value:    token,
		Expires:  time.Now().Add(security.TokenTTL),
		HTTPOnly: true,
	})
}
