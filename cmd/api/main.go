package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"

	"github.com/abhiraj33181/Banking-Management-System/internal/adapter/cache"
	"github.com/abhiraj33181/Banking-Management-System/internal/adapter/handler"
	"github.com/abhiraj33181/Banking-Management-System/internal/adapter/middleware"
	"github.com/abhiraj33181/Banking-Management-System/internal/adapter/storage"
	"github.com/abhiraj33181/Banking-Management-System/internal/core/config"
	"github.com/abhiraj33181/Banking-Management-System/internal/core/notifications"
	"github.com/abhiraj33181/Banking-Management-System/internal/core/security"
	"github.com/abhiraj33181/Banking-Management-System/internal/core/transfer"
	"github.com/abhiraj33181/Banking-Management-System/internal/core/worker"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET is not set")
		os.Exit(1)
	}

	ctx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	dbPool, err := storage.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.Error("redis connection failed", "error", err)
		os.Exit(1)
	}

	// Repos and core services.
	userRepo := storage.NewUserRepository(dbPool)
	accountRepo := storage.NewAccountRepository(dbPool)
	ledgerRepo := storage.NewLedgerRepository(dbPool)
	blacklist := cache.NewTokenBlacklist(redisClient, security.TokenTTL)
	transferService := transfer.NewService(accountRepo, ledgerRepo)

	authHandler := &handler.AuthHandler{Users: userRepo, Blacklist: blacklist, JWTSecret: cfg.JWTSecret}
	accountHandler := &handler.AccountHandler{Accounts: accountRepo, Ledger: ledgerRepo}
	transactionHandler := &handler.TransactionHandler{Service: transferService}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(cors.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Welcome to Banking Management System API"})
	})

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/logout", authHandler.Logout)

	protected := middleware.Auth(userRepo, blacklist, cfg.JWTSecret)

	accounts := api.Group("/accounts", protected)
	accounts.Post("/", accountHandler.Create)
	accounts.Get("/", accountHandler.List)
	accounts.Get("/balance/:accountId", accountHandler.GetBalance)
	accounts.Get("/:accountId/transactions", accountHandler.History)

	transactions := api.Group("/transactions", protected)
	transactions.Post("/", transactionHandler.Create)
	transactions.Post("/system/initial-funds", middleware.SystemOnly(), transactionHandler.InitialFunds)

	// Notification outbox worker.
	if cfg.NotifyWebhookURL == "" {
		slog.Warn("NOTIFY_WEBHOOK_URL is not set, transfer notifications will fail until it is")
	}
	notifier := notifications.NewNotifier(cfg.NotifyWebhookURL)
	notificationWorker := worker.NewNotificationWorker(dbPool, notifier, 0)
	go notificationWorker.Run(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "env", cfg.Env, "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server stopped", "error", err)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	stopWorker()
	dbPool.Close()
	if err := redisClient.Close(); err != nil {
		slog.Error("redis close failed", "error", err)
	}

	slog.Info("server exited")
}
