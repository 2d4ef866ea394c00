package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             string
	DatabaseURL      string
	RedisURL         string
	JWTSecret        string
	NotifyWebhookURL string
	Env              string
}

// Load reads .env (if present) and returns a Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		// Not a crash: production usually has real env vars instead.
		slog.Warn("No .env file found, relying on system env variables")
	}

	return &Config{
		Port:             getEnv("PORT", "3000"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		Env:              getEnv("ENV", "development"),
	}
}

// Helper to get env with a default fallback.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
