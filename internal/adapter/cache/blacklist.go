// Package cache holds Redis-backed adapters.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist voids logged-out session tokens until they would have
// expired anyway. Keys carry the same TTL as the tokens, mirroring the
// original TTL index on the blacklist collection.
type TokenBlacklist struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTokenBlacklist(client *redis.Client, ttl time.Duration) *TokenBlacklist {
	return &TokenBlacklist{client: client, ttl: ttl}
}

// Add voids a token. Tokens are stored hashed so the blacklist never holds
// usable credentials.
func (b *TokenBlacklist) Add(ctx context.Context, token string) error {
	if err := b.client.Set(ctx, blacklistKey(token), "1", b.ttl).Err(); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	return nil
}

// Contains reports whether the token has been voided.
func (b *TokenBlacklist) Contains(ctx context.Context, token string) (bool, error) {
	err := b.client.Get(ctx, blacklistKey(token)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return true, nil
}

func blacklistKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "token_blacklist:" + hex.EncodeToString(sum[:])
}
