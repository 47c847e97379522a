package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jordanlanch/leadcrm/pkg/cache"
)

const blacklistPrefix = "revoked-token:"

// TokenBlacklist manages revoked JWT tokens
type TokenBlacklist struct {
	cache *cache.Client
}

// NewTokenBlacklist creates a new token blacklist
func NewTokenBlacklist(cache *cache.Client) *TokenBlacklist {
	return &TokenBlacklist{
		cache: cache,
	}
}

// Add adds a token to the blacklist with expiration
func (b *TokenBlacklist) Add(ctx context.Context, token string, expiration time.Duration) error {
	// tokens are stored hashed
	return b.cache.Mark(ctx, blacklistPrefix+hashToken(token), expiration)
}

// Revoke blacklists token until its own expiry. An already expired token
// needs no entry.
func (b *TokenBlacklist) Revoke(ctx context.Context, token string, claims *Claims) error {
	if claims == nil || claims.ExpiresAt == nil {
		return fmt.Errorf("token has no expiry")
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return nil
	}
	return b.Add(ctx, token, remaining)
}

// IsBlacklisted checks if a token is blacklisted
func (b *TokenBlacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	return b.cache.Marked(ctx, blacklistPrefix+hashToken(token))
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
