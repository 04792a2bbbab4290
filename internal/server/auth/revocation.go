package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/gophauth/internal/server/cache"
)

const (
	revokedMarker = "revoked"
	// revokedKeyPrefix отделяет denylist от других записей общего кэша
	revokedKeyPrefix = "revoked:"
)

// minRevocationTTL keeps the marker alive for tokens about to expire
const minRevocationTTL = time.Second

// RevocationCache is the denylist of access tokens logged out before expiry.
// The key is the raw token under its own prefix, the entry lives exactly as long as the token would.
type RevocationCache struct {
	cache cache.Cache
	now   func() time.Time
}

// NewRevocationCache creates revocation policy over an expiring cache
func NewRevocationCache(c cache.Cache) *RevocationCache {
	return &RevocationCache{cache: c, now: time.Now}
}

// Revoke marks token revoked until expiresAt
func (r *RevocationCache) Revoke(ctx context.Context, accessToken string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl < minRevocationTTL {
		ttl = minRevocationTTL
	}

	if err := r.cache.Put(ctx, revokedKey(accessToken), revokedMarker, ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	return nil
}

// IsRevoked reports whether token was revoked
func (r *RevocationCache) IsRevoked(ctx context.Context, accessToken string) (bool, error) {
	_, found, err := r.cache.Get(ctx, revokedKey(accessToken))
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return found, nil
}

func revokedKey(accessToken string) string {
	return revokedKeyPrefix + accessToken
}
