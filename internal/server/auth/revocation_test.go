package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophauth/internal/server/cache/boltdb"
	rediscache "github.com/iudanet/gophauth/internal/server/cache/redis"
)

func TestRevocationCache_TTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rc := NewRevocationCache(rediscache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()})))

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rc.now = func() time.Time { return now }

	tests := []struct {
		name      string
		token     string
		expiresAt time.Time
		wantTTL   time.Duration
	}{
		{name: "remaining lifetime", token: "a.b.c1", expiresAt: now.Add(90 * time.Minute), wantTTL: 90 * time.Minute},
		{name: "about to expire", token: "a.b.c2", expiresAt: now.Add(10 * time.Millisecond), wantTTL: time.Second},
		{name: "already expired", token: "a.b.c3", expiresAt: now.Add(-time.Minute), wantTTL: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, rc.Revoke(ctx, tt.token, tt.expiresAt))

			assert.Equal(t, tt.wantTTL, mr.TTL(revokedKey(tt.token)))
			value, err := mr.Get(revokedKeyPrefix + tt.token)
			require.NoError(t, err)
			assert.Equal(t, revokedMarker, value)

			revoked, err := rc.IsRevoked(ctx, tt.token)
			require.NoError(t, err)
			assert.True(t, revoked)
		})
	}

	mr.FastForward(90 * time.Minute)
	for _, tt := range tests {
		revoked, err := rc.IsRevoked(ctx, tt.token)
		require.NoError(t, err)
		assert.False(t, revoked, tt.name)
	}
}

func TestRevocationCache_BoltBackend(t *testing.T) {
	ctx := context.Background()
	c, err := boltdb.New(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	rc := NewRevocationCache(c)

	revoked, err := rc.IsRevoked(ctx, "x.y.z")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, rc.Revoke(ctx, "x.y.z", time.Now().Add(time.Hour)))

	revoked, err = rc.IsRevoked(ctx, "x.y.z")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = rc.IsRevoked(ctx, "x.y.other")
	require.NoError(t, err)
	assert.False(t, revoked)
}
