package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophauth/internal/server/cache"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	m := miniredis.RunT(t)
	c := New(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	t.Cleanup(func() {
		_ = c.Close()
	})
	return c, m
}

func TestCache_PutGet(t *testing.T) {
	ctx := context.Background()
	c, m := setupTestCache(t)

	require.NoError(t, c.Put(ctx, "token", "revoked", time.Minute))

	value, ok, err := c.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "revoked", value)
	assert.Equal(t, time.Minute, m.TTL("token"))

	_, ok, err = c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c, m := setupTestCache(t)

	require.NoError(t, c.Put(ctx, "state", "verifier", 10*time.Minute))

	m.FastForward(9 * time.Minute)
	_, ok, err := c.Get(ctx, "state")
	require.NoError(t, err)
	assert.True(t, ok)

	m.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "state")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_PutInvalidTTL(t *testing.T) {
	c, _ := setupTestCache(t)
	assert.ErrorIs(t, c.Put(context.Background(), "k", "v", 0), cache.ErrInvalidTTL)
}

func TestCache_Delete(t *testing.T) {
	ctx := context.Background()
	c, _ := setupTestCache(t)

	require.NoError(t, c.Put(ctx, "k", "v", time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))
	require.NoError(t, c.Delete(ctx, "k"))

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_Unavailable(t *testing.T) {
	ctx := context.Background()
	c, m := setupTestCache(t)
	m.Close()

	_, _, err := c.Get(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, c.Ping(ctx))
}

func TestConnect(t *testing.T) {
	m := miniredis.RunT(t)

	c, err := Connect(context.Background(), m.Addr(), "", 0)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = Connect(context.Background(), "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}
