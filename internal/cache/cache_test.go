package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/marcogenualdo/session-gateway/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedisCache(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rc, err := NewRedisCache(config.RedisConfig{Address: mr.Addr(), PoolSize: 2, MaxRetries: 1})
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })

	return mr, rc
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	t.Run("get missing", func(t *testing.T) {
		_, err := mc.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set get delete", func(t *testing.T) {
		require.NoError(t, mc.Set(ctx, "k", []byte("v"), time.Minute))

		v, err := mc.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), v)

		require.NoError(t, mc.Delete(ctx, "k"))
		_, err = mc.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("expired key is not found", func(t *testing.T) {
		require.NoError(t, mc.Set(ctx, "short", []byte("v"), time.Millisecond))
		time.Sleep(5 * time.Millisecond)
		_, err := mc.Get(ctx, "short")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("setnx locks until expiry", func(t *testing.T) {
		ok, err := mc.SetNX(ctx, "lock", []byte("1"), 20*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = mc.SetNX(ctx, "lock", []byte("1"), 20*time.Millisecond)
		require.NoError(t, err)
		assert.False(t, ok)

		time.Sleep(30 * time.Millisecond)
		ok, err = mc.SetNX(ctx, "lock", []byte("1"), 20*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		other := NewMemoryCache()
		require.NoError(t, other.Close())
		require.NoError(t, other.Close())
	})
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()

	t.Run("set get delete", func(t *testing.T) {
		_, rc := setupTestRedisCache(t)

		require.NoError(t, rc.Set(ctx, "k", []byte("v"), time.Minute))
		v, err := rc.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), v)

		require.NoError(t, rc.Delete(ctx, "k"))
		_, err = rc.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("setnx locks until expiry", func(t *testing.T) {
		mr, rc := setupTestRedisCache(t)

		ok, err := rc.SetNX(ctx, "lock", []byte("1"), time.Second)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = rc.SetNX(ctx, "lock", []byte("1"), time.Second)
		require.NoError(t, err)
		assert.False(t, ok)

		mr.FastForward(2 * time.Second)

		ok, err = rc.SetNX(ctx, "lock", []byte("1"), time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unreachable server", func(t *testing.T) {
		_, err := NewRedisCache(config.RedisConfig{Address: "127.0.0.1:1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to Redis")
	})
}

func TestNew(t *testing.T) {
	c, err := New(config.CacheConfig{Type: "memory"})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = New(config.CacheConfig{Type: "redis"})
	require.Error(t, err)

	_, err = New(config.CacheConfig{Type: "memcached"})
	require.Error(t, err)
}
