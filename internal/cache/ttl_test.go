package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiresAtReadTime(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewTTLCacheWithNow[string, int](func() time.Time { return now })

	c.Set("k", 42, time.Minute)

	got, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, 42, got)

	now = now.Add(61 * time.Second)
	_, ok = c.Get("k")
	require.False(t, ok)

	// expired entry is dropped, not resurrected
	now = now.Add(-2 * time.Minute)
	_, ok = c.Get("k")
	require.False(t, ok)
}

func TestTTLCacheDeleteAndClear(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)

	c.Delete("a")
	_, ok := c.Get("a")
	require.False(t, ok)

	c.Clear()
	_, ok = c.Get("b")
	require.False(t, ok)
}

func TestMemoryCheckoutStatusCacheKeying(t *testing.T) {
	cacheImpl := NewCheckoutStatusCache(CacheParams{})
	ctx := context.Background()

	cacheImpl.SetStatus(ctx, "user", "u_1", "cs_1", "paid")

	got, ok := cacheImpl.GetStatus(ctx, "user", "u_1", "cs_1")
	require.True(t, ok)
	require.Equal(t, "paid", got)

	_, ok = cacheImpl.GetStatus(ctx, "organization", "u_1", "cs_1")
	require.False(t, ok)

	cacheImpl.SetStatus(ctx, "user", "u_1", "cs_2", "")
	_, ok = cacheImpl.GetStatus(ctx, "user", "u_1", "cs_2")
	require.False(t, ok)
}

func TestRedisCheckoutStatusCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cacheImpl := NewCheckoutStatusCache(CacheParams{Redis: client})
	ctx := context.Background()

	cacheImpl.SetStatus(ctx, "organization", "org_9", "cs_9", "unpaid")
	got, ok := cacheImpl.GetStatus(ctx, "organization", "org_9", "cs_9")
	require.True(t, ok)
	require.Equal(t, "unpaid", got)

	mr.FastForward(61 * time.Second)
	_, ok = cacheImpl.GetStatus(ctx, "organization", "org_9", "cs_9")
	require.False(t, ok)

	cacheImpl.SetStatus(ctx, "organization", "org_9", "cs_9", "paid")
	cacheImpl.DeleteStatus(ctx, "organization", "org_9", "cs_9")
	_, ok = cacheImpl.GetStatus(ctx, "organization", "org_9", "cs_9")
	require.False(t, ok)
}
