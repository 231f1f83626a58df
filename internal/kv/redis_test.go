package kv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client)

	t.Cleanup(func() { _ = store.Close() })
	return mr, store
}

func TestRedisStore_SetGetDelete(t *testing.T) {
	_, store := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, store.SetEX(ctx, "k1", []byte("hello"), 0))

	v, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", string(v))

	require.NoError(t, store.Delete(ctx, "k1"))
	_, ok, err = store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_SetEXExpiry(t *testing.T) {
	mr, store := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, store.SetEX(ctx, "k1", []byte("v"), 1))
	mr.FastForward(2 * time.Second)

	_, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_IncrByFloatSetsTTLOnceOnly(t *testing.T) {
	mr, store := setupMiniredis(t)
	ctx := context.Background()

	v, err := store.IncrByFloat(ctx, "cost:daily:user1", 1.5, 60)
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	v, err = store.IncrByFloat(ctx, "cost:daily:user1", 2.5, 5)
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)

	ttl := mr.TTL("cost:daily:user1")
	assert.Greater(t, ttl, 30*time.Second, "second increment must not shrink the TTL set by the first")
}

func TestRedisStore_ScanPrefix(t *testing.T) {
	_, store := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, store.SetEX(ctx, "ai_cache:a", []byte("1"), 0))
	require.NoError(t, store.SetEX(ctx, "ai_cache:b", []byte("2"), 0))
	require.NoError(t, store.SetEX(ctx, "other:c", []byte("3"), 0))

	keys, err := store.ScanPrefix(ctx, "ai_cache:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ai_cache:a", "ai_cache:b"}, keys)
}

func TestRedisStore_ApproxSize(t *testing.T) {
	_, store := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, store.SetEX(ctx, "k1", []byte("0123456789"), 0))
	n, err := store.ApproxSize(ctx, "k1")
	require.NoError(t, err)
	assert.EqualValues(t, 10, n)
}

func TestRedisStore_ClosedRejectsOperations(t *testing.T) {
	_, store := setupMiniredis(t)
	require.NoError(t, store.Close())

	_, _, err := store.Get(context.Background(), "k1")
	assert.Error(t, err)
}
