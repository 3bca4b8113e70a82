package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisStoreWindowResets(t *testing.T) {
	mr, client := newMiniRedis(t)
	store := NewRedisStore(client, "ratelimit:topup")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := store.Allow(ctx, "1.2.3.4", time.Second, 2)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := store.Allow(ctx, "1.2.3.4", time.Second, 2)
	require.NoError(t, err)
	require.False(t, ok)

	require.True(t, mr.Exists("ratelimit:topup:1.2.3.4"))
	require.Equal(t, time.Second, mr.TTL("ratelimit:topup:1.2.3.4"))

	mr.FastForward(2 * time.Second)

	ok, err = store.Allow(ctx, "1.2.3.4", time.Second, 2)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisStoreRearmsKeyWithoutTTL(t *testing.T) {
	mr, client := newMiniRedis(t)
	store := NewRedisStore(client, "ratelimit:topup")
	ctx := context.Background()

	// A counter left behind without an expiry must not lock the source out.
	require.NoError(t, mr.Set("ratelimit:topup:5.6.7.8", "50"))

	ok, err := store.Allow(ctx, "5.6.7.8", time.Second, 2)
	require.NoError(t, err)
	require.False(t, ok)
	require.Greater(t, mr.TTL("ratelimit:topup:5.6.7.8"), time.Duration(0))

	mr.FastForward(time.Hour)

	ok, err = store.Allow(ctx, "5.6.7.8", time.Second, 2)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisStoreFailsOpenOnError(t *testing.T) {
	mr, client := newMiniRedis(t)
	store := NewRedisStore(client, "ratelimit:topup")
	mr.Close()

	ok, err := store.Allow(context.Background(), "1.2.3.4", time.Second, 2)
	require.Error(t, err)
	require.True(t, ok)
}

func TestRedisStoreLiveWindow(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	defer client.Close()
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	store := NewRedisStore(client, "test-ratelimit")
	key := uuid.NewString()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := store.Allow(ctx, key, 200*time.Millisecond, 2)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := store.Allow(ctx, key, 200*time.Millisecond, 2)
	require.NoError(t, err)
	require.False(t, ok)

	require.Eventually(t, func() bool {
		ok, _ := store.Allow(ctx, key, 200*time.Millisecond, 2)
		return ok
	}, 2*time.Second, 50*time.Millisecond)
}
