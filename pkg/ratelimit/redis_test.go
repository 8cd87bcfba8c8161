package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisGuard_WindowExhaustion(t *testing.T) {
	_, client := newTestRedis(t)
	g := NewRedisGuard(client, testPolicy(), "test")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := g.CheckAndRecord(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := g.CheckAndRecord(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Positive(t, d.RetryAfter)
}

func TestRedisGuard_WindowResets(t *testing.T) {
	mr, client := newTestRedis(t)
	g := NewRedisGuard(client, testPolicy(), "test")
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		g.CheckAndRecord(ctx, "ip:1.2.3.4")
	}

	mr.FastForward(2 * time.Minute)

	d, err := g.CheckAndRecord(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "counter expired with the window")
}

func TestRedisGuard_FailureBackoffBlocks(t *testing.T) {
	mr, client := newTestRedis(t)
	g := NewRedisGuard(client, Policy{
		MaxAttempts: 10,
		Window:      time.Minute,
		BaseDelay:   time.Second,
		MaxDelay:    time.Minute,
	}, "test")
	ctx := context.Background()

	require.NoError(t, g.RecordFailure(ctx, "email:a@example.com"))

	d, err := g.CheckAndRecord(ctx, "email:a@example.com")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	mr.FastForward(time.Hour)

	d, err = g.CheckAndRecord(ctx, "email:a@example.com")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "backoff expired")
}

func TestRedisGuard_ResetClearsState(t *testing.T) {
	_, client := newTestRedis(t)
	g := NewRedisGuard(client, testPolicy(), "test")
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		g.CheckAndRecord(ctx, "ip:1.2.3.4")
	}
	require.NoError(t, g.RecordFailure(ctx, "ip:1.2.3.4"))
	require.NoError(t, g.Reset(ctx, "ip:1.2.3.4"))

	d, err := g.CheckAndRecord(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisGuard_FailsClosedWhenUnavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	g := NewRedisGuard(client, testPolicy(), "test")

	mr.Close()

	_, err := g.CheckAndRecord(context.Background(), "ip:1.2.3.4")
	assert.Error(t, err, "infrastructure failure surfaces instead of allowing")
}
