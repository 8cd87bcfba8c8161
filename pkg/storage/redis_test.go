package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), RedisOptions{
		URL: "redis://" + mr.Addr(),
	})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	val, err := client.Get(context.Background(), "k").Result()
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestConnectRedisInvalidURL(t *testing.T) {
	_, err := ConnectRedis(context.Background(), RedisOptions{URL: "not-a-url"})
	assert.Error(t, err)
}

func TestConnectRedisRequiresURL(t *testing.T) {
	_, err := ConnectRedis(context.Background(), RedisOptions{})
	assert.Error(t, err)
}

func TestConnectRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := ConnectRedis(context.Background(), RedisOptions{URL: "redis://" + addr})
	assert.Error(t, err)
}
