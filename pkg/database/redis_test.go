package database

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisConfigFor(t *testing.T, addr string) RedisConfig {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return RedisConfig{Host: host, Port: p, DialTimeout: time.Second, ReadTimeout: time.Second}
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), redisConfigFor(t, mr.Addr()))
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisConfigFor(t, mr.Addr())
	mr.Close()

	client, err := NewRedisClient(context.Background(), cfg)
	assert.Nil(t, client)
	assert.ErrorContains(t, err, "ping redis at "+cfg.Addr())
}

func TestRedisConfigAddr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
	assert.Equal(t, "[::1]:6379", RedisConfig{Host: "::1", Port: 6379}.Addr())
}
