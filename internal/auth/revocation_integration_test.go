//go:build integration

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisRevocationList(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	addr, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(addr)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisRevocationList(client)

	revoked, err := l.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, l.Revoke(ctx, "jti-1", time.Minute))
	revoked, err = l.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	ttl, err := client.TTL(ctx, revokedTokenKeyPrefix+"jti-1").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
}
