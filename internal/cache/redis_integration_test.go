//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/tripdesk/apiserver/config"
)

func TestLookupCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	client, err := NewClient(ctx, config.RedisConfig{URL: url})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	c := NewLookupCache(client, time.Minute)

	_, ok, err := c.Get(ctx, CountriesField())
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, CountriesField(), []string{"Brasil", "França"}))
	require.NoError(t, c.Set(ctx, StatesField("Brasil"), []string{"PR", "SP"}))

	values, ok, err := c.Get(ctx, StatesField("Brasil"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"PR", "SP"}, values)

	require.NoError(t, c.Invalidate(ctx))
	_, ok, err = c.Get(ctx, CountriesField())
	require.NoError(t, err)
	require.False(t, ok)
}
