//go:build integration

package redis_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	rediscache "github.com/aussiebroadwan/warden/internal/auth/cache/drivers/redis"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestCacheCountersOnRedis runs the scripts against a real Redis, since
// miniredis interprets Lua with a different engine.
func TestCacheCountersOnRedis(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	c, err := rediscache.Open(ctx, rediscache.Options{
		Addr:   fmt.Sprintf("%s:%s", host, port.Port()),
		Prefix: "it:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	exerciseCounters(t, c)
}
