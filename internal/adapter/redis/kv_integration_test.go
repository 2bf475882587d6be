//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	redisadapter "github.com/MohamedAzimStelco/outage-dashboard/internal/adapter/redis"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/config"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err, "start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

func TestKV_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	kv := redisadapter.NewKV(&config.Config{RedisAddr: startRedis(ctx, t)})
	t.Cleanup(func() { _ = kv.Close() })

	require.NoError(t, kv.Ping(ctx))

	_, err := kv.Get(ctx, snapshot.Key)
	require.ErrorIs(t, err, snapshot.ErrNotFound)

	require.NoError(t, kv.Set(ctx, snapshot.Key, []byte(`{"affected":1}`)))
	require.NoError(t, kv.Set(ctx, snapshot.Key, []byte(`{"affected":2}`)))

	got, err := kv.Get(ctx, snapshot.Key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"affected":2}`, string(got))
}
