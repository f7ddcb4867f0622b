//go:build integration

package tokenbucket_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/snok/self-limiters/pkg/limiterstore"
	"github.com/snok/self-limiters/pkg/tokenbucket"
)

// TestBucket_AgainstRealRedis exercises the schedule script against an
// actual Redis server rather than miniredis's reimplementation.
func TestBucket_AgainstRealRedis(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	defer func() { _ = rdb.Close() }()

	store := limiterstore.New(rdb)
	require.NoError(t, tokenbucket.WarmupScripts(ctx, rdb))

	bucket, err := tokenbucket.New(store, "integration", 2, 200*time.Millisecond, 2)
	require.NoError(t, err)

	acq, err := bucket.Enter(ctx)
	require.NoError(t, err)
	require.NoError(t, acq.Exit(ctx))
}
