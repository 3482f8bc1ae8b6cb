//go:build integration

package xdlock_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/omeyang/xseckill/pkg/distributed/xdlock"
)

// setupRedis 启动 Redis 容器或连接到已有 Redis。
// 如果设置了 XSECKILL_REDIS_ADDR 环境变量，直接使用外部 Redis。
func setupRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	ctx := context.Background()

	if addr := os.Getenv("XSECKILL_REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		if err := client.Ping(ctx).Err(); err != nil {
			t.Skipf("无法连接到 Redis %s: %v", addr, err)
		}
		t.Cleanup(func() { _ = client.Close() })
		return client
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("无法启动 Redis 容器: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	require.NoError(t, client.Ping(ctx).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIntegration_MutexExclusivity(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	var acquired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := xdlock.NewMutex(client)
			if err != nil {
				return
			}
			lease, err := m.TryLock(ctx, "it:hot", time.Minute)
			if err == nil && lease != nil {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), acquired.Load())
}

func TestIntegration_FactoryMutualExclusion(t *testing.T) {
	client := setupRedis(t)
	factory, err := xdlock.NewRedisFactory(client)
	require.NoError(t, err)
	defer func() { _ = factory.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handle, err := factory.Lock(ctx, "it:order:1", xdlock.WithRetryDelay(10*time.Millisecond))
			if err != nil {
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inside.Add(-1)
			_ = handle.Unlock(ctx)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
}
