package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seckilld.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	conf, cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, conf.Path())

	assert.Equal(t, []string{"localhost:6379"}, cfg.Redis.Addrs)
	assert.Equal(t, "stream.orders", cfg.Stream.Name)
	assert.Equal(t, "g1", cfg.Stream.Group)
	assert.Equal(t, "c1", cfg.Stream.Consumer)
	assert.Equal(t, 2*time.Second, cfg.Stream.Block)
	assert.Equal(t, 200*time.Millisecond, cfg.Stream.RecoveryDelay)
	assert.Equal(t, 30*time.Minute, cfg.Cache.ShopTTL)
	assert.Equal(t, 20*time.Second, cfg.Cache.ShopLogicalTTL)
	assert.Equal(t, 10*time.Second, cfg.Cache.JitterMax)
	assert.Equal(t, uint32(5), cfg.Seckill.BreakerThreshold)
	assert.Equal(t, "@every 1m", cfg.Cron.WarmShops)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
redis:
  addrs: ["redis-a:6379"]
postgres:
  dsn: postgres://localhost/seckill
cache:
  hot_shops: [1, 2, 3]
seckill:
  rate_limit: 5
stream:
  consumer: c7
  dead_letter: stream.orders.dead
`)
	t.Setenv("SECKILL_STREAM__BLOCK", "500ms")
	t.Setenv("SECKILL_LOG__LEVEL", "debug")

	_, cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"redis-a:6379"}, cfg.Redis.Addrs)
	assert.Equal(t, "postgres://localhost/seckill", cfg.Postgres.DSN)
	assert.Equal(t, []int64{1, 2, 3}, cfg.Cache.HotShops)
	assert.Equal(t, 5, cfg.Seckill.RateLimit)
	assert.Equal(t, "c7", cfg.Stream.Consumer)
	assert.Equal(t, "stream.orders.dead", cfg.Stream.DeadLetter)
	assert.Equal(t, 500*time.Millisecond, cfg.Stream.Block)
	assert.Equal(t, "debug", cfg.Log.Level)
	// 文件未给出的键使用默认值
	assert.Equal(t, "g1", cfg.Stream.Group)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, `
seckill:
  rate_limit: -1
stream:
  dead_letter: stream.orders
`)
	_, _, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit")
	assert.Contains(t, err.Error(), "dead_letter")

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "seckilld.log")
	logger, cleanup, err := NewLogger(LogConfig{Level: "warn", Format: "json", File: file, MaxSizeMB: 10})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })

	logger.Warn(t.Context(), "written")
	logger.Info(t.Context(), "filtered")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"written"`)
	assert.Contains(t, string(data), `"service":"seckilld"`)
	assert.NotContains(t, string(data), "filtered")

	_, _, err = NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}
