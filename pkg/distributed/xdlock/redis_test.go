package xdlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisFactory(t *testing.T) {
	t.Run("no clients", func(t *testing.T) {
		f, err := NewRedisFactory()
		assert.Nil(t, f)
		assert.ErrorIs(t, err, ErrNilClient)
	})

	t.Run("nil client", func(t *testing.T) {
		f, err := NewRedisFactory(nil)
		assert.Nil(t, f)
		assert.ErrorIs(t, err, ErrNilClient)
	})

	t.Run("ok", func(t *testing.T) {
		_, client := newTestRedis(t)
		f, err := NewRedisFactory(client)
		require.NoError(t, err)
		assert.NotNil(t, f)
	})
}

func TestRedisFactory_TryLock(t *testing.T) {
	mr, client := newTestRedis(t)
	f, err := NewRedisFactory(client)
	require.NoError(t, err)
	ctx := context.Background()

	handle, err := f.TryLock(ctx, "order:1001", WithExpiry(30*time.Second))
	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.Equal(t, "lock:order:1001", handle.Key())
	assert.True(t, mr.Exists("lock:order:1001"))

	// 被占用时返回 (nil, nil)
	other, err := f.TryLock(ctx, "order:1001")
	require.NoError(t, err)
	assert.Nil(t, other)

	require.NoError(t, handle.Extend(ctx))
	require.NoError(t, handle.Unlock(ctx))
	assert.False(t, mr.Exists("lock:order:1001"))

	// 重复释放
	assert.Error(t, handle.Unlock(ctx))
}

func TestRedisFactory_LockRetriesExhausted(t *testing.T) {
	_, client := newTestRedis(t)
	f, err := NewRedisFactory(client)
	require.NoError(t, err)
	ctx := context.Background()

	held, err := f.TryLock(ctx, "busy")
	require.NoError(t, err)
	require.NotNil(t, held)
	defer func() { _ = held.Unlock(ctx) }()

	_, err = f.Lock(ctx, "busy", WithTries(2), WithRetryDelay(10*time.Millisecond))
	assert.True(t, errors.Is(err, ErrLockFailed) || errors.Is(err, ErrLockHeld), "got %v", err)
}

func TestRedisFactory_Closed(t *testing.T) {
	_, client := newTestRedis(t)
	f, err := NewRedisFactory(client)
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, err = f.TryLock(context.Background(), "k")
	assert.ErrorIs(t, err, ErrFactoryClosed)
	_, err = f.Lock(context.Background(), "k")
	assert.ErrorIs(t, err, ErrFactoryClosed)
}

func TestTryDo(t *testing.T) {
	mr, client := newTestRedis(t)
	f, err := NewRedisFactory(client)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("runs fn and releases", func(t *testing.T) {
		called := false
		err := TryDo(ctx, f, "order:1", func(context.Context) error {
			called = true
			assert.True(t, mr.Exists("lock:order:1"))
			return nil
		})
		require.NoError(t, err)
		assert.True(t, called)
		assert.False(t, mr.Exists("lock:order:1"))
	})

	t.Run("returns fn error", func(t *testing.T) {
		boom := errors.New("boom")
		err := TryDo(ctx, f, "order:2", func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.False(t, mr.Exists("lock:order:2"))
	})

	t.Run("held lock skips fn", func(t *testing.T) {
		handle, err := f.TryLock(ctx, "order:3")
		require.NoError(t, err)
		defer func() { _ = handle.Unlock(ctx) }()

		err = TryDo(ctx, f, "order:3", func(context.Context) error {
			t.Fatal("fn must not run")
			return nil
		})
		assert.ErrorIs(t, err, ErrLockHeld)
	})
}
