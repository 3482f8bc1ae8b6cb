package xcron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xseckill/pkg/distributed/xdlock"
)

func runScheduler(t *testing.T, s *Scheduler) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})
	return cancel
}

func newMutexLocker(t *testing.T) (*miniredis.Miniredis, *MutexLocker) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	m, err := xdlock.NewMutex(rdb)
	require.NoError(t, err)
	l, err := NewMutexLocker(m)
	require.NoError(t, err)
	return mr, l
}

func TestAddFunc_Validation(t *testing.T) {
	s := New()
	_, err := s.AddFunc("@every 1m", "job", nil)
	assert.ErrorIs(t, err, ErrNilJob)

	_, err = s.AddFunc("@every 1m", "", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = s.AddFunc("not a spec", "job", func(context.Context) error { return nil })
	assert.Error(t, err)

	assert.Empty(t, s.Entries())
	id, err := s.AddFunc("@every 1m", "job", func(context.Context) error { return nil })
	require.NoError(t, err)
	require.Len(t, s.Entries(), 1)
	assert.Equal(t, id, s.Entries()[0].ID)
}

func TestScheduler_ImmediateAndStats(t *testing.T) {
	s := New()
	var runs atomic.Int32
	errJob := errors.New("job failed")

	_, err := s.AddFunc("@every 1h", "ok", func(context.Context) error {
		runs.Add(1)
		return nil
	}, WithImmediate())
	require.NoError(t, err)
	_, err = s.AddFunc("@every 1h", "fail", func(context.Context) error { return errJob }, WithImmediate())
	require.NoError(t, err)
	_, err = s.AddFunc("@every 1h", "panic", func(context.Context) error { panic("boom") }, WithImmediate())
	require.NoError(t, err)

	runScheduler(t, s)

	require.Eventually(t, func() bool { return s.Stats().Executions == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
	stats := s.Stats()
	assert.Equal(t, int64(2), stats.Failures)
	assert.Equal(t, int64(1), stats.Panics)
	assert.Zero(t, stats.Skips)
}

func TestScheduler_RunTwice(t *testing.T) {
	s := New()
	started := make(chan struct{})
	_, err := s.AddFunc("@every 1h", "noop", func(context.Context) error {
		close(started)
		return nil
	}, WithImmediate())
	require.NoError(t, err)

	runScheduler(t, s)
	<-started
	assert.ErrorIs(t, s.Run(context.Background()), ErrAlreadyRunning)
}

func TestScheduler_TimeoutCancelsJob(t *testing.T) {
	s := New()
	var sawDeadline atomic.Bool
	_, err := s.AddFunc("@every 1h", "slow", func(ctx context.Context) error {
		<-ctx.Done()
		sawDeadline.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	}, WithImmediate(), WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	runScheduler(t, s)
	require.Eventually(t, func() bool { return s.Stats().Failures == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, sawDeadline.Load())
}

func TestScheduler_SkipsWhenLockHeld(t *testing.T) {
	mr, locker := newMutexLocker(t)
	require.NoError(t, mr.Set("lock:cron:warm", "other-instance"))

	s := New(WithLocker(locker))
	var runs atomic.Int32
	_, err := s.AddFunc("@every 1h", "warm", func(context.Context) error {
		runs.Add(1)
		return nil
	}, WithImmediate())
	require.NoError(t, err)

	runScheduler(t, s)
	require.Eventually(t, func() bool { return s.Stats().Skips == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, runs.Load())
}

func TestScheduler_ReleasesLockAfterRun(t *testing.T) {
	mr, locker := newMutexLocker(t)

	s := New(WithLocker(locker))
	held := make(chan bool, 1)
	_, err := s.AddFunc("@every 1h", "report", func(context.Context) error {
		held <- mr.Exists("lock:cron:report")
		return nil
	}, WithImmediate())
	require.NoError(t, err)

	runScheduler(t, s)
	assert.True(t, <-held)
	require.Eventually(t, func() bool { return !mr.Exists("lock:cron:report") }, 2*time.Second, 10*time.Millisecond)
}

func TestMutexLocker(t *testing.T) {
	_, err := NewMutexLocker(nil)
	assert.ErrorIs(t, err, ErrNilLocker)

	mr, locker := newMutexLocker(t)
	ctx := context.Background()

	h, err := locker.TryLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "lock:cron:job", h.Key())

	again, err := locker.TryLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, again)

	// 锁过期后被他人获取，不能误删
	mr.FastForward(2 * time.Minute)
	require.NoError(t, mr.Set("lock:cron:job", "someone-else"))
	assert.ErrorIs(t, h.Unlock(ctx), ErrLockNotHeld)
}

func TestNoopLocker(t *testing.T) {
	h, err := NoopLocker().TryLock(context.Background(), "job", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "job", h.Key())
	assert.NoError(t, h.Unlock(context.Background()))
}
