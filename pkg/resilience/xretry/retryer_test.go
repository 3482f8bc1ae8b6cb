package xretry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryer_Do(t *testing.T) {
	t.Run("SuccessOnFirstAttempt", func(t *testing.T) {
		r := NewRetryer()
		var attempts int

		err := r.Do(context.Background(), func(context.Context) error {
			attempts++
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("SuccessAfterRetry", func(t *testing.T) {
		r := NewRetryer(
			WithRetryPolicy(NewFixedRetry(3)),
			WithBackoffPolicy(NewNoBackoff()),
		)
		var attempts int

		err := r.Do(context.Background(), func(context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("serialization failure")
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("FailAfterMaxAttempts", func(t *testing.T) {
		r := NewRetryer(
			WithRetryPolicy(NewFixedRetry(3)),
			WithBackoffPolicy(NewNoBackoff()),
		)
		var attempts int
		last := errors.New("connection refused")

		err := r.Do(context.Background(), func(context.Context) error {
			attempts++
			return last
		})

		assert.ErrorIs(t, err, last)
		assert.Equal(t, 3, attempts)
	})

	t.Run("PermanentStopsImmediately", func(t *testing.T) {
		r := NewRetryer(
			WithRetryPolicy(NewFixedRetry(5)),
			WithBackoffPolicy(NewNoBackoff()),
		)
		var attempts int
		stockOut := errors.New("stock exhausted")

		err := r.Do(context.Background(), func(context.Context) error {
			attempts++
			return Permanent(stockOut)
		})

		assert.ErrorIs(t, err, stockOut)
		assert.Equal(t, 1, attempts)
	})

	t.Run("UnrecoverableStopsImmediately", func(t *testing.T) {
		r := NewRetryer(WithBackoffPolicy(NewNoBackoff()))
		var attempts int

		err := r.Do(context.Background(), func(context.Context) error {
			attempts++
			return Unrecoverable(errors.New("bad event"))
		})

		assert.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("OnRetryIsOneBased", func(t *testing.T) {
		var seen []int
		r := NewRetryer(
			WithRetryPolicy(NewFixedRetry(3)),
			WithBackoffPolicy(NewNoBackoff()),
			WithOnRetry(func(attempt int, _ error) { seen = append(seen, attempt) }),
		)

		_ = r.Do(context.Background(), func(context.Context) error {
			return errors.New("fail")
		})

		require.NotEmpty(t, seen)
		assert.Equal(t, 1, seen[0])
	})

	t.Run("AlwaysRetryStopsOnCancel", func(t *testing.T) {
		r := NewRetryer(
			WithRetryPolicy(NewAlwaysRetry()),
			WithBackoffPolicy(NewFixedBackoff(5*time.Millisecond)),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		var attempts int
		err := r.Do(ctx, func(context.Context) error {
			attempts++
			return errors.New("db down")
		})

		assert.Error(t, err)
		assert.Greater(t, attempts, 1)
	})
}

func TestDoWithResult(t *testing.T) {
	r := NewRetryer(
		WithRetryPolicy(NewFixedRetry(3)),
		WithBackoffPolicy(NewNoBackoff()),
	)
	var attempts int

	got, err := DoWithResult(context.Background(), r, func(context.Context) (int64, error) {
		attempts++
		if attempts == 1 {
			return 0, errors.New("timeout")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, int64(42), got)
	assert.Equal(t, 2, attempts)
}

func TestRetryer_InvalidArguments(t *testing.T) {
	var nilRetryer *Retryer
	fn := func(context.Context) error { return nil }

	assert.ErrorIs(t, nilRetryer.Do(context.Background(), fn), ErrNilRetryer)
	//nolint:staticcheck // SA1012: 测试 nil ctx
	assert.ErrorIs(t, NewRetryer().Do(nil, fn), ErrNilContext)
	assert.ErrorIs(t, NewRetryer().Do(context.Background(), nil), ErrNilFunc)

	_, err := DoWithResult[int](context.Background(), nil, func(context.Context) (int, error) { return 0, nil })
	assert.ErrorIs(t, err, ErrNilRetryer)
	_, err = DoWithResult[int](context.Background(), NewRetryer(), nil)
	assert.ErrorIs(t, err, ErrNilFunc)
}

func TestIsRetryable(t *testing.T) {
	plain := errors.New("plain")

	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(plain))
	assert.False(t, IsRetryable(Permanent(plain)))
	assert.False(t, IsRetryable(Unrecoverable(plain)))
	assert.True(t, IsPermanent(Permanent(plain)))
	assert.False(t, IsPermanent(nil))
	assert.NoError(t, Permanent(nil))
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
	assert.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
