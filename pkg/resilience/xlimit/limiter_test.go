package xlimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRule_Validate(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		ok   bool
	}{
		{"per second", PerSecond("a", 5), true},
		{"per minute", PerMinute("a", 100), true},
		{"zero limit", Rule{Limit: 0, Window: time.Second}, false},
		{"zero window", Rule{Limit: 1}, false},
		{"negative burst", Rule{Limit: 1, Burst: -1, Window: time.Second}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidRule)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, PerSecond("a", 1))
	assert.ErrorIs(t, err, ErrNilClient)

	_, client := setupMiniredis(t)
	_, err = New(client, Rule{})
	assert.ErrorIs(t, err, ErrInvalidRule)

	_, err = New(client, PerSecond("a", 1), WithFallback("bogus"))
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestLimiter_Distributed(t *testing.T) {
	_, client := setupMiniredis(t)
	l, err := New(client, PerMinute("seckill-user", 3), WithFallback(FallbackNone))
	require.NoError(t, err)
	ctx := context.Background()

	res, err := l.Allow(ctx, "1001")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
	assert.Equal(t, "limit:1001", res.Key)
	assert.NoError(t, res.Err())

	for range 2 {
		res, err = l.Allow(ctx, "1001")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err = l.Allow(ctx, "1001")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)

	limitErr := res.Err()
	assert.True(t, IsDenied(limitErr))
	var le *LimitError
	require.ErrorAs(t, limitErr, &le)
	assert.Equal(t, "seckill-user", le.Rule)
	assert.False(t, le.Retryable())

	// 其他用户不受影响
	res, err = l.Allow(ctx, "1002")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLimiter_InvalidInput(t *testing.T) {
	l, err := NewLocal(PerSecond("a", 1))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = l.Allow(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = l.allowN(ctx, "k", 0)
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestLimiter_Local(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l, err := NewLocal(Rule{Name: "local", Limit: 2, Window: time.Second},
		WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	ctx := context.Background()

	for range 2 {
		res, err := l.Allow(ctx, "u")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := l.Allow(ctx, "u")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 500*time.Millisecond, res.RetryAfter)

	// 半个窗口补充 1 个令牌
	now = now.Add(500 * time.Millisecond)
	res, err = l.Allow(ctx, "u")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = l.Allow(canceled, "u")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLimiter_Fallback(t *testing.T) {
	tests := []struct {
		name     string
		strategy FallbackStrategy
		allowed  bool
		wantErr  error
	}{
		{"local", FallbackLocal, true, nil},
		{"open", FallbackOpen, true, nil},
		{"close", FallbackClose, false, ErrRedisUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr, client := setupMiniredis(t)
			var fallbacks int
			l, err := New(client, PerSecond("a", 10),
				WithFallback(tt.strategy),
				WithOnFallback(func(_ string, s FallbackStrategy, err error) {
					fallbacks++
					assert.Equal(t, tt.strategy, s)
					assert.True(t, IsRedisError(err))
				}),
			)
			require.NoError(t, err)
			mr.Close()

			res, err := l.Allow(context.Background(), "u")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.NotNil(t, res)
			assert.Equal(t, tt.allowed, res.Allowed)
			assert.Equal(t, 1, fallbacks)
		})
	}
}

func TestLimiter_NoFallbackReturnsRedisError(t *testing.T) {
	mr, client := setupMiniredis(t)
	l, err := New(client, PerSecond("a", 10), WithFallback(FallbackNone))
	require.NoError(t, err)
	mr.Close()

	_, err = l.Allow(context.Background(), "u")
	require.Error(t, err)
	assert.True(t, IsRedisError(err))
}

func TestIsRedisError(t *testing.T) {
	assert.False(t, IsRedisError(nil))
	assert.False(t, IsRedisError(errors.New("boom")))
	assert.True(t, IsRedisError(ErrRedisUnavailable))
}
