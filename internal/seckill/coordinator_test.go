package seckill

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/omeyang/xseckill/internal/domain"
	"github.com/omeyang/xseckill/pkg/mq/xstream"
	"github.com/omeyang/xseckill/pkg/observability/xmetrics"
	"github.com/omeyang/xseckill/pkg/resilience/xbreaker"
	"github.com/omeyang/xseckill/pkg/resilience/xlimit"
	"github.com/omeyang/xseckill/pkg/util/xid"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func newCoordinator(t *testing.T, rdb redis.UniversalClient, opts ...Option) *Coordinator {
	t.Helper()
	ids, err := xid.NewGenerator(rdb)
	require.NoError(t, err)
	c, err := NewCoordinator(rdb, ids, opts...)
	require.NoError(t, err)
	return c
}

func streamEntries(t *testing.T, rdb redis.UniversalClient) []redis.XMessage {
	t.Helper()
	msgs, err := rdb.XRange(context.Background(), xstream.DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	return msgs
}

func TestNewCoordinator_NilDependencies(t *testing.T) {
	_, err := NewCoordinator(nil, nil)
	assert.ErrorIs(t, err, ErrNilDependency)
}

func TestSeckill_Accepted(t *testing.T) {
	mr, rdb := newRedis(t)
	c := newCoordinator(t, rdb)
	ctx := context.Background()
	require.NoError(t, c.Preload(ctx, 10, 3))

	orderID, err := c.Seckill(ctx, 1001, 10)
	require.NoError(t, err)
	assert.Positive(t, orderID)

	stock, err := c.Stock(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stock)

	ok, err := mr.SIsMember("seckill:order:10", "1001")
	require.NoError(t, err)
	assert.True(t, ok)

	msgs := streamEntries(t, rdb)
	require.Len(t, msgs, 1)
	assert.Equal(t, map[string]any{
		"id":        strconv.FormatInt(orderID, 10),
		"userId":    "1001",
		"voucherId": "10",
	}, msgs[0].Values)

	parts, err := xid.Decompose(orderID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), parts.Sequence)
}

func TestSeckill_StockExhausted(t *testing.T) {
	_, rdb := newRedis(t)
	c := newCoordinator(t, rdb)
	ctx := context.Background()

	// 未初始化库存视为售罄
	_, err := c.Seckill(ctx, 1, 99)
	assert.ErrorIs(t, err, domain.ErrStockExhausted)

	require.NoError(t, c.Preload(ctx, 10, 0))
	_, err = c.Seckill(ctx, 1, 10)
	assert.ErrorIs(t, err, domain.ErrStockExhausted)
	assert.Empty(t, streamEntries(t, rdb))
}

func TestSeckill_StockCheckedBeforeDuplicate(t *testing.T) {
	_, rdb := newRedis(t)
	c := newCoordinator(t, rdb)
	ctx := context.Background()
	require.NoError(t, c.Preload(ctx, 10, 1))

	_, err := c.Seckill(ctx, 7, 10)
	require.NoError(t, err)
	// 库存已为 0，同一用户再次下单先命中库存判断
	_, err = c.Seckill(ctx, 7, 10)
	assert.ErrorIs(t, err, domain.ErrStockExhausted)
	assert.Len(t, streamEntries(t, rdb), 1)
}

func TestSeckill_Window(t *testing.T) {
	begin := time.Date(2024, 6, 18, 10, 0, 0, 0, time.UTC)
	end := begin.Add(time.Hour)

	tests := []struct {
		name string
		now  time.Time
		want error
	}{
		{"before begin", begin.Add(-time.Second), domain.ErrSeckillNotStarted},
		{"at begin", begin, nil},
		{"after end", end.Add(time.Second), domain.ErrSeckillEnded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rdb := newRedis(t)
			c := newCoordinator(t, rdb, WithClock(func() time.Time { return tt.now }))
			ctx := context.Background()
			require.NoError(t, c.Preload(ctx, 10, 5))
			require.NoError(t, c.SetWindow(ctx, 10, begin, end))

			_, err := c.Seckill(ctx, 1, 10)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			stock, err := c.Stock(ctx, 10)
			require.NoError(t, err)
			assert.Equal(t, int64(5), stock)
			assert.Empty(t, streamEntries(t, rdb))
		})
	}
}

func TestSeckill_WindowOpenEnded(t *testing.T) {
	_, rdb := newRedis(t)
	begin := time.Date(2024, 6, 18, 10, 0, 0, 0, time.UTC)
	c := newCoordinator(t, rdb, WithClock(func() time.Time { return begin.AddDate(1, 0, 0) }))
	ctx := context.Background()
	require.NoError(t, c.Preload(ctx, 10, 5))
	require.NoError(t, c.SetWindow(ctx, 10, begin, time.Time{}))

	_, err := c.Seckill(ctx, 1, 10)
	require.NoError(t, err)
	assert.ErrorIs(t, c.SetWindow(ctx, 0, begin, time.Time{}), domain.ErrInvalidID)
}

func TestSeckill_Duplicate(t *testing.T) {
	_, rdb := newRedis(t)
	c := newCoordinator(t, rdb)
	ctx := context.Background()
	require.NoError(t, c.Preload(ctx, 10, 5))

	_, err := c.Seckill(ctx, 7, 10)
	require.NoError(t, err)
	_, err = c.Seckill(ctx, 7, 10)
	assert.ErrorIs(t, err, domain.ErrDuplicateOrder)

	stock, err := c.Stock(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stock)
	assert.Len(t, streamEntries(t, rdb), 1)
}

func TestSeckill_InvalidID(t *testing.T) {
	_, rdb := newRedis(t)
	c := newCoordinator(t, rdb)
	_, err := c.Seckill(context.Background(), 0, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	_, err = c.Seckill(context.Background(), 1, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestSeckill_NoOversellUnderConcurrency(t *testing.T) {
	_, rdb := newRedis(t)
	c := newCoordinator(t, rdb)
	ctx := context.Background()
	const stock, users = 10, 100
	require.NoError(t, c.Preload(ctx, 10, stock))

	var accepted, soldOut atomic.Int32
	var wg sync.WaitGroup
	for u := range users {
		wg.Go(func() {
			_, err := c.Seckill(ctx, int64(u+1), 10)
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, domain.ErrStockExhausted):
				soldOut.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(stock), accepted.Load())
	assert.Equal(t, int32(users-stock), soldOut.Load())
	left, err := c.Stock(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, left)
	assert.Len(t, streamEntries(t, rdb), stock)
}

func TestSeckill_OneOrderPerUserUnderConcurrency(t *testing.T) {
	_, rdb := newRedis(t)
	c := newCoordinator(t, rdb)
	ctx := context.Background()
	require.NoError(t, c.Preload(ctx, 10, 100))

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for range 30 {
		wg.Go(func() {
			_, err := c.Seckill(ctx, 42, 10)
			if err == nil {
				accepted.Add(1)
				return
			}
			assert.ErrorIs(t, err, domain.ErrDuplicateOrder)
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
	left, err := c.Stock(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(99), left)
}

func TestSeckill_LastUnitSameUserRace(t *testing.T) {
	_, rdb := newRedis(t)
	c := newCoordinator(t, rdb)
	ctx := context.Background()
	require.NoError(t, c.Preload(ctx, 10, 1))

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Go(func() {
			_, errs[i] = c.Seckill(ctx, 5, 10)
		})
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrStockExhausted), errors.Is(err, domain.ErrDuplicateOrder):
			rejected++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)
}

func TestSeckill_RateLimited(t *testing.T) {
	_, rdb := newRedis(t)
	limiter, err := xlimit.NewLocal(xlimit.Rule{Name: "seckill", Limit: 1, Burst: 1, Window: time.Minute})
	require.NoError(t, err)
	c := newCoordinator(t, rdb, WithLimiter(limiter))
	ctx := context.Background()
	require.NoError(t, c.Preload(ctx, 10, 10))
	require.NoError(t, c.Preload(ctx, 11, 10))

	_, err = c.Seckill(ctx, 1, 10)
	require.NoError(t, err)
	_, err = c.Seckill(ctx, 1, 11)
	assert.True(t, xlimit.IsDenied(err))
	var limitErr *xlimit.LimitError
	assert.ErrorAs(t, err, &limitErr)

	// 其他用户不受影响
	_, err = c.Seckill(ctx, 2, 11)
	assert.NoError(t, err)
}

func TestSeckill_BusinessRejectionsDoNotTripBreaker(t *testing.T) {
	_, rdb := newRedis(t)
	c := newCoordinator(t, rdb, WithBreaker(2, time.Minute))
	ctx := context.Background()

	for u := range 10 {
		_, err := c.Seckill(ctx, int64(u+1), 10)
		assert.ErrorIs(t, err, domain.ErrStockExhausted)
	}
	assert.Equal(t, xbreaker.StateClosed, c.Breaker().State())
}

func TestSeckill_BreakerOpensOnRedisFailure(t *testing.T) {
	_, idsRdb := newRedis(t)
	scriptMr, scriptRdb := newRedis(t)
	ids, err := xid.NewGenerator(idsRdb)
	require.NoError(t, err)
	c, err := NewCoordinator(scriptRdb, ids, WithBreaker(2, time.Minute))
	require.NoError(t, err)
	scriptMr.Close()

	ctx := context.Background()
	for range 2 {
		_, err := c.Seckill(ctx, 1, 10)
		require.Error(t, err)
		assert.False(t, xbreaker.IsOpen(err))
	}
	_, err = c.Seckill(ctx, 1, 10)
	assert.True(t, xbreaker.IsOpen(err))
	assert.Equal(t, xbreaker.StateOpen, c.Breaker().State())
}

func TestSeckill_RecordsOutcomeMetric(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	obs, err := xmetrics.NewOTelObserver(xmetrics.WithMeterProvider(mp))
	require.NoError(t, err)

	_, rdb := newRedis(t)
	c := newCoordinator(t, rdb, WithObserver(obs))
	ctx := context.Background()
	// 库存 2：用户 1 的重复下单能走到一人一单判断
	require.NoError(t, c.Preload(ctx, 10, 2))

	_, err = c.Seckill(ctx, 1, 10)
	require.NoError(t, err)
	_, err = c.Seckill(ctx, 1, 10)
	require.ErrorIs(t, err, domain.ErrDuplicateOrder)
	_, err = c.Seckill(ctx, 2, 10)
	require.NoError(t, err)
	_, err = c.Seckill(ctx, 3, 10)
	require.ErrorIs(t, err, domain.ErrStockExhausted)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	outcomes := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, p := range sum.DataPoints {
				v, _ := p.Attributes.Value(attribute.Key("outcome"))
				outcomes[v.Emit()] += p.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{"accepted": 2, "duplicate": 1, "sold_out": 1}, outcomes)
}

func TestEnsureStock_DoesNotOverwrite(t *testing.T) {
	_, rdb := newRedis(t)
	c := newCoordinator(t, rdb)
	ctx := context.Background()

	ok, err := c.EnsureStock(ctx, 10, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.Seckill(ctx, 1, 10)
	require.NoError(t, err)

	ok, err = c.EnsureStock(ctx, 10, 5)
	require.NoError(t, err)
	assert.False(t, ok)
	stock, err := c.Stock(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stock)

	_, err = c.Stock(ctx, 11)
	assert.ErrorIs(t, err, domain.ErrVoucherNotFound)
}

func TestCode_Err(t *testing.T) {
	assert.NoError(t, CodeAccepted.Err())
	assert.ErrorIs(t, CodeStockExhausted.Err(), domain.ErrStockExhausted)
	assert.ErrorIs(t, CodeDuplicateOrder.Err(), domain.ErrDuplicateOrder)
	assert.Error(t, Code(9).Err())
}
