package order

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xseckill/internal/storage/postgres"
	"github.com/omeyang/xseckill/internal/testutil"
)

func TestCommit_Postgres(t *testing.T) {
	pool := testutil.NewTestPool(t)
	_, rdb := newRedis(t)
	ctx := context.Background()
	voucherID := testutil.InsertSeckillVoucher(t, pool, 3)

	orders := postgres.NewOrderRepository(pool)
	locks := newService(t, rdb, newFakeStore(nil)).locks
	svc, err := NewService(orders, postgres.NewVoucherRepository(pool), locks)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for u := range 10 {
		wg.Go(func() {
			_, err := svc.Commit(ctx, Event{OrderID: int64(1000 + u), UserID: int64(u + 1), VoucherID: voucherID})
			assert.NoError(t, err)
		})
	}
	// 同一用户并发重复投递
	for i := range 4 {
		wg.Go(func() {
			_, err := svc.Commit(ctx, Event{OrderID: int64(2000 + i), UserID: 1, VoucherID: voucherID})
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	stats := svc.Stats()
	assert.Equal(t, int64(3), stats.Created)
	assert.Zero(t, testutil.Stock(t, pool, voucherID))

	var n int64
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM voucher_orders WHERE voucher_id = $1`, voucherID).Scan(&n))
	assert.Equal(t, int64(3), n)

	var perUser int64
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM voucher_orders WHERE voucher_id = $1 AND user_id = 1`, voucherID).Scan(&perUser))
	assert.LessOrEqual(t, perUser, int64(1))
}
