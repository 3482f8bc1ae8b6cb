package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xseckill/internal/domain"
	"github.com/omeyang/xseckill/internal/seckill"
	"github.com/omeyang/xseckill/pkg/mq/xstream"
	"github.com/omeyang/xseckill/pkg/resilience/xretry"
	"github.com/omeyang/xseckill/pkg/util/xid"
)

// 秒杀入口 → stream.orders → 消费者落库，全链路只依赖 miniredis 和内存存储。
func TestSeckillToOrder(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()
	const voucherID, stock, users = 10, 5, 20

	ids, err := xid.NewGenerator(rdb)
	require.NoError(t, err)
	coord, err := seckill.NewCoordinator(rdb, ids)
	require.NoError(t, err)
	require.NoError(t, coord.Preload(ctx, voucherID, stock))

	store := newFakeStore(map[int64]int64{voucherID: stock})
	svc := newService(t, rdb, store)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := make(map[int64]int64)
	for u := range users {
		userID := int64(u + 1)
		wg.Go(func() {
			// 同一用户并发请求两次
			for range 2 {
				orderID, err := coord.Seckill(ctx, userID, voucherID)
				if err != nil {
					assert.True(t, errors.Is(err, domain.ErrStockExhausted) || errors.Is(err, domain.ErrDuplicateOrder), err)
					continue
				}
				mu.Lock()
				accepted[userID] = orderID
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	require.Len(t, accepted, stock)

	c, err := xstream.New(rdb, svc.Handle,
		xstream.WithBlock(50*time.Millisecond),
		xstream.WithRecoveryBackoff(xretry.NewFixedBackoff(10*time.Millisecond)))
	require.NoError(t, err)
	runConsumer(t, c)

	require.Eventually(t, func() bool { return svc.Stats().Created == stock }, 10*time.Second, 20*time.Millisecond)
	dbStock, orders := store.snapshot()
	assert.Equal(t, stock, orders)
	assert.Zero(t, dbStock[voucherID])

	left, err := coord.Stock(ctx, voucherID)
	require.NoError(t, err)
	assert.Zero(t, left)

	store.mu.Lock()
	for userID, orderID := range accepted {
		o, ok := store.orders[userVoucher{userID, voucherID}]
		if assert.True(t, ok, "user %d", userID) {
			assert.Equal(t, orderID, o.ID)
		}
	}
	store.mu.Unlock()

	require.Eventually(t, func() bool {
		n, err := c.Pending(ctx)
		return err == nil && n == 0
	}, 5*time.Second, 20*time.Millisecond)
}
