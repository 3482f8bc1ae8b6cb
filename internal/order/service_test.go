package order

import (
	"context"
	"errors"
	"maps"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xseckill/internal/domain"
	"github.com/omeyang/xseckill/pkg/distributed/xdlock"
	"github.com/omeyang/xseckill/pkg/mq/xstream"
	"github.com/omeyang/xseckill/pkg/resilience/xretry"
)

type userVoucher struct{ user, voucher int64 }

// fakeStore 内存实现，WithTx 串行执行并在出错时回滚。
type fakeStore struct {
	mu     sync.Mutex
	stock  map[int64]int64
	orders map[userVoucher]domain.Order

	countErrs int  // CountByUserVoucher 前 n 次返回错误
	racyDup   bool // Insert 模拟并发写入导致的唯一约束冲突
}

func newFakeStore(stock map[int64]int64) *fakeStore {
	return &fakeStore{stock: stock, orders: make(map[userVoucher]domain.Order)}
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stock := maps.Clone(f.stock)
	orders := maps.Clone(f.orders)
	if err := fn(ctx); err != nil {
		f.stock, f.orders = stock, orders
		return err
	}
	return nil
}

func (f *fakeStore) CountByUserVoucher(_ context.Context, userID, voucherID int64) (int64, error) {
	if f.countErrs > 0 {
		f.countErrs--
		return 0, errors.New("connection reset by peer")
	}
	if _, ok := f.orders[userVoucher{userID, voucherID}]; ok {
		return 1, nil
	}
	return 0, nil
}

func (f *fakeStore) DecrementStock(_ context.Context, voucherID int64) (bool, error) {
	if f.stock[voucherID] <= 0 {
		return false, nil
	}
	f.stock[voucherID]--
	return true, nil
}

func (f *fakeStore) Insert(_ context.Context, o domain.Order) error {
	if f.racyDup {
		return domain.ErrDuplicateOrder
	}
	k := userVoucher{o.UserID, o.VoucherID}
	if _, ok := f.orders[k]; ok {
		return domain.ErrDuplicateOrder
	}
	f.orders[k] = o
	return nil
}

func (f *fakeStore) snapshot() (map[int64]int64, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.stock), len(f.orders)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func newService(t *testing.T, rdb redis.UniversalClient, store *fakeStore, opts ...Option) *Service {
	t.Helper()
	locks, err := xdlock.NewRedisFactory(rdb)
	require.NoError(t, err)
	t.Cleanup(func() { _ = locks.Close() })
	svc, err := NewService(store, store, locks, opts...)
	require.NoError(t, err)
	return svc
}

func message(orderID, userID, voucherID int64) xstream.Message {
	return xstream.Message{ID: "1-0", Values: map[string]any{
		"id":        strconv.FormatInt(orderID, 10),
		"userId":    strconv.FormatInt(userID, 10),
		"voucherId": strconv.FormatInt(voucherID, 10),
	}}
}

func TestNewService_RequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil)
	assert.Error(t, err)
}

func TestCommit_Outcomes(t *testing.T) {
	_, rdb := newRedis(t)
	store := newFakeStore(map[int64]int64{10: 1})
	svc := newService(t, rdb, store)
	ctx := context.Background()

	out, err := svc.Commit(ctx, Event{OrderID: 1, UserID: 7, VoucherID: 10})
	require.NoError(t, err)
	assert.Equal(t, Created, out)

	// 重复投递：幂等
	out, err = svc.Commit(ctx, Event{OrderID: 1, UserID: 7, VoucherID: 10})
	require.NoError(t, err)
	assert.Equal(t, Duplicate, out)

	// 数据库库存兜底
	out, err = svc.Commit(ctx, Event{OrderID: 2, UserID: 8, VoucherID: 10})
	require.NoError(t, err)
	assert.Equal(t, SoldOut, out)

	stock, orders := store.snapshot()
	assert.Equal(t, int64(0), stock[10])
	assert.Equal(t, 1, orders)
	assert.Equal(t, Stats{Created: 1, Duplicates: 1, SoldOut: 1}, svc.Stats())
}

func TestCommit_UniqueViolationRollsBackStock(t *testing.T) {
	_, rdb := newRedis(t)
	store := newFakeStore(map[int64]int64{10: 5})
	store.racyDup = true
	svc := newService(t, rdb, store)

	out, err := svc.Commit(context.Background(), Event{OrderID: 1, UserID: 7, VoucherID: 10})
	require.NoError(t, err)
	assert.Equal(t, Duplicate, out)

	stock, _ := store.snapshot()
	assert.Equal(t, int64(5), stock[10])
}

func TestCommit_RetriesTransientErrors(t *testing.T) {
	_, rdb := newRedis(t)
	store := newFakeStore(map[int64]int64{10: 5})
	store.countErrs = 2
	svc := newService(t, rdb, store, WithCommitTries(3))

	out, err := svc.Commit(context.Background(), Event{OrderID: 1, UserID: 7, VoucherID: 10})
	require.NoError(t, err)
	assert.Equal(t, Created, out)
}

func TestCommit_GivesUpAfterTries(t *testing.T) {
	_, rdb := newRedis(t)
	store := newFakeStore(map[int64]int64{10: 5})
	store.countErrs = 10
	svc := newService(t, rdb, store, WithCommitTries(2))

	_, err := svc.Commit(context.Background(), Event{OrderID: 1, UserID: 7, VoucherID: 10})
	assert.Error(t, err)
	stock, orders := store.snapshot()
	assert.Equal(t, int64(5), stock[10])
	assert.Zero(t, orders)
}

func TestHandle_CreatesOrderAndReleasesLock(t *testing.T) {
	mr, rdb := newRedis(t)
	store := newFakeStore(map[int64]int64{10: 5})
	svc := newService(t, rdb, store)

	require.NoError(t, svc.Handle(context.Background(), message(1, 7, 10)))
	_, orders := store.snapshot()
	assert.Equal(t, 1, orders)
	assert.False(t, mr.Exists("lock:order:7"))
}

func TestHandle_UserLockHeld(t *testing.T) {
	mr, rdb := newRedis(t)
	store := newFakeStore(map[int64]int64{10: 5})
	svc := newService(t, rdb, store)
	require.NoError(t, mr.Set("lock:order:7", "another-consumer"))

	err := svc.Handle(context.Background(), message(1, 7, 10))
	assert.ErrorIs(t, err, domain.ErrLockNotAcquired)
	_, orders := store.snapshot()
	assert.Zero(t, orders)
	got, _ := mr.Get("lock:order:7")
	assert.Equal(t, "another-consumer", got)
}

func TestHandle_BadEventWithoutDeadLetter(t *testing.T) {
	_, rdb := newRedis(t)
	svc := newService(t, rdb, newFakeStore(nil))

	err := svc.Handle(context.Background(), xstream.Message{ID: "1-0", Values: map[string]any{"id": "x"}})
	assert.ErrorIs(t, err, ErrBadEvent)
}

func TestHandle_BadEventGoesToDeadLetter(t *testing.T) {
	_, rdb := newRedis(t)
	svc := newService(t, rdb, newFakeStore(nil), WithDeadLetter(rdb, ""))
	ctx := context.Background()

	require.NoError(t, svc.Handle(ctx, xstream.Message{ID: "5-0", Values: map[string]any{"id": "x"}}))
	assert.Equal(t, int64(1), svc.Stats().DeadLettered)

	msgs, err := rdb.XRange(ctx, DefaultDeadLetterStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "5-0", msgs[0].Values["_source_id"])
	assert.Equal(t, "x", msgs[0].Values["id"])
}

func runConsumer(t *testing.T, c *xstream.Consumer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(10 * time.Second):
			t.Error("consumer did not stop")
		}
	})
}

func TestConsumerRecoveryMaterializesExactlyOnce(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()
	store := newFakeStore(map[int64]int64{10: 5})
	// 一次 Handle 内的重试耗尽，消息进入 pending 后由恢复模式重放
	store.countErrs = 2
	svc := newService(t, rdb, store, WithCommitTries(1))

	for i := range 3 {
		_, err := rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: xstream.DefaultStream,
			Values: map[string]any{"id": strconv.Itoa(100 + i), "userId": "7", "voucherId": "10"},
		}).Result()
		require.NoError(t, err)
	}

	c, err := xstream.New(rdb, svc.Handle,
		xstream.WithBlock(50*time.Millisecond),
		xstream.WithRecoveryBackoff(xretry.NewFixedBackoff(10*time.Millisecond)))
	require.NoError(t, err)
	runConsumer(t, c)

	require.Eventually(t, func() bool { return c.Stats().Acked == 3 }, 10*time.Second, 20*time.Millisecond)
	stock, orders := store.snapshot()
	assert.Equal(t, 1, orders, "one user gets at most one order")
	assert.Equal(t, int64(4), stock[10])
	assert.Equal(t, Stats{Created: 1, Duplicates: 2}, svc.Stats())

	pending, err := c.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}
