package seckill

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xseckill/internal/domain"
)

type fakeVoucherRepo struct {
	nextID  int64
	created []domain.SeckillVoucher
	active  []domain.SeckillVoucher
	err     error
}

func (r *fakeVoucherRepo) CreateSeckill(_ context.Context, v *domain.Voucher, sk *domain.SeckillVoucher) error {
	if r.err != nil {
		return r.err
	}
	r.nextID++
	v.ID = r.nextID
	sk.VoucherID = v.ID
	r.created = append(r.created, *sk)
	return nil
}

func (r *fakeVoucherRepo) ListActiveSeckill(context.Context, time.Time) ([]domain.SeckillVoucher, error) {
	return r.active, r.err
}

func TestService_AddVoucher(t *testing.T) {
	_, rdb := newRedis(t)
	coord := newCoordinator(t, rdb)
	repo := &fakeVoucherRepo{}
	svc, err := NewService(repo, coord, nil)
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Now()
	v := domain.Voucher{ShopID: 1, Title: "100元代金券", PayValue: 8000, ActualValue: 10000}
	sk := domain.SeckillVoucher{Stock: 100, BeginTime: now, EndTime: now.Add(time.Hour)}
	require.NoError(t, svc.AddVoucher(ctx, &v, &sk))
	assert.Equal(t, int64(1), v.ID)

	stock, err := coord.Stock(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stock)

	window, err := rdb.HGetAll(ctx, WindowKey(v.ID)).Result()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"begin": strconv.FormatInt(now.Unix(), 10),
		"end":   strconv.FormatInt(now.Add(time.Hour).Unix(), 10),
	}, window)
}

func TestService_AddVoucherValidation(t *testing.T) {
	_, rdb := newRedis(t)
	svc, err := NewService(&fakeVoucherRepo{}, newCoordinator(t, rdb), nil)
	require.NoError(t, err)
	ctx := context.Background()
	now := time.Now()

	assert.Error(t, svc.AddVoucher(ctx, nil, nil))
	assert.Error(t, svc.AddVoucher(ctx, &domain.Voucher{}, &domain.SeckillVoucher{Stock: -1}))
	assert.Error(t, svc.AddVoucher(ctx, &domain.Voucher{},
		&domain.SeckillVoucher{Stock: 1, BeginTime: now, EndTime: now.Add(-time.Minute)}))
}

func TestService_AddVoucherRepositoryError(t *testing.T) {
	_, rdb := newRedis(t)
	coord := newCoordinator(t, rdb)
	errDB := errors.New("db down")
	svc, err := NewService(&fakeVoucherRepo{err: errDB}, coord, nil)
	require.NoError(t, err)

	err = svc.AddVoucher(context.Background(), &domain.Voucher{}, &domain.SeckillVoucher{Stock: 1})
	assert.ErrorIs(t, err, errDB)
}

func TestService_RestoreStock(t *testing.T) {
	_, rdb := newRedis(t)
	coord := newCoordinator(t, rdb)
	ctx := context.Background()
	require.NoError(t, coord.Preload(ctx, 1, 3))

	repo := &fakeVoucherRepo{active: []domain.SeckillVoucher{
		{VoucherID: 1, Stock: 50},
		{VoucherID: 2, Stock: 20},
	}}
	svc, err := NewService(repo, coord, nil)
	require.NoError(t, err)

	n, err := svc.RestoreStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s1, err := coord.Stock(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), s1, "existing stock must not be overwritten")
	s2, err := coord.Stock(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(20), s2)

	// 未设置时间的券窗口两端都不限
	window, err := rdb.HGetAll(ctx, WindowKey(2)).Result()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"begin": "0", "end": "0"}, window)
}
