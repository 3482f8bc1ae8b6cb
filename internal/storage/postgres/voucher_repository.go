package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omeyang/xseckill/internal/domain"
)

type VoucherRepository struct {
	conn
}

func NewVoucherRepository(pool *pgxpool.Pool) *VoucherRepository {
	return &VoucherRepository{conn{pool: pool}}
}

// WithTx 见包级 WithTx。
func (r *VoucherRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithTx(ctx, r.pool, fn)
}

// CreateSeckill 在一个事务中插入优惠券和秒杀库存，回填 v.ID 和 sk.VoucherID。
func (r *VoucherRepository) CreateSeckill(ctx context.Context, v *domain.Voucher, sk *domain.SeckillVoucher) error {
	v.Type = domain.VoucherSeckill
	return r.WithTx(ctx, func(ctx context.Context) error {
		const insertVoucher = `
INSERT INTO vouchers (shop_id, title, sub_title, rules, pay_value, actual_value, type)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, create_time, update_time`

		err := r.queryRow(ctx, insertVoucher, v.ShopID, v.Title, v.SubTitle, v.Rules,
			v.PayValue, v.ActualValue, v.Type).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create voucher: %w", err)
		}

		sk.VoucherID = v.ID
		const insertSeckill = `
INSERT INTO seckill_vouchers (voucher_id, stock, begin_time, end_time)
VALUES ($1, $2, $3, $4)`
		if _, err := r.exec(ctx, insertSeckill, sk.VoucherID, sk.Stock, sk.BeginTime, sk.EndTime); err != nil {
			return fmt.Errorf("create seckill voucher: %w", err)
		}
		return nil
	})
}

// GetSeckill 查询秒杀券库存和时间窗口。
func (r *VoucherRepository) GetSeckill(ctx context.Context, voucherID int64) (domain.SeckillVoucher, error) {
	const query = `SELECT voucher_id, stock, begin_time, end_time FROM seckill_vouchers WHERE voucher_id = $1`

	var sk domain.SeckillVoucher
	err := r.queryRow(ctx, query, voucherID).Scan(&sk.VoucherID, &sk.Stock, &sk.BeginTime, &sk.EndTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SeckillVoucher{}, domain.ErrVoucherNotFound
		}
		return domain.SeckillVoucher{}, fmt.Errorf("get seckill voucher %d: %w", voucherID, err)
	}
	return sk, nil
}

// ListActiveSeckill 返回在 now 时刻尚未结束的秒杀券，用于启动时预热 Redis 库存。
func (r *VoucherRepository) ListActiveSeckill(ctx context.Context, now time.Time) ([]domain.SeckillVoucher, error) {
	const query = `
SELECT voucher_id, stock, begin_time, end_time
FROM seckill_vouchers
WHERE end_time > $1
ORDER BY voucher_id`

	rows, err := r.query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list seckill vouchers: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SeckillVoucher, error) {
		var sk domain.SeckillVoucher
		err := row.Scan(&sk.VoucherID, &sk.Stock, &sk.BeginTime, &sk.EndTime)
		return sk, err
	})
	if err != nil {
		return nil, fmt.Errorf("list seckill vouchers: %w", err)
	}
	return list, nil
}

// DecrementStock 条件扣减库存：stock > 0 时减一。
// 返回 false 表示库存已为 0，这是 Redis 预扣之外的第二道防超卖。
func (r *VoucherRepository) DecrementStock(ctx context.Context, voucherID int64) (bool, error) {
	const stmt = `UPDATE seckill_vouchers SET stock = stock - 1, update_time = NOW() WHERE voucher_id = $1 AND stock > 0`

	tag, err := r.exec(ctx, stmt, voucherID)
	if err != nil {
		return false, fmt.Errorf("decrement stock %d: %w", voucherID, err)
	}
	return tag.RowsAffected() == 1, nil
}
