package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omeyang/xseckill/internal/domain"
)

type OrderRepository struct {
	conn
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{conn{pool: pool}}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithTx(ctx, r.pool, fn)
}

func (r *OrderRepository) CountByUserVoucher(ctx context.Context, userID, voucherID int64) (int64, error) {
	const query = `SELECT COUNT(*) FROM voucher_orders WHERE user_id = $1 AND voucher_id = $2`

	var n int64
	if err := r.queryRow(ctx, query, userID, voucherID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// Insert 插入订单。违反 (user_id, voucher_id) 或主键唯一约束时返回 domain.ErrDuplicateOrder。
func (r *OrderRepository) Insert(ctx context.Context, o domain.Order) error {
	const stmt = `
INSERT INTO voucher_orders (id, user_id, voucher_id, status)
VALUES ($1, $2, $3, $4)`

	status := o.Status
	if status == 0 {
		status = domain.OrderUnpaid
	}
	if _, err := r.exec(ctx, stmt, o.ID, o.UserID, o.VoucherID, status); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateOrder
		}
		return fmt.Errorf("insert order %d: %w", o.ID, err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (domain.Order, error) {
	const query = `SELECT id, user_id, voucher_id, status, create_time FROM voucher_orders WHERE id = $1`

	var o domain.Order
	err := r.queryRow(ctx, query, id).Scan(&o.ID, &o.UserID, &o.VoucherID, &o.Status, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order %d: %w", id, err)
	}
	return o, nil
}
