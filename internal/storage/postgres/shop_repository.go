package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omeyang/xseckill/internal/domain"
)

type ShopRepository struct {
	conn
}

func NewShopRepository(pool *pgxpool.Pool) *ShopRepository {
	return &ShopRepository{conn{pool: pool}}
}

const shopColumns = `id, name, type_id, images, area, address, x, y, avg_price, sold, comments, score, open_hours, create_time, update_time`

func scanShop(row pgx.Row) (domain.Shop, error) {
	var s domain.Shop
	err := row.Scan(&s.ID, &s.Name, &s.TypeID, &s.Images, &s.Area, &s.Address, &s.X, &s.Y,
		&s.AvgPrice, &s.Sold, &s.Comments, &s.Score, &s.OpenHours, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// GetByID 查询店铺，不存在返回 domain.ErrShopNotFound。
func (r *ShopRepository) GetByID(ctx context.Context, id int64) (domain.Shop, error) {
	s, err := scanShop(r.queryRow(ctx, `SELECT `+shopColumns+` FROM shops WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Shop{}, domain.ErrShopNotFound
		}
		return domain.Shop{}, fmt.Errorf("get shop %d: %w", id, err)
	}
	return s, nil
}

// TopByScore 按评分和销量取前 limit 个店铺 ID，用于热点缓存预热。
func (r *ShopRepository) TopByScore(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.query(ctx, `SELECT id FROM shops ORDER BY score DESC, sold DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("top shops: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("top shops: %w", err)
	}
	return ids, nil
}

// Create 插入店铺并回填 ID 和时间戳。
func (r *ShopRepository) Create(ctx context.Context, s *domain.Shop) error {
	const stmt = `
INSERT INTO shops (name, type_id, images, area, address, x, y, avg_price, sold, comments, score, open_hours)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id, create_time, update_time`

	err := r.queryRow(ctx, stmt, s.Name, s.TypeID, s.Images, s.Area, s.Address, s.X, s.Y,
		s.AvgPrice, s.Sold, s.Comments, s.Score, s.OpenHours).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create shop: %w", err)
	}
	return nil
}

// Update 更新店铺的可编辑字段，不存在返回 domain.ErrShopNotFound。
func (r *ShopRepository) Update(ctx context.Context, s domain.Shop) error {
	const stmt = `
UPDATE shops SET name = $2, type_id = $3, images = $4, area = $5, address = $6, x = $7, y = $8,
	avg_price = $9, open_hours = $10, update_time = NOW()
WHERE id = $1`

	tag, err := r.exec(ctx, stmt, s.ID, s.Name, s.TypeID, s.Images, s.Area, s.Address, s.X, s.Y,
		s.AvgPrice, s.OpenHours)
	if err != nil {
		return fmt.Errorf("update shop %d: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrShopNotFound
	}
	return nil
}
