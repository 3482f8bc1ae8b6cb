package seckill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/omeyang/xseckill/internal/domain"
	"github.com/omeyang/xseckill/pkg/observability/xlog"
)

// VoucherRepository 秒杀券的关系型存储。
type VoucherRepository interface {
	CreateSeckill(ctx context.Context, v *domain.Voucher, sk *domain.SeckillVoucher) error
	ListActiveSeckill(ctx context.Context, now time.Time) ([]domain.SeckillVoucher, error)
}

// Service 秒杀券管理：建券时同步初始化 Redis 库存。
type Service struct {
	repo   VoucherRepository
	coord  *Coordinator
	logger xlog.Logger
	now    func() time.Time
}

// NewService 创建秒杀券服务。
func NewService(repo VoucherRepository, coord *Coordinator, logger xlog.Logger) (*Service, error) {
	if repo == nil || coord == nil {
		return nil, ErrNilDependency
	}
	if logger == nil {
		logger = xlog.Discard()
	}
	return &Service{repo: repo, coord: coord, logger: logger, now: time.Now}, nil
}

// AddVoucher 创建秒杀券并写入 Redis 库存。
//
// 数据库写入成功而 Redis 写入失败时返回错误，券已存在但不可抢，
// 下次启动时 RestoreStock 会补齐库存。
func (s *Service) AddVoucher(ctx context.Context, v *domain.Voucher, sk *domain.SeckillVoucher) error {
	switch {
	case v == nil || sk == nil:
		return errors.New("seckill: voucher is required")
	case sk.Stock < 0:
		return fmt.Errorf("seckill: negative stock %d", sk.Stock)
	case !sk.EndTime.IsZero() && !sk.EndTime.After(sk.BeginTime):
		return fmt.Errorf("seckill: end time %s is not after begin time %s", sk.EndTime, sk.BeginTime)
	}

	if err := s.repo.CreateSeckill(ctx, v, sk); err != nil {
		return fmt.Errorf("seckill: add voucher: %w", err)
	}
	if err := s.coord.Preload(ctx, v.ID, sk.Stock); err != nil {
		return err
	}
	if err := s.coord.SetWindow(ctx, v.ID, sk.BeginTime, sk.EndTime); err != nil {
		return err
	}
	s.logger.Info(ctx, "seckill voucher added", xlog.VoucherID(v.ID), xlog.Count(sk.Stock))
	return nil
}

// RestoreStock 为所有未结束的秒杀券补齐缺失的 Redis 库存并同步时间窗口，
// 返回补齐库存的数量。已存在的库存 key 不会被覆盖。
func (s *Service) RestoreStock(ctx context.Context) (int, error) {
	list, err := s.repo.ListActiveSeckill(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("seckill: restore stock: %w", err)
	}
	restored := 0
	for _, sk := range list {
		ok, err := s.coord.EnsureStock(ctx, sk.VoucherID, sk.Stock)
		if err != nil {
			return restored, err
		}
		// 窗口只取自数据库，重复写入无副作用
		if err := s.coord.SetWindow(ctx, sk.VoucherID, sk.BeginTime, sk.EndTime); err != nil {
			return restored, err
		}
		if ok {
			restored++
			s.logger.Info(ctx, "seckill stock restored", xlog.VoucherID(sk.VoucherID), xlog.Count(sk.Stock))
		}
	}
	return restored, nil
}
