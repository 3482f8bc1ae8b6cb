// Package order 把秒杀订单消息落库。
//
// Handle 是 xstream.Handler：解析消息、获取用户锁后调用 Commit。
// Commit 在一个事务内完成"查重 → 条件扣减库存 → 插入订单"，
// 对重复投递幂等，可以直接调用，不依赖锁。
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xseckill/internal/domain"
	"github.com/omeyang/xseckill/pkg/context/xctx"
	"github.com/omeyang/xseckill/pkg/distributed/xdlock"
	"github.com/omeyang/xseckill/pkg/mq/xstream"
	"github.com/omeyang/xseckill/pkg/observability/xlog"
	"github.com/omeyang/xseckill/pkg/observability/xmetrics"
	"github.com/omeyang/xseckill/pkg/resilience/xretry"
)

// OrderRepository 订单存储，WithTx 内的调用共享同一事务。
type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CountByUserVoucher(ctx context.Context, userID, voucherID int64) (int64, error)
	Insert(ctx context.Context, o domain.Order) error
}

// StockRepository 数据库库存。
type StockRepository interface {
	DecrementStock(ctx context.Context, voucherID int64) (bool, error)
}

// Outcome 一次落库的结果。
type Outcome int

const (
	// Created 订单已创建。
	Created Outcome = iota
	// Duplicate 该用户已有此券的订单，未做任何修改。
	Duplicate
	// SoldOut 数据库库存已为 0，未创建订单。
	SoldOut
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Duplicate:
		return "duplicate"
	case SoldOut:
		return "sold_out"
	default:
		return "Outcome(" + strconv.Itoa(int(o)) + ")"
	}
}

// 默认配置。
const (
	DefaultLockPrefix       = "order:"
	DefaultLockTTL          = 30 * time.Second
	DefaultCommitTries      = 3
	DefaultDeadLetterStream = "stream.orders.dead"
)

// Stats 落库统计。
type Stats struct {
	Created      int64
	Duplicates   int64
	SoldOut      int64
	DeadLettered int64
}

// Service 订单落库服务。
type Service struct {
	orders  OrderRepository
	stock   StockRepository
	locks   xdlock.Factory
	retryer *xretry.Retryer
	opts    *options

	created      atomic.Int64
	duplicates   atomic.Int64
	soldOut      atomic.Int64
	deadLettered atomic.Int64
}

// NewService 创建订单落库服务。
func NewService(orders OrderRepository, stock StockRepository, locks xdlock.Factory, opts ...Option) (*Service, error) {
	if orders == nil || stock == nil || locks == nil {
		return nil, errors.New("order: repositories and lock factory are required")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	log := o.logger
	retryer := xretry.NewRetryer(
		xretry.WithRetryPolicy(xretry.NewFixedRetry(o.commitTries)),
		xretry.WithBackoffPolicy(xretry.NewExponentialBackoff(
			xretry.WithInitialDelay(50*time.Millisecond),
			xretry.WithMaxDelay(time.Second),
		)),
		xretry.WithOnRetry(func(attempt int, err error) {
			log.Warn(context.Background(), "retrying order commit", xlog.Count(int64(attempt)), xlog.Err(err))
		}),
	)
	return &Service{orders: orders, stock: stock, locks: locks, retryer: retryer, opts: o}, nil
}

// Stats 返回落库统计。
func (s *Service) Stats() Stats {
	return Stats{
		Created:      s.created.Load(),
		Duplicates:   s.duplicates.Load(),
		SoldOut:      s.soldOut.Load(),
		DeadLettered: s.deadLettered.Load(),
	}
}

// Handle 实现 xstream.Handler。
//
// 返回错误时消息留在 pending 列表，由消费循环重放：
//   - 用户锁被占用返回 domain.ErrLockNotAcquired
//   - 数据库故障返回包装后的原始错误
//
// 无法解析的消息转入死信 stream 后确认，不会阻塞后续消息。
func (s *Service) Handle(ctx context.Context, msg xstream.Message) error {
	ev, err := Decode(msg)
	if err != nil {
		return s.deadLetter(ctx, msg, err)
	}
	// Decode 已保证 UserID 为正
	ctx, _ = xctx.WithUserID(ctx, ev.UserID)
	log := s.opts.logger.With(xlog.MessageID(msg.ID), xlog.OrderID(ev.OrderID))

	handle, err := s.locks.TryLock(ctx, s.opts.lockPrefix+strconv.FormatInt(ev.UserID, 10),
		xdlock.WithExpiry(s.opts.lockTTL))
	if err != nil {
		return fmt.Errorf("order: lock user %d: %w", ev.UserID, err)
	}
	if handle == nil {
		log.Warn(ctx, "user lock held elsewhere, will retry")
		return domain.ErrLockNotAcquired
	}
	defer func() {
		if err := handle.Unlock(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, xdlock.ErrNotLocked) {
			log.Warn(ctx, "release user lock failed", xlog.Err(err))
		}
	}()

	out, err := s.Commit(ctx, ev)
	if err != nil {
		return err
	}
	switch out {
	case Created:
		log.Debug(ctx, "order created", xlog.VoucherID(ev.VoucherID))
	case SoldOut:
		// Redis 库存与数据库不一致，数据库兜底拒绝
		log.Error(ctx, "database stock exhausted, order dropped", xlog.VoucherID(ev.VoucherID))
	default:
		log.Info(ctx, "duplicate order ignored", xlog.VoucherID(ev.VoucherID), slog.String("outcome", out.String()))
	}
	return nil
}

// Commit 在一个事务内落库，瞬时错误按指数退避重试。
// Duplicate 和 SoldOut 不是错误，消息应被确认。
func (s *Service) Commit(ctx context.Context, ev Event) (out Outcome, err error) {
	ctx, span := xmetrics.Start(ctx, s.opts.observer, xmetrics.SpanOptions{Component: "order", Operation: "commit"})
	defer func() {
		res := xmetrics.Result{Err: err}
		if err == nil {
			res.Attrs = []xmetrics.Attr{xmetrics.Outcome(out.String())}
		}
		span.End(res)
	}()

	err = s.retryer.Do(ctx, func(ctx context.Context) error {
		var txErr error
		out, txErr = s.commitOnce(ctx, ev)
		return txErr
	})
	if err != nil {
		return out, fmt.Errorf("order: commit %d: %w", ev.OrderID, err)
	}

	switch out {
	case Created:
		s.created.Add(1)
	case Duplicate:
		s.duplicates.Add(1)
	case SoldOut:
		s.soldOut.Add(1)
	}
	return out, nil
}

func (s *Service) commitOnce(ctx context.Context, ev Event) (Outcome, error) {
	out := Created
	err := s.orders.WithTx(ctx, func(ctx context.Context) error {
		n, err := s.orders.CountByUserVoucher(ctx, ev.UserID, ev.VoucherID)
		if err != nil {
			return err
		}
		if n > 0 {
			out = Duplicate
			return nil
		}

		ok, err := s.stock.DecrementStock(ctx, ev.VoucherID)
		if err != nil {
			return err
		}
		if !ok {
			out = SoldOut
			return nil
		}

		// 唯一约束冲突时返回错误回滚已扣减的库存
		return s.orders.Insert(ctx, domain.Order{
			ID:        ev.OrderID,
			UserID:    ev.UserID,
			VoucherID: ev.VoucherID,
			Status:    domain.OrderUnpaid,
		})
	})
	if errors.Is(err, domain.ErrDuplicateOrder) {
		return Duplicate, nil
	}
	return out, err
}

// deadLetter 把无法解析的消息原样写入死信 stream。
// 写入失败时返回错误，消息保留在 pending 列表。
func (s *Service) deadLetter(ctx context.Context, msg xstream.Message, cause error) error {
	if s.opts.deadLetter == nil {
		return cause
	}
	values := make(map[string]any, len(msg.Values)+2)
	for k, v := range msg.Values {
		values[k] = v
	}
	values["_source_id"] = msg.ID
	values["_error"] = cause.Error()

	if err := s.opts.deadLetter.XAdd(ctx, &redis.XAddArgs{Stream: s.opts.deadLetterStream, Values: values}).Err(); err != nil {
		return fmt.Errorf("order: dead letter %s: %w", msg.ID, errors.Join(cause, err))
	}
	s.deadLettered.Add(1)
	s.opts.logger.Error(ctx, "malformed order event moved to dead letter",
		xlog.MessageID(msg.ID), slog.String("stream", s.opts.deadLetterStream), xlog.Err(cause))
	return nil
}
