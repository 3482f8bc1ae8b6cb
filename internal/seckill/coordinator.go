package seckill

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xseckill/internal/domain"
	"github.com/omeyang/xseckill/pkg/observability/xlog"
	"github.com/omeyang/xseckill/pkg/observability/xmetrics"
	"github.com/omeyang/xseckill/pkg/resilience/xbreaker"
	"github.com/omeyang/xseckill/pkg/resilience/xlimit"
	"github.com/omeyang/xseckill/pkg/util/xid"
)

// Redis key 前缀与 ID 业务 key。
const (
	StockKeyPrefix  = "seckill:stock:"
	OrderKeyPrefix  = "seckill:order:"
	WindowKeyPrefix = "seckill:window:"
	OrderIDBizKey   = "order"
)

//go:embed seckill.lua
var seckillSource string

var seckillScript = redis.NewScript(seckillSource)

// Code 下单脚本的返回码。
type Code int64

const (
	CodeAccepted       Code = 0
	CodeStockExhausted Code = 1
	CodeDuplicateOrder Code = 2
)

// Err 把返回码转换为领域错误，CodeAccepted 返回 nil。
func (c Code) Err() error {
	switch c {
	case CodeAccepted:
		return nil
	case CodeStockExhausted:
		return domain.ErrStockExhausted
	case CodeDuplicateOrder:
		return domain.ErrDuplicateOrder
	default:
		return fmt.Errorf("seckill: unexpected script result %d", int64(c))
	}
}

// ErrNilDependency 缺少必需的依赖。
var ErrNilDependency = errors.New("seckill: nil dependency")

// StockKey 返回优惠券的库存 key。
func StockKey(voucherID int64) string { return StockKeyPrefix + strconv.FormatInt(voucherID, 10) }

// OrderKey 返回优惠券的已下单用户集合 key。
func OrderKey(voucherID int64) string { return OrderKeyPrefix + strconv.FormatInt(voucherID, 10) }

// WindowKey 返回优惠券秒杀时间窗口的 hash key，字段 begin、end 为 Unix 秒，0 表示不限。
func WindowKey(voucherID int64) string { return WindowKeyPrefix + strconv.FormatInt(voucherID, 10) }

// Coordinator 秒杀协调器，可被多个 goroutine 并发使用。
type Coordinator struct {
	rdb     redis.UniversalClient
	ids     *xid.Generator
	breaker *xbreaker.Breaker
	opts    *options
}

// NewCoordinator 创建秒杀协调器。
func NewCoordinator(rdb redis.UniversalClient, ids *xid.Generator, opts ...Option) (*Coordinator, error) {
	if rdb == nil || ids == nil {
		return nil, ErrNilDependency
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	log := o.logger
	breaker := xbreaker.NewBreaker("seckill",
		xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(o.breakerThreshold)),
		xbreaker.WithTimeout(o.breakerTimeout),
		// 库存不足和重复下单是正常的业务拒绝，不代表 Redis 故障
		xbreaker.WithSuccessFunc(xbreaker.IgnoreErrors(domain.ErrStockExhausted, domain.ErrDuplicateOrder)),
		xbreaker.WithOnStateChange(func(name string, from, to xbreaker.State) {
			log.Warn(context.Background(), "seckill breaker state changed",
				xlog.Component(name), slog.String("from", from.String()), slog.String("to", to.String()))
		}),
	)
	return &Coordinator{rdb: rdb, ids: ids, breaker: breaker, opts: o}, nil
}

// Seckill 为 userID 抢购 voucherID，成功时返回已分配的订单 ID。
//
// 返回 nil 错误只代表资格已占用、订单消息已投递，订单落库是异步的。
// 业务拒绝返回 domain.ErrStockExhausted、domain.ErrDuplicateOrder，
// 不在秒杀窗口内返回 domain.ErrSeckillNotStarted 或 domain.ErrSeckillEnded；
// 触发限流返回 *xlimit.LimitError；熔断打开返回 xbreaker.BreakerError。
func (c *Coordinator) Seckill(ctx context.Context, userID, voucherID int64) (orderID int64, err error) {
	if userID <= 0 || voucherID <= 0 {
		return 0, domain.ErrInvalidID
	}

	ctx, span := xmetrics.Start(ctx, c.opts.observer, xmetrics.SpanOptions{Component: "seckill", Operation: "place"})
	defer func() { span.End(outcome(err)) }()

	if err := c.checkWindow(ctx, voucherID); err != nil {
		return 0, err
	}

	if c.opts.limiter != nil {
		res, err := c.opts.limiter.Allow(ctx, strconv.FormatInt(userID, 10))
		if err != nil {
			return 0, fmt.Errorf("seckill: rate limit: %w", err)
		}
		if !res.Allowed {
			return 0, res.Err()
		}
	}

	// 订单 ID 在脚本之前分配，脚本拒绝时会浪费一个序号
	orderID, err = c.ids.Next(ctx, OrderIDBizKey)
	if err != nil {
		return 0, fmt.Errorf("seckill: allocate order id: %w", err)
	}

	_, err = xbreaker.Execute(ctx, c.breaker, func() (Code, error) {
		code, err := c.reserve(ctx, userID, orderID, voucherID)
		if err != nil {
			return code, err
		}
		return code, code.Err()
	})
	if err != nil {
		if !domain.IsBusinessError(err) {
			c.opts.logger.Error(ctx, "seckill script failed",
				xlog.UserID(userID), xlog.VoucherID(voucherID), xlog.Err(err))
		}
		return 0, err
	}

	c.opts.logger.Debug(ctx, "seckill accepted",
		xlog.UserID(userID), xlog.VoucherID(voucherID), xlog.OrderID(orderID))
	return orderID, nil
}

// reserve 执行下单脚本。
func (c *Coordinator) reserve(ctx context.Context, userID, orderID, voucherID int64) (Code, error) {
	keys := []string{StockKey(voucherID), OrderKey(voucherID), c.opts.stream}
	n, err := seckillScript.Run(ctx, c.rdb, keys, userID, orderID, voucherID).Int64()
	if err != nil {
		return 0, fmt.Errorf("seckill: run script: %w", err)
	}
	return Code(n), nil
}

// SetWindow 写入秒杀时间窗口，零值时间表示该端不限。
func (c *Coordinator) SetWindow(ctx context.Context, voucherID int64, begin, end time.Time) error {
	if voucherID <= 0 {
		return domain.ErrInvalidID
	}
	if err := c.rdb.HSet(ctx, WindowKey(voucherID), "begin", unixOrZero(begin), "end", unixOrZero(end)).Err(); err != nil {
		return fmt.Errorf("seckill: set window %d: %w", voucherID, err)
	}
	return nil
}

// checkWindow 未写入窗口的券视为不限时。
func (c *Coordinator) checkWindow(ctx context.Context, voucherID int64) error {
	vals, err := c.rdb.HMGet(ctx, WindowKey(voucherID), "begin", "end").Result()
	if err != nil {
		return fmt.Errorf("seckill: get window %d: %w", voucherID, err)
	}
	var sk domain.SeckillVoucher
	if sk.BeginTime, err = parseUnix(vals[0]); err != nil {
		return fmt.Errorf("seckill: window %d: %w", voucherID, err)
	}
	if sk.EndTime, err = parseUnix(vals[1]); err != nil {
		return fmt.Errorf("seckill: window %d: %w", voucherID, err)
	}
	return sk.CheckWindow(c.opts.now())
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func parseUnix(v any) (time.Time, error) {
	s, _ := v.(string)
	if s == "" {
		return time.Time{}, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n == 0 {
		return time.Time{}, err
	}
	return time.Unix(n, 0), nil
}

// Preload 覆盖写入 Redis 库存，用于新建秒杀券。
// 已在售的券不应再调用，否则会覆盖脚本已扣减的库存。
func (c *Coordinator) Preload(ctx context.Context, voucherID, stock int64) error {
	if voucherID <= 0 {
		return domain.ErrInvalidID
	}
	if stock < 0 {
		return fmt.Errorf("seckill: negative stock %d", stock)
	}
	if err := c.rdb.Set(ctx, StockKey(voucherID), stock, 0).Err(); err != nil {
		return fmt.Errorf("seckill: preload %d: %w", voucherID, err)
	}
	return nil
}

// EnsureStock 仅在库存 key 不存在时写入，返回是否写入。
// 用于进程启动时从数据库恢复被清空的 Redis 库存，不会覆盖正在扣减的值。
func (c *Coordinator) EnsureStock(ctx context.Context, voucherID, stock int64) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, StockKey(voucherID), stock, 0).Result()
	if err != nil {
		return false, fmt.Errorf("seckill: ensure stock %d: %w", voucherID, err)
	}
	return ok, nil
}

// Stock 返回 Redis 中的剩余库存，未初始化时返回 domain.ErrVoucherNotFound。
func (c *Coordinator) Stock(ctx context.Context, voucherID int64) (int64, error) {
	n, err := c.rdb.Get(ctx, StockKey(voucherID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, domain.ErrVoucherNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("seckill: stock %d: %w", voucherID, err)
	}
	return n, nil
}

// Breaker 返回下单脚本的熔断器。
func (c *Coordinator) Breaker() *xbreaker.Breaker { return c.breaker }

func outcome(err error) xmetrics.Result {
	var limitErr *xlimit.LimitError
	switch {
	case err == nil:
		return xmetrics.Result{Attrs: []xmetrics.Attr{xmetrics.Outcome("accepted")}}
	case errors.Is(err, domain.ErrStockExhausted):
		return xmetrics.Result{Status: xmetrics.StatusOK, Attrs: []xmetrics.Attr{xmetrics.Outcome("sold_out")}}
	case errors.Is(err, domain.ErrDuplicateOrder):
		return xmetrics.Result{Status: xmetrics.StatusOK, Attrs: []xmetrics.Attr{xmetrics.Outcome("duplicate")}}
	case errors.Is(err, domain.ErrSeckillNotStarted):
		return xmetrics.Result{Status: xmetrics.StatusOK, Attrs: []xmetrics.Attr{xmetrics.Outcome("not_started")}}
	case errors.Is(err, domain.ErrSeckillEnded):
		return xmetrics.Result{Status: xmetrics.StatusOK, Attrs: []xmetrics.Attr{xmetrics.Outcome("ended")}}
	case errors.As(err, &limitErr):
		return xmetrics.Result{Status: xmetrics.StatusOK, Attrs: []xmetrics.Attr{xmetrics.Outcome("rate_limited")}}
	case xbreaker.IsOpen(err):
		return xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{xmetrics.Outcome("breaker_open")}}
	default:
		return xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{xmetrics.Outcome("error")}}
	}
}
