// Package app 组装 seckilld 的全部组件。
//
// New 建立 Redis/Postgres 连接并创建服务；Serve 运行订单消费者、
// 定时任务和配置热更新，直到收到退出信号。
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/omeyang/xseckill/internal/order"
	"github.com/omeyang/xseckill/internal/seckill"
	"github.com/omeyang/xseckill/internal/shop"
	"github.com/omeyang/xseckill/internal/storage/postgres"
	"github.com/omeyang/xseckill/pkg/distributed/xcron"
	"github.com/omeyang/xseckill/pkg/distributed/xdlock"
	"github.com/omeyang/xseckill/pkg/mq/xstream"
	"github.com/omeyang/xseckill/pkg/observability/xlog"
	"github.com/omeyang/xseckill/pkg/observability/xmetrics"
	"github.com/omeyang/xseckill/pkg/resilience/xlimit"
	"github.com/omeyang/xseckill/pkg/resilience/xretry"
	"github.com/omeyang/xseckill/pkg/storage/xcache"
	"github.com/omeyang/xseckill/pkg/util/xid"
)

// App 持有所有组件，Close 按创建的逆序释放。
type App struct {
	Config Config
	Logger xlog.LoggerWithLevel

	Redis redis.UniversalClient
	DB    *pgxpool.Pool

	Cache    *xcache.Client
	Shops    *shop.Service
	Seckill  *seckill.Coordinator
	Vouchers *seckill.Service
	Orders   *order.Service
	Consumer *xstream.Consumer
	Cron     *xcron.Scheduler

	shopRepo *postgres.ShopRepository
	locks    xdlock.Factory
	meters   *sdkmetric.MeterProvider
	reader   *sdkmetric.ManualReader
}

// New 连接 Redis 和 Postgres 并组装服务。
func New(ctx context.Context, cfg Config, logger xlog.LoggerWithLevel) (*App, error) {
	if logger == nil {
		logger = xlog.Discard()
	}
	rdb := NewRedis(cfg.Redis)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("app: ping redis %v: %w", cfg.Redis.Addrs, err)
	}
	pool, err := postgres.Open(ctx, cfg.Postgres, logger)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}

	a, err := assemble(cfg, logger, rdb, pool)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, err
	}
	return a, nil
}

// NewRedis 按地址数量选择单机或集群客户端。
func NewRedis(cfg RedisConfig) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Addrs,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// assemble 在已建立的连接上创建组件，不做网络调用。
func assemble(cfg Config, logger xlog.LoggerWithLevel, rdb redis.UniversalClient, pool *pgxpool.Pool) (_ *App, err error) {
	a := &App{Config: cfg, Logger: logger, Redis: rdb, DB: pool}
	defer func() {
		if err != nil {
			_ = a.closeComponents(context.Background())
		}
	}()

	a.reader = sdkmetric.NewManualReader()
	a.meters = sdkmetric.NewMeterProvider(sdkmetric.WithReader(a.reader))
	observer, err := xmetrics.NewOTelObserver(xmetrics.WithMeterProvider(a.meters))
	if err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	cacheOpts := []xcache.Option{
		xcache.WithJitterMax(cfg.Cache.JitterMax),
		xcache.WithNullTTL(cfg.Cache.NullTTL),
		xcache.WithRebuildPool(cfg.Cache.RebuildWorkers, cfg.Cache.RebuildQueue),
		xcache.WithLogger(logger.With(xlog.Component("xcache"))),
	}
	if cfg.Cache.LocalNullTTL > 0 {
		cacheOpts = append(cacheOpts, xcache.WithLocalNullCache(cfg.Cache.LocalNullTTL, xcache.DefaultLocalNullMaxCost))
	}
	if a.Cache, err = xcache.New(rdb, cacheOpts...); err != nil {
		return nil, err
	}

	a.shopRepo = postgres.NewShopRepository(pool)
	shopOpts := []shop.Option{
		shop.WithTTL(cfg.Cache.ShopTTL),
		shop.WithLogicalTTL(cfg.Cache.ShopLogicalTTL),
		shop.WithLogger(logger.With(xlog.Component("shop"))),
		shop.WithObserver(observer),
	}
	if cfg.Cache.HotColdLoad {
		shopOpts = append(shopOpts, shop.WithHotColdLoad())
	}
	if a.Shops, err = shop.NewService(a.Cache, a.shopRepo, shopOpts...); err != nil {
		return nil, err
	}

	ids, err := xid.NewGenerator(rdb)
	if err != nil {
		return nil, err
	}
	seckillOpts := []seckill.Option{
		seckill.WithStream(cfg.Stream.Name),
		seckill.WithBreaker(cfg.Seckill.BreakerThreshold, cfg.Seckill.BreakerTimeout),
		seckill.WithLogger(logger.With(xlog.Component("seckill"))),
		seckill.WithObserver(observer),
	}
	if cfg.Seckill.RateLimit > 0 {
		limiter, err := xlimit.New(rdb, xlimit.Rule{
			Name:   "seckill",
			Limit:  cfg.Seckill.RateLimit,
			Burst:  cfg.Seckill.RateBurst,
			Window: time.Second,
		}, xlimit.WithFallback(xlimit.FallbackLocal), xlimit.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		seckillOpts = append(seckillOpts, seckill.WithLimiter(limiter))
	}
	if a.Seckill, err = seckill.NewCoordinator(rdb, ids, seckillOpts...); err != nil {
		return nil, err
	}
	vouchers := postgres.NewVoucherRepository(pool)
	if a.Vouchers, err = seckill.NewService(vouchers, a.Seckill, logger.With(xlog.Component("voucher"))); err != nil {
		return nil, err
	}

	if a.locks, err = xdlock.NewRedisFactory(rdb); err != nil {
		return nil, err
	}
	orderOpts := []order.Option{
		order.WithLockTTL(cfg.Stream.LockTTL),
		order.WithCommitTries(cfg.Stream.CommitTries),
		order.WithLogger(logger.With(xlog.Component("order"))),
		order.WithObserver(observer),
	}
	if cfg.Stream.DeadLetter != "" {
		orderOpts = append(orderOpts, order.WithDeadLetter(rdb, cfg.Stream.DeadLetter))
	}
	if a.Orders, err = order.NewService(postgres.NewOrderRepository(pool), vouchers, a.locks, orderOpts...); err != nil {
		return nil, err
	}

	recovery := cfg.Stream.RecoveryDelay
	if recovery <= 0 {
		recovery = xstream.DefaultRecoveryDelay
	}
	if a.Consumer, err = xstream.New(rdb, a.Orders.Handle,
		xstream.WithStream(cfg.Stream.Name),
		xstream.WithGroup(cfg.Stream.Group),
		xstream.WithConsumerName(cfg.Stream.Consumer),
		xstream.WithBlock(cfg.Stream.Block),
		xstream.WithRecoveryBackoff(xretry.NewFixedBackoff(recovery)),
		xstream.WithLogger(logger),
	); err != nil {
		return nil, err
	}

	if a.Cron, err = a.newScheduler(observer); err != nil {
		return nil, err
	}
	return a, nil
}

// Close 释放所有组件和连接。
func (a *App) Close(ctx context.Context) error {
	err := a.closeComponents(ctx)
	if a.DB != nil {
		a.DB.Close()
	}
	if a.Redis != nil {
		err = errors.Join(err, a.Redis.Close())
	}
	return err
}

func (a *App) closeComponents(ctx context.Context) error {
	var errs []error
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close(ctx))
	}
	if a.locks != nil {
		errs = append(errs, a.locks.Close())
	}
	if a.meters != nil {
		errs = append(errs, a.meters.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
