package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/omeyang/xseckill/pkg/config/xconf"
	"github.com/omeyang/xseckill/pkg/distributed/xcron"
	"github.com/omeyang/xseckill/pkg/distributed/xdlock"
	"github.com/omeyang/xseckill/pkg/lifecycle/xrun"
	"github.com/omeyang/xseckill/pkg/observability/xlog"
	"github.com/omeyang/xseckill/pkg/observability/xmetrics"
)

// 定时任务名，同时是分布式锁键 lock:cron:{name}。
const (
	JobWarmShops     = "warm-hot-shops"
	JobRestoreStock  = "restore-stock"
	JobReportPending = "report-pending"
	JobReportMetrics = "report-metrics"
)

// ShutdownTimeout 退出时等待缓存重建任务完成的上限。
const ShutdownTimeout = 10 * time.Second

func (a *App) newScheduler(observer xmetrics.Observer) (*xcron.Scheduler, error) {
	mutex, err := xdlock.NewMutex(a.Redis)
	if err != nil {
		return nil, err
	}
	locker, err := xcron.NewMutexLocker(mutex)
	if err != nil {
		return nil, err
	}
	s := xcron.New(
		xcron.WithLocker(locker),
		xcron.WithLogger(a.Logger.With(xlog.Component("xcron"))),
		xcron.WithObserver(observer),
	)

	jobs := []struct {
		spec string
		name string
		fn   func(ctx context.Context) error
		opts []xcron.JobOption
	}{
		{a.Config.Cron.WarmShops, JobWarmShops, a.WarmShops, []xcron.JobOption{xcron.WithImmediate(), xcron.WithTimeout(time.Minute)}},
		{a.Config.Cron.RestoreStock, JobRestoreStock, a.RestoreStock, []xcron.JobOption{xcron.WithImmediate(), xcron.WithTimeout(time.Minute)}},
		{a.Config.Cron.ReportPending, JobReportPending, a.ReportPending, []xcron.JobOption{xcron.WithTimeout(10 * time.Second)}},
		{a.Config.Cron.ReportMetrics, JobReportMetrics, a.ReportMetrics, []xcron.JobOption{xcron.WithTimeout(10 * time.Second)}},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := s.AddFunc(j.spec, j.name, j.fn, j.opts...); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// WarmShops 预热热点店铺的逻辑过期缓存。
// 未配置 cache.hot_shops 时按评分取前 cache.hot_top 个。
func (a *App) WarmShops(ctx context.Context) error {
	ids := a.Config.Cache.HotShops
	if len(ids) == 0 && a.Config.Cache.HotTop > 0 {
		var err error
		if ids, err = a.shopRepo.TopByScore(ctx, a.Config.Cache.HotTop); err != nil {
			return fmt.Errorf("app: list hot shops: %w", err)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return a.Shops.Warm(ctx, ids...)
}

// RestoreStock 为数据库中未结束的秒杀券补齐 Redis 库存。
func (a *App) RestoreStock(ctx context.Context) error {
	n, err := a.Vouchers.RestoreStock(ctx)
	if n > 0 {
		a.Logger.Warn(ctx, "redis seckill stock was missing and has been restored", xlog.Count(int64(n)))
	}
	return err
}

// ReportPending 记录订单消息积压和消费统计。
func (a *App) ReportPending(ctx context.Context) error {
	pending, err := a.Consumer.Pending(ctx)
	if err != nil {
		return err
	}
	cs := a.Consumer.Stats()
	st := a.Orders.Stats()
	a.Logger.Info(ctx, "order stream report",
		slog.String("stream", a.Consumer.Stream()),
		slog.Int64("pending", pending),
		slog.Int64("acked", cs.Acked),
		slog.Int64("failed", cs.Failed),
		slog.Int64("recoveries", cs.Recoveries),
		slog.Int64("created", st.Created),
		slog.Int64("duplicates", st.Duplicates),
		slog.Int64("sold_out", st.SoldOut),
		slog.Int64("dead_lettered", st.DeadLettered),
	)
	return nil
}

// Serve 运行订单消费者和定时任务，阻塞到 ctx 结束或收到退出信号。
// conf 可重载时监听配置文件，运行时只热更新日志级别。
func (a *App) Serve(ctx context.Context, conf *xconf.Config) error {
	services := []xrun.Service{
		xrun.Named("order-consumer", a.Consumer.Run),
		xrun.Named("cron", a.Cron.Run),
		xrun.Named("cache-shutdown", xrun.OnShutdown(ShutdownTimeout, a.Cache.Close)),
	}
	if conf != nil && conf.Path() != "" {
		w, err := xconf.Watch(conf, a.onConfigChange)
		if err != nil {
			return err
		}
		services = append(services, xrun.Named("config-watch", w.Run))
	}

	a.Logger.Info(ctx, "seckilld started",
		slog.String("stream", a.Consumer.Stream()),
		slog.String("group", a.Consumer.Group()),
		slog.Int("cron_jobs", len(a.Cron.Entries())))
	return xrun.Run(ctx, []xrun.Option{xrun.WithLogger(a.Logger), xrun.WithName(ServiceName)}, services...)
}

func (a *App) onConfigChange(conf *xconf.Config, err error) {
	ctx := context.Background()
	if err != nil {
		a.Logger.Warn(ctx, "config reload failed, keeping previous config", xlog.Err(err))
		return
	}
	var lc LogConfig
	if err := conf.Unmarshal("log", &lc); err != nil {
		a.Logger.Warn(ctx, "config reload failed, keeping previous config", xlog.Err(err))
		return
	}
	level, err := xlog.ParseLevel(lc.Level)
	if err != nil {
		a.Logger.Warn(ctx, "invalid log level in reloaded config", xlog.Err(err))
		return
	}
	if level != a.Logger.GetLevel() {
		a.Logger.Info(ctx, "log level changed", slog.String("from", a.Logger.GetLevel().String()), slog.String("to", level.String()))
		a.Logger.SetLevel(level)
	}
}
