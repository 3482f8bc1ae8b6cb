// Package xcron 提供分布式定时任务调度。
//
// 基于 [robfig/cron/v3]，每次触发前按任务名获取分布式锁，
// 多副本部署时同一任务同一时刻只在一个实例上执行。
//
// # 快速开始
//
//	mutex, _ := xdlock.NewMutex(rdb)
//	locker, _ := xcron.NewMutexLocker(mutex)
//	s := xcron.New(xcron.WithLocker(locker), xcron.WithLogger(logger))
//	_, err := s.AddFunc("@every 1m", "warm-hot-shops", func(ctx context.Context) error {
//	    return shops.Warm(ctx, hotIDs)
//	}, xcron.WithImmediate(), xcron.WithTimeout(30*time.Second))
//
//	// 阻塞到 ctx 结束，适合交给 xrun 管理
//	err = s.Run(ctx)
//
// # 锁语义
//
// 锁键为 "lock:cron:{name}"。锁被其他实例持有或锁服务异常时本次触发跳过，
// 计入 Stats.Skips。锁 TTL 默认 5 分钟，应大于任务最长执行时间。
//
// [robfig/cron/v3]: https://github.com/robfig/cron
package xcron
