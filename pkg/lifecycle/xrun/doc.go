// Package xrun 提供基于 [errgroup] + context 的进程生命周期管理。
//
// 任一服务返回错误或收到终止信号时，共享的 context 被取消，
// 所有服务应监听 ctx.Done() 并优雅退出。
//
// # 快速开始
//
//	err := xrun.Run(ctx, []xrun.Option{xrun.WithName("seckilld"), xrun.WithLogger(logger)},
//	    xrun.Named("order-consumer", consumer.Run),
//	    xrun.Named("cron", scheduler.Run),
//	    xrun.Named("cache-pool", xrun.OnShutdown(10*time.Second, cache.Close)),
//	)
//	if err != nil && !errors.Is(err, xrun.ErrSignal) {
//	    return err
//	}
//
// # 退出原因
//
// Wait 优先返回 Cancel(cause) 设置的原因；信号退出返回 *SignalError，
// 可用 errors.Is(err, ErrSignal) 判断。普通取消返回 nil。
//
// # 服务函数
//
//   - OnShutdown：取消后执行带超时的清理，周期任务交给 xcron
//
// [errgroup]: https://pkg.go.dev/golang.org/x/sync/errgroup
package xrun
