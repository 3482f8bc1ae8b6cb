// Package xretry 提供重试策略和退避策略，底层使用 [avast/retry-go/v5]。
//
// # 组成
//
//   - RetryPolicy：是否继续重试（FixedRetryPolicy / AlwaysRetryPolicy）
//   - BackoffPolicy：重试间隔（FixedBackoff / ExponentialBackoff / NoBackoff）
//   - Retryer：组合二者执行 fn
//
// # 使用方式
//
//	retryer := xretry.NewRetryer(
//	    xretry.WithRetryPolicy(xretry.NewFixedRetry(5)),
//	    xretry.WithBackoffPolicy(xretry.NewExponentialBackoff()),
//	)
//	err := retryer.Do(ctx, func(ctx context.Context) error {
//	    return pool.Ping(ctx)
//	})
//
// # 错误分类
//
// 业务上确定的失败（库存不足、重复下单、数据格式错误）应通过 Permanent
// 包装后返回，Retryer 会立即停止。其他错误默认视为可重试。
//
// BackoffPolicy 也可以脱离 Retryer 单独使用，配合 Sleep 在循环中等待。
//
// [avast/retry-go/v5]: https://github.com/avast/retry-go
package xretry
