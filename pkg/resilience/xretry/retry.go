package xretry

import (
	"context"
	"time"
)

// RetryPolicy 判断一次失败后是否继续重试。
//
// 通过 Retryer 使用时：
//   - MaxAttempts() 设置 retry-go 的 Attempts 上限
//   - ShouldRetry() 在每次失败后被调用
//   - Unrecoverable / PermanentError 会在 ShouldRetry 之前被短路拦截
type RetryPolicy interface {
	// MaxAttempts 返回最大尝试次数（包含首次尝试），0 表示无限重试
	MaxAttempts() int

	// ShouldRetry 判断是否应该重试，attempt 从 1 开始
	ShouldRetry(ctx context.Context, attempt int, err error) bool
}

// BackoffPolicy 计算重试间隔。
//
// 除 Retryer 外，订单流消费者的恢复循环也使用它计算失败后的等待时间。
type BackoffPolicy interface {
	// NextDelay 返回第 attempt 次失败后的等待时间，attempt 从 1 开始
	NextDelay(attempt int) time.Duration
}

// Executor 重试执行器接口。
//
// 设计决策: NewRetryer 返回 *Retryer，泛型函数 DoWithResult 需要访问其内部方法。
// 调用方如需替换实现，在自身代码中以 Executor 作为参数类型。
type Executor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Sleep 等待 d 或 ctx 结束，ctx 结束时返回 ctx.Err()。
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
