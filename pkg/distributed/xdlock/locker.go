package xdlock

import (
	"context"
	"errors"
)

// =============================================================================
// LockHandle - Factory 获取锁后返回的句柄
// =============================================================================

// LockHandle 表示一次成功的锁获取。
//
// 每次 TryLock/Lock 成功都会返回一个新的 handle，内部封装了唯一标识。
// 通过 handle 进行 Unlock 和 Extend 操作，确保不同获取之间不会互相干扰。
//
//	handle, err := factory.TryLock(ctx, "order:1001", xdlock.WithExpiry(30*time.Second))
//	if err != nil {
//	    return err // 锁服务异常
//	}
//	if handle == nil {
//	    return nil // 被其他实例持有
//	}
//	defer handle.Unlock(ctx)
type LockHandle interface {
	// Unlock 释放锁。
	// 返回 [ErrNotLocked] 表示锁已过期或被其他获取覆盖。
	Unlock(ctx context.Context) error

	// Extend 使用创建锁时配置的 Expiry 续期。
	//   - nil: 锁状态正常
	//   - [ErrNotLocked]: 所有权已丢失
	//   - [ErrExtendFailed]: 续期操作失败（锁可能仍在，可重试）
	Extend(ctx context.Context) error

	// Key 返回带前缀的锁 key，用于日志记录。
	Key() string
}

// Factory 定义锁工厂接口。
type Factory interface {
	// TryLock 非阻塞式获取锁。
	// 成功时返回 LockHandle，锁被占用时返回 (nil, nil)。
	TryLock(ctx context.Context, key string, opts ...MutexOption) (LockHandle, error)

	// Lock 阻塞式获取锁。
	// 按 WithTries/WithRetryDelay 重试，直到获取成功、重试耗尽（ErrLockFailed）
	// 或 context 取消/超时。
	Lock(ctx context.Context, key string, opts ...MutexOption) (LockHandle, error)

	// Close 关闭工厂，不会关闭传入的 Redis 客户端。
	Close() error
}

// TryDo 非阻塞地获取 key 对应的锁并执行 fn，fn 返回后释放锁。
//
// 锁被占用时不执行 fn，返回 [ErrLockHeld]。
// fn 成功但释放失败时返回释放错误；锁已过期（[ErrNotLocked]）不视为错误，
// 因为临界区已经执行完毕。
func TryDo(ctx context.Context, f Factory, key string, fn func(ctx context.Context) error, opts ...MutexOption) error {
	handle, err := f.TryLock(ctx, key, opts...)
	if err != nil {
		return err
	}
	if handle == nil {
		return ErrLockHeld
	}

	fnErr := fn(ctx)
	unlockErr := handle.Unlock(context.WithoutCancel(ctx))
	if errors.Is(unlockErr, ErrNotLocked) {
		unlockErr = nil
	}
	return errors.Join(fnErr, unlockErr)
}
