package xdlock

import "errors"

// 预定义错误。
// 使用 errors.Is 进行错误匹配，例如：
//
//	if errors.Is(err, xdlock.ErrLockHeld) {
//	    // 锁被占用
//	}
var (
	// ErrLockHeld 锁被其他持有者占用。
	// TryLock 检测到此错误后返回 (nil, nil)，业务代码通常不会直接看到。
	ErrLockHeld = errors.New("xdlock: lock is held by another owner")

	// ErrLockFailed 重试耗尽仍未获取到锁。
	ErrLockFailed = errors.New("xdlock: failed to acquire lock")

	// ErrLockExpired 锁已过期或被其他持有者抢走。
	ErrLockExpired = errors.New("xdlock: lock expired or stolen")

	// ErrExtendFailed 续期失败，锁可能仍在，可重试。
	ErrExtendFailed = errors.New("xdlock: failed to extend lock")

	// ErrNilClient 传入 nil 客户端。
	ErrNilClient = errors.New("xdlock: client is nil")

	// ErrFactoryClosed 在已关闭的工厂上创建锁。
	ErrFactoryClosed = errors.New("xdlock: factory is closed")

	// ErrNotLocked 尝试 Unlock 或 Extend 未持有的锁。
	ErrNotLocked = errors.New("xdlock: not locked")

	// ErrEmptyKey 锁 key 为空字符串或仅含空白。
	ErrEmptyKey = errors.New("xdlock: key must not be empty")

	// ErrKeyTooLong 锁 key 超过 512 字节。
	ErrKeyTooLong = errors.New("xdlock: key exceeds maximum length of 512 bytes")
)
