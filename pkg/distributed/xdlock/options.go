package xdlock

import (
	"strings"
	"time"
)

// DefaultKeyPrefix 锁 key 的默认前缀。
const DefaultKeyPrefix = "lock:"

// maxKeyLength 锁 key 的最大长度（字节）。
const maxKeyLength = 512

// validateKey 验证锁 key 是否有效。
func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if len(key) > maxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// =============================================================================
// Mutex 选项
// =============================================================================

// SimpleOption 定义 Mutex 的配置选项。
type SimpleOption func(*simpleOptions)

type simpleOptions struct {
	KeyPrefix      string
	DefaultTTL     time.Duration
	ReleaseTimeout time.Duration
}

func defaultSimpleOptions() *simpleOptions {
	return &simpleOptions{
		KeyPrefix:      DefaultKeyPrefix,
		DefaultTTL:     10 * time.Second,
		ReleaseTimeout: 5 * time.Second,
	}
}

// WithSimpleKeyPrefix 设置 Mutex 的 key 前缀，默认 "lock:"。
func WithSimpleKeyPrefix(prefix string) SimpleOption {
	return func(o *simpleOptions) {
		o.KeyPrefix = prefix
	}
}

// WithDefaultTTL 设置 TryLock 未指定 ttl 时使用的兜底过期时间。
// 默认值：10 秒。
func WithDefaultTTL(d time.Duration) SimpleOption {
	return func(o *simpleOptions) {
		if d > 0 {
			o.DefaultTTL = d
		}
	}
}

// WithReleaseTimeout 设置调用方 ctx 已取消时释放锁使用的独立超时。
// 默认值：5 秒。
func WithReleaseTimeout(d time.Duration) SimpleOption {
	return func(o *simpleOptions) {
		if d > 0 {
			o.ReleaseTimeout = d
		}
	}
}

// =============================================================================
// Factory 锁实例选项（redsync）
// =============================================================================

// MutexOption 定义 Factory 锁实例的配置选项。
type MutexOption func(*mutexOptions)

type mutexOptions struct {
	KeyPrefix      string        // Key 前缀，默认 "lock:"
	Expiry         time.Duration // 过期时间，默认 8s
	Tries          int           // 重试次数，默认 32
	RetryDelay     time.Duration // 重试延迟，默认 200ms
	RetryDelayFunc func(tries int) time.Duration
	GenValueFunc   func() (string, error)
}

func defaultMutexOptions() *mutexOptions {
	return &mutexOptions{
		KeyPrefix:  DefaultKeyPrefix,
		Expiry:     8 * time.Second,
		Tries:      32,
		RetryDelay: 200 * time.Millisecond,
	}
}

// WithKeyPrefix 设置锁 key 的前缀。
// 最终 key = prefix + key，默认值 "lock:"。
func WithKeyPrefix(prefix string) MutexOption {
	return func(o *mutexOptions) {
		o.KeyPrefix = prefix
	}
}

// WithExpiry 设置锁的过期时间。
// 默认值：8 秒。过期时间应大于业务执行时间，否则需要调用 Extend() 续期。
func WithExpiry(d time.Duration) MutexOption {
	return func(o *mutexOptions) {
		if d > 0 {
			o.Expiry = d
		}
	}
}

// WithTries 设置 Lock 的最大尝试次数。
// 默认值：32。设置为 1 表示不重试。
func WithTries(n int) MutexOption {
	return func(o *mutexOptions) {
		if n > 0 {
			o.Tries = n
		}
	}
}

// WithRetryDelay 设置重试延迟，默认值：200ms。
func WithRetryDelay(d time.Duration) MutexOption {
	return func(o *mutexOptions) {
		if d > 0 {
			o.RetryDelay = d
		}
	}
}

// WithRetryDelayFunc 设置自定义重试延迟函数，tries 从 1 开始。
func WithRetryDelayFunc(fn func(tries int) time.Duration) MutexOption {
	return func(o *mutexOptions) {
		if fn != nil {
			o.RetryDelayFunc = fn
		}
	}
}

// WithGenValueFunc 设置自定义锁值生成函数。
// 生成的值必须全局唯一，否则可能导致锁冲突。
func WithGenValueFunc(fn func() (string, error)) MutexOption {
	return func(o *mutexOptions) {
		if fn != nil {
			o.GenValueFunc = fn
		}
	}
}
