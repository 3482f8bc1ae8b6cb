package xlimit

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

var (
	// ErrRateLimited 请求被限流
	ErrRateLimited = errors.New("xlimit: rate limited")

	// ErrRedisUnavailable Redis 不可用（FallbackClose 策略下返回）
	ErrRedisUnavailable = errors.New("xlimit: redis unavailable")

	// ErrInvalidRule 规则配置无效
	ErrInvalidRule = errors.New("xlimit: invalid rule")

	// ErrInvalidKey 限流键为空
	ErrInvalidKey = errors.New("xlimit: invalid key")

	// ErrNilClient Redis 客户端为 nil
	ErrNilClient = errors.New("xlimit: nil redis client")
)

// LimitError 限流错误，携带被拒绝时的配额信息。
type LimitError struct {
	Key        string
	Rule       string
	Limit      int
	RetryAfter int64 // 毫秒
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("xlimit: rate limited by rule %q, key=%s, limit=%d, retry_after=%dms",
		e.Rule, e.Key, e.Limit, e.RetryAfter)
}

func (e *LimitError) Unwrap() error { return ErrRateLimited }

// Retryable 限流错误不可重试，应等待配额恢复。
func (e *LimitError) Retryable() bool { return false }

// IsDenied 检查错误是否为限流错误
func IsDenied(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

var redisRelatedErrors = []error{
	ErrRedisUnavailable,
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.EPIPE,
	syscall.ETIMEDOUT,
	io.EOF,
	io.ErrUnexpectedEOF,
}

// IsRedisError 检查是否是 Redis 连接类错误，这类错误会触发降级。
func IsRedisError(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range redisRelatedErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
