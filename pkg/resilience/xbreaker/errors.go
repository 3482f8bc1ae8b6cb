package xbreaker

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"
)

var (
	// ErrOpenState 熔断器处于 Open 状态。
	ErrOpenState = gobreaker.ErrOpenState

	// ErrTooManyRequests HalfOpen 状态下请求数超过上限。
	ErrTooManyRequests = gobreaker.ErrTooManyRequests

	// ErrNilBreaker 表示传入的熔断器为 nil。
	ErrNilBreaker = errors.New("xbreaker: breaker cannot be nil")
)

// BreakerError 熔断器拒绝执行时返回的错误。
//
// 实现 Retryable() 返回 false，与 xretry 组合使用时不会被重试。
type BreakerError struct {
	Err   error
	Name  string
	State State
}

func (e *BreakerError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("breaker %s: %v", e.Name, e.Err)
	}
	return e.Err.Error()
}

func (e *BreakerError) Unwrap() error { return e.Err }

func (e *BreakerError) Retryable() bool { return false }

func wrapBreakerError(err error, name string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState):
		return &BreakerError{Err: err, Name: name, State: StateOpen}
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return &BreakerError{Err: err, Name: name, State: StateHalfOpen}
	default:
		return err
	}
}

// IsOpen 判断错误是否由 Open 状态引起。
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState)
}

// IsBreakerError 判断错误是否为熔断器拒绝。
func IsBreakerError(err error) bool {
	return IsOpen(err) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
