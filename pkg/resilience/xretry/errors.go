package xretry

import (
	"errors"

	retry "github.com/avast/retry-go/v5"
)

var (
	// ErrNilRetryer 表示在 nil *Retryer 上调用方法。
	ErrNilRetryer = errors.New("xretry: nil retryer")

	// ErrNilContext 表示 context 参数为 nil。
	ErrNilContext = errors.New("xretry: nil context")

	// ErrNilFunc 表示待执行的函数为 nil。
	ErrNilFunc = errors.New("xretry: nil function")
)

// RetryableError 可重试错误接口
// 实现此接口的错误会被自动识别为可重试或不可重试
type RetryableError interface {
	error
	Retryable() bool
}

// PermanentError 永久性错误（不应重试），例如库存不足、重复下单。
type PermanentError struct {
	Err error
}

// Permanent 将 err 标记为永久性错误，nil 返回 nil。
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func (e *PermanentError) Error() string {
	if e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error { return e.Err }

func (e *PermanentError) Retryable() bool { return false }

// Unrecoverable retry-go 原生的不可恢复错误标记。
var Unrecoverable = retry.Unrecoverable

// IsRetryable 检查错误是否可重试
// 规则：
//   - nil 错误：不需要重试
//   - retry-go Unrecoverable：不可重试
//   - 实现 RetryableError 接口：根据 Retryable() 返回值判断
//   - 其他错误：默认视为可重试
func IsRetryable(err error) bool {
	if err == nil || !retry.IsRecoverable(err) {
		return false
	}
	var re RetryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return true
}

// IsPermanent 检查错误是否为永久性错误
func IsPermanent(err error) bool {
	return err != nil && !IsRetryable(err)
}
