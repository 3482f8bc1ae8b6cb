package xcache

import "errors"

// =============================================================================
// 通用错误
// =============================================================================

var (
	// ErrNilClient 表示传入的客户端为 nil。
	ErrNilClient = errors.New("xcache: nil client")

	// ErrClosed 表示缓存客户端已关闭。
	ErrClosed = errors.New("xcache: client closed")

	// ErrEmptyKey 表示传入的 key 为空字符串。
	ErrEmptyKey = errors.New("xcache: empty key")

	// ErrInvalidConfig 表示配置参数无效。
	ErrInvalidConfig = errors.New("xcache: invalid configuration")
)

// =============================================================================
// 回源相关错误
// =============================================================================

var (
	// ErrNilLoader 表示 loader 函数为 nil。
	ErrNilLoader = errors.New("xcache: nil loader function")

	// ErrLoaderFailed 表示同步路径上的回源失败，原始错误通过 %w 包装。
	// 失败的回源不会写入任何缓存。
	ErrLoaderFailed = errors.New("xcache: loader failed")

	// ErrLoadPanic 表示 loader 发生了 panic。
	// 设计决策: singleflight DoChan 会在新 goroutine 中 re-panic，导致进程级崩溃，
	// 因此在调用 loader 处 recover 并转为此错误。
	ErrLoadPanic = errors.New("xcache: load function panicked")

	// ErrMalformedEntry 表示缓存中的值无法解码。
	ErrMalformedEntry = errors.New("xcache: malformed cache entry")
)
