package xctx

import "errors"

// contextKey 包私有类型，避免与其他包的 context key 冲突。
type contextKey string

const (
	keyUserID    = contextKey("xctx:user_id")
	keyRequestID = contextKey("xctx:request_id")
)

// 日志属性 Key，遵循下划线分隔的命名约定。
const (
	KeyUserID    = "user_id"
	KeyRequestID = "request_id"
)

var (
	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xctx: nil context")

	// ErrMissingUserID context 中没有登录用户。
	ErrMissingUserID = errors.New("xctx: missing user_id")

	// ErrInvalidUserID 用户 ID 非正数。
	ErrInvalidUserID = errors.New("xctx: invalid user_id")

	// ErrMissingRequestID request_id 缺失。
	ErrMissingRequestID = errors.New("xctx: missing request_id")
)
