package xctx

import "context"

// WithUserID 将当前登录用户 ID 注入 context。
//
// 登录态校验由上游（网关/拦截器）完成，这里只做存取。
// 如果 ctx 为 nil 返回 ErrNilContext，id <= 0 返回 ErrInvalidUserID。
func WithUserID(ctx context.Context, id int64) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if id <= 0 {
		return nil, ErrInvalidUserID
	}
	return context.WithValue(ctx, keyUserID, id), nil
}

// UserID 从 context 提取用户 ID，不存在返回 0。
func UserID(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if v, ok := ctx.Value(keyUserID).(int64); ok {
		return v
	}
	return 0
}

// RequireUserID 从 context 获取用户 ID，不存在则返回 ErrMissingUserID。
func RequireUserID(ctx context.Context) (int64, error) {
	if ctx == nil {
		return 0, ErrNilContext
	}
	if v := UserID(ctx); v > 0 {
		return v, nil
	}
	return 0, ErrMissingUserID
}
