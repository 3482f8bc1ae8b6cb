package xctx

import (
	"context"
	"log/slog"
)

// AppendAttrs 将 context 中的 request_id、user_id 追加到 attrs。
// 缺失的字段跳过，ctx 为 nil 时原样返回。
func AppendAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	if ctx == nil {
		return attrs
	}
	if v := RequestID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyRequestID, v))
	}
	if v := UserID(ctx); v > 0 {
		attrs = append(attrs, slog.Int64(KeyUserID, v))
	}
	return attrs
}
