package xlog

import (
	"log/slog"
	"time"

	"github.com/omeyang/xseckill/pkg/context/xctx"
)

// =============================================================================
// 常用属性 Key 常量
// =============================================================================

const (
	// KeyError 错误字段的标准 key
	KeyError = "error"

	// KeyStack 堆栈字段的标准 key
	KeyStack = "stack"

	// KeyDuration 耗时字段的标准 key
	KeyDuration = "duration"

	// KeyCount 计数字段的标准 key
	KeyCount = "count"

	// KeyService 服务名字段的标准 key
	KeyService = "service"

	// KeyUserID 用户 ID 字段的标准 key，引用 xctx 保证跨包一致
	KeyUserID = xctx.KeyUserID

	// KeyRequestID 请求 ID 字段的标准 key，引用 xctx 保证跨包一致
	KeyRequestID = xctx.KeyRequestID

	// KeyComponent 组件名称字段的标准 key
	KeyComponent = "component"

	// KeyOperation 操作名称字段的标准 key
	KeyOperation = "operation"

	// KeyCacheKey 缓存 key 字段
	KeyCacheKey = "cache_key"

	// KeyOrderID 订单 ID 字段
	KeyOrderID = "order_id"

	// KeyVoucherID 优惠券 ID 字段
	KeyVoucherID = "voucher_id"

	// KeyMessageID 消息（stream entry）ID 字段
	KeyMessageID = "message_id"
)

// =============================================================================
// 便捷属性构造函数
// =============================================================================

// Err 创建错误属性
//
// 如果 err 为 nil，返回空属性（会被忽略）。
//
//	if err != nil {
//	    logger.Error(ctx, "operation failed", xlog.Err(err))
//	}
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建耗时属性，输出人类可读格式（如 "1.5s"）
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Component 创建组件名属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation 创建操作名属性
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Count 创建计数属性
func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

// UserID 创建用户 ID 属性
func UserID(id int64) slog.Attr {
	return slog.Int64(KeyUserID, id)
}

// CacheKey 创建缓存 key 属性
func CacheKey(key string) slog.Attr {
	return slog.String(KeyCacheKey, key)
}

// OrderID 创建订单 ID 属性
func OrderID(id int64) slog.Attr {
	return slog.Int64(KeyOrderID, id)
}

// VoucherID 创建优惠券 ID 属性
func VoucherID(id int64) slog.Attr {
	return slog.Int64(KeyVoucherID, id)
}

// MessageID 创建 stream entry ID 属性
func MessageID(id string) slog.Attr {
	return slog.String(KeyMessageID, id)
}
