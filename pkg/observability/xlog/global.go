package xlog

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
)

// =============================================================================
// 全局 Logger
//
// 定位：命令行子命令等简单场景。服务端组件通过 Option 显式注入 Logger。
// =============================================================================

var globalLogger atomic.Pointer[LoggerWithLevel]

// Default 返回全局默认 Logger。
// 未设置时惰性创建：stderr，Info 级别，text 格式。
func Default() LoggerWithLevel {
	if l := globalLogger.Load(); l != nil {
		return *l
	}
	var l LoggerWithLevel = newFallback()
	if globalLogger.CompareAndSwap(nil, &l) {
		return l
	}
	return *globalLogger.Load()
}

// newFallback 默认参数不会构建失败，直接组装最小 logger
func newFallback() *xlogger {
	lv := new(slog.LevelVar)
	return &xlogger{
		handler:    &EnrichHandler{base: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})},
		levelVar:   lv,
		errorCount: new(atomic.Uint64),
	}
}

// SetDefault 替换全局默认 Logger，传入 nil 会被忽略
func SetDefault(l LoggerWithLevel) {
	if l == nil {
		return
	}
	globalLogger.Store(&l)
}

// ResetDefault 重置全局 Logger（仅用于测试）
func ResetDefault() {
	globalLogger.Store(nil)
}

// Callers(0) → log(1) → globalLog(2) → xlog.Info(3) → 业务代码(4)
const globalSkip = 4

func globalLog(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	l := Default()
	if xl, ok := l.(*xlogger); ok {
		xl.log(ctx, level, msg, attrs, globalSkip)
		return
	}
	switch level {
	case slog.LevelDebug:
		l.Debug(ctx, msg, attrs...)
	case slog.LevelInfo:
		l.Info(ctx, msg, attrs...)
	case slog.LevelWarn:
		l.Warn(ctx, msg, attrs...)
	default:
		l.Error(ctx, msg, attrs...)
	}
}

// Debug 使用全局 Logger 记录 Debug 级别日志
func Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	globalLog(ctx, slog.LevelDebug, msg, attrs)
}

// Info 使用全局 Logger 记录 Info 级别日志
func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	globalLog(ctx, slog.LevelInfo, msg, attrs)
}

// Warn 使用全局 Logger 记录 Warn 级别日志
func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	globalLog(ctx, slog.LevelWarn, msg, attrs)
}

// Error 使用全局 Logger 记录 Error 级别日志
func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	globalLog(ctx, slog.LevelError, msg, attrs)
}

// Discard 返回丢弃所有输出的 Logger，用于测试和未注入 logger 的组件
func Discard() LoggerWithLevel {
	return &xlogger{
		handler:    slog.DiscardHandler,
		levelVar:   new(slog.LevelVar),
		errorCount: new(atomic.Uint64),
	}
}
