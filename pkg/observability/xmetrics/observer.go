package xmetrics

import "context"

// Status 表示观测结果状态。
type Status string

const (
	// StatusOK 表示成功。
	StatusOK Status = "ok"
	// StatusError 表示失败。
	StatusError Status = "error"
)

// Attr 表示观测属性。属性会成为指标维度，只应使用低基数取值。
type Attr struct {
	Key   string
	Value any
}

// SpanOptions 定义一次观测的参数。
type SpanOptions struct {
	// Component 标识组件名称，例如 "seckill"。
	Component string
	// Operation 标识操作名称，例如 "place"。
	Operation string
	// Attrs 附加属性。
	Attrs []Attr
}

// Result 表示观测结束时的结果。
type Result struct {
	// Status 操作状态；为空时根据 Err 推导。
	Status Status
	// Err 操作错误。
	Err error
	// Attrs 附加属性，例如业务结果码。
	Attrs []Attr
}

// Span 表示一次计时观测。
type Span interface {
	// End 结束观测并记录结果，多次调用只记录一次。
	End(result Result)
}

// Observer 定义统一观测接口。
type Observer interface {
	Start(ctx context.Context, opts SpanOptions) (context.Context, Span)
}

// NoopObserver 是空实现。
type NoopObserver struct{}

// Start 返回原 ctx 和空跨度。
func (NoopObserver) Start(ctx context.Context, _ SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, NoopSpan{}
}

// NoopSpan 是空跨度实现。
type NoopSpan struct{}

// End 空实现。
func (NoopSpan) End(Result) {}

// Start 使用 observer 开始观测，observer 为 nil 时返回空跨度。
// 保证返回非 nil 的 context 和 Span。
func Start(ctx context.Context, observer Observer, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer == nil {
		return ctx, NoopSpan{}
	}
	retCtx, span := observer.Start(ctx, opts)
	if retCtx == nil {
		retCtx = ctx
	}
	if span == nil {
		span = NoopSpan{}
	}
	return retCtx, span
}
