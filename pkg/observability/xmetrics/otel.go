package xmetrics

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultInstrumentationName = "github.com/omeyang/xseckill/xmetrics"
	unknownComponent           = "unknown"
	unknownOperation           = "unknown"

	metricOperationTotal    = "seckill.operation.total"
	metricOperationDuration = "seckill.operation.duration"
)

type otelConfig struct {
	instrumentationName string
	meterProvider       metric.MeterProvider
	buckets             []float64
}

// Option 定义 OTel Observer 的配置选项。
type Option func(*otelConfig)

// WithInstrumentationName 设置 OTel instrumentation 名称。
func WithInstrumentationName(name string) Option {
	return func(cfg *otelConfig) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithMeterProvider 设置 MeterProvider，默认使用 otel 全局 Provider。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// WithBuckets 设置耗时直方图的桶边界（秒），必须严格递增。
func WithBuckets(buckets ...float64) Option {
	return func(cfg *otelConfig) {
		cfg.buckets = append([]float64(nil), buckets...)
	}
}

// NewOTelObserver 创建基于 OpenTelemetry 指标的 Observer。
//
// 每次观测记录两个指标：
//   - seckill.operation.total：按 component/operation/status 及附加属性计数
//   - seckill.operation.duration：耗时直方图（秒）
func NewOTelObserver(opts ...Option) (Observer, error) {
	cfg := &otelConfig{
		instrumentationName: defaultInstrumentationName,
		meterProvider:       otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt == nil {
			return nil, ErrNilOption
		}
		opt(cfg)
	}
	for i := 1; i < len(cfg.buckets); i++ {
		if !(cfg.buckets[i] > cfg.buckets[i-1]) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBuckets, cfg.buckets)
		}
	}

	meter := cfg.meterProvider.Meter(cfg.instrumentationName)

	total, err := meter.Int64Counter(
		metricOperationTotal,
		metric.WithDescription("total operations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateCounter, err)
	}

	histOpts := []metric.Float64HistogramOption{
		metric.WithDescription("operation duration"),
		metric.WithUnit("s"),
	}
	if len(cfg.buckets) > 0 {
		histOpts = append(histOpts, metric.WithExplicitBucketBoundaries(cfg.buckets...))
	}
	duration, err := meter.Float64Histogram(metricOperationDuration, histOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateHistogram, err)
	}

	return &otelObserver{total: total, duration: duration}, nil
}

type otelObserver struct {
	total    metric.Int64Counter
	duration metric.Float64Histogram
}

func (o *otelObserver) Start(ctx context.Context, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	component := opts.Component
	if component == "" {
		component = unknownComponent
	}
	operation := opts.Operation
	if operation == "" {
		operation = unknownOperation
	}
	return ctx, &otelSpan{
		observer:  o,
		ctx:       ctx,
		component: component,
		operation: operation,
		attrs:     opts.Attrs,
		start:     time.Now(),
	}
}

type otelSpan struct {
	observer  *otelObserver
	ctx       context.Context
	component string
	operation string
	attrs     []Attr
	start     time.Time
	endOnce   sync.Once
}

// End 记录计数与耗时。请求 ctx 已取消时仍记录。
func (s *otelSpan) End(result Result) {
	if s == nil {
		return
	}
	s.endOnce.Do(func() {
		ctx := context.WithoutCancel(s.ctx)
		elapsed := time.Since(s.start).Seconds()

		attrs := make([]attribute.KeyValue, 0, 3+len(s.attrs)+len(result.Attrs))
		attrs = append(attrs,
			attribute.String("component", s.component),
			attribute.String("operation", s.operation),
			attribute.String("status", string(resolveStatus(result))),
		)
		attrs = append(attrs, attrsToOTel(s.attrs)...)
		attrs = append(attrs, attrsToOTel(result.Attrs)...)

		set := metric.WithAttributes(attrs...)
		s.observer.total.Add(ctx, 1, set)
		s.observer.duration.Record(ctx, elapsed, set)
	})
}

func resolveStatus(result Result) Status {
	if result.Status != "" {
		return result.Status
	}
	if result.Err != nil {
		return StatusError
	}
	return StatusOK
}

func attrsToOTel(attrs []Attr) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	converted := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if attr.Key == "" || attr.Value == nil {
			continue
		}
		converted = append(converted, toKeyValue(attr))
	}
	return converted
}

func toKeyValue(attr Attr) attribute.KeyValue {
	switch v := attr.Value.(type) {
	case string:
		return attribute.String(attr.Key, v)
	case bool:
		return attribute.Bool(attr.Key, v)
	case int:
		return attribute.Int(attr.Key, v)
	case int64:
		return attribute.Int64(attr.Key, v)
	case uint64:
		if v <= math.MaxInt64 {
			return attribute.Int64(attr.Key, int64(v))
		}
		return attribute.String(attr.Key, fmt.Sprint(v))
	case float64:
		return attribute.Float64(attr.Key, v)
	case time.Duration:
		return attribute.Int64(attr.Key, v.Milliseconds())
	default:
		return attribute.String(attr.Key, fmt.Sprint(v))
	}
}
