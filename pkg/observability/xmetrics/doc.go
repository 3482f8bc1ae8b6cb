// Package xmetrics 提供最小化的观测接口和基于 OpenTelemetry 指标的实现。
//
// 业务代码只依赖 Observer/Span/Attr；未配置时使用 NoopObserver。
//
//	obs, _ := xmetrics.NewOTelObserver(xmetrics.WithMeterProvider(mp))
//	ctx, span := xmetrics.Start(ctx, obs, xmetrics.SpanOptions{
//		Component: "seckill",
//		Operation: "place",
//	})
//	defer func() { span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{xmetrics.Outcome(outcome)}}) }()
//
// # 指标命名
//
//   - seckill.operation.total
//   - seckill.operation.duration
//
// 固定维度：component / operation / status，附加属性追加为维度。
package xmetrics
