// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展
//   - xmetrics: 操作计数和耗时观测，OpenTelemetry 指标实现
//   - xrotate: 日志文件轮转
//
// 设计原则：
//   - 自动从 context 中提取请求信息注入日志
//   - 支持动态级别控制
package observability
