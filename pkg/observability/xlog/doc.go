// Package xlog 基于 log/slog 的结构化日志库。
//
// # 创建 Logger
//
// 使用 Builder 模式（first-error-wins：遇到第一个配置错误后 Build 返回该错误）：
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString("info").
//		SetFormat("json").
//		SetService("seckilld").
//		SetRotation("/var/log/seckilld/app.log").
//		Build()
//	defer cleanup()
//
// 所有方法都以 context 为第一个参数，EnrichHandler（默认启用）自动从 context
// 注入 request_id 与 user_id。
//
// # 全局 Logger
//
// [Default]、[SetDefault] 以及 [Debug]、[Info]、[Warn]、[Error] 便利函数面向
// 命令行子命令等简单场景；服务组件通过 Option 显式注入 Logger，未注入时使用 [Discard]。
//
// # 动态级别
//
// Build 返回 [LoggerWithLevel]，SetLevel 运行时生效，With/WithGroup 派生的
// logger 共享同一个 LevelVar。配置热更新通过 xconf.Watch 调用 SetLevel。
package xlog
