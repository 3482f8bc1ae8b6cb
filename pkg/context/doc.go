// Package context 提供上下文信息相关的子包。
//
// 子包列表：
//   - xctx: 在 context 中携带请求 ID 和用户 ID，xlog 自动注入日志
package context
