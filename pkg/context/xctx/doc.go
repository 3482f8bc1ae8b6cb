// Package xctx 在 context 中存取请求级身份信息。
//
// 只有两个字段：
//   - user_id：当前登录用户，由上游鉴权注入，秒杀下单从这里读取下单人
//   - request_id：请求标识，用于串联同一请求的日志
//
// xctx 是纯存取层，不做登录校验。xlog 的 EnrichHandler 会自动把这两个字段
// 注入到每条日志。
package xctx
