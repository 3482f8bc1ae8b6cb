// Package xbreaker 提供基于 [sony/gobreaker/v2] 的熔断器。
//
// 秒杀入口用它保护 Redis 脚本调用：Redis 持续不可用时快速失败，
// 不让请求堆积在连接池上。
//
// # 熔断器状态
//
//   - StateClosed：正常状态，请求正常通过
//   - StateOpen：熔断状态，请求直接失败
//   - StateHalfOpen：探测状态，允许部分请求通过
//
// # 成功判定
//
// 业务拒绝（库存不足、重复下单）不是下游故障，应通过 WithSuccessFunc(IgnoreErrors(...))
// 计为成功。
//
// [sony/gobreaker/v2]: https://github.com/sony/gobreaker
package xbreaker
