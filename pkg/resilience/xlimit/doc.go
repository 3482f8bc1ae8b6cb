// Package xlimit 提供基于 Redis 的限流器，Redis 故障时自动降级到本地令牌桶。
//
// 分布式后端使用 [go-redis/redis_rate] 的 GCRA 实现，所有实例共享同一份配额。
// 秒杀入口用它按用户限制抢购频率。
//
// # 快速开始
//
//	limiter, err := xlimit.New(rdb, xlimit.PerSecond("seckill-user", 5),
//	    xlimit.WithPrefix("limit:seckill:"),
//	)
//	res, err := limiter.Allow(ctx, strconv.FormatInt(userID, 10))
//	if err != nil {
//	    return err
//	}
//	if err := res.Err(); err != nil {
//	    return err // *LimitError，errors.Is(err, xlimit.ErrRateLimited)
//	}
//
// # 降级策略
//
//   - FallbackLocal：本地令牌桶（默认）
//   - FallbackOpen：全部放行
//   - FallbackClose：全部拒绝并返回 ErrRedisUnavailable
//   - FallbackNone：直接返回 Redis 错误
//
// 只有连接类错误（见 IsRedisError）会触发降级。
//
// [go-redis/redis_rate]: https://github.com/go-redis/redis_rate
package xlimit
