package domain

import "errors"

// 查询类错误。
var (
	// ErrShopNotFound 店铺不存在。
	ErrShopNotFound = errors.New("domain: shop not found")

	// ErrVoucherNotFound 优惠券不存在，或不是秒杀券。
	ErrVoucherNotFound = errors.New("domain: voucher not found")

	// ErrOrderNotFound 订单不存在。
	ErrOrderNotFound = errors.New("domain: order not found")

	// ErrInvalidID ID 非正数。
	ErrInvalidID = errors.New("domain: invalid id")
)

// 秒杀业务错误，直接反馈给用户，不重试。
var (
	// ErrStockExhausted 库存不足。
	ErrStockExhausted = errors.New("domain: stock exhausted")

	// ErrDuplicateOrder 同一用户对同一优惠券重复下单。
	ErrDuplicateOrder = errors.New("domain: duplicate order")

	// ErrSeckillNotStarted 秒杀尚未开始。
	ErrSeckillNotStarted = errors.New("domain: seckill not started")

	// ErrSeckillEnded 秒杀已经结束。
	ErrSeckillEnded = errors.New("domain: seckill ended")
)

// ErrLockNotAcquired 用户锁被其他请求或实例持有。
// 调用方自行决定退避重试还是直接失败。
var ErrLockNotAcquired = errors.New("domain: lock not acquired")

// IsBusinessError 判断 err 是否为业务拒绝（而非基础设施故障）。
// 业务拒绝不应计入熔断器失败，也不应重试。
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrStockExhausted) ||
		errors.Is(err, ErrDuplicateOrder) ||
		errors.Is(err, ErrSeckillNotStarted) ||
		errors.Is(err, ErrSeckillEnded)
}
