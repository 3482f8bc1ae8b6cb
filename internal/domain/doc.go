// Package domain 定义店铺、优惠券、秒杀订单等领域实体和业务错误。
//
// 本包不依赖任何存储或传输实现，存储层（internal/storage/postgres）
// 和业务层（internal/shop、internal/seckill、internal/order）都只依赖这里的类型。
package domain
