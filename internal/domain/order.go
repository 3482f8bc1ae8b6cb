package domain

import "time"

// OrderStatus 订单状态。
type OrderStatus int16

const (
	OrderUnpaid    OrderStatus = 1
	OrderPaid      OrderStatus = 2
	OrderUsed      OrderStatus = 3
	OrderCanceled  OrderStatus = 4
	OrderRefunding OrderStatus = 5
	OrderRefunded  OrderStatus = 6
)

// Order 秒杀订单。ID 由 xid 生成器在秒杀请求时分配。
//
// 同一 (UserID, VoucherID) 至多一条，由数据库唯一约束兜底。
type Order struct {
	ID        int64       `json:"id"`
	UserID    int64       `json:"userId"`
	VoucherID int64       `json:"voucherId"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"createTime"`
}
