package domain

import "time"

// VoucherType 优惠券类型。
type VoucherType int16

const (
	// VoucherNormal 普通券，不限量。
	VoucherNormal VoucherType = 0
	// VoucherSeckill 秒杀券，限量且有时间窗口。
	VoucherSeckill VoucherType = 1
)

// Voucher 优惠券。金额单位为分。
type Voucher struct {
	ID          int64       `json:"id"`
	ShopID      int64       `json:"shopId"`
	Title       string      `json:"title"`
	SubTitle    string      `json:"subTitle"`
	Rules       string      `json:"rules"`
	PayValue    int64       `json:"payValue"`
	ActualValue int64       `json:"actualValue"`
	Type        VoucherType `json:"type"`
	CreatedAt   time.Time   `json:"createTime"`
	UpdatedAt   time.Time   `json:"updateTime"`
}

// SeckillVoucher 秒杀券的库存和时间窗口，与 Voucher 一对一。
type SeckillVoucher struct {
	VoucherID int64     `json:"voucherId"`
	Stock     int64     `json:"stock"`
	BeginTime time.Time `json:"beginTime"`
	EndTime   time.Time `json:"endTime"`
}

// CheckWindow 校验 now 是否在秒杀窗口内。
func (s SeckillVoucher) CheckWindow(now time.Time) error {
	if now.Before(s.BeginTime) {
		return ErrSeckillNotStarted
	}
	if !s.EndTime.IsZero() && now.After(s.EndTime) {
		return ErrSeckillEnded
	}
	return nil
}
