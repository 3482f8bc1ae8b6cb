package domain

import "time"

// Shop 店铺。坐标 X/Y 为经纬度，AvgPrice 单位为元。
type Shop struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	TypeID    int64     `json:"typeId"`
	Images    string    `json:"images"`
	Area      string    `json:"area"`
	Address   string    `json:"address"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	AvgPrice  int64     `json:"avgPrice"`
	Sold      int32     `json:"sold"`
	Comments  int32     `json:"comments"`
	Score     int32     `json:"score"` // 1~5 分，乘 10 保存
	OpenHours string    `json:"openHours"`
	CreatedAt time.Time `json:"createTime"`
	UpdatedAt time.Time `json:"updateTime"`
}
