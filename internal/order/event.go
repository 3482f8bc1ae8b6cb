package order

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/omeyang/xseckill/pkg/mq/xstream"
)

// ErrBadEvent 消息字段缺失或格式错误，重放也无法成功。
var ErrBadEvent = errors.New("order: bad event")

// Event 秒杀脚本投递的订单消息。
type Event struct {
	OrderID   int64
	UserID    int64
	VoucherID int64
}

// Decode 解析 stream 消息，字段为 id、userId、voucherId。
func Decode(msg xstream.Message) (Event, error) {
	var ev Event
	var err error
	if ev.OrderID, err = field(msg.Values, "id"); err != nil {
		return Event{}, err
	}
	if ev.UserID, err = field(msg.Values, "userId"); err != nil {
		return Event{}, err
	}
	if ev.VoucherID, err = field(msg.Values, "voucherId"); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func field(values map[string]any, name string) (int64, error) {
	raw, ok := values[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrBadEvent, name)
	}
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		s = fmt.Sprint(v)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrBadEvent, name, s)
	}
	return n, nil
}
