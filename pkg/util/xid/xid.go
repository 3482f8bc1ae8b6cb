package xid

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// =============================================================================
// 错误定义
// =============================================================================

var (
	// ErrNilClient Redis 客户端为 nil。
	ErrNilClient = errors.New("xid: client is nil")

	// ErrEmptyBizKey 业务 key 为空。
	ErrEmptyBizKey = errors.New("xid: biz key must not be empty")

	// ErrSequenceOverflow 当日计数器超过 32 位上限。
	// 生成器不回绕、不借位，直接失败，避免产生重复 ID。
	ErrSequenceOverflow = errors.New("xid: daily sequence overflow")

	// ErrClockBeforeEpoch 当前时间早于纪元，时间分量为负。
	ErrClockBeforeEpoch = errors.New("xid: clock is before epoch")

	// ErrTimestampOverflow 时间分量超过 31 位，左移后会占用符号位。
	ErrTimestampOverflow = errors.New("xid: timestamp overflow")

	// ErrInvalidID ID 值无效（零或负数）。
	ErrInvalidID = errors.New("xid: invalid id")
)

// =============================================================================
// ID 位布局
// =============================================================================

const (
	// Epoch 时间分量的起点：2024-01-01T00:00:00Z。
	Epoch int64 = 1704067200

	// SequenceBits 序号占低 32 位。
	SequenceBits = 32

	// MaxTimestamp 时间分量上限，保证 ID 最高位为 0（约到 2092 年）。
	MaxTimestamp = math.MaxInt32

	// MaxSequence 单个业务 key 单日可分配的最大序号。
	MaxSequence = math.MaxUint32

	// DefaultKeyPrefix 计数器 key 前缀。
	DefaultKeyPrefix = "icr:"

	// DefaultCounterTTL 日计数器的过期时间，保留一天用于排查。
	DefaultCounterTTL = 48 * time.Hour
)

// Generator 基于 Redis INCR 的全局递增 ID 生成器。
//
// ID = (秒级时间戳 - Epoch) << 32 | 当日序号。
// 序号来自 INCR {prefix}{biz}:{yyyy:MM:dd}，按天、按业务 key 隔离。
// 不同秒生成的 ID 严格递增；同一秒内按 INCR 的先后递增，不保证与请求到达顺序一致。
type Generator struct {
	client  redis.UniversalClient
	options *options
}

// NewGenerator 创建 ID 生成器。
func NewGenerator(client redis.UniversalClient, opts ...Option) (*Generator, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Generator{client: client, options: o}, nil
}

// Next 为 bizKey 生成下一个 ID。
func (g *Generator) Next(ctx context.Context, bizKey string) (int64, error) {
	if strings.TrimSpace(bizKey) == "" {
		return 0, ErrEmptyBizKey
	}

	now := g.options.now()
	ts := now.Unix() - Epoch
	if ts < 0 {
		return 0, ErrClockBeforeEpoch
	}
	if ts > MaxTimestamp {
		return 0, fmt.Errorf("%w: %d seconds since epoch", ErrTimestampOverflow, ts)
	}

	key := CounterKey(g.options.keyPrefix, bizKey, now)
	seq, err := g.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("xid: incr %s: %w", key, err)
	}
	if seq == 1 && g.options.counterTTL > 0 {
		// 过期失败不影响 ID 正确性，计数器最多多保留一段时间
		_ = g.client.Expire(ctx, key, g.options.counterTTL).Err()
	}
	if seq > MaxSequence {
		return 0, fmt.Errorf("%w: %s reached %d", ErrSequenceOverflow, key, seq)
	}

	return ts<<SequenceBits | seq, nil
}

// CounterKey 返回 bizKey 在 t 所在日期（UTC）的计数器 key。
func CounterKey(prefix, bizKey string, t time.Time) string {
	return prefix + bizKey + ":" + t.UTC().Format("2006:01:02")
}

// Parts 是 ID 的分解结果。
type Parts struct {
	Time     time.Time
	Sequence uint32
}

// Decompose 分解 ID。
func Decompose(id int64) (Parts, error) {
	if id <= 0 {
		return Parts{}, ErrInvalidID
	}
	return Parts{
		Time:     time.Unix(Epoch+id>>SequenceBits, 0).UTC(),
		Sequence: uint32(id & MaxSequence),
	}, nil
}
