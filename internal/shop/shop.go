// Package shop 提供带缓存的店铺查询和更新。
//
// 普通查询走空值占位（防穿透），热点查询走逻辑过期（防击穿），
// 两种缓存使用不同的 key 前缀，更新时一并删除。
package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/omeyang/xseckill/internal/domain"
	"github.com/omeyang/xseckill/pkg/observability/xlog"
	"github.com/omeyang/xseckill/pkg/observability/xmetrics"
	"github.com/omeyang/xseckill/pkg/storage/xcache"
)

// 缓存 key 和过期时间。
const (
	CacheKeyPrefix    = "cache:shop:"
	HotCacheKeyPrefix = "cache:shop:hot:"

	DefaultTTL        = 30 * time.Minute
	DefaultLogicalTTL = 20 * time.Second
)

// Repository 店铺的关系型存储。
type Repository interface {
	GetByID(ctx context.Context, id int64) (domain.Shop, error)
	Update(ctx context.Context, s domain.Shop) error
}

// Service 店铺服务。
type Service struct {
	cache *xcache.Client
	repo  Repository
	opts  *options
}

type options struct {
	ttl        time.Duration
	logicalTTL time.Duration
	coldLoad   bool
	logger     xlog.Logger
	observer   xmetrics.Observer
}

// Option 定义 Service 的配置选项。
type Option func(*options)

// WithTTL 设置普通缓存 TTL，默认 30 分钟。
func WithTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// WithLogicalTTL 设置热点缓存的逻辑过期时长，默认 20 秒。
func WithLogicalTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.logicalTTL = d
		}
	}
}

// WithHotColdLoad 热点缓存未预热时同步回源，默认返回不存在。
func WithHotColdLoad() Option {
	return func(o *options) { o.coldLoad = true }
}

func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithObserver(obs xmetrics.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// NewService 创建店铺服务。
func NewService(cache *xcache.Client, repo Repository, opts ...Option) (*Service, error) {
	if cache == nil || repo == nil {
		return nil, errors.New("shop: cache and repository are required")
	}
	o := &options{
		ttl:        DefaultTTL,
		logicalTTL: DefaultLogicalTTL,
		logger:     xlog.Discard(),
		observer:   xmetrics.NoopObserver{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Service{cache: cache, repo: repo, opts: o}, nil
}

// load 把仓储的 ErrShopNotFound 转换为 xcache 的"不存在"。
func (s *Service) load(ctx context.Context, id int64) (domain.Shop, bool, error) {
	shop, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, domain.ErrShopNotFound) {
		return domain.Shop{}, false, nil
	}
	if err != nil {
		return domain.Shop{}, false, err
	}
	return shop, true, nil
}

// QueryByID 查询店铺，不存在的 ID 会写入空值占位。
func (s *Service) QueryByID(ctx context.Context, id int64) (shop domain.Shop, err error) {
	if id <= 0 {
		return domain.Shop{}, domain.ErrInvalidID
	}
	ctx, span := xmetrics.Start(ctx, s.opts.observer, xmetrics.SpanOptions{Component: "shop", Operation: "query"})
	defer func() { span.End(queryResult(err)) }()

	shop, ok, err := xcache.QueryWithPassThrough(ctx, s.cache, CacheKeyPrefix, id, s.load, s.opts.ttl)
	if err != nil {
		return domain.Shop{}, fmt.Errorf("shop: query %d: %w", id, err)
	}
	if !ok {
		return domain.Shop{}, domain.ErrShopNotFound
	}
	return shop, nil
}

// QueryHot 查询热点店铺。过期数据立即返回，由后台异步刷新。
// 未预热的店铺返回 ErrShopNotFound，除非启用 WithHotColdLoad。
func (s *Service) QueryHot(ctx context.Context, id int64) (shop domain.Shop, err error) {
	if id <= 0 {
		return domain.Shop{}, domain.ErrInvalidID
	}
	ctx, span := xmetrics.Start(ctx, s.opts.observer, xmetrics.SpanOptions{Component: "shop", Operation: "query_hot"})
	defer func() { span.End(queryResult(err)) }()

	var qopts []xcache.QueryOption
	if s.opts.coldLoad {
		qopts = append(qopts, xcache.WithColdLoad())
	}
	shop, ok, err := xcache.QueryWithLogicalExpire(ctx, s.cache, HotCacheKeyPrefix, id, s.load, s.opts.logicalTTL, qopts...)
	if err != nil {
		return domain.Shop{}, fmt.Errorf("shop: query hot %d: %w", id, err)
	}
	if !ok {
		return domain.Shop{}, domain.ErrShopNotFound
	}
	return shop, nil
}

// Update 先写库再删缓存。删除失败时返回错误，缓存最迟在 TTL 到期后一致。
func (s *Service) Update(ctx context.Context, shop domain.Shop) error {
	if shop.ID <= 0 {
		return domain.ErrInvalidID
	}
	if err := s.repo.Update(ctx, shop); err != nil {
		return fmt.Errorf("shop: update %d: %w", shop.ID, err)
	}
	keys := []string{xcache.Key(CacheKeyPrefix, shop.ID), xcache.Key(HotCacheKeyPrefix, shop.ID)}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.opts.logger.Error(ctx, "invalidate shop cache failed",
			slog.Int64("shop_id", shop.ID), xlog.Err(err))
		return fmt.Errorf("shop: invalidate %d: %w", shop.ID, err)
	}
	return nil
}

// Warm 把店铺写入热点缓存。单个店铺失败不影响其他店铺，返回合并后的错误。
func (s *Service) Warm(ctx context.Context, ids ...int64) error {
	var errs []error
	for _, id := range ids {
		shop, ok, err := s.load(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("shop %d: %w", id, err))
			continue
		}
		var payload any
		if ok {
			payload = shop
		}
		if err := s.cache.SetWithLogicalExpire(ctx, xcache.Key(HotCacheKeyPrefix, id), payload, s.opts.logicalTTL); err != nil {
			errs = append(errs, fmt.Errorf("shop %d: %w", id, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shop: warm: %w", errors.Join(errs...))
	}
	s.opts.logger.Debug(ctx, "hot shops warmed", xlog.Count(int64(len(ids))))
	return nil
}

func queryResult(err error) xmetrics.Result {
	switch {
	case err == nil:
		return xmetrics.Result{Attrs: []xmetrics.Attr{xmetrics.Outcome("found")}}
	case errors.Is(err, domain.ErrShopNotFound):
		return xmetrics.Result{Status: xmetrics.StatusOK, Attrs: []xmetrics.Attr{xmetrics.Outcome("absent")}}
	default:
		return xmetrics.Result{Err: err}
	}
}
