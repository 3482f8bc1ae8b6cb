package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/omeyang/xseckill/internal/storage/postgres"
	"github.com/omeyang/xseckill/pkg/config/xconf"
)

// EnvPrefix 环境变量覆盖前缀，SECKILL_REDIS__ADDRS 覆盖 redis.addrs。
const EnvPrefix = "SECKILL_"

// Config seckilld 配置。
type Config struct {
	Redis    RedisConfig     `koanf:"redis"`
	Postgres postgres.Config `koanf:"postgres"`
	Log      LogConfig       `koanf:"log"`
	Cache    CacheConfig     `koanf:"cache"`
	Seckill  SeckillConfig   `koanf:"seckill"`
	Stream   StreamConfig    `koanf:"stream"`
	Cron     CronConfig      `koanf:"cron"`
}

// RedisConfig 多个地址时使用集群客户端。
type RedisConfig struct {
	Addrs    []string `koanf:"addrs"`
	Password string   `koanf:"password"`
	DB       int      `koanf:"db"`
	PoolSize int      `koanf:"pool_size"`
}

// LogConfig File 非空时写入文件并按大小轮转。
type LogConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	AddSource  bool   `koanf:"add_source"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

// CacheConfig 店铺缓存。
type CacheConfig struct {
	ShopTTL        time.Duration `koanf:"shop_ttl"`
	ShopLogicalTTL time.Duration `koanf:"shop_logical_ttl"`
	NullTTL        time.Duration `koanf:"null_ttl"`
	JitterMax      time.Duration `koanf:"jitter_max"`
	RebuildWorkers int           `koanf:"rebuild_workers"`
	RebuildQueue   int           `koanf:"rebuild_queue"`
	LocalNullTTL   time.Duration `koanf:"local_null_ttl"` // 0 关闭本地空值影子
	HotShops       []int64       `koanf:"hot_shops"`
	HotTop         int           `koanf:"hot_top"` // HotShops 为空时按评分取前 N 个
	HotColdLoad    bool          `koanf:"hot_cold_load"`
}

// SeckillConfig 秒杀入口。RateLimit 为 0 时不限流。
type SeckillConfig struct {
	RateLimit        int           `koanf:"rate_limit"`
	RateBurst        int           `koanf:"rate_burst"`
	BreakerThreshold uint32        `koanf:"breaker_threshold"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout"`
}

// StreamConfig 订单消息消费。
type StreamConfig struct {
	Name          string        `koanf:"name"`
	Group         string        `koanf:"group"`
	Consumer      string        `koanf:"consumer"`
	Block         time.Duration `koanf:"block"`
	RecoveryDelay time.Duration `koanf:"recovery_delay"`
	DeadLetter    string        `koanf:"dead_letter"` // 为空时格式错误的消息留在 pending
	LockTTL       time.Duration `koanf:"lock_ttl"`
	CommitTries   int           `koanf:"commit_tries"`
}

// CronConfig 定时任务表达式，为空时不注册对应任务。
type CronConfig struct {
	WarmShops     string `koanf:"warm_shops"`
	RestoreStock  string `koanf:"restore_stock"`
	ReportPending string `koanf:"report_pending"`
	ReportMetrics string `koanf:"report_metrics"`
}

// Defaults 配置文件缺省时的取值。
func Defaults() map[string]any {
	return map[string]any{
		"redis.addrs":     []string{"localhost:6379"},
		"redis.pool_size": 100,

		"postgres.max_conns":            int32(20),
		"postgres.connect_attempts":     5,
		"postgres.max_conn_lifetime":    "30m",
		"postgres.slow_query_threshold": "200ms",

		"log.level":        "info",
		"log.format":       "json",
		"log.max_size_mb":  100,
		"log.max_backups":  7,
		"log.max_age_days": 7,

		"cache.shop_ttl":         "30m",
		"cache.shop_logical_ttl": "20s",
		"cache.null_ttl":         "2m",
		"cache.jitter_max":       "10s",
		"cache.rebuild_workers":  10,
		"cache.rebuild_queue":    1024,

		"seckill.breaker_threshold": 5,
		"seckill.breaker_timeout":   "10s",

		"stream.name":           "stream.orders",
		"stream.group":          "g1",
		"stream.consumer":       "c1",
		"stream.block":          "2s",
		"stream.recovery_delay": "200ms",
		"stream.lock_ttl":       "30s",
		"stream.commit_tries":   3,

		"cron.warm_shops":     "@every 1m",
		"cron.restore_stock":  "@every 10m",
		"cron.report_pending": "@every 5m",
		"cron.report_metrics": "@every 1m",
	}
}

// Load 读取配置文件，path 为空时只使用默认值和环境变量。
// 返回的 *xconf.Config 可用于 xconf.Watch，path 为空时不可重载。
func Load(path string) (*xconf.Config, Config, error) {
	opts := []xconf.Option{xconf.WithEnvPrefix(EnvPrefix), xconf.WithDefaults(Defaults())}

	var (
		conf *xconf.Config
		err  error
	)
	if path == "" {
		conf, err = xconf.NewFromBytes(nil, xconf.FormatYAML, opts...)
	} else {
		conf, err = xconf.New(path, opts...)
	}
	if err != nil {
		return nil, Config{}, fmt.Errorf("app: load config: %w", err)
	}

	var cfg Config
	if err := conf.Unmarshal("", &cfg); err != nil {
		return nil, Config{}, fmt.Errorf("app: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, Config{}, err
	}
	return conf, cfg, nil
}

// Validate 校验与业务不变量相关的配置。数据库 DSN 在连接时校验。
func (c Config) Validate() error {
	var errs []error
	if len(c.Redis.Addrs) == 0 {
		errs = append(errs, errors.New("redis.addrs is required"))
	}
	if c.Stream.Name == "" || c.Stream.Group == "" || c.Stream.Consumer == "" {
		errs = append(errs, errors.New("stream.name, stream.group and stream.consumer are required"))
	}
	if c.Cache.ShopTTL <= 0 || c.Cache.ShopLogicalTTL <= 0 {
		errs = append(errs, errors.New("cache.shop_ttl and cache.shop_logical_ttl must be positive"))
	}
	if c.Seckill.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("seckill.rate_limit must not be negative, got %d", c.Seckill.RateLimit))
	}
	if c.Stream.DeadLetter != "" && c.Stream.DeadLetter == c.Stream.Name {
		errs = append(errs, errors.New("stream.dead_letter must differ from stream.name"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("app: invalid config: %w", err)
	}
	return nil
}
