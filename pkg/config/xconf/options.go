package xconf

import "maps"

// Options 定义配置加载选项。
type Options struct {
	// Delim 配置键的分隔符，默认为 "."。
	Delim string

	// Tag 结构体标签名，用于 Unmarshal，默认为 "koanf"。
	Tag string

	// EnvPrefix 非空时，以该前缀开头的环境变量覆盖文件中的同名键。
	// 例如前缀 "SECKILL_" 下 SECKILL_REDIS__ADDR 覆盖 redis.addr。
	EnvPrefix string

	// Defaults 文件中缺失的键使用的默认值，键为带分隔符的完整路径。
	Defaults map[string]any

	environ func() []string
}

// Option 定义配置选项函数类型。
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Delim: ".",
		Tag:   "koanf",
	}
}

// WithDelim 设置配置键分隔符。
func WithDelim(delim string) Option {
	return func(o *Options) {
		if delim != "" {
			o.Delim = delim
		}
	}
}

// WithTag 设置结构体标签名。
func WithTag(tag string) Option {
	return func(o *Options) {
		if tag != "" {
			o.Tag = tag
		}
	}
}

// WithEnvPrefix 启用环境变量覆盖。
// 去掉前缀后转小写，双下划线 "__" 映射为分隔符。
func WithEnvPrefix(prefix string) Option {
	return func(o *Options) {
		o.EnvPrefix = prefix
	}
}

// WithDefaults 设置默认值，多次调用会合并。
func WithDefaults(defaults map[string]any) Option {
	return func(o *Options) {
		if o.Defaults == nil {
			o.Defaults = make(map[string]any, len(defaults))
		}
		maps.Copy(o.Defaults, defaults)
	}
}

// withEnviron 替换环境变量来源（测试用）。
func withEnviron(fn func() []string) Option {
	return func(o *Options) {
		o.environ = fn
	}
}
