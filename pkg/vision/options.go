package vision

import (
	"path/filepath"

	"github.com/zoeyai/featmatch/internal/logger"
	"github.com/zoeyai/featmatch/pkg/config"
	"github.com/zoeyai/featmatch/pkg/pipeline"
	"github.com/zoeyai/featmatch/pkg/vision/matcher"
)

// DefaultVariant 未指定变体时使用
const DefaultVariant = "orb"

// Option 配置选项函数类型
type Option func(*matchConfig)

// matchConfig 匹配时的临时配置
type matchConfig struct {
	variant   string
	output    string
	outputDir string
	strategy  string
	deps      *pipeline.Deps
	opts      []pipeline.Option
}

// defaultMatchConfig 默认匹配配置
func defaultMatchConfig() *matchConfig {
	return &matchConfig{variant: DefaultVariant}
}

func (c *matchConfig) add(opt pipeline.Option) {
	c.opts = append(c.opts, opt)
}

// WithVariant 选择变体 (orb、brisk、freak、sift、surf、akaze、kaze)
func WithVariant(name string) Option {
	return func(c *matchConfig) {
		if name != "" {
			c.variant = name
		}
	}
}

// WithOutput 指定结果图路径，优先于 WithOutputDir
func WithOutput(path string) Option {
	return func(c *matchConfig) {
		c.output = path
	}
}

// WithOutputDir 结果图写入该目录，文件名取变体默认值
func WithOutputDir(dir string) Option {
	return func(c *matchConfig) {
		c.outputDir = dir
	}
}

// WithStrategy 按名称覆盖匹配策略 (crosscheck/knn/indexed-knn)
func WithStrategy(name string) Option {
	return func(c *matchConfig) {
		c.strategy = name
	}
}

// WithTopK 设置 TopK 筛选保留的匹配数
func WithTopK(k int) Option {
	return func(c *matchConfig) {
		c.add(pipeline.WithTopK(k))
	}
}

// WithRatio 设置比率测试阈值
func WithRatio(ratio float64) Option {
	return func(c *matchConfig) {
		c.add(pipeline.WithRatio(ratio))
	}
}

// WithIndex 设置近似索引
func WithIndex(cfg matcher.IndexConfig) Option {
	return func(c *matchConfig) {
		c.add(pipeline.WithIndex(cfg))
	}
}

// WithAnnotate 在结果图顶部绘制说明文字
func WithAnnotate(enabled bool) Option {
	return func(c *matchConfig) {
		c.add(pipeline.WithAnnotate(enabled))
	}
}

// WithDrawUnmatched 绘制未参与匹配的特征点
func WithDrawUnmatched(enabled bool) Option {
	return func(c *matchConfig) {
		c.add(pipeline.WithDrawUnmatched(enabled))
	}
}

// WithDecorateKeypoints 绘制带尺度与方向的特征点
func WithDecorateKeypoints(enabled bool) Option {
	return func(c *matchConfig) {
		c.add(pipeline.WithDecorateKeypoints(enabled))
	}
}

// WithLogger 设置日志输出
func WithLogger(l *logger.Logger) Option {
	return func(c *matchConfig) {
		c.add(pipeline.WithLogger(l))
	}
}

// WithRecorder 设置运行记录器
func WithRecorder(r pipeline.Recorder) Option {
	return func(c *matchConfig) {
		if r != nil {
			c.add(pipeline.WithRecorder(r))
		}
	}
}

// WithDeps 替换默认的 gocv 实现
func WithDeps(deps pipeline.Deps) Option {
	return func(c *matchConfig) {
		c.deps = &deps
	}
}

// FromConfig 把持久化的配置转换为选项
// 布尔开关只在开启时生效，关闭时保留变体预设
func FromConfig(cfg *config.MatchConfig) []Option {
	if cfg == nil {
		return nil
	}

	opts := []Option{
		WithVariant(cfg.Variant),
		WithStrategy(cfg.Strategy),
		WithTopK(cfg.TopK),
		WithRatio(cfg.Ratio),
		WithOutputDir(cfg.OutputDir),
	}
	if cfg.IndexKind != "" || cfg.Trees > 0 || cfg.Checks > 0 {
		idx := matcher.DefaultIndexConfig()
		if cfg.IndexKind != "" {
			idx.Kind = matcher.IndexKind(cfg.IndexKind)
		}
		if cfg.Trees > 0 {
			idx.Trees = cfg.Trees
		}
		if cfg.Checks > 0 {
			idx.Checks = cfg.Checks
		}
		opts = append(opts, WithIndex(idx))
	}
	if cfg.Annotate {
		opts = append(opts, WithAnnotate(true))
	}
	if cfg.DrawKeypoints {
		opts = append(opts, WithDecorateKeypoints(true))
	}
	if cfg.DrawUnmatched {
		opts = append(opts, WithDrawUnmatched(true))
	}
	return opts
}

// apply 应用选项，策略放在最前面，之后的 TopK、Ratio、索引覆盖在新策略之上
func apply(opts []Option) (*matchConfig, error) {
	cfg := defaultMatchConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.strategy != "" {
		s, err := matcher.ParseStrategy(cfg.strategy)
		if err != nil {
			return nil, err
		}
		cfg.opts = append([]pipeline.Option{pipeline.WithStrategy(s)}, cfg.opts...)
	}
	return cfg, nil
}

// resolve 计算变体与流水线选项
func resolve(opts []Option) (pipeline.Variant, *matchConfig, error) {
	cfg, err := apply(opts)
	if err != nil {
		return pipeline.Variant{}, nil, err
	}

	v, err := pipeline.LookupVariant(cfg.variant)
	if err != nil {
		return pipeline.Variant{}, nil, err
	}

	switch {
	case cfg.output != "":
		cfg.add(pipeline.WithOutput(cfg.output))
	case cfg.outputDir != "":
		cfg.add(pipeline.WithOutput(filepath.Join(cfg.outputDir, v.Output)))
	}
	return v, cfg, nil
}
