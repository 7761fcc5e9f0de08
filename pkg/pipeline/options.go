package pipeline

import (
	"context"

	"github.com/zoeyai/featmatch/internal/logger"
	"github.com/zoeyai/featmatch/pkg/vision/matcher"
	"github.com/zoeyai/featmatch/pkg/vision/selector"
)

// Recorder 记录每次运行的结果，失败的运行也会记录
type Recorder interface {
	Record(ctx context.Context, s *Summary, runErr error) error
}

// Option 流水线配置选项
type Option func(*Pipeline)

// WithLogger 使用指定 logger 输出阶段事件
func WithLogger(l *logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithOutput 覆盖变体的默认输出路径
func WithOutput(path string) Option {
	return func(p *Pipeline) {
		if path != "" {
			p.output = path
		}
	}
}

// WithTopK 覆盖 TopK 筛选保留的匹配数
func WithTopK(k int) Option {
	return func(p *Pipeline) {
		if k != 0 {
			p.variant.Selector.TopK = k
		}
	}
}

// WithRatio 覆盖比率测试阈值
func WithRatio(ratio float64) Option {
	return func(p *Pipeline) {
		if ratio != 0 {
			p.variant.Selector.Ratio = ratio
		}
	}
}

// WithStrategy 覆盖匹配策略，0 表示保留变体预设
// 交叉验证与 KNN 之间切换时筛选策略同时换成对应的默认配置
func WithStrategy(s matcher.Strategy) Option {
	return func(p *Pipeline) {
		if s == 0 {
			return
		}
		prev := p.variant.Matcher.Strategy
		p.variant.Matcher.Strategy = s
		if selector.PolicyFor(prev) != selector.PolicyFor(s) {
			p.variant.Selector = selector.DefaultConfig(s)
		}
	}
}

// WithIndex 覆盖近似索引参数
// 使用穷举 KNN 的变体改为 IndexedKNN，交叉验证变体不受影响
func WithIndex(cfg matcher.IndexConfig) Option {
	return func(p *Pipeline) {
		p.variant.Matcher.Index = cfg
		if p.variant.Matcher.Strategy == matcher.StrategyKNN && cfg.Kind != matcher.IndexBrute {
			p.variant.Matcher.Strategy = matcher.StrategyIndexedKNN
		}
	}
}

// WithDrawUnmatched 绘制未参与匹配的特征点
func WithDrawUnmatched(enabled bool) Option {
	return func(p *Pipeline) {
		p.variant.DrawUnmatched = enabled
	}
}

// WithDecorateKeypoints 拼接前绘制带尺度与方向的特征点
func WithDecorateKeypoints(enabled bool) Option {
	return func(p *Pipeline) {
		p.variant.DecorateKeypoints = enabled
	}
}

// WithAnnotate 在结果图顶部绘制说明文字
func WithAnnotate(enabled bool) Option {
	return func(p *Pipeline) {
		p.variant.Annotate = enabled
	}
}

// WithRecorder 设置运行记录器
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}
