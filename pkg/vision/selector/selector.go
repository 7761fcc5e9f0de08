// Package selector 把匹配候选筛选为最终接受的匹配，并统计匹配数量
package selector

import (
	"errors"
	"fmt"
	"sort"

	"github.com/zoeyai/featmatch/pkg/vision/feature"
	"github.com/zoeyai/featmatch/pkg/vision/matcher"
)

// ErrInvalidConfig 筛选配置非法
var ErrInvalidConfig = errors.New("invalid selector config")

const (
	// DefaultTopK 默认保留的最佳匹配数
	DefaultTopK = 50
	// DefaultRatio 默认比率测试阈值（二进制描述子的经验值）
	DefaultRatio = 0.75
)

// Policy 筛选策略
type Policy int

const (
	// PolicyTopK 按距离保留前 K 个
	PolicyTopK Policy = iota + 1
	// PolicyRatio 比率测试
	PolicyRatio
)

func (p Policy) String() string {
	switch p {
	case PolicyTopK:
		return "top-k"
	case PolicyRatio:
		return "ratio"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// PolicyFor 返回匹配策略对应的筛选策略
// 交叉验证搭配 TopK，两种 KNN 策略搭配比率测试
func PolicyFor(s matcher.Strategy) Policy {
	if s == matcher.StrategyCrossCheck {
		return PolicyTopK
	}
	return PolicyRatio
}

// Config 筛选配置
type Config struct {
	Policy Policy  `json:"policy"`
	TopK   int     `json:"top_k"`
	Ratio  float64 `json:"ratio"`
}

// DefaultConfig 返回匹配策略对应的默认筛选配置
func DefaultConfig(s matcher.Strategy) Config {
	return Config{
		Policy: PolicyFor(s),
		TopK:   DefaultTopK,
		Ratio:  DefaultRatio,
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	switch c.Policy {
	case PolicyTopK:
		if c.TopK < 1 {
			return fmt.Errorf("%w: top_k 必须 >= 1, 实际为 %d", ErrInvalidConfig, c.TopK)
		}
	case PolicyRatio:
		if c.Ratio <= 0 || c.Ratio > 1 {
			return fmt.Errorf("%w: ratio 必须在 (0, 1] 内, 实际为 %g", ErrInvalidConfig, c.Ratio)
		}
	default:
		return fmt.Errorf("%w: 未知筛选策略 %s", ErrInvalidConfig, c.Policy)
	}
	return nil
}

// Stats 匹配统计
type Stats struct {
	SourceKeypoints int `json:"source_keypoints"`
	TargetKeypoints int `json:"target_keypoints"`
	RawCandidates   int `json:"raw_candidates"`
	Accepted        int `json:"accepted"`
}

// Result 匹配结果：按距离升序的接受匹配与统计信息
type Result struct {
	Matches []feature.Match `json:"matches"`
	Stats   Stats           `json:"stats"`
}

// Select 按配置筛选候选
func Select(c matcher.Candidates, cfg Config) ([]feature.Match, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Policy == PolicyTopK {
		return TopK(c, cfg.TopK), nil
	}
	return RatioTest(c, cfg.Ratio), nil
}

// Run 筛选候选并填充统计信息
func Run(a, b *feature.Set, c matcher.Candidates, cfg Config) (*Result, error) {
	accepted, err := Select(c, cfg)
	if err != nil {
		return nil, err
	}
	return &Result{
		Matches: accepted,
		Stats: Stats{
			SourceKeypoints: a.Len(),
			TargetKeypoints: b.Len(),
			RawCandidates:   c.Rows(),
			Accepted:        len(accepted),
		},
	}, nil
}

// TopK 取每行最佳候选，按 (距离, 源下标, 目标下标) 排序后保留前 k 个
func TopK(c matcher.Candidates, k int) []feature.Match {
	out := make([]feature.Match, 0, len(c))
	for _, row := range c {
		if len(row) > 0 {
			out = append(out, row[0])
		}
	}
	sortMatches(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// RatioTest 最近邻距离小于 ratio 倍次近邻距离时接受最近邻
// 不足两个近邻的行无法判断是否有歧义，一律丢弃
func RatioTest(c matcher.Candidates, ratio float64) []feature.Match {
	var out []feature.Match
	for _, row := range c {
		if len(row) < 2 {
			continue
		}
		if row[0].Distance < ratio*row[1].Distance {
			out = append(out, row[0])
		}
	}
	sortMatches(out)
	return out
}

func sortMatches(ms []feature.Match) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].Less(ms[j]) })
}
