// Package matcher 在两个描述子集合之间生成匹配候选
//
// 支持三种策略:
//   - 交叉验证 (StrategyCrossCheck): 穷举距离，只保留互为最近邻的点对
//   - K 近邻 (StrategyKNN): 穷举距离，为每个源元素保留最近的 K 个目标元素
//   - 近似 K 近邻 (StrategyIndexedKNN): 在目标集合上建立近似索引后查询
//
// 三种策略共用同一个 feature.Metric，调用方无需关心匹配是精确的还是近似的。
package matcher

import (
	"fmt"
	"math"

	"github.com/zoeyai/featmatch/pkg/vision/feature"
)

// Candidates 匹配候选
// 每行对应一个源元素，行内按距离升序排列
// 交叉验证每行只有一个候选，KNN 每行最多 K 个候选
type Candidates [][]feature.Match

// Rows 返回候选行数
func (c Candidates) Rows() int {
	return len(c)
}

// Match 按配置的策略匹配两个描述子集合
// 任一集合为空时返回空候选，不视为错误
func Match(a, b *feature.Set, metric feature.Metric, cfg Config) (Candidates, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if a.Len() == 0 || b.Len() == 0 {
		return nil, nil
	}
	if err := feature.Compatible(a, b); err != nil {
		return nil, err
	}
	if metric.Format() != a.Format() {
		return nil, &feature.FormatMismatchError{Want: metric.Format(), Got: a.Format(), Index: -1}
	}

	switch cfg.Strategy {
	case StrategyCrossCheck:
		return crossCheck(a, b, metric), nil
	case StrategyKNN:
		return knn(a, NewBruteIndex(b, metric), cfg.K), nil
	case StrategyIndexedKNN:
		index, err := BuildIndex(b, metric, cfg.Index)
		if err != nil {
			return nil, fmt.Errorf("构建近似索引失败: %w", err)
		}
		return knn(a, index, cfg.K), nil
	}
	return nil, fmt.Errorf("%w: 未知匹配策略 %s", ErrInvalidConfig, cfg.Strategy)
}

// crossCheck 单次遍历同时求 A->B 与 B->A 的最近邻
// 距离相同时取下标较小者
func crossCheck(a, b *feature.Set, metric feature.Metric) Candidates {
	rowBest := make([]float64, a.Len())
	rowArg := make([]int, a.Len())
	colBest := make([]float64, b.Len())
	colArg := make([]int, b.Len())
	for j := range colBest {
		colBest[j] = math.Inf(1)
		colArg[j] = -1
	}

	for i := 0; i < a.Len(); i++ {
		rowBest[i] = math.Inf(1)
		rowArg[i] = -1
		qi := a.Descriptor(i)
		for j := 0; j < b.Len(); j++ {
			d := metric.Distance(qi, b.Descriptor(j))
			if d < rowBest[i] {
				rowBest[i] = d
				rowArg[i] = j
			}
			if d < colBest[j] {
				colBest[j] = d
				colArg[j] = i
			}
		}
	}

	var out Candidates
	for i, j := range rowArg {
		if j >= 0 && colArg[j] == i {
			out = append(out, []feature.Match{{QueryIdx: i, TrainIdx: j, Distance: rowBest[i]}})
		}
	}
	return out
}

// knn 逐个查询源元素的 k 个近邻
func knn(a *feature.Set, index Index, k int) Candidates {
	out := make(Candidates, 0, a.Len())
	for i := 0; i < a.Len(); i++ {
		neighbors := index.Search(a.Descriptor(i), k)
		if len(neighbors) == 0 {
			continue
		}
		for n := range neighbors {
			neighbors[n].QueryIdx = i
		}
		out = append(out, neighbors)
	}
	return out
}
