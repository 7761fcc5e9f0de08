package matcher

import (
	"fmt"
	"sort"

	"github.com/zoeyai/featmatch/pkg/vision/feature"
)

// Index 先构建后查询的近邻索引
type Index interface {
	// Kind 索引类型
	Kind() IndexKind
	// Len 索引中的元素数量
	Len() int
	// Search 返回 q 的至多 k 个近邻，按距离升序
	// 结果中只填充 TrainIdx 与 Distance
	Search(q feature.Descriptor, k int) []feature.Match
}

// BuildIndex 在集合上构建指定类型的索引
// 所有索引返回的距离都由 metric 重新计算，与穷举策略可比
func BuildIndex(set *feature.Set, metric feature.Metric, cfg IndexConfig) (Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	kind := cfg.Kind
	if kind == IndexAuto || kind == "" {
		kind = IndexKDTree
		if set.Format() == feature.FormatBinary {
			kind = IndexLSH
		}
	}

	switch kind {
	case IndexBrute:
		return NewBruteIndex(set, metric), nil
	case IndexKDTree:
		if set.Format() != feature.FormatFloat {
			return nil, fmt.Errorf("%w: %s 需要浮点描述子, 实际为 %s", ErrUnsupportedIndex, kind, set.Format())
		}
		return newKDForest(set, metric, cfg), nil
	case IndexLSH:
		if set.Format() != feature.FormatBinary {
			return nil, fmt.Errorf("%w: %s 需要二进制描述子, 实际为 %s", ErrUnsupportedIndex, kind, set.Format())
		}
		if cfg.KeySize > set.DescriptorLen()*8 {
			return nil, fmt.Errorf("%w: key_size %d 超过描述子位数 %d", ErrInvalidConfig, cfg.KeySize, set.DescriptorLen()*8)
		}
		return newLSHIndex(set, metric, cfg), nil
	case IndexHNSW:
		return newHNSWIndex(set, metric, cfg), nil
	}
	return nil, fmt.Errorf("%w: 未知索引类型 %q", ErrInvalidConfig, kind)
}

// bruteIndex 穷举索引
type bruteIndex struct {
	set    *feature.Set
	metric feature.Metric
}

// NewBruteIndex 创建穷举索引，查询结果是精确的
func NewBruteIndex(set *feature.Set, metric feature.Metric) Index {
	return &bruteIndex{set: set, metric: metric}
}

func (b *bruteIndex) Kind() IndexKind { return IndexBrute }
func (b *bruteIndex) Len() int        { return b.set.Len() }

func (b *bruteIndex) Search(q feature.Descriptor, k int) []feature.Match {
	nl := newNeighborList(k)
	for j := 0; j < b.set.Len(); j++ {
		nl.push(j, b.metric.Distance(q, b.set.Descriptor(j)))
	}
	return nl.result()
}

// neighborList 保存距离最小的 k 个元素
// 距离相同时下标较小者优先
type neighborList struct {
	k     int
	items []feature.Match
}

func newNeighborList(k int) *neighborList {
	return &neighborList{k: k, items: make([]feature.Match, 0, k+1)}
}

func (n *neighborList) full() bool {
	return len(n.items) >= n.k
}

// worst 当前第 k 近的距离，未满时返回 false
func (n *neighborList) worst() (float64, bool) {
	if !n.full() {
		return 0, false
	}
	return n.items[len(n.items)-1].Distance, true
}

func (n *neighborList) push(trainIdx int, dist float64) {
	m := feature.Match{TrainIdx: trainIdx, Distance: dist}
	if n.full() && !m.Less(n.items[len(n.items)-1]) {
		return
	}
	pos := sort.Search(len(n.items), func(i int) bool { return m.Less(n.items[i]) })
	n.items = append(n.items, feature.Match{})
	copy(n.items[pos+1:], n.items[pos:])
	n.items[pos] = m
	if len(n.items) > n.k {
		n.items = n.items[:n.k]
	}
}

func (n *neighborList) result() []feature.Match {
	out := make([]feature.Match, len(n.items))
	copy(out, n.items)
	return out
}
