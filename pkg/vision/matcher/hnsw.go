package matcher

import (
	"math/rand"
	"sort"

	"github.com/coder/hnsw"

	"github.com/zoeyai/featmatch/pkg/vision/feature"
)

// hnswIndex 基于 HNSW 图的近似索引
// 二进制描述子展开为 0/1 向量，此时平方欧氏距离等于汉明距离
type hnswIndex struct {
	set      *feature.Set
	metric   feature.Metric
	graph    *hnsw.Graph[int]
	efSearch int
}

func newHNSWIndex(set *feature.Set, metric feature.Metric, cfg IndexConfig) *hnswIndex {
	g := hnsw.NewGraph[int]()
	g.M = cfg.M
	g.EfSearch = cfg.EfSearch
	g.Distance = hnsw.EuclideanDistance
	g.Rng = rand.New(rand.NewSource(cfg.Seed))

	nodes := make([]hnsw.Node[int], set.Len())
	for j := range nodes {
		nodes[j] = hnsw.MakeNode(j, toVector(set.Descriptor(j)))
	}
	g.Add(nodes...)

	return &hnswIndex{set: set, metric: metric, graph: g, efSearch: cfg.EfSearch}
}

func (h *hnswIndex) Kind() IndexKind { return IndexHNSW }
func (h *hnswIndex) Len() int        { return h.set.Len() }

// Search 以 max(k, EfSearch) 个结果查询图，重新计算距离后保留前 k 个
// 图搜索的结果数同时限制了候选队列，只传 k 时 EfSearch 不起作用
func (h *hnswIndex) Search(q feature.Descriptor, k int) []feature.Match {
	if k <= 0 {
		return nil
	}
	nodes := h.graph.Search(toVector(q), max(k, h.efSearch))

	out := make([]feature.Match, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, feature.Match{
			TrainIdx: n.Key,
			Distance: h.metric.Distance(q, h.set.Descriptor(n.Key)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// toVector 把描述子转换为 hnsw 使用的 float32 向量
func toVector(d feature.Descriptor) hnsw.Vector {
	if d.Format() == feature.FormatFloat {
		return d.Vec
	}
	v := make(hnsw.Vector, len(d.Bits)*8)
	for i, b := range d.Bits {
		for bit := 0; bit < 8; bit++ {
			if b&(1<<bit) != 0 {
				v[i*8+bit] = 1
			}
		}
	}
	return v
}
