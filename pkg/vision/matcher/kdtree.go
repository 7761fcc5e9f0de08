package matcher

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"

	"github.com/zoeyai/featmatch/pkg/vision/feature"
)

const (
	// kdSampleSize 估计均值与方差时使用的样本数
	kdSampleSize = 100
	// kdRandDims 从方差最大的若干维中随机选择切分维
	kdRandDims = 5
)

type kdNode struct {
	dim         int
	split       float32
	left, right *kdNode
	points      []int
}

func (n *kdNode) leaf() bool {
	return n.left == nil
}

// kdForest 随机 kd 树森林
// 查询时所有树共享同一个分支优先队列，检查的叶子点数达到 checks 后停止
type kdForest struct {
	set    *feature.Set
	metric feature.Metric
	trees  []*kdNode
	checks int
}

func newKDForest(set *feature.Set, metric feature.Metric, cfg IndexConfig) *kdForest {
	rng := rand.New(rand.NewSource(cfg.Seed))
	f := &kdForest{
		set:    set,
		metric: metric,
		trees:  make([]*kdNode, cfg.Trees),
		checks: cfg.Checks,
	}
	for t := range f.trees {
		indices := rng.Perm(set.Len())
		f.trees[t] = f.build(indices, cfg.LeafSize, rng)
	}
	return f
}

func (f *kdForest) Kind() IndexKind { return IndexKDTree }
func (f *kdForest) Len() int        { return f.set.Len() }

func (f *kdForest) build(indices []int, leafSize int, rng *rand.Rand) *kdNode {
	if len(indices) <= leafSize {
		return &kdNode{points: indices}
	}

	dim, split, ok := f.chooseSplit(indices, rng)
	if !ok {
		return &kdNode{points: indices}
	}

	// 原地划分: [0, lim) < split <= [lim, n)
	lim := 0
	for i, p := range indices {
		if f.set.Descriptor(p).Vec[dim] < split {
			indices[i], indices[lim] = indices[lim], indices[i]
			lim++
		}
	}
	if lim == 0 || lim == len(indices) {
		return &kdNode{points: indices}
	}

	return &kdNode{
		dim:   dim,
		split: split,
		left:  f.build(indices[:lim], leafSize, rng),
		right: f.build(indices[lim:], leafSize, rng),
	}
}

// chooseSplit 在方差最大的 kdRandDims 维中随机选一维，以均值切分
func (f *kdForest) chooseSplit(indices []int, rng *rand.Rand) (int, float32, bool) {
	dims := f.set.DescriptorLen()
	n := min(len(indices), kdSampleSize)

	mean := make([]float64, dims)
	for _, p := range indices[:n] {
		for d, v := range f.set.Descriptor(p).Vec {
			mean[d] += float64(v)
		}
	}
	for d := range mean {
		mean[d] /= float64(n)
	}

	variance := make([]float64, dims)
	for _, p := range indices[:n] {
		for d, v := range f.set.Descriptor(p).Vec {
			diff := float64(v) - mean[d]
			variance[d] += diff * diff
		}
	}

	order := make([]int, dims)
	for d := range order {
		order[d] = d
	}
	sort.SliceStable(order, func(i, j int) bool { return variance[order[i]] > variance[order[j]] })

	top := min(kdRandDims, dims)
	for top > 0 && variance[order[top-1]] == 0 {
		top--
	}
	if top == 0 {
		return 0, 0, false
	}
	dim := order[rng.Intn(top)]
	return dim, float32(mean[dim]), true
}

func (f *kdForest) Search(q feature.Descriptor, k int) []feature.Match {
	s := &kdSearch{
		forest:  f,
		q:       q,
		nl:      newNeighborList(k),
		visited: make([]bool, f.set.Len()),
	}

	for _, root := range f.trees {
		s.descend(root, 0)
	}
	for s.branches.Len() > 0 && !s.done() {
		b := heap.Pop(&s.branches).(kdBranch)
		s.descend(b.node, b.mindist)
	}
	return s.nl.result()
}

type kdSearch struct {
	forest   *kdForest
	q        feature.Descriptor
	nl       *neighborList
	visited  []bool
	checked  int
	branches kdBranchQueue
}

func (s *kdSearch) done() bool {
	return s.forest.checks > 0 && s.checked >= s.forest.checks && s.nl.full()
}

// descend 沿最近分支下降到叶子，沿途把另一侧分支加入优先队列
// mindist 是到该节点区域的平方距离下界
func (s *kdSearch) descend(node *kdNode, mindist float64) {
	if worst, ok := s.nl.worst(); ok && math.Sqrt(mindist) > worst {
		return
	}

	for !node.leaf() {
		diff := float64(s.q.Vec[node.dim]) - float64(node.split)
		near, far := node.left, node.right
		if diff >= 0 {
			near, far = node.right, node.left
		}
		heap.Push(&s.branches, kdBranch{node: far, mindist: math.Max(mindist, diff*diff)})
		node = near
	}

	for _, p := range node.points {
		if s.done() {
			return
		}
		if s.visited[p] {
			continue
		}
		s.visited[p] = true
		s.checked++
		s.nl.push(p, s.forest.metric.Distance(s.q, s.forest.set.Descriptor(p)))
	}
}

type kdBranch struct {
	node    *kdNode
	mindist float64
}

type kdBranchQueue []kdBranch

func (q kdBranchQueue) Len() int           { return len(q) }
func (q kdBranchQueue) Less(i, j int) bool { return q[i].mindist < q[j].mindist }
func (q kdBranchQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *kdBranchQueue) Push(x any) {
	*q = append(*q, x.(kdBranch))
}

func (q *kdBranchQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
