package matcher

import (
	"math/rand"

	"github.com/zoeyai/featmatch/pkg/vision/feature"
)

type lshTable struct {
	// positions 参与哈希键的位下标
	positions []int
	buckets   map[uint32][]int
}

func (t *lshTable) key(bits []byte) uint32 {
	var key uint32
	for i, pos := range t.positions {
		if bits[pos>>3]&(1<<(pos&7)) != 0 {
			key |= 1 << i
		}
	}
	return key
}

// lshIndex 多表局部敏感哈希
// 每张表随机抽取 KeySize 个位作为键，查询时探测键本身及汉明半径 MultiProbe 内的相邻键
type lshIndex struct {
	set        *feature.Set
	metric     feature.Metric
	tables     []lshTable
	multiProbe int
}

func newLSHIndex(set *feature.Set, metric feature.Metric, cfg IndexConfig) *lshIndex {
	rng := rand.New(rand.NewSource(cfg.Seed))
	nbits := set.DescriptorLen() * 8

	idx := &lshIndex{
		set:        set,
		metric:     metric,
		tables:     make([]lshTable, cfg.Tables),
		multiProbe: cfg.MultiProbe,
	}
	for t := range idx.tables {
		table := lshTable{
			positions: rng.Perm(nbits)[:cfg.KeySize],
			buckets:   make(map[uint32][]int),
		}
		for j := 0; j < set.Len(); j++ {
			k := table.key(set.Descriptor(j).Bits)
			table.buckets[k] = append(table.buckets[k], j)
		}
		idx.tables[t] = table
	}
	return idx
}

func (l *lshIndex) Kind() IndexKind { return IndexLSH }
func (l *lshIndex) Len() int        { return l.set.Len() }

func (l *lshIndex) Search(q feature.Descriptor, k int) []feature.Match {
	nl := newNeighborList(k)
	visited := make(map[int]struct{})

	visit := func(bucket []int) {
		for _, j := range bucket {
			if _, ok := visited[j]; ok {
				continue
			}
			visited[j] = struct{}{}
			nl.push(j, l.metric.Distance(q, l.set.Descriptor(j)))
		}
	}

	for i := range l.tables {
		t := &l.tables[i]
		key := t.key(q.Bits)
		for _, probe := range probeKeys(key, len(t.positions), l.multiProbe) {
			visit(t.buckets[probe])
		}
	}
	return nl.result()
}

// probeKeys 返回与 key 汉明距离不超过 level 的所有键
func probeKeys(key uint32, keySize, level int) []uint32 {
	keys := []uint32{key}
	if level >= 1 {
		for i := 0; i < keySize; i++ {
			keys = append(keys, key^(1<<i))
		}
	}
	if level >= 2 {
		for i := 0; i < keySize; i++ {
			for j := i + 1; j < keySize; j++ {
				keys = append(keys, key^(1<<i)^(1<<j))
			}
		}
	}
	return keys
}
