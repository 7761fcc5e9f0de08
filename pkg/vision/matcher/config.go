package matcher

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidConfig 匹配配置非法
	ErrInvalidConfig = errors.New("invalid matcher config")
	// ErrUnsupportedIndex 索引类型与描述子格式不匹配
	ErrUnsupportedIndex = errors.New("index kind does not support descriptor format")
)

// Strategy 匹配策略
type Strategy int

const (
	// StrategyCrossCheck 穷举 + 交叉验证，只保留互为最近邻的点对
	StrategyCrossCheck Strategy = iota + 1
	// StrategyKNN 穷举 K 近邻，保留次近邻供比率测试使用
	StrategyKNN
	// StrategyIndexedKNN 近似索引上的 K 近邻
	StrategyIndexedKNN
)

func (s Strategy) String() string {
	switch s {
	case StrategyCrossCheck:
		return "crosscheck"
	case StrategyKNN:
		return "knn"
	case StrategyIndexedKNN:
		return "indexed-knn"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy 解析策略名称
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "crosscheck", "cross-check", "bf":
		return StrategyCrossCheck, nil
	case "knn":
		return StrategyKNN, nil
	case "indexed-knn", "indexed", "flann":
		return StrategyIndexedKNN, nil
	default:
		return 0, fmt.Errorf("%w: 未知匹配策略 %q", ErrInvalidConfig, s)
	}
}

// IndexKind 近似索引类型
type IndexKind string

const (
	// IndexAuto 浮点描述子使用 kd 树森林，二进制描述子使用 LSH
	IndexAuto IndexKind = "auto"
	// IndexKDTree 随机 kd 树森林，仅支持浮点描述子
	IndexKDTree IndexKind = "kdtree"
	// IndexLSH 多表局部敏感哈希，仅支持二进制描述子
	IndexLSH IndexKind = "lsh"
	// IndexHNSW 分层可导航小世界图，两种格式都支持
	IndexHNSW IndexKind = "hnsw"
	// IndexBrute 穷举索引，StrategyKNN 内部使用
	IndexBrute IndexKind = "brute"
)

// ParseIndexKind 解析索引类型
func ParseIndexKind(s string) (IndexKind, error) {
	switch k := IndexKind(strings.ToLower(s)); k {
	case IndexAuto, IndexKDTree, IndexLSH, IndexHNSW, IndexBrute:
		return k, nil
	case "":
		return IndexAuto, nil
	default:
		return "", fmt.Errorf("%w: 未知索引类型 %q", ErrInvalidConfig, s)
	}
}

// IndexConfig 近似索引参数
type IndexConfig struct {
	Kind IndexKind `json:"kind" yaml:"kind"`

	// kd 树森林
	Trees    int `json:"trees" yaml:"trees"`         // 树的数量
	Checks   int `json:"checks" yaml:"checks"`       // 每次查询最多检查的叶子点数，<=0 表示不限
	LeafSize int `json:"leaf_size" yaml:"leaf_size"` // 叶子最大点数

	// LSH
	Tables     int `json:"tables" yaml:"tables"`           // 哈希表数量
	KeySize    int `json:"key_size" yaml:"key_size"`       // 每个哈希键的位数
	MultiProbe int `json:"multi_probe" yaml:"multi_probe"` // 多探测层级 (0-2)

	// HNSW
	M        int `json:"m" yaml:"m"`                 // 每个节点的最大邻居数
	EfSearch int `json:"ef_search" yaml:"ef_search"` // 查询时的候选队列长度

	// Seed 随机种子，相同种子构建出相同索引
	Seed int64 `json:"seed" yaml:"seed"`
}

// DefaultIndexConfig 默认索引参数
// kd 树参数与 FLANN 的 trees=5, checks=50 一致
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		Kind:       IndexAuto,
		Trees:      5,
		Checks:     50,
		LeafSize:   4,
		Tables:     6,
		KeySize:    12,
		MultiProbe: 1,
		M:          16,
		EfSearch:   50,
		Seed:       1,
	}
}

// Validate 校验索引参数
func (c IndexConfig) Validate() error {
	if _, err := ParseIndexKind(string(c.Kind)); err != nil {
		return err
	}
	switch {
	case c.Trees < 1:
		return fmt.Errorf("%w: trees 必须 >= 1, 实际为 %d", ErrInvalidConfig, c.Trees)
	case c.LeafSize < 1:
		return fmt.Errorf("%w: leaf_size 必须 >= 1, 实际为 %d", ErrInvalidConfig, c.LeafSize)
	case c.Tables < 1:
		return fmt.Errorf("%w: tables 必须 >= 1, 实际为 %d", ErrInvalidConfig, c.Tables)
	case c.KeySize < 1 || c.KeySize > 32:
		return fmt.Errorf("%w: key_size 必须在 [1, 32] 内, 实际为 %d", ErrInvalidConfig, c.KeySize)
	case c.MultiProbe < 0 || c.MultiProbe > 2:
		return fmt.Errorf("%w: multi_probe 必须在 [0, 2] 内, 实际为 %d", ErrInvalidConfig, c.MultiProbe)
	case c.M < 2:
		return fmt.Errorf("%w: m 必须 >= 2, 实际为 %d", ErrInvalidConfig, c.M)
	case c.EfSearch < 1:
		return fmt.Errorf("%w: ef_search 必须 >= 1, 实际为 %d", ErrInvalidConfig, c.EfSearch)
	}
	return nil
}

// Config 匹配配置
type Config struct {
	Strategy Strategy    `json:"strategy"`
	K        int         `json:"k"` // KNN 策略的近邻数，比率测试需要 2
	Index    IndexConfig `json:"index"`
}

// DefaultConfig 返回指定策略的默认配置
func DefaultConfig(strategy Strategy) Config {
	return Config{
		Strategy: strategy,
		K:        2,
		Index:    DefaultIndexConfig(),
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyCrossCheck:
		return nil
	case StrategyKNN:
	case StrategyIndexedKNN:
		if err := c.Index.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: 未知匹配策略 %s", ErrInvalidConfig, c.Strategy)
	}
	if c.K < 1 {
		return fmt.Errorf("%w: k 必须 >= 1, 实际为 %d", ErrInvalidConfig, c.K)
	}
	return nil
}
