package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zoeyai/featmatch/pkg/vision/matcher"
	"github.com/zoeyai/featmatch/pkg/vision/selector"
)

// ExtractorKind 特征提取算法
type ExtractorKind string

const (
	ExtractorORB   ExtractorKind = "ORB"
	ExtractorBRISK ExtractorKind = "BRISK"
	ExtractorSIFT  ExtractorKind = "SIFT"
	ExtractorSURF  ExtractorKind = "SURF"
	ExtractorAKAZE ExtractorKind = "AKAZE"
	ExtractorKAZE  ExtractorKind = "KAZE"
)

// ExtractorParams 提取器参数，零值表示使用算法默认值
type ExtractorParams struct {
	// Grayscale 提取前转换为灰度图
	Grayscale bool `json:"grayscale" yaml:"grayscale"`

	// SURF
	HessianThreshold float64 `json:"hessian_threshold,omitempty" yaml:"hessian_threshold,omitempty"`
	Octaves          int     `json:"octaves,omitempty" yaml:"octaves,omitempty"`
	OctaveLayers     int     `json:"octave_layers,omitempty" yaml:"octave_layers,omitempty"`
	Extended         bool    `json:"extended,omitempty" yaml:"extended,omitempty"`
	Upright          bool    `json:"upright,omitempty" yaml:"upright,omitempty"`
}

// Variant 一组固定搭配: 提取器 + 匹配策略 + 筛选策略 + 输出文件名
type Variant struct {
	Name        string
	Description string
	Extractor   ExtractorKind
	Params      ExtractorParams
	Matcher     matcher.Config
	Selector    selector.Config

	// ResizeToCommon 提取前把两张图缩放到相同尺寸
	ResizeToCommon bool
	// DecorateKeypoints 拼接前绘制带尺度与方向的特征点
	DecorateKeypoints bool
	// DrawUnmatched 绘制未参与匹配的特征点
	DrawUnmatched bool
	// Annotate 在结果图顶部绘制变体名与统计
	Annotate bool
	// Output 默认输出文件名
	Output string
}

func crossCheckTopK() (matcher.Config, selector.Config) {
	return matcher.DefaultConfig(matcher.StrategyCrossCheck), selector.DefaultConfig(matcher.StrategyCrossCheck)
}

func knnRatio(s matcher.Strategy, ratio float64) (matcher.Config, selector.Config) {
	sel := selector.DefaultConfig(s)
	sel.Ratio = ratio
	return matcher.DefaultConfig(s), sel
}

var variants = map[string]func() Variant{
	"orb": func() Variant {
		m, s := crossCheckTopK()
		return Variant{
			Name:        "orb",
			Description: "ORB + 交叉验证暴力匹配 + 前 50 个最佳匹配",
			Extractor:   ExtractorORB,
			Matcher:     m,
			Selector:    s,
			Output:      "orb_matches_result.jpg",
		}
	},
	"brisk": func() Variant {
		m, s := crossCheckTopK()
		return Variant{
			Name:        "brisk",
			Description: "BRISK (灰度) + 交叉验证暴力匹配 + 前 50 个最佳匹配",
			Extractor:   ExtractorBRISK,
			Params:      ExtractorParams{Grayscale: true},
			Matcher:     m,
			Selector:    s,
			Output:      "brisk_matches.jpg",
		}
	},
	"freak": func() Variant {
		m, s := knnRatio(matcher.StrategyKNN, 0.75)
		return Variant{
			Name:        "freak",
			Description: "ORB 检测与描述 + KNN(k=2) + 比率测试 0.75",
			Extractor:   ExtractorORB,
			Matcher:     m,
			Selector:    s,
			Output:      "feature_matching_result.jpg",
		}
	},
	"sift": func() Variant {
		m, s := knnRatio(matcher.StrategyKNN, 0.75)
		return Variant{
			Name:              "sift",
			Description:       "SIFT (灰度) + KNN(k=2) + 比率测试 0.75，绘制特征点尺度与方向",
			Extractor:         ExtractorSIFT,
			Params:            ExtractorParams{Grayscale: true},
			Matcher:           m,
			Selector:          s,
			DecorateKeypoints: true,
			Output:            "sift_matches_result.jpg",
		}
	},
	"surf": func() Variant {
		m, s := knnRatio(matcher.StrategyIndexedKNN, 0.7)
		m.Index.Kind = matcher.IndexKDTree
		m.Index.Trees = 5
		m.Index.Checks = 50
		return Variant{
			Name:        "surf",
			Description: "SURF (灰度, 统一尺寸) + kd 树近似 KNN(trees=5, checks=50) + 比率测试 0.7",
			Extractor:   ExtractorSURF,
			Params: ExtractorParams{
				Grayscale:        true,
				HessianThreshold: 400,
				Octaves:          4,
				OctaveLayers:     3,
			},
			Matcher:        m,
			Selector:       s,
			ResizeToCommon: true,
			Output:         "surf_matches_result.jpg",
		}
	},
	"akaze": func() Variant {
		m, s := knnRatio(matcher.StrategyKNN, 0.75)
		return Variant{
			Name:        "akaze",
			Description: "AKAZE (灰度) + KNN(k=2) + 比率测试 0.75",
			Extractor:   ExtractorAKAZE,
			Params:      ExtractorParams{Grayscale: true},
			Matcher:     m,
			Selector:    s,
			Output:      "akaze_matches_result.jpg",
		}
	},
	"kaze": func() Variant {
		m, s := knnRatio(matcher.StrategyIndexedKNN, 0.7)
		return Variant{
			Name:        "kaze",
			Description: "KAZE (灰度) + 自动选择近似索引 + 比率测试 0.7",
			Extractor:   ExtractorKAZE,
			Params:      ExtractorParams{Grayscale: true},
			Matcher:     m,
			Selector:    s,
			Output:      "kaze_matches_result.jpg",
		}
	},
}

// LookupVariant 按名称返回变体预设的副本 (不区分大小写)
func LookupVariant(name string) (Variant, error) {
	build, ok := variants[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Variant{}, fmt.Errorf("%w: %q (可选: %s)", ErrUnknownVariant, name, strings.Join(VariantNames(), ", "))
	}
	return build(), nil
}

// VariantNames 按字母序返回全部变体名
func VariantNames() []string {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate 校验变体的匹配与筛选配置是否自洽
func (v Variant) Validate() error {
	if v.Extractor == "" {
		return fmt.Errorf("变体 %s 未指定提取器", v.Name)
	}
	if err := v.Matcher.Validate(); err != nil {
		return fmt.Errorf("变体 %s: %w", v.Name, err)
	}
	if err := v.Selector.Validate(); err != nil {
		return fmt.Errorf("变体 %s: %w", v.Name, err)
	}
	if v.Selector.Policy != selector.PolicyFor(v.Matcher.Strategy) {
		return fmt.Errorf("变体 %s: %s 策略不能搭配 %s 筛选", v.Name, v.Matcher.Strategy, v.Selector.Policy)
	}
	return nil
}
