// Package feature 定义特征点、描述子集合以及描述子距离度量
//
// 描述子集合是一张图像的特征提取结果：特征点与描述子按下标一一对应，
// 匹配结果只通过下标引用集合中的元素。
package feature

import (
	"fmt"
)

// Format 描述子格式
type Format int

const (
	// FormatUnknown 未声明格式
	FormatUnknown Format = iota
	// FormatBinary 按位打包的二进制描述子 (ORB/BRISK/AKAZE)
	FormatBinary
	// FormatFloat 浮点向量描述子 (SIFT/SURF/KAZE)
	FormatFloat
)

func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "binary"
	case FormatFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Keypoint 特征点，由提取器生成后不再修改
type Keypoint struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Size     float64 `json:"size"`
	Angle    float64 `json:"angle"`
	Response float64 `json:"response"`
	Octave   int     `json:"octave"`
}

// Descriptor 单个描述子
// 二进制描述子使用 Bits，浮点描述子使用 Vec，二者只能有一个非空
type Descriptor struct {
	Bits []byte
	Vec  []float32
}

// BinaryDescriptor 创建二进制描述子
func BinaryDescriptor(bits []byte) Descriptor {
	return Descriptor{Bits: bits}
}

// FloatDescriptor 创建浮点描述子
func FloatDescriptor(vec []float32) Descriptor {
	return Descriptor{Vec: vec}
}

// Format 返回描述子格式
func (d Descriptor) Format() Format {
	switch {
	case d.Bits != nil && d.Vec == nil:
		return FormatBinary
	case d.Vec != nil && d.Bits == nil:
		return FormatFloat
	default:
		return FormatUnknown
	}
}

// Len 返回描述子长度（二进制为字节数，浮点为维度）
func (d Descriptor) Len() int {
	if d.Bits != nil {
		return len(d.Bits)
	}
	return len(d.Vec)
}

// Match 匹配候选
// QueryIdx 为源集合下标，TrainIdx 为目标集合下标，Distance 越小越相似
type Match struct {
	QueryIdx int     `json:"query_idx"`
	TrainIdx int     `json:"train_idx"`
	Distance float64 `json:"distance"`
}

// Less 按 (距离, 源下标, 目标下标) 排序，保证结果确定
func (m Match) Less(o Match) bool {
	if m.Distance != o.Distance {
		return m.Distance < o.Distance
	}
	if m.QueryIdx != o.QueryIdx {
		return m.QueryIdx < o.QueryIdx
	}
	return m.TrainIdx < o.TrainIdx
}

// Set 描述子集合
type Set struct {
	format      Format
	length      int
	keypoints   []Keypoint
	descriptors []Descriptor
}

// NewSet 创建描述子集合
// 特征点与描述子数量必须一致，且所有描述子格式和长度相同
func NewSet(format Format, keypoints []Keypoint, descriptors []Descriptor) (*Set, error) {
	if format != FormatBinary && format != FormatFloat {
		return nil, fmt.Errorf("不支持的描述子格式: %s", format)
	}
	if len(keypoints) != len(descriptors) {
		return nil, fmt.Errorf("特征点与描述子数量不一致: %d != %d", len(keypoints), len(descriptors))
	}

	length := 0
	for i, d := range descriptors {
		if d.Format() != format {
			return nil, &FormatMismatchError{Want: format, Got: d.Format(), Index: i}
		}
		if i == 0 {
			length = d.Len()
			if length == 0 {
				return nil, fmt.Errorf("描述子长度为 0")
			}
			continue
		}
		if d.Len() != length {
			return nil, &FormatMismatchError{Want: format, Got: format, WantLen: length, GotLen: d.Len(), Index: i}
		}
	}

	return &Set{
		format:      format,
		length:      length,
		keypoints:   keypoints,
		descriptors: descriptors,
	}, nil
}

// EmptySet 创建空集合（提取到 0 个特征点时使用）
func EmptySet(format Format) *Set {
	return &Set{format: format}
}

// Format 返回集合的描述子格式
func (s *Set) Format() Format {
	return s.format
}

// DescriptorLen 返回描述子长度，空集合为 0
func (s *Set) DescriptorLen() int {
	return s.length
}

// Len 返回元素数量
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.descriptors)
}

// Keypoint 返回第 i 个特征点
func (s *Set) Keypoint(i int) Keypoint {
	return s.keypoints[i]
}

// Keypoints 返回特征点切片（只读）
func (s *Set) Keypoints() []Keypoint {
	return s.keypoints
}

// Descriptor 返回第 i 个描述子
func (s *Set) Descriptor(i int) Descriptor {
	return s.descriptors[i]
}

// Compatible 检查两个集合能否互相匹配
// 任一集合为空时总是兼容
func Compatible(a, b *Set) error {
	if a.Len() == 0 || b.Len() == 0 {
		return nil
	}
	if a.format != b.format || a.length != b.length {
		return &FormatMismatchError{Want: a.format, Got: b.format, WantLen: a.length, GotLen: b.length, Index: -1}
	}
	return nil
}
