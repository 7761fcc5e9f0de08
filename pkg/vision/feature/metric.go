package feature

import (
	"encoding/binary"
	"math"
	"math/bits"
)

// Metric 描述子距离度量
// 两个描述子必须格式相同、长度相同，否则直接 panic
type Metric interface {
	// Name 度量名称
	Name() string
	// Format 适用的描述子格式
	Format() Format
	// Distance 计算距离，结果非负，越小越相似
	Distance(a, b Descriptor) float64
}

var (
	// Hamming 二进制描述子的汉明距离
	Hamming Metric = hammingMetric{}
	// L2 浮点描述子的欧氏距离
	L2 Metric = l2Metric{}
)

// MetricFor 返回格式对应的默认度量
func MetricFor(format Format) Metric {
	if format == FormatFloat {
		return L2
	}
	return Hamming
}

type hammingMetric struct{}

func (hammingMetric) Name() string   { return "hamming" }
func (hammingMetric) Format() Format { return FormatBinary }

func (hammingMetric) Distance(a, b Descriptor) float64 {
	mustSameShape(FormatBinary, a, b)
	return float64(HammingBytes(a.Bits, b.Bits))
}

// HammingBytes 计算两段等长字节的不同位数
func HammingBytes(a, b []byte) int {
	n := 0
	i := 0
	for ; i+8 <= len(a); i += 8 {
		n += bits.OnesCount64(binary.LittleEndian.Uint64(a[i:]) ^ binary.LittleEndian.Uint64(b[i:]))
	}
	for ; i < len(a); i++ {
		n += bits.OnesCount8(a[i] ^ b[i])
	}
	return n
}

type l2Metric struct{}

func (l2Metric) Name() string   { return "l2" }
func (l2Metric) Format() Format { return FormatFloat }

func (l2Metric) Distance(a, b Descriptor) float64 {
	mustSameShape(FormatFloat, a, b)
	return math.Sqrt(SquaredL2(a.Vec, b.Vec))
}

// SquaredL2 计算平方欧氏距离
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func mustSameShape(want Format, a, b Descriptor) {
	if fa := a.Format(); fa != want {
		panic(&FormatMismatchError{Want: want, Got: fa, Index: -1})
	}
	if fb := b.Format(); fb != want {
		panic(&FormatMismatchError{Want: want, Got: fb, Index: -1})
	}
	if a.Len() != b.Len() {
		panic(&FormatMismatchError{Want: want, Got: want, WantLen: a.Len(), GotLen: b.Len(), Index: -1})
	}
}
