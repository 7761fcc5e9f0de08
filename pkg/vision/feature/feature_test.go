package feature

import (
	"errors"
	"math"
	"testing"
)

func TestHammingSelfDistance(t *testing.T) {
	d := BinaryDescriptor([]byte{0xff, 0x0f, 0xaa, 0x55, 0x01, 0x02, 0x03, 0x04, 0x80})
	if got := Hamming.Distance(d, d); got != 0 {
		t.Errorf("描述子与自身的汉明距离应为 0, 实际为 %v", got)
	}
}

func TestHammingDistance(t *testing.T) {
	testCases := []struct {
		name string
		a, b []byte
		want float64
	}{
		{"全同", []byte{0x00}, []byte{0x00}, 0},
		{"单字节全异", []byte{0x00}, []byte{0xff}, 8},
		{"跨字长", make([]byte, 32), append(make([]byte, 31), 0x03), 2},
		{"尾部字节", append(make([]byte, 8), 0x01), append(make([]byte, 8), 0x00), 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Hamming.Distance(BinaryDescriptor(tc.a), BinaryDescriptor(tc.b))
			if got != tc.want {
				t.Errorf("汉明距离错误: got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestL2Distance(t *testing.T) {
	a := FloatDescriptor([]float32{0, 0, 0})
	b := FloatDescriptor([]float32{3, 4, 0})

	if got := L2.Distance(a, a); got != 0 {
		t.Errorf("描述子与自身的欧氏距离应为 0, 实际为 %v", got)
	}
	if got := L2.Distance(a, b); math.Abs(got-5) > 1e-9 {
		t.Errorf("欧氏距离错误: got %v, want 5", got)
	}
}

func TestMetricPanicsOnMismatch(t *testing.T) {
	testCases := []struct {
		name   string
		metric Metric
		a, b   Descriptor
	}{
		{"长度不一致", Hamming, BinaryDescriptor([]byte{1}), BinaryDescriptor([]byte{1, 2})},
		{"格式不一致", L2, FloatDescriptor([]float32{1}), BinaryDescriptor([]byte{1})},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if r == nil {
					t.Fatal("描述子不一致时应 panic")
				}
				if _, ok := r.(*FormatMismatchError); !ok {
					t.Errorf("panic 值应为 *FormatMismatchError, 实际为 %T", r)
				}
			}()
			tc.metric.Distance(tc.a, tc.b)
		})
	}
}

func TestNewSet(t *testing.T) {
	kps := []Keypoint{{X: 1, Y: 2}, {X: 3, Y: 4}}

	set, err := NewSet(FormatBinary, kps, []Descriptor{
		BinaryDescriptor([]byte{1, 2}),
		BinaryDescriptor([]byte{3, 4}),
	})
	if err != nil {
		t.Fatalf("创建集合失败: %v", err)
	}
	if set.Len() != 2 || set.DescriptorLen() != 2 {
		t.Errorf("集合大小错误: len=%d, descLen=%d", set.Len(), set.DescriptorLen())
	}

	_, err = NewSet(FormatBinary, kps, []Descriptor{BinaryDescriptor([]byte{1})})
	if err == nil {
		t.Error("特征点与描述子数量不一致时应返回错误")
	}

	_, err = NewSet(FormatBinary, kps, []Descriptor{
		BinaryDescriptor([]byte{1, 2}),
		BinaryDescriptor([]byte{3}),
	})
	var mismatch *FormatMismatchError
	if !errors.As(err, &mismatch) {
		t.Errorf("描述子长度不一致时应返回 FormatMismatchError, 实际为 %v", err)
	}
}

func TestCompatible(t *testing.T) {
	bin, _ := NewSet(FormatBinary, []Keypoint{{}}, []Descriptor{BinaryDescriptor([]byte{1})})
	flt, _ := NewSet(FormatFloat, []Keypoint{{}}, []Descriptor{FloatDescriptor([]float32{1})})

	if err := Compatible(bin, bin); err != nil {
		t.Errorf("同构集合应兼容: %v", err)
	}
	if err := Compatible(bin, flt); err == nil {
		t.Error("不同格式的集合不应兼容")
	}
	if err := Compatible(bin, EmptySet(FormatFloat)); err != nil {
		t.Errorf("空集合应与任何集合兼容: %v", err)
	}
}

func TestMatchLess(t *testing.T) {
	a := Match{QueryIdx: 1, TrainIdx: 2, Distance: 3}
	b := Match{QueryIdx: 0, TrainIdx: 5, Distance: 3}
	if !b.Less(a) || a.Less(b) {
		t.Error("距离相同时应按源下标排序")
	}
}
