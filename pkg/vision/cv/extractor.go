package cv

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/zoeyai/featmatch/pkg/pipeline"
	"github.com/zoeyai/featmatch/pkg/vision/feature"
)

// detector gocv 特征检测器的公共方法
type detector interface {
	DetectAndCompute(src gocv.Mat, mask gocv.Mat) ([]gocv.KeyPoint, gocv.Mat)
	Close() error
}

// Extractor 基于 gocv 检测器的特征提取器，实现 pipeline.Extractor
// 同一个 Extractor 不能并发使用
type Extractor struct {
	kind      pipeline.ExtractorKind
	format    feature.Format
	grayscale bool
	detector  detector
}

// NewExtractor 按种类创建提取器
// 当前构建不支持时返回 *pipeline.ExtractorUnavailableError
func NewExtractor(kind pipeline.ExtractorKind, params pipeline.ExtractorParams) (pipeline.Extractor, error) {
	var (
		d      detector
		format feature.Format
	)

	switch kind {
	case pipeline.ExtractorORB:
		orb := gocv.NewORB()
		d, format = &orb, feature.FormatBinary
	case pipeline.ExtractorBRISK:
		brisk := gocv.NewBRISK()
		d, format = &brisk, feature.FormatBinary
	case pipeline.ExtractorAKAZE:
		akaze := gocv.NewAKAZE()
		d, format = &akaze, feature.FormatBinary
	case pipeline.ExtractorSIFT:
		sift := gocv.NewSIFT()
		d, format = &sift, feature.FormatFloat
	case pipeline.ExtractorKAZE:
		kaze := gocv.NewKAZE()
		d, format = &kaze, feature.FormatFloat
	case pipeline.ExtractorSURF:
		surf, err := newSURF(params)
		if err != nil {
			return nil, err
		}
		d, format = surf, feature.FormatFloat
	default:
		return nil, &pipeline.ExtractorUnavailableError{Kind: kind, Hint: "未知的特征提取算法"}
	}

	return &Extractor{
		kind:      kind,
		format:    format,
		grayscale: params.Grayscale,
		detector:  d,
	}, nil
}

// Name 算法名
func (e *Extractor) Name() string {
	return string(e.kind)
}

// Format 描述子格式
func (e *Extractor) Format() feature.Format {
	return e.format
}

// Extract 检测特征点并计算描述子
func (e *Extractor) Extract(img pipeline.Image) (*feature.Set, error) {
	mat, err := matOf(img)
	if err != nil {
		return nil, err
	}
	if mat.Empty() {
		return nil, fmt.Errorf("图像为空")
	}

	src := mat
	if e.grayscale {
		src = ToGray(mat)
		defer src.Close()
	}

	mask := gocv.NewMat()
	defer mask.Close()

	kps, desc := e.detector.DetectAndCompute(src, mask)
	defer desc.Close()

	return toSet(e.format, kps, desc)
}

// Close 释放检测器
func (e *Extractor) Close() error {
	return e.detector.Close()
}

// toSet 把 gocv 的特征点与描述子矩阵转换为描述子集合
// CV_8U 描述子按字节打包，CV_32F 描述子复制为 float32 向量
func toSet(format feature.Format, kps []gocv.KeyPoint, desc gocv.Mat) (*feature.Set, error) {
	if len(kps) == 0 || desc.Empty() {
		return feature.EmptySet(format), nil
	}
	if desc.Rows() != len(kps) {
		return nil, fmt.Errorf("描述子行数 %d 与特征点数量 %d 不一致", desc.Rows(), len(kps))
	}

	keypoints := make([]feature.Keypoint, len(kps))
	for i, kp := range kps {
		keypoints[i] = feature.Keypoint{
			X:        kp.X,
			Y:        kp.Y,
			Size:     kp.Size,
			Angle:    kp.Angle,
			Response: kp.Response,
			Octave:   kp.Octave,
		}
	}

	cols := desc.Cols()
	descriptors := make([]feature.Descriptor, len(kps))

	switch format {
	case feature.FormatBinary:
		if desc.Type() != gocv.MatTypeCV8U {
			return nil, &feature.FormatMismatchError{Want: feature.FormatBinary, Got: feature.FormatFloat, Index: -1}
		}
		data := desc.ToBytes()
		for i := range descriptors {
			descriptors[i] = feature.BinaryDescriptor(data[i*cols : (i+1)*cols : (i+1)*cols])
		}
	case feature.FormatFloat:
		if desc.Type() != gocv.MatTypeCV32F {
			return nil, &feature.FormatMismatchError{Want: feature.FormatFloat, Got: feature.FormatBinary, Index: -1}
		}
		data, err := desc.DataPtrFloat32()
		if err != nil {
			return nil, fmt.Errorf("读取描述子失败: %w", err)
		}
		// data 指向 C 内存，desc 释放前复制出来
		vecs := make([]float32, len(data))
		copy(vecs, data)
		for i := range descriptors {
			descriptors[i] = feature.FloatDescriptor(vecs[i*cols : (i+1)*cols : (i+1)*cols])
		}
	default:
		return nil, fmt.Errorf("未知描述子格式 %s", format)
	}

	return feature.NewSet(format, keypoints, descriptors)
}

// toKeyPoints 把特征点转换回 gocv 格式用于绘制
func toKeyPoints(set *feature.Set) []gocv.KeyPoint {
	if set.Len() == 0 {
		return nil
	}
	out := make([]gocv.KeyPoint, set.Len())
	for i, kp := range set.Keypoints() {
		out[i] = gocv.KeyPoint{
			X:        kp.X,
			Y:        kp.Y,
			Size:     kp.Size,
			Angle:    kp.Angle,
			Response: kp.Response,
			Octave:   kp.Octave,
			ClassID:  -1,
		}
	}
	return out
}

// toDMatches 把接受的匹配转换为 gocv 格式
func toDMatches(matches []feature.Match) []gocv.DMatch {
	out := make([]gocv.DMatch, len(matches))
	for i, m := range matches {
		out[i] = gocv.DMatch{
			QueryIdx: m.QueryIdx,
			TrainIdx: m.TrainIdx,
			Distance: m.Distance,
		}
	}
	return out
}
