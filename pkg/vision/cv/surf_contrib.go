//go:build contrib

package cv

import (
	"gocv.io/x/gocv/contrib"

	"github.com/zoeyai/featmatch/pkg/pipeline"
)

// SURFAvailable 当前构建是否包含 SURF
const SURFAvailable = true

// newSURF 创建 SURF 检测器，零值参数使用 OpenCV 默认值
func newSURF(params pipeline.ExtractorParams) (detector, error) {
	hessian := params.HessianThreshold
	if hessian == 0 {
		hessian = 100
	}
	octaves := params.Octaves
	if octaves == 0 {
		octaves = 4
	}
	layers := params.OctaveLayers
	if layers == 0 {
		layers = 3
	}

	surf := contrib.NewSURFWithParams(hessian, octaves, layers, params.Extended, params.Upright)
	return &surf, nil
}
