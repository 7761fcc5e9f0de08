//go:build !contrib

package cv

import (
	"github.com/zoeyai/featmatch/pkg/pipeline"
)

// SURFAvailable 当前构建是否包含 SURF
const SURFAvailable = false

func newSURF(pipeline.ExtractorParams) (detector, error) {
	return nil, &pipeline.ExtractorUnavailableError{
		Kind: pipeline.ExtractorSURF,
		Hint: "请安装 OpenCV contrib 模块并使用 -tags contrib 重新构建",
	}
}
