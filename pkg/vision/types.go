package vision

import (
	"github.com/zoeyai/featmatch/pkg/pipeline"
)

// 版本信息，构建时通过 -ldflags 注入
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Summary 单次匹配的结果摘要
type Summary = pipeline.Summary

// Variant 匹配预设
type Variant = pipeline.Variant

// Manifest 批量匹配清单
type Manifest = pipeline.Manifest

// LoadManifest 读取批量匹配清单
func LoadManifest(path string) (*Manifest, error) {
	return pipeline.LoadManifest(path)
}
