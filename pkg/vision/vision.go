// Package vision 提供两张图像的特征匹配功能
//
// 主要功能:
//   - 特征匹配: ORB、BRISK、FREAK、SIFT、SURF、AKAZE、KAZE 七种预设
//   - 批量匹配: 按 YAML 清单并发处理多组图像
//
// 基本用法:
//
//	summary, err := vision.MatchImages(ctx, "1.jpg", "2.jpg",
//	    vision.WithVariant("sift"),
//	    vision.WithOutputDir("out"),
//	)
//	if err != nil {
//	    os.Exit(pipeline.ExitCode(err))
//	}
//	summary.Print(os.Stdout)
package vision

import (
	"context"
	"sync"

	"github.com/zoeyai/featmatch/pkg/pipeline"
	"github.com/zoeyai/featmatch/pkg/vision/cv"
)

var (
	toolkitOnce sync.Once
	toolkit     *cv.Toolkit
	toolkitErr  error
)

// defaultDeps 返回基于 gocv 的依赖，Toolkit 无状态，全局共享一个
func defaultDeps() (pipeline.Deps, error) {
	toolkitOnce.Do(func() {
		toolkit, toolkitErr = cv.NewToolkit()
	})
	if toolkitErr != nil {
		return pipeline.Deps{}, toolkitErr
	}
	return toolkit.Deps(), nil
}

func (c *matchConfig) resolveDeps() (pipeline.Deps, error) {
	if c.deps != nil {
		return *c.deps, nil
	}
	return defaultDeps()
}

// NewPipeline 按选项创建流水线，调用方负责 Close
func NewPipeline(opts ...Option) (*pipeline.Pipeline, error) {
	v, cfg, err := resolve(opts)
	if err != nil {
		return nil, err
	}
	deps, err := cfg.resolveDeps()
	if err != nil {
		return nil, err
	}
	return pipeline.New(deps, v, cfg.opts...)
}

// MatchImages 匹配两张图像并保存可视化结果
func MatchImages(ctx context.Context, source, target string, opts ...Option) (*pipeline.Summary, error) {
	p, err := NewPipeline(opts...)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	return p.Run(ctx, source, target)
}

// RunBatch 并发匹配清单中的全部图像对
// 变体与输出路径由清单决定，opts 中的其余选项应用于每个图像对
func RunBatch(ctx context.Context, m *pipeline.Manifest, bo pipeline.BatchOptions, opts ...Option) (*pipeline.BatchReport, error) {
	cfg, err := apply(opts)
	if err != nil {
		return nil, err
	}
	deps, err := cfg.resolveDeps()
	if err != nil {
		return nil, err
	}
	return pipeline.RunBatch(ctx, deps, m, bo, cfg.opts...)
}

// Variants 返回全部预设，按名称排序
func Variants() []pipeline.Variant {
	names := pipeline.VariantNames()
	out := make([]pipeline.Variant, 0, len(names))
	for _, name := range names {
		v, err := pipeline.LookupVariant(name)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// SURFAvailable 当前构建是否支持 SURF
func SURFAvailable() bool {
	return cv.SURFAvailable
}
