// Package pipeline 把特征提取、匹配、筛选、绘制与保存串成一次完整运行
//
// 基本用法:
//
//	v, _ := pipeline.LookupVariant("orb")
//	p, err := pipeline.New(deps, v)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//	summary, err := p.Run(ctx, "1.jpg", "2.jpg")
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zoeyai/featmatch/internal/logger"
	"github.com/zoeyai/featmatch/pkg/vision/feature"
	"github.com/zoeyai/featmatch/pkg/vision/matcher"
	"github.com/zoeyai/featmatch/pkg/vision/selector"
)

// Pipeline 一个变体的流水线，持有该变体的提取器
// 同一个 Pipeline 不能并发调用 Run
type Pipeline struct {
	deps     Deps
	variant  Variant
	output   string
	ext      Extractor
	log      *logger.Logger
	recorder Recorder
}

// New 创建流水线
// 提取器在此创建，当前构建不支持该提取器时在读取任何图像之前返回 *ExtractorUnavailableError
func New(deps Deps, v Variant, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		deps:    deps,
		variant: v,
		output:  v.Output,
		log:     logger.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if deps.Loader == nil || deps.Extractors == nil || deps.Renderer == nil || deps.Persister == nil {
		return nil, errors.New("流水线依赖不完整")
	}
	if p.variant.ResizeToCommon && deps.Resizer == nil {
		return nil, fmt.Errorf("变体 %s 需要 Resizer", p.variant.Name)
	}
	if err := p.variant.Validate(); err != nil {
		return nil, err
	}
	if p.output == "" {
		return nil, fmt.Errorf("变体 %s 未指定输出路径", p.variant.Name)
	}

	ext, err := deps.Extractors(p.variant.Extractor, p.variant.Params)
	if err != nil {
		return nil, err
	}
	p.ext = ext
	return p, nil
}

// Variant 返回应用选项后的变体配置
func (p *Pipeline) Variant() Variant {
	return p.variant
}

// Output 返回结果图输出路径
func (p *Pipeline) Output() string {
	return p.output
}

// Close 释放提取器
func (p *Pipeline) Close() error {
	if p.ext == nil {
		return nil
	}
	err := p.ext.Close()
	p.ext = nil
	return err
}

// run 单次运行的中间状态
type run struct {
	src, dst       Image
	srcSet, dstSet *feature.Set
	candidates     matcher.Candidates
	result         *selector.Result
	composite      Image
	owned          []Image
}

func (r *run) own(imgs ...Image) {
	for _, img := range imgs {
		if img != nil {
			r.owned = append(r.owned, img)
		}
	}
}

func (r *run) release() {
	for i := len(r.owned) - 1; i >= 0; i-- {
		r.owned[i].Close()
	}
	r.owned = nil
}

// Run 对 source 与 target 执行一次完整匹配
// 失败时同样返回已填充部分字段的 Summary
func (p *Pipeline) Run(ctx context.Context, source, target string) (*Summary, error) {
	if p.ext == nil {
		return nil, errors.New("流水线已关闭")
	}

	s := &Summary{
		RunID:     uuid.NewString(),
		Variant:   p.variant.Name,
		Source:    source,
		Target:    target,
		Output:    p.output,
		StartedAt: time.Now(),
	}
	r := &run{}
	defer r.release()

	err := p.execute(ctx, s, r)
	s.Elapsed = time.Since(s.StartedAt)

	if p.recorder != nil {
		if recErr := p.recorder.Record(ctx, s, err); recErr != nil {
			p.log.Warn("记录运行结果失败: %v", recErr)
		}
	}
	return s, err
}

func (p *Pipeline) execute(ctx context.Context, s *Summary, r *run) error {
	steps := []struct {
		stage Stage
		fn    func() (string, error)
	}{
		{StageLoad, func() (string, error) { return p.load(s, r) }},
		{StageValidate, func() (string, error) { return p.validate(s, r) }},
		{StageExtractSource, func() (string, error) {
			set, err := p.extract(r.src, s.Source)
			r.srcSet = set
			s.Stats.SourceKeypoints = set.Len()
			return fmt.Sprintf("%s 特征点 %d", p.ext.Name(), set.Len()), err
		}},
		{StageExtractTarget, func() (string, error) {
			set, err := p.extract(r.dst, s.Target)
			r.dstSet = set
			s.Stats.TargetKeypoints = set.Len()
			return fmt.Sprintf("%s 特征点 %d", p.ext.Name(), set.Len()), err
		}},
		{StageMatch, func() (string, error) { return p.match(r) }},
		{StageSelect, func() (string, error) { return p.selectMatches(s, r) }},
		{StageRender, func() (string, error) { return p.render(s, r) }},
		{StagePersist, func() (string, error) { return p.persist(s, r) }},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			s.FailedStage = step.stage
			return fmt.Errorf("%s 阶段开始前已取消: %w", step.stage, err)
		}

		start := time.Now()
		detail, err := step.fn()
		elapsed := float64(time.Since(start).Microseconds()) / 1000
		if err != nil {
			s.FailedStage = step.stage
			p.log.LogEvent(step.stage.String(), false, elapsed, err.Error())
			return err
		}
		p.log.LogEvent(step.stage.String(), true, elapsed, detail)
	}
	return nil
}

func (p *Pipeline) load(s *Summary, r *run) (string, error) {
	src, err := p.deps.Loader.Load(s.Source)
	if err != nil {
		return "", asImageReadError(s.Source, err)
	}
	r.own(src)
	r.src = src

	dst, err := p.deps.Loader.Load(s.Target)
	if err != nil {
		return "", asImageReadError(s.Target, err)
	}
	r.own(dst)
	r.dst = dst

	return fmt.Sprintf("%dx%d, %dx%d", src.Width(), src.Height(), dst.Width(), dst.Height()), nil
}

func asImageReadError(path string, err error) error {
	var readErr *ImageReadError
	if errors.As(err, &readErr) {
		return err
	}
	return &ImageReadError{Path: path, Err: err}
}

func (p *Pipeline) validate(s *Summary, r *run) (string, error) {
	if r.src.Width() == 0 || r.src.Height() == 0 {
		return "", &ImageReadError{Path: s.Source, Err: ErrEmptyImage}
	}
	if r.dst.Width() == 0 || r.dst.Height() == 0 {
		return "", &ImageReadError{Path: s.Target, Err: ErrEmptyImage}
	}
	if !p.variant.ResizeToCommon {
		return "尺寸不变", nil
	}

	src, dst, err := p.deps.Resizer.ResizeToCommon(r.src, r.dst)
	if err != nil {
		return "", &StageError{Stage: StageValidate, Err: fmt.Errorf("统一尺寸失败: %w", err)}
	}
	r.own(src, dst)
	r.src, r.dst = src, dst
	return fmt.Sprintf("统一尺寸 %dx%d", src.Width(), src.Height()), nil
}

func (p *Pipeline) extract(img Image, path string) (*feature.Set, error) {
	set, err := p.ext.Extract(img)
	if err != nil {
		return feature.EmptySet(p.ext.Format()), &ExtractionError{Kind: p.variant.Extractor, Path: path, Err: err}
	}
	if set == nil {
		set = feature.EmptySet(p.ext.Format())
	}
	return set, nil
}

func (p *Pipeline) match(r *run) (string, error) {
	metric := feature.MetricFor(p.ext.Format())
	c, err := matcher.Match(r.srcSet, r.dstSet, metric, p.variant.Matcher)
	if err != nil {
		return "", &StageError{Stage: StageMatch, Err: err}
	}
	r.candidates = c
	return fmt.Sprintf("%s/%s 候选 %d", p.variant.Matcher.Strategy, metric.Name(), c.Rows()), nil
}

func (p *Pipeline) selectMatches(s *Summary, r *run) (string, error) {
	res, err := selector.Run(r.srcSet, r.dstSet, r.candidates, p.variant.Selector)
	if err != nil {
		return "", &StageError{Stage: StageSelect, Err: err}
	}
	r.result = res
	s.Stats = res.Stats
	s.Matches = res.Matches
	return fmt.Sprintf("%s 接受 %d/%d", p.variant.Selector.Policy, res.Stats.Accepted, res.Stats.RawCandidates), nil
}

func (p *Pipeline) render(s *Summary, r *run) (string, error) {
	in := RenderInput{
		Source:            r.src,
		Target:            r.dst,
		SourceSet:         r.srcSet,
		TargetSet:         r.dstSet,
		Matches:           r.result.Matches,
		DrawUnmatched:     p.variant.DrawUnmatched,
		DecorateKeypoints: p.variant.DecorateKeypoints,
	}
	if p.variant.Annotate {
		in.Caption = s.Caption()
	}

	img, err := p.deps.Renderer.Compose(in)
	if err != nil {
		return "", &StageError{Stage: StageRender, Err: err}
	}
	r.own(img)
	r.composite = img
	return fmt.Sprintf("%dx%d", img.Width(), img.Height()), nil
}

func (p *Pipeline) persist(s *Summary, r *run) (string, error) {
	n, err := p.deps.Persister.Persist(p.output, r.composite)
	if err != nil {
		return "", &StageError{Stage: StagePersist, Err: err}
	}
	s.Bytes = n
	return fmt.Sprintf("%s (%d 字节)", p.output, n), nil
}
