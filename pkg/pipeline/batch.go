package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Manifest 批量匹配清单
//
//	variant: orb
//	output_dir: out
//	pairs:
//	  - name: street
//	    source: 1.jpg
//	    target: 2.jpg
//	    variant: sift
type Manifest struct {
	Variant     string `yaml:"variant"`
	OutputDir   string `yaml:"output_dir"`
	Concurrency int    `yaml:"concurrency"`
	Pairs       []Pair `yaml:"pairs"`

	baseDir string
}

// Pair 清单中的一对图像，Variant 与 Output 为空时使用清单级默认值
type Pair struct {
	Name    string `yaml:"name"`
	Source  string `yaml:"source"`
	Target  string `yaml:"target"`
	Variant string `yaml:"variant"`
	Output  string `yaml:"output"`
}

// LoadManifest 读取 YAML 清单，相对路径以清单所在目录为基准
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取清单失败: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.baseDir = filepath.Dir(path)
	return m, nil
}

// ParseManifest 解析 YAML 清单
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("解析清单失败: %w", err)
	}
	if len(m.Pairs) == 0 {
		return nil, fmt.Errorf("清单中没有图像对")
	}
	for i := range m.Pairs {
		pair := &m.Pairs[i]
		if pair.Source == "" || pair.Target == "" {
			return nil, fmt.Errorf("第 %d 个图像对缺少 source 或 target", i+1)
		}
		if pair.Name == "" {
			pair.Name = fmt.Sprintf("pair%03d", i+1)
		}
	}
	return &m, nil
}

func (m *Manifest) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || m.baseDir == "" {
		return path
	}
	return filepath.Join(m.baseDir, path)
}

// variantFor 返回图像对使用的变体
func (m *Manifest) variantFor(p Pair) (Variant, error) {
	name := p.Variant
	if name == "" {
		name = m.Variant
	}
	if name == "" {
		name = "orb"
	}
	return LookupVariant(name)
}

// outputFor 返回图像对的输出路径: 显式指定 > output_dir/<name>_<变体默认文件名>
func (m *Manifest) outputFor(p Pair, v Variant) string {
	if p.Output != "" {
		return m.resolve(p.Output)
	}
	return filepath.Join(m.resolve(m.OutputDir), p.Name+"_"+v.Output)
}

// BatchOptions 批量运行参数
type BatchOptions struct {
	// Concurrency 同时运行的图像对数量，<=0 时使用清单中的值，仍为 0 则为 1
	Concurrency int
	// FailFast 任一图像对失败时取消其余运行
	FailFast bool
	// Progress 进度条输出位置，nil 表示不显示
	Progress io.Writer
}

// BatchResult 单个图像对的运行结果
type BatchResult struct {
	Pair    Pair
	Summary *Summary
	Err     error
}

// BatchReport 批量运行报告
type BatchReport struct {
	ID        string
	Results   []BatchResult
	Succeeded int
	Failed    int
}

// Err 返回清单顺序中第一个失败的错误
func (r *BatchReport) Err() error {
	for _, res := range r.Results {
		if res.Err != nil {
			return fmt.Errorf("%s: %w", res.Pair.Name, res.Err)
		}
	}
	return nil
}

// RunBatch 并发运行清单中的全部图像对
// 每个图像对拥有独立的提取器与图像，opts 应用于每个图像对
func RunBatch(ctx context.Context, deps Deps, m *Manifest, bo BatchOptions, opts ...Option) (*BatchReport, error) {
	concurrency := bo.Concurrency
	if concurrency <= 0 {
		concurrency = m.Concurrency
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	report := &BatchReport{
		ID:      uuid.NewString(),
		Results: make([]BatchResult, len(m.Pairs)),
	}
	bar := newBatchProgressBar(len(m.Pairs), bo.Progress)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	var mu sync.Mutex

	for i, pair := range m.Pairs {
		g.Go(func() error {
			summary, err := runPair(gCtx, deps, m, pair, opts)

			mu.Lock()
			report.Results[i] = BatchResult{Pair: pair, Summary: summary, Err: err}
			if err != nil {
				report.Failed++
			} else {
				report.Succeeded++
			}
			mu.Unlock()
			bar.Add(1)

			if err != nil && bo.FailFast {
				return fmt.Errorf("%s: %w", pair.Name, err)
			}
			return nil
		})
	}

	err := g.Wait()
	bar.Finish()
	return report, err
}

func runPair(ctx context.Context, deps Deps, m *Manifest, pair Pair, opts []Option) (*Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v, err := m.variantFor(pair)
	if err != nil {
		return nil, err
	}
	pairOpts := append(append([]Option(nil), opts...), WithOutput(m.outputFor(pair, v)))

	p, err := New(deps, v, pairOpts...)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	if dir := filepath.Dir(p.Output()); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &StageError{Stage: StagePersist, Err: fmt.Errorf("创建输出目录失败: %w", err)}
		}
	}
	return p.Run(ctx, m.resolve(pair.Source), m.resolve(pair.Target))
}

func newBatchProgressBar(count int, w io.Writer) *progressbar.ProgressBar {
	if w == nil {
		return progressbar.DefaultSilent(int64(count))
	}
	return progressbar.NewOptions(count,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Matching pairs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("pairs"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}
