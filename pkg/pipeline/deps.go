package pipeline

import (
	"github.com/zoeyai/featmatch/pkg/vision/feature"
)

// Image 不透明的图像句柄，由具体实现负责释放
type Image interface {
	Width() int
	Height() int
	Close() error
}

// Loader 从路径解码图像
type Loader interface {
	Load(path string) (Image, error)
}

// Resizer 把两张图缩放到 (最小宽度, 最小高度)
type Resizer interface {
	ResizeToCommon(a, b Image) (Image, Image, error)
}

// Extractor 特征提取器
// Extract 返回的集合格式必须与 Format 一致，零个特征点不是错误
type Extractor interface {
	Name() string
	Format() feature.Format
	Extract(img Image) (*feature.Set, error)
	Close() error
}

// ExtractorFactory 按种类创建提取器
// 当前构建不支持该种类时返回 *ExtractorUnavailableError
type ExtractorFactory func(kind ExtractorKind, params ExtractorParams) (Extractor, error)

// RenderInput 绘制匹配图所需的全部输入
type RenderInput struct {
	Source    Image
	Target    Image
	SourceSet *feature.Set
	TargetSet *feature.Set
	Matches   []feature.Match

	// DrawUnmatched 同时绘制未参与匹配的特征点
	DrawUnmatched bool
	// DecorateKeypoints 拼接前在各自图上绘制带尺度与方向的特征点
	DecorateKeypoints bool
	// Caption 非空时在图像顶部绘制说明文字
	Caption string
}

// Renderer 把两张图左右拼接并绘制匹配连线
type Renderer interface {
	Compose(in RenderInput) (Image, error)
}

// Persister 把图像写入文件，返回写入的字节数
type Persister interface {
	Persist(path string, img Image) (int64, error)
}

// Deps 流水线依赖的外部能力
type Deps struct {
	Loader     Loader
	Resizer    Resizer
	Extractors ExtractorFactory
	Renderer   Renderer
	Persister  Persister
}
