package cv

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"gocv.io/x/gocv"

	"github.com/zoeyai/featmatch/pkg/pipeline"
)

var (
	matchColor     = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	keypointColor  = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	decorateColor  = color.RGBA{R: 255, G: 200, B: 0, A: 0}
	backgroundFill = gocv.NewScalar(0, 0, 0, 0)
)

// Toolkit 基于 gocv 的图像读写与绘制，实现流水线除提取器以外的全部依赖
// Toolkit 无状态，可被多个 goroutine 同时使用
type Toolkit struct {
	caption *captioner
}

// NewToolkit 创建 Toolkit
func NewToolkit() (*Toolkit, error) {
	c, err := newCaptioner()
	if err != nil {
		return nil, err
	}
	return &Toolkit{caption: c}, nil
}

// Deps 返回使用 Toolkit 与 NewExtractor 的流水线依赖
func (t *Toolkit) Deps() pipeline.Deps {
	return pipeline.Deps{
		Loader:     t,
		Resizer:    t,
		Extractors: NewExtractor,
		Renderer:   t,
		Persister:  t,
	}
}

// Load 读取彩色图像
func (t *Toolkit) Load(path string) (pipeline.Image, error) {
	mat, err := ReadImage(path)
	if err != nil {
		return nil, err
	}
	return NewImage(mat), nil
}

// ResizeToCommon 把两张图缩放到 (最小宽度, 最小高度)
func (t *Toolkit) ResizeToCommon(a, b pipeline.Image) (pipeline.Image, pipeline.Image, error) {
	matA, err := matOf(a)
	if err != nil {
		return nil, nil, err
	}
	matB, err := matOf(b)
	if err != nil {
		return nil, nil, err
	}

	w := min(a.Width(), b.Width())
	h := min(a.Height(), b.Height())
	if w == 0 || h == 0 {
		return nil, nil, fmt.Errorf("无法缩放到 %dx%d", w, h)
	}
	return NewImage(ResizeImage(matA, w, h)), NewImage(ResizeImage(matB, w, h)), nil
}

// Compose 左右拼接两张图并绘制匹配连线
func (t *Toolkit) Compose(in pipeline.RenderInput) (pipeline.Image, error) {
	src, err := matOf(in.Source)
	if err != nil {
		return nil, err
	}
	dst, err := matOf(in.Target)
	if err != nil {
		return nil, err
	}

	kpSrc := toKeyPoints(in.SourceSet)
	kpDst := toKeyPoints(in.TargetSet)

	left, right := ToBGR(src), ToBGR(dst)
	defer left.Close()
	defer right.Close()

	if in.DecorateKeypoints {
		decorate(&left, kpSrc)
		decorate(&right, kpDst)
	}

	var out gocv.Mat
	if len(in.Matches) == 0 {
		out = sideBySide(left, right, kpSrc, kpDst, in.DrawUnmatched)
	} else {
		out = drawMatches(left, right, kpSrc, kpDst, toDMatches(in.Matches), in.DrawUnmatched)
	}

	if in.Caption != "" {
		captioned, err := t.caption.draw(out, in.Caption)
		out.Close()
		if err != nil {
			return nil, fmt.Errorf("绘制说明文字失败: %w", err)
		}
		out = captioned
	}
	return NewImage(out), nil
}

// Persist 写入图像并返回文件大小
func (t *Toolkit) Persist(path string, img pipeline.Image) (int64, error) {
	mat, err := matOf(img)
	if err != nil {
		return 0, err
	}
	if err := WriteImage(path, mat); err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("读取输出文件信息失败: %w", err)
	}
	return info.Size(), nil
}

// decorate 在图上原地绘制带尺度与方向的特征点
func decorate(img *gocv.Mat, kps []gocv.KeyPoint) {
	if len(kps) == 0 {
		return
	}
	drawn := gocv.NewMat()
	gocv.DrawKeyPoints(*img, kps, &drawn, decorateColor, gocv.DrawRichKeyPoints)
	img.Close()
	*img = drawn
}

func drawMatches(left, right gocv.Mat, kpSrc, kpDst []gocv.KeyPoint, matches []gocv.DMatch, drawUnmatched bool) gocv.Mat {
	flags := gocv.NotDrawSinglePoints
	if drawUnmatched {
		flags = gocv.DrawDefault
	}

	mask := make([]byte, len(matches))
	for i := range mask {
		mask[i] = 1
	}

	out := gocv.NewMat()
	gocv.DrawMatches(left, kpSrc, right, kpDst, matches, &out, matchColor, keypointColor, mask, flags)
	return out
}

// sideBySide 没有匹配时直接拼接，DrawMatches 不接受空掩码
func sideBySide(left, right gocv.Mat, kpSrc, kpDst []gocv.KeyPoint, drawUnmatched bool) gocv.Mat {
	w := left.Cols() + right.Cols()
	h := max(left.Rows(), right.Rows())
	out := gocv.NewMatWithSizeFromScalar(backgroundFill, h, w, gocv.MatTypeCV8UC3)

	paste(&out, left, 0, kpSrc, drawUnmatched)
	paste(&out, right, left.Cols(), kpDst, drawUnmatched)
	return out
}

// paste 把 img 复制到 out 的 (x, 0) 处，按需先绘制特征点
func paste(out *gocv.Mat, img gocv.Mat, x int, kps []gocv.KeyPoint, drawPoints bool) {
	src := img
	if drawPoints && len(kps) > 0 {
		src = gocv.NewMat()
		defer src.Close()
		gocv.DrawKeyPoints(img, kps, &src, keypointColor, gocv.DrawDefault)
	}

	region := out.Region(image.Rect(x, 0, x+src.Cols(), src.Rows()))
	defer region.Close()
	src.CopyTo(&region)
}
