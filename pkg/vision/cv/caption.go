package cv

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"gocv.io/x/gocv"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	captionFontSize = 16.0
	captionPadding  = 8
)

// captioner 在图像顶部加一条黑底白字的说明栏
type captioner struct {
	font *truetype.Font
}

func newCaptioner() (*captioner, error) {
	f, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("加载内置字体失败: %w", err)
	}
	return &captioner{font: f}, nil
}

// bannerHeight 说明栏高度 (像素)
func bannerHeight() int {
	return int(captionFontSize) + 2*captionPadding
}

// draw 返回加了说明栏的新图像，src 不变
func (c *captioner) draw(src gocv.Mat, text string) (gocv.Mat, error) {
	img, err := MatToImage(src)
	if err != nil {
		return gocv.Mat{}, err
	}

	banner := bannerHeight()
	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()+banner))
	draw.Draw(canvas, canvas.Bounds(), image.Black, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(0, banner, b.Dx(), b.Dy()+banner), img, b.Min, draw.Src)

	ctx := freetype.NewContext()
	ctx.SetDPI(72)
	ctx.SetFont(c.font)
	ctx.SetFontSize(captionFontSize)
	ctx.SetHinting(font.HintingFull)
	ctx.SetClip(image.Rect(0, 0, b.Dx(), banner))
	ctx.SetDst(canvas)
	ctx.SetSrc(image.White)

	pt := freetype.Pt(captionPadding, captionPadding+int(ctx.PointToFixed(captionFontSize)>>6))
	if _, err := ctx.DrawString(text, pt); err != nil {
		return gocv.Mat{}, fmt.Errorf("绘制文字失败: %w", err)
	}

	return ImageToMat(canvas)
}
