package cv

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/zoeyai/featmatch/pkg/pipeline"
)

// ErrNotMat 传入的图像不是由本包创建的
var ErrNotMat = errors.New("image is not a gocv mat")

// Image 包装 gocv.Mat，实现 pipeline.Image
type Image struct {
	mat    gocv.Mat
	closed bool
}

// NewImage 接管 mat 的所有权
func NewImage(mat gocv.Mat) *Image {
	return &Image{mat: mat}
}

// Mat 返回底层 Mat，不转移所有权
func (i *Image) Mat() gocv.Mat {
	return i.mat
}

// Width 图像宽度
func (i *Image) Width() int {
	return i.mat.Cols()
}

// Height 图像高度
func (i *Image) Height() int {
	return i.mat.Rows()
}

// Close 释放底层 Mat，可重复调用
func (i *Image) Close() error {
	if i.closed {
		return nil
	}
	i.closed = true
	return i.mat.Close()
}

func matOf(img pipeline.Image) (gocv.Mat, error) {
	i, ok := img.(*Image)
	if !ok {
		return gocv.Mat{}, fmt.Errorf("%w: %T", ErrNotMat, img)
	}
	return i.mat, nil
}

// ReadImage 读取彩色图像文件
func ReadImage(filename string) (gocv.Mat, error) {
	if _, err := os.Stat(filename); err != nil {
		return gocv.Mat{}, err
	}
	mat := gocv.IMRead(filename, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, fmt.Errorf("无法解码图像: %s", filename)
	}
	return mat, nil
}

// WriteImage 保存图像文件，按扩展名选择编码
func WriteImage(filename string, img gocv.Mat) error {
	// 确保目录存在
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	if ok := gocv.IMWrite(filename, img); !ok {
		return fmt.Errorf("保存图像失败: %s", filename)
	}
	return nil
}

// ToGray 转换为灰度图
func ToGray(src gocv.Mat) gocv.Mat {
	if src.Channels() == 1 {
		return src.Clone()
	}
	dst := gocv.NewMat()
	gocv.CvtColor(src, &dst, gocv.ColorBGRToGray)
	return dst
}

// ToBGR 把灰度图转换为三通道，其余原样复制
func ToBGR(src gocv.Mat) gocv.Mat {
	if src.Channels() != 1 {
		return src.Clone()
	}
	dst := gocv.NewMat()
	gocv.CvtColor(src, &dst, gocv.ColorGrayToBGR)
	return dst
}

// ResizeImage 调整图像大小
func ResizeImage(img gocv.Mat, width, height int) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Resize(img, &dst, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationLinear)
	return dst
}

// ImageToMat 将 image.Image 转换为 BGR 格式的 gocv.Mat
func ImageToMat(img image.Image) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("图像转换失败: %w", err)
	}
	// 转换为 BGR（OpenCV 默认格式）
	dst := gocv.NewMat()
	gocv.CvtColor(mat, &dst, gocv.ColorRGBToBGR)
	mat.Close()
	return dst, nil
}

// MatToImage 将 gocv.Mat 转换为 image.Image
func MatToImage(mat gocv.Mat) (image.Image, error) {
	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("Mat 转换失败: %w", err)
	}
	return img, nil
}
