package cv

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"gocv.io/x/gocv"

	"github.com/zoeyai/featmatch/internal/logger"
	"github.com/zoeyai/featmatch/pkg/pipeline"
	"github.com/zoeyai/featmatch/pkg/vision/feature"
)

// getTestDataDir 获取测试资源目录
func getTestDataDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "testdata")
}

// texturedMat 生成带随机矩形与圆的彩色图，保证有足够的角点
func texturedMat(w, h int, seed int64) gocv.Mat {
	rng := rand.New(rand.NewSource(seed))
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), h, w, gocv.MatTypeCV8UC3)
	randomColor := func() color.RGBA {
		return color.RGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256))}
	}
	for i := 0; i < 60; i++ {
		x, y := rng.Intn(w-20), rng.Intn(h-20)
		rect := image.Rect(x, y, x+10+rng.Intn(40), y+10+rng.Intn(40))
		gocv.Rectangle(&mat, rect, randomColor(), -1)
	}
	for i := 0; i < 30; i++ {
		center := image.Point{X: rng.Intn(w), Y: rng.Intn(h)}
		gocv.Circle(&mat, center, 5+rng.Intn(20), randomColor(), 2)
	}
	return mat
}

func quietLogger() *logger.Logger {
	l := logger.New()
	l.SetConsole(false)
	return l
}

func TestExtractors(t *testing.T) {
	testCases := []struct {
		kind    pipeline.ExtractorKind
		format  feature.Format
		descLen int // 0 表示不检查
	}{
		{pipeline.ExtractorORB, feature.FormatBinary, 32},
		{pipeline.ExtractorBRISK, feature.FormatBinary, 64},
		{pipeline.ExtractorAKAZE, feature.FormatBinary, 0},
		{pipeline.ExtractorSIFT, feature.FormatFloat, 128},
		{pipeline.ExtractorKAZE, feature.FormatFloat, 64},
	}

	img := NewImage(texturedMat(320, 240, 1))
	defer img.Close()

	for _, tc := range testCases {
		t.Run(string(tc.kind), func(t *testing.T) {
			ext, err := NewExtractor(tc.kind, pipeline.ExtractorParams{Grayscale: true})
			if err != nil {
				t.Fatalf("创建提取器失败: %v", err)
			}
			defer ext.Close()

			if ext.Format() != tc.format {
				t.Errorf("格式 = %s, want %s", ext.Format(), tc.format)
			}

			set, err := ext.Extract(img)
			if err != nil {
				t.Fatalf("提取失败: %v", err)
			}
			if set.Len() == 0 {
				t.Fatal("纹理图像应检测到特征点")
			}
			if set.Format() != tc.format {
				t.Errorf("集合格式 = %s, want %s", set.Format(), tc.format)
			}
			if tc.descLen != 0 && set.DescriptorLen() != tc.descLen {
				t.Errorf("描述子长度 = %d, want %d", set.DescriptorLen(), tc.descLen)
			}
			t.Logf("%s: %d 个特征点, 描述子长度 %d", tc.kind, set.Len(), set.DescriptorLen())
		})
	}
}

func TestExtractColorAndGray(t *testing.T) {
	img := NewImage(texturedMat(320, 240, 2))
	defer img.Close()

	for _, gray := range []bool{false, true} {
		ext, err := NewExtractor(pipeline.ExtractorORB, pipeline.ExtractorParams{Grayscale: gray})
		if err != nil {
			t.Fatalf("创建提取器失败: %v", err)
		}
		set, err := ext.Extract(img)
		ext.Close()
		if err != nil || set.Len() == 0 {
			t.Errorf("grayscale=%v: 提取失败 (%v) 或没有特征点", gray, err)
		}
	}
	mat := img.Mat()
	if mat.Channels() != 3 {
		t.Error("提取不应修改原图")
	}
}

func TestExtractBlankImage(t *testing.T) {
	blank := NewImage(gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 128, 128, 0), 120, 160, gocv.MatTypeCV8UC3))
	defer blank.Close()

	ext, err := NewExtractor(pipeline.ExtractorORB, pipeline.ExtractorParams{})
	if err != nil {
		t.Fatalf("创建提取器失败: %v", err)
	}
	defer ext.Close()

	set, err := ext.Extract(blank)
	if err != nil {
		t.Fatalf("纯色图像不应报错: %v", err)
	}
	if set.Len() != 0 || set.Format() != feature.FormatBinary {
		t.Errorf("纯色图像应返回空的二进制集合: len=%d format=%s", set.Len(), set.Format())
	}
}

func TestExtractorUnknownKind(t *testing.T) {
	_, err := NewExtractor("FREAK2", pipeline.ExtractorParams{})
	var unavailable *pipeline.ExtractorUnavailableError
	if !errors.As(err, &unavailable) {
		t.Errorf("未知算法应返回 *ExtractorUnavailableError, 实际为 %v", err)
	}
}

func TestSURF(t *testing.T) {
	ext, err := NewExtractor(pipeline.ExtractorSURF, pipeline.ExtractorParams{
		Grayscale:        true,
		HessianThreshold: 400,
		Octaves:          4,
		OctaveLayers:     3,
	})
	if !SURFAvailable {
		var unavailable *pipeline.ExtractorUnavailableError
		if !errors.As(err, &unavailable) {
			t.Fatalf("未启用 contrib 时应返回 *ExtractorUnavailableError, 实际为 %v", err)
		}
		if pipeline.ExitCode(err) != pipeline.ExitExtraction {
			t.Errorf("退出码应为 %d", pipeline.ExitExtraction)
		}
		return
	}

	if err != nil {
		t.Fatalf("创建 SURF 失败: %v", err)
	}
	defer ext.Close()

	img := NewImage(texturedMat(320, 240, 3))
	defer img.Close()
	set, err := ext.Extract(img)
	if err != nil {
		t.Fatalf("提取失败: %v", err)
	}
	if set.Len() > 0 && set.DescriptorLen() != 64 {
		t.Errorf("非扩展 SURF 描述子长度应为 64, 实际为 %d", set.DescriptorLen())
	}
}

func TestToSetMismatchedType(t *testing.T) {
	desc := gocv.NewMatWithSize(2, 8, gocv.MatTypeCV32F)
	defer desc.Close()
	kps := []gocv.KeyPoint{{X: 1, Y: 1}, {X: 2, Y: 2}}

	if _, err := toSet(feature.FormatBinary, kps, desc); err == nil {
		t.Error("浮点矩阵按二进制格式转换应报错")
	}

	set, err := toSet(feature.FormatFloat, kps, desc)
	if err != nil {
		t.Fatalf("转换失败: %v", err)
	}
	if set.Len() != 2 || set.DescriptorLen() != 8 {
		t.Errorf("集合尺寸错误: %d x %d", set.Len(), set.DescriptorLen())
	}
}

func newToolkit(t *testing.T) *Toolkit {
	t.Helper()
	tk, err := NewToolkit()
	if err != nil {
		t.Fatalf("创建 Toolkit 失败: %v", err)
	}
	return tk
}

func TestLoadMissing(t *testing.T) {
	tk := newToolkit(t)
	_, err := tk.Load(filepath.Join(t.TempDir(), "missing.jpg"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("不存在的文件应返回 os.ErrNotExist, 实际为 %v", err)
	}
}

func TestLoadCorrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	if err := os.WriteFile(path, []byte("not an image"), 0644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}
	if _, err := newToolkit(t).Load(path); err == nil {
		t.Error("无法解码的文件应返回错误")
	}
}

func TestPersistAndLoad(t *testing.T) {
	tk := newToolkit(t)
	img := NewImage(texturedMat(200, 100, 4))
	defer img.Close()

	path := filepath.Join(t.TempDir(), "out", "result.jpg")
	n, err := tk.Persist(path, img)
	if err != nil {
		t.Fatalf("保存失败: %v", err)
	}
	if n <= 0 {
		t.Errorf("写入字节数应大于 0, 实际为 %d", n)
	}

	loaded, err := tk.Load(path)
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	defer loaded.Close()
	if loaded.Width() != 200 || loaded.Height() != 100 {
		t.Errorf("尺寸 = %dx%d, want 200x100", loaded.Width(), loaded.Height())
	}
}

func TestResizeToCommon(t *testing.T) {
	tk := newToolkit(t)
	a := NewImage(texturedMat(320, 200, 5))
	b := NewImage(texturedMat(240, 260, 6))
	defer a.Close()
	defer b.Close()

	ra, rb, err := tk.ResizeToCommon(a, b)
	if err != nil {
		t.Fatalf("缩放失败: %v", err)
	}
	defer ra.Close()
	defer rb.Close()

	for _, img := range []pipeline.Image{ra, rb} {
		if img.Width() != 240 || img.Height() != 200 {
			t.Errorf("尺寸 = %dx%d, want 240x200", img.Width(), img.Height())
		}
	}
	if a.Width() != 320 {
		t.Error("缩放不应修改原图")
	}
}

func TestCompose(t *testing.T) {
	tk := newToolkit(t)
	a := NewImage(texturedMat(320, 240, 7))
	b := NewImage(texturedMat(200, 280, 8))
	defer a.Close()
	defer b.Close()

	set := func(n int) *feature.Set {
		kps := make([]feature.Keypoint, n)
		descs := make([]feature.Descriptor, n)
		for i := range kps {
			kps[i] = feature.Keypoint{X: float64(10 + i*15), Y: float64(10 + i*10), Size: 8, Angle: float64(i * 30)}
			descs[i] = feature.BinaryDescriptor([]byte{byte(i)})
		}
		s, err := feature.NewSet(feature.FormatBinary, kps, descs)
		if err != nil {
			t.Fatalf("创建集合失败: %v", err)
		}
		return s
	}
	matches := []feature.Match{{QueryIdx: 0, TrainIdx: 1, Distance: 3}, {QueryIdx: 2, TrainIdx: 2, Distance: 5}}

	testCases := []struct {
		name    string
		in      pipeline.RenderInput
		extraH  int
		matches bool
	}{
		{"有匹配", pipeline.RenderInput{Matches: matches}, 0, true},
		{"无匹配", pipeline.RenderInput{}, 0, false},
		{"无匹配且绘制全部特征点", pipeline.RenderInput{DrawUnmatched: true}, 0, false},
		{"绘制特征点尺度与方向", pipeline.RenderInput{Matches: matches, DecorateKeypoints: true, DrawUnmatched: true}, 0, true},
		{"说明文字", pipeline.RenderInput{Matches: matches, Caption: "orb  keypoints 5 / 5  matches 2"}, bannerHeight(), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := tc.in
			in.Source, in.Target = a, b
			in.SourceSet, in.TargetSet = set(5), set(5)

			out, err := tk.Compose(in)
			if err != nil {
				t.Fatalf("绘制失败: %v", err)
			}
			defer out.Close()

			if out.Width() != 520 {
				t.Errorf("宽度 = %d, want 520", out.Width())
			}
			if out.Height() != 280+tc.extraH {
				t.Errorf("高度 = %d, want %d", out.Height(), 280+tc.extraH)
			}
		})
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	dir := t.TempDir()
	tk := newToolkit(t)

	src := texturedMat(320, 240, 9)
	defer src.Close()
	if err := WriteImage(filepath.Join(dir, "1.png"), src); err != nil {
		t.Fatalf("写入源图像失败: %v", err)
	}
	if err := WriteImage(filepath.Join(dir, "2.png"), src); err != nil {
		t.Fatalf("写入目标图像失败: %v", err)
	}

	for _, name := range []string{"orb", "brisk", "freak", "sift", "akaze", "kaze"} {
		t.Run(name, func(t *testing.T) {
			v, err := pipeline.LookupVariant(name)
			if err != nil {
				t.Fatalf("获取变体失败: %v", err)
			}
			output := filepath.Join(dir, v.Output)

			p, err := pipeline.New(tk.Deps(), v, pipeline.WithOutput(output), pipeline.WithAnnotate(true), pipeline.WithLogger(quietLogger()))
			if err != nil {
				t.Fatalf("创建流水线失败: %v", err)
			}
			defer p.Close()

			s, err := p.Run(context.Background(), filepath.Join(dir, "1.png"), filepath.Join(dir, "2.png"))
			if err != nil {
				t.Fatalf("运行失败: %v", err)
			}
			if s.Stats.SourceKeypoints == 0 || s.Stats.SourceKeypoints != s.Stats.TargetKeypoints {
				t.Errorf("相同图像的特征点数量应相同且大于 0: %+v", s.Stats)
			}
			if s.Stats.Accepted == 0 {
				t.Errorf("相同图像应有匹配: %+v", s.Stats)
			}
			if info, err := os.Stat(output); err != nil || info.Size() != s.Bytes {
				t.Errorf("输出文件与统计不一致: %v", err)
			}
		})
	}
}

func TestPipelineMissingImage(t *testing.T) {
	tk := newToolkit(t)
	v, _ := pipeline.LookupVariant("orb")
	p, err := pipeline.New(tk.Deps(), v, pipeline.WithOutput(filepath.Join(t.TempDir(), "x.jpg")), pipeline.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("创建流水线失败: %v", err)
	}
	defer p.Close()

	_, err = p.Run(context.Background(), "does-not-exist-1.jpg", "does-not-exist-2.jpg")
	if pipeline.ExitCode(err) != pipeline.ExitImageRead {
		t.Errorf("退出码 = %d, want %d (%v)", pipeline.ExitCode(err), pipeline.ExitImageRead, err)
	}
}

func TestRealImages(t *testing.T) {
	testDataDir := getTestDataDir()
	src := filepath.Join(testDataDir, "1.jpg")
	dst := filepath.Join(testDataDir, "2.jpg")
	for _, path := range []string{src, dst} {
		if _, err := os.Stat(path); err != nil {
			t.Skipf("跳过测试：缺少测试图像 %s", path)
		}
	}

	tk := newToolkit(t)
	for _, name := range pipeline.VariantNames() {
		t.Run(name, func(t *testing.T) {
			v, _ := pipeline.LookupVariant(name)
			p, err := pipeline.New(tk.Deps(), v, pipeline.WithOutput(filepath.Join(t.TempDir(), v.Output)), pipeline.WithLogger(quietLogger()))
			if err != nil {
				t.Skipf("跳过 %s: %v", name, err)
			}
			defer p.Close()

			s, err := p.Run(context.Background(), src, dst)
			if err != nil {
				t.Fatalf("运行失败: %v", err)
			}
			t.Logf("%s: %d / %d 特征点, %d 个匹配", name, s.Stats.SourceKeypoints, s.Stats.TargetKeypoints, s.Stats.Accepted)
		})
	}
}
