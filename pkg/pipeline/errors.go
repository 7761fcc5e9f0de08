package pipeline

import (
	"errors"
	"fmt"
)

// 进程退出码
const (
	ExitOK          = 0
	ExitImageRead   = 1
	ExitExtraction  = 2
	ExitOtherFailed = 3
)

var (
	// ErrEmptyImage 图像解码成功但宽或高为 0
	ErrEmptyImage = errors.New("empty image")
	// ErrUnknownVariant 未注册的变体名
	ErrUnknownVariant = errors.New("unknown variant")
)

// ImageReadError 图像无法读取或解码
type ImageReadError struct {
	Path string
	Err  error
}

func (e *ImageReadError) Error() string {
	return fmt.Sprintf("无法读取图像文件: %s: %v", e.Path, e.Err)
}

func (e *ImageReadError) Unwrap() error { return e.Err }

// ExtractorUnavailableError 当前构建不提供所需的特征提取器
type ExtractorUnavailableError struct {
	Kind ExtractorKind
	Hint string
}

func (e *ExtractorUnavailableError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("无法创建 %s 检测器", e.Kind)
	}
	return fmt.Sprintf("无法创建 %s 检测器，%s", e.Kind, e.Hint)
}

// ExtractionError 特征提取失败
type ExtractionError struct {
	Kind ExtractorKind
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s 特征提取失败: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// StageError 其余阶段 (匹配、筛选、绘制、保存) 的失败
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s 阶段失败: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ExitCode 把错误映射为进程退出码
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var readErr *ImageReadError
	if errors.As(err, &readErr) {
		return ExitImageRead
	}

	var unavailable *ExtractorUnavailableError
	var extractErr *ExtractionError
	if errors.As(err, &unavailable) || errors.As(err, &extractErr) {
		return ExitExtraction
	}

	return ExitOtherFailed
}
