package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/zoeyai/featmatch/pkg/vision/feature"
	"github.com/zoeyai/featmatch/pkg/vision/selector"
)

// Summary 一次运行的结果摘要
type Summary struct {
	RunID     string          `json:"run_id"`
	Variant   string          `json:"variant"`
	Source    string          `json:"source"`
	Target    string          `json:"target"`
	Output    string          `json:"output"`
	Stats     selector.Stats  `json:"stats"`
	Matches   []feature.Match `json:"-"`
	Bytes     int64           `json:"bytes"`
	StartedAt time.Time       `json:"started_at"`
	Elapsed   time.Duration   `json:"elapsed"`
	// FailedStage 失败时所在阶段，成功时为 0
	FailedStage Stage `json:"failed_stage,omitempty"`
}

// Print 按固定格式输出四行统计
func (s *Summary) Print(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"图像1特征点数量: %d\n图像2特征点数量: %d\n匹配点数量: %d\n匹配结果已保存至: %s\n",
		s.Stats.SourceKeypoints, s.Stats.TargetKeypoints, s.Stats.Accepted, s.Output)
	return err
}

// Caption 结果图顶部的说明文字，内置字体只含拉丁字符
func (s *Summary) Caption() string {
	return fmt.Sprintf("%s  keypoints %d / %d  matches %d",
		s.Variant, s.Stats.SourceKeypoints, s.Stats.TargetKeypoints, s.Stats.Accepted)
}
