package feature

import (
	"fmt"
)

// FormatMismatchError 描述子格式或长度不一致
// 同一提取器产生的集合总是同构的，出现该错误说明调用方接线有误
type FormatMismatchError struct {
	Want    Format
	Got     Format
	WantLen int
	GotLen  int
	// Index 出错的描述子下标，-1 表示集合级别的比较
	Index int
}

func (e *FormatMismatchError) Error() string {
	if e.Want != e.Got {
		if e.Index >= 0 {
			return fmt.Sprintf("描述子格式不一致: 期望 %s, 实际 %s (下标 %d)", e.Want, e.Got, e.Index)
		}
		return fmt.Sprintf("描述子格式不一致: 期望 %s, 实际 %s", e.Want, e.Got)
	}
	if e.Index >= 0 {
		return fmt.Sprintf("描述子长度不一致: 期望 %d, 实际 %d (下标 %d)", e.WantLen, e.GotLen, e.Index)
	}
	return fmt.Sprintf("描述子长度不一致: 期望 %d, 实际 %d", e.WantLen, e.GotLen)
}
