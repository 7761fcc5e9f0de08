package pipeline

import "fmt"

// Stage 流水线阶段，严格按声明顺序执行
type Stage int

const (
	StageLoad Stage = iota + 1
	StageValidate
	StageExtractSource
	StageExtractTarget
	StageMatch
	StageSelect
	StageRender
	StagePersist
)

// Stages 按执行顺序返回全部阶段
func Stages() []Stage {
	return []Stage{
		StageLoad,
		StageValidate,
		StageExtractSource,
		StageExtractTarget,
		StageMatch,
		StageSelect,
		StageRender,
		StagePersist,
	}
}

func (s Stage) String() string {
	switch s {
	case StageLoad:
		return "LOAD"
	case StageValidate:
		return "CHECK"
	case StageExtractSource:
		return "EXT1"
	case StageExtractTarget:
		return "EXT2"
	case StageMatch:
		return "MTCH"
	case StageSelect:
		return "SEL"
	case StageRender:
		return "DRAW"
	case StagePersist:
		return "SAVE"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}
