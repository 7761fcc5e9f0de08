// Package process 采集当前进程的资源占用
package process

import (
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Usage 进程资源占用快照
type Usage struct {
	PID     int           `json:"pid"`
	RSS     uint64        `json:"rss"`     // 常驻内存 (字节)
	CPUTime time.Duration `json:"cpu"`     // 用户态 + 内核态累计时间
	Threads int32         `json:"threads"` // 线程数
}

// Self 获取当前进程的资源占用
func Self() (*Usage, error) {
	return ByPID(os.Getpid())
}

// ByPID 获取指定进程的资源占用
func ByPID(pid int) (*Usage, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("获取进程 %d 失败: %w", pid, err)
	}

	mem, err := proc.MemoryInfo()
	if err != nil {
		return nil, fmt.Errorf("获取内存信息失败: %w", err)
	}
	times, err := proc.Times()
	if err != nil {
		return nil, fmt.Errorf("获取 CPU 时间失败: %w", err)
	}
	// 部分平台不支持线程数
	threads, _ := proc.NumThreads()

	cpu := time.Duration((times.User + times.System) * float64(time.Second))
	return &Usage{
		PID:     pid,
		RSS:     mem.RSS,
		CPUTime: cpu,
		Threads: threads,
	}, nil
}

// Since 返回从 before 到现在新增的 CPU 时间与当前内存
func (u *Usage) Since(before *Usage) *Usage {
	if before == nil {
		return u
	}
	out := *u
	out.CPUTime = u.CPUTime - before.CPUTime
	return &out
}

func (u *Usage) String() string {
	return fmt.Sprintf("pid=%d rss=%.1fMB cpu=%s threads=%d",
		u.PID, float64(u.RSS)/(1<<20), u.CPUTime.Round(time.Millisecond), u.Threads)
}
