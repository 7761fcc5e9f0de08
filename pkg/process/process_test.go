package process

import (
	"strings"
	"testing"
	"time"
)

func TestSelf(t *testing.T) {
	u, err := Self()
	if err != nil {
		t.Skipf("跳过测试：当前平台无法读取进程信息: %v", err)
	}
	if u.RSS == 0 {
		t.Error("RSS 应大于 0")
	}
	if u.CPUTime < 0 {
		t.Errorf("CPU 时间不应为负: %s", u.CPUTime)
	}
	if !strings.HasPrefix(u.String(), "pid=") {
		t.Errorf("String() 格式错误: %s", u.String())
	}
	t.Logf("Usage: %s", u)
}

func TestSince(t *testing.T) {
	before := &Usage{PID: 1, RSS: 100, CPUTime: 2 * time.Second}
	after := &Usage{PID: 1, RSS: 300, CPUTime: 5 * time.Second, Threads: 4}

	d := after.Since(before)
	if d.CPUTime != 3*time.Second {
		t.Errorf("CPU 时间差 = %s, want 3s", d.CPUTime)
	}
	if d.RSS != 300 || d.Threads != 4 {
		t.Errorf("内存与线程数应取当前值: %+v", d)
	}
	if after.CPUTime != 5*time.Second {
		t.Error("Since 不应修改接收者")
	}
	if after.Since(nil) != after {
		t.Error("before 为 nil 时应返回自身")
	}
}
