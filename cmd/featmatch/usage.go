package main

import (
	"github.com/zoeyai/featmatch/internal/logger"
	"github.com/zoeyai/featmatch/pkg/process"
)

// usageProbe 记录命令开始时的资源占用，结束时在 DEBUG 级别输出差值
type usageProbe struct {
	before *process.Usage
}

func startUsage() *usageProbe {
	if log.GetLevel() > logger.DEBUG {
		return &usageProbe{}
	}
	before, err := process.Self()
	if err != nil {
		log.Debug("读取进程资源占用失败: %v", err)
	}
	return &usageProbe{before: before}
}

func (u *usageProbe) report(name string) {
	if u.before == nil {
		return
	}
	after, err := process.Self()
	if err != nil {
		log.Debug("读取进程资源占用失败: %v", err)
		return
	}
	log.Debug("%s 资源占用: %s", name, after.Since(u.before))
}
