package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zoeyai/featmatch/pkg/pipeline"
)

func main() {
	os.Exit(run())
}

// run 执行命令并返回退出码
// 0 成功，1 图像读取失败，2 特征提取失败或算法不可用，3 其他失败
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer closeLogger()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		return pipeline.ExitCode(err)
	}
	return pipeline.ExitOK
}
