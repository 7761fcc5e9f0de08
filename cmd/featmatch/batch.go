package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zoeyai/featmatch/pkg/pipeline"
	"github.com/zoeyai/featmatch/pkg/vision"
)

var batchCmd = &cobra.Command{
	Use:   "batch <manifest.yaml>",
	Short: "按清单并发匹配多组图像",
	Long: `按 YAML 清单并发匹配多组图像。清单格式:

  variant: sift          # 默认变体，可在每组中覆盖
  output_dir: results    # 相对清单所在目录
  concurrency: 4
  pairs:
    - name: door
      source: a/1.jpg
      target: a/2.jpg
    - source: b/1.jpg
      target: b/2.jpg
      variant: orb

任一组失败时退出码取清单中第一个失败的组。`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	addMatchFlags(batchCmd)
	batchCmd.Flags().IntP("concurrency", "j", 0, "同时处理的组数 (默认取清单或配置)")
	batchCmd.Flags().Bool("fail-fast", false, "任一组失败时取消其余组")
	batchCmd.Flags().Bool("no-progress", false, "不显示进度条")
	batchCmd.Flags().String("history", "", "把运行结果记录到该 SQLite 数据库")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	m, err := vision.LoadManifest(args[0])
	if err != nil {
		return err
	}

	mc, err := matchConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	// 命令行给出的变体与输出目录优先于清单，否则清单优先于配置
	if cmd.Flags().Changed("variant") || m.Variant == "" {
		m.Variant = mc.Variant
	}
	if cmd.Flags().Changed("output-dir") || m.OutputDir == "" {
		m.OutputDir = mc.OutputDir
	}

	bo := pipeline.BatchOptions{
		Concurrency: mustGetInt(cmd, "concurrency"),
		FailFast:    mustGetBool(cmd, "fail-fast"),
	}
	if bo.Concurrency <= 0 && m.Concurrency <= 0 {
		bo.Concurrency = mc.Concurrency
	}
	if !mustGetBool(cmd, "no-progress") {
		bo.Progress = os.Stderr
	}

	opts := matchOptions(cmd, mc)
	store, err := openHistory(mc.HistoryPath)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		opts = append(opts, vision.WithRecorder(store))
	}

	usage := startUsage()
	report, err := vision.RunBatch(cmd.Context(), m, bo, opts...)
	usage.report("batch")
	if report == nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, r := range report.Results {
		switch {
		case r.Err != nil:
			fmt.Fprintf(out, "%s: 失败: %v\n", r.Pair.Name, r.Err)
		case r.Summary != nil:
			fmt.Fprintf(out, "%s: 图像1特征点数量 %d, 图像2特征点数量 %d, 匹配点数量 %d, 已保存至 %s\n",
				r.Pair.Name, r.Summary.Stats.SourceKeypoints, r.Summary.Stats.TargetKeypoints,
				r.Summary.Stats.Accepted, r.Summary.Output)
		}
	}
	fmt.Fprintf(out, "完成: %d 成功, %d 失败\n", report.Succeeded, report.Failed)
	log.Info("批量任务 %s 完成: %d 成功, %d 失败", report.ID, report.Succeeded, report.Failed)

	if err != nil {
		return err
	}
	return report.Err()
}
