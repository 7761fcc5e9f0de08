package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zoeyai/featmatch/pkg/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "查看运行记录",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "按变体汇总运行记录",
	Args:  cobra.NoArgs,
	RunE:  runHistoryStats,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "查看单次运行的详细信息",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyCmd.PersistentFlags().String("db", "", "运行记录数据库 (默认取配置，未配置时为 ~/.featmatch/history.db)")
	historyCmd.Flags().Int("limit", 20, "显示的条数")
	historyCmd.AddCommand(historyStatsCmd, historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

// openHistoryForRead 查看记录时总能得到一个数据库
func openHistoryForRead(cmd *cobra.Command) (*history.Store, error) {
	path := mustGetString(cmd, "db")
	if path == "" {
		path = cfg.HistoryPath
	}
	if path == "" {
		path = cfgManager.DefaultHistoryPath()
	}
	log.Debug("运行记录数据库: %s", path)
	return history.Open(path)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistoryForRead(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), mustGetInt(cmd, "limit"))
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "暂无运行记录")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tVARIANT\tSTATUS\tKEYPOINTS\tMATCHES\tELAPSED\tOUTPUT")
	for _, r := range runs {
		status := r.Status
		if r.FailedStage != "" {
			status = fmt.Sprintf("%s(%s)", r.Status, r.FailedStage)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%.0fms\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Variant, status,
			r.SourceKeypoints, r.TargetKeypoints, r.Accepted, r.ElapsedMs, r.Output)
	}
	return w.Flush()
}

func runHistoryStats(cmd *cobra.Command, args []string) error {
	store, err := openHistoryForRead(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Summarize(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VARIANT\tRUNS\tFAILED\tAVG MATCHES")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.1f\n", s.Variant, s.Runs, s.Failed, s.AvgAccepted)
	}
	return w.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistoryForRead(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	r, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:       %s\n", r.ID)
	fmt.Fprintf(out, "时间:     %s\n", r.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "变体:     %s\n", r.Variant)
	fmt.Fprintf(out, "图像1:    %s (%d 个特征点)\n", r.Source, r.SourceKeypoints)
	fmt.Fprintf(out, "图像2:    %s (%d 个特征点)\n", r.Target, r.TargetKeypoints)
	fmt.Fprintf(out, "候选匹配: %d\n", r.RawCandidates)
	fmt.Fprintf(out, "接受匹配: %d\n", r.Accepted)
	fmt.Fprintf(out, "输出:     %s (%d 字节)\n", r.Output, r.Bytes)
	fmt.Fprintf(out, "耗时:     %.1fms\n", r.ElapsedMs)
	fmt.Fprintf(out, "状态:     %s (退出码 %d)\n", r.Status, r.ExitCode)
	if r.Error != "" {
		fmt.Fprintf(out, "错误:     %s [%s]\n", r.Error, r.FailedStage)
	}
	return nil
}
