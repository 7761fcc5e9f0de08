package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/zoeyai/featmatch/pkg/config"
	"github.com/zoeyai/featmatch/pkg/history"
	"github.com/zoeyai/featmatch/pkg/vision"
	"github.com/zoeyai/featmatch/pkg/vision/matcher"
)

var matchCmd = &cobra.Command{
	Use:   "match <source> <target>",
	Short: "匹配两张图像并保存可视化结果",
	Long: `匹配两张图像并保存左右拼接的可视化结果，完成后输出特征点数量、匹配点数量与结果路径。

退出码: 0 成功，1 图像读取失败，2 特征提取失败或算法不可用，3 其他失败。`,
	Example: `  featmatch match 1.jpg 2.jpg
  featmatch match 1.jpg 2.jpg --variant sift --annotate
  featmatch match 1.jpg 2.jpg --variant orb --strategy knn --ratio 0.75
  featmatch match 1.jpg 2.jpg --variant kaze --index hnsw -o out/kaze.jpg`,
	Args: cobra.ExactArgs(2),
	RunE: runMatch,
}

func init() {
	addMatchFlags(matchCmd)
	matchCmd.Flags().StringP("output", "o", "", "结果图路径 (默认使用变体的文件名)")
	matchCmd.Flags().String("history", "", "把运行结果记录到该 SQLite 数据库")
	rootCmd.AddCommand(matchCmd)
}

// addMatchFlags 匹配参数，match 与 batch 共用
func addMatchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("variant", "", "预设 (orb/brisk/freak/sift/surf/akaze/kaze)")
	f.String("strategy", "", "匹配策略 (crosscheck/knn/indexed-knn)，默认使用变体预设")
	f.Int("top-k", 0, "交叉验证匹配保留的数量")
	f.Float64("ratio", 0, "比率测试阈值 (0, 1]")
	f.String("index", "", "近似索引 (kdtree/lsh/hnsw/auto)")
	f.Int("trees", 0, "kd 树数量")
	f.Int("checks", 0, "kd 树每次查询检查的叶子点数")
	f.String("output-dir", "", "结果图目录")
	f.Bool("draw-keypoints", false, "绘制带尺度与方向的特征点")
	f.Bool("draw-unmatched", false, "绘制未参与匹配的特征点")
	f.Bool("annotate", false, "在结果图顶部绘制变体名与统计")
}

// matchConfigFromFlags 在 cfg 的副本上应用显式给出的命令行参数
func matchConfigFromFlags(cmd *cobra.Command) (*config.MatchConfig, error) {
	mc := *cfg
	if err := applyMatchFlags(cmd, &mc); err != nil {
		return nil, err
	}
	return &mc, nil
}

// applyMatchFlags 只覆盖显式给出的参数，布尔开关由 matchOptions 处理
func applyMatchFlags(cmd *cobra.Command, mc *config.MatchConfig) error {
	flags := cmd.Flags()

	if flags.Changed("variant") {
		mc.Variant = mustGetString(cmd, "variant")
	}
	if flags.Changed("strategy") {
		st, err := matcher.ParseStrategy(mustGetString(cmd, "strategy"))
		if err != nil {
			return err
		}
		mc.Strategy = st.String()
	}
	if flags.Changed("top-k") {
		mc.TopK = mustGetInt(cmd, "top-k")
	}
	if flags.Changed("ratio") {
		mc.Ratio = mustGetFloat64(cmd, "ratio")
	}
	if flags.Changed("index") {
		kind, err := matcher.ParseIndexKind(mustGetString(cmd, "index"))
		if err != nil {
			return err
		}
		mc.IndexKind = string(kind)
	}
	if flags.Changed("trees") {
		mc.Trees = mustGetInt(cmd, "trees")
	}
	if flags.Changed("checks") {
		mc.Checks = mustGetInt(cmd, "checks")
	}
	if flags.Changed("output-dir") {
		mc.OutputDir = mustGetString(cmd, "output-dir")
	}
	if flags.Lookup("history") != nil && flags.Changed("history") {
		mc.HistoryPath = mustGetString(cmd, "history")
	}
	return nil
}

// matchOptions 把配置与布尔开关转换为匹配选项
// 布尔开关显式给出时覆盖变体预设，例如 --draw-keypoints=false 关闭 SIFT 的特征点绘制
func matchOptions(cmd *cobra.Command, mc *config.MatchConfig) []vision.Option {
	opts := vision.FromConfig(mc)
	flags := cmd.Flags()

	if flags.Changed("draw-keypoints") {
		opts = append(opts, vision.WithDecorateKeypoints(mustGetBool(cmd, "draw-keypoints")))
	}
	if flags.Changed("draw-unmatched") {
		opts = append(opts, vision.WithDrawUnmatched(mustGetBool(cmd, "draw-unmatched")))
	}
	if flags.Changed("annotate") {
		opts = append(opts, vision.WithAnnotate(mustGetBool(cmd, "annotate")))
	}
	return append(opts, vision.WithLogger(log))
}

// openHistory 未配置路径时返回 nil
func openHistory(path string) (*history.Store, error) {
	if path == "" {
		return nil, nil
	}
	return history.Open(path)
}

func runMatch(cmd *cobra.Command, args []string) error {
	mc, err := matchConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	opts := matchOptions(cmd, mc)
	if output := mustGetString(cmd, "output"); output != "" {
		opts = append(opts, vision.WithOutput(output))
	}

	store, err := openHistory(mc.HistoryPath)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		opts = append(opts, vision.WithRecorder(store))
	}

	usage := startUsage()
	summary, err := vision.MatchImages(cmd.Context(), args[0], args[1], opts...)
	usage.report("match")
	if err != nil {
		return err
	}

	log.Info("匹配完成: %s, 耗时 %s", summary.Variant, summary.Elapsed.Round(time.Millisecond))
	return summary.Print(cmd.OutOrStdout())
}
