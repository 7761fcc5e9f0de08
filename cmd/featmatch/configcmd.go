package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zoeyai/featmatch/pkg/pipeline"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "查看或保存默认配置",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "显示生效的配置 (配置文件 + 环境变量)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("序列化配置失败: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# 配置目录: %s\n", cfgManager.GetConfigDir())
		if cfgManager.Exists() {
			fmt.Fprintf(out, "# 配置文件: %s\n", cfgManager.GetConfigFile())
		} else {
			fmt.Fprintf(out, "# 配置文件: %s (不存在，使用默认配置)\n", cfgManager.GetConfigFile())
		}
		fmt.Fprintln(out, string(data))
		return nil
	},
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "把给出的参数保存到配置文件",
	Example: `  featmatch config save --variant sift --annotate
  featmatch config save --history ~/.featmatch/history.db`,
	Args: cobra.NoArgs,
	RunE: runConfigSave,
}

var configClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "删除配置文件",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfgManager.Clear(); err != nil {
			return fmt.Errorf("删除配置文件失败: %w", err)
		}
		log.Info("配置已清除: %s", cfgManager.GetConfigFile())
		return nil
	},
}

func init() {
	addMatchFlags(configSaveCmd)
	configSaveCmd.Flags().Int("concurrency", 0, "批量任务默认并发数")
	configSaveCmd.Flags().String("history", "", "运行记录数据库路径")
	configCmd.AddCommand(configShowCmd, configSaveCmd, configClearCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigSave 只把显式给出的参数写入文件，环境变量不落盘
func runConfigSave(cmd *cobra.Command, args []string) error {
	saved, err := cfgManager.Load()
	if err != nil {
		log.Warn("原配置文件无法解析，将被覆盖: %v", err)
	}
	if err := applyMatchFlags(cmd, saved); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("annotate") {
		saved.Annotate = mustGetBool(cmd, "annotate")
	}
	if flags.Changed("draw-keypoints") {
		saved.DrawKeypoints = mustGetBool(cmd, "draw-keypoints")
	}
	if flags.Changed("draw-unmatched") {
		saved.DrawUnmatched = mustGetBool(cmd, "draw-unmatched")
	}
	if flags.Changed("concurrency") {
		saved.Concurrency = mustGetInt(cmd, "concurrency")
	}
	if flags.Changed("log-level") {
		saved.LogLevel = mustGetString(cmd, "log-level")
	}
	if flags.Changed("log-file") {
		saved.LogFile = mustGetString(cmd, "log-file")
	}

	if _, err := pipeline.LookupVariant(saved.Variant); err != nil {
		return err
	}
	if err := cfgManager.Save(saved); err != nil {
		return err
	}
	log.Info("配置已保存到 %s", cfgManager.GetConfigFile())
	return nil
}
