package main

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zoeyai/featmatch/internal/logger"
	"github.com/zoeyai/featmatch/pkg/config"
)

var (
	// cfgManager 配置文件管理器
	cfgManager *config.Manager
	// cfg 合并了配置文件与环境变量的配置，命令行参数在各命令中覆盖
	cfg *config.MatchConfig
	// log 全部命令共用的日志
	log = logger.New()
)

var rootCmd = &cobra.Command{
	Use:   "featmatch",
	Short: "两张图像的局部特征匹配工具",
	Long: `featmatch 提取两张图像的局部特征，在两张图之间匹配并筛选出可靠的匹配，
保存左右拼接的可视化结果并输出统计。

支持 ORB、BRISK、FREAK、SIFT、SURF、AKAZE、KAZE 七种预设。`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("log-level", "", "日志级别 (DEBUG/INFO/WARN/ERROR/OFF)")
	pf.BoolP("quiet", "q", false, "不在终端输出日志，日志文件不受影响")
	pf.String("log-file", "", "同时写入日志文件")
	pf.String("config-dir", "", "配置目录 (默认 ~/.featmatch)")
}

func initConfig() {
	// .env 文件可选，不存在时忽略
	_ = godotenv.Load()
}

// loadConfig 加载配置文件并应用环境变量，然后初始化日志
// 优先级: 命令行参数 > 环境变量 > 配置文件 > 变体预设
func loadConfig(cmd *cobra.Command, _ []string) error {
	if dir := mustGetString(cmd, "config-dir"); dir != "" {
		cfgManager = config.NewManagerWithDir(dir)
	} else {
		cfgManager = config.NewManager()
	}

	var err error
	cfg, err = cfgManager.Load()
	if err != nil {
		log.Warn("加载配置失败，使用默认配置: %v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = mustGetString(cmd, "log-level")
	}
	if cmd.Flags().Changed("log-file") {
		cfg.LogFile = mustGetString(cmd, "log-file")
	}

	configureLogger(log, cfg.LogLevel, mustGetBool(cmd, "quiet"))
	if cfg.LogFile != "" {
		if err := log.SetFile(true, cfg.LogFile); err != nil {
			return err
		}
	}
	log.Debug("配置文件: %s", cfgManager.GetConfigFile())
	return nil
}

// configureLogger 设置级别与终端输出，OFF 同时关闭日志文件
func configureLogger(l *logger.Logger, level string, quiet bool) {
	l.SetEnabled(!strings.EqualFold(strings.TrimSpace(level), "OFF"))
	l.SetConsole(!quiet)
	l.SetLevel(logger.ParseLevel(level))
}

func closeLogger() {
	_ = log.Close()
}
