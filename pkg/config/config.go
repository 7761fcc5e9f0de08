package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// 环境变量名
const (
	EnvVariant  = "FEATMATCH_VARIANT"
	EnvTopK     = "FEATMATCH_TOP_K"
	EnvRatio    = "FEATMATCH_RATIO"
	EnvLogLevel = "FEATMATCH_LOG_LEVEL"
	EnvHistory  = "FEATMATCH_HISTORY"
)

// MatchConfig 匹配默认配置
// 数值字段为 0 时使用变体预设
type MatchConfig struct {
	Variant       string  `json:"variant"`
	Strategy      string  `json:"strategy,omitempty"`
	TopK          int     `json:"top_k,omitempty"`
	Ratio         float64 `json:"ratio,omitempty"`
	IndexKind     string  `json:"index_kind,omitempty"`
	Trees         int     `json:"trees,omitempty"`
	Checks        int     `json:"checks,omitempty"`
	OutputDir     string  `json:"output_dir,omitempty"`
	Annotate      bool    `json:"annotate"`
	DrawKeypoints bool    `json:"draw_keypoints"`
	DrawUnmatched bool    `json:"draw_unmatched"`
	Concurrency   int     `json:"concurrency"`
	LogLevel      string  `json:"log_level"`
	LogFile       string  `json:"log_file,omitempty"`
	// HistoryPath 运行记录数据库路径，为空时不记录
	HistoryPath string `json:"history_path,omitempty"`
}

// DefaultMatchConfig 默认匹配配置
func DefaultMatchConfig() *MatchConfig {
	return &MatchConfig{
		Variant:     "orb",
		Concurrency: 2,
		LogLevel:    "INFO",
	}
}

// ApplyEnv 用环境变量覆盖配置
func (c *MatchConfig) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *MatchConfig) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvVariant); ok && v != "" {
		c.Variant = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvTopK); ok && v != "" {
		k, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("解析 %s 失败: %w", EnvTopK, err)
		}
		c.TopK = k
	}
	if v, ok := lookup(EnvRatio); ok && v != "" {
		r, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("解析 %s 失败: %w", EnvRatio, err)
		}
		c.Ratio = r
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvHistory); ok {
		c.HistoryPath = v
	}
	return nil
}

// Manager 配置管理器
type Manager struct {
	configDir  string
	configFile string
	mu         sync.RWMutex
}

// NewManager 创建配置管理器
func NewManager() *Manager {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return NewManagerWithDir(filepath.Join(homeDir, ".featmatch"))
}

// NewManagerWithDir 使用指定目录创建配置管理器
func NewManagerWithDir(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configFile: filepath.Join(configDir, "config.json"),
	}
}

// ensureDir 确保配置目录存在
func (m *Manager) ensureDir() error {
	return os.MkdirAll(m.configDir, 0755)
}

// Load 加载配置
// 文件不存在时返回默认值，文件损坏时返回默认值和错误
func (m *Manager) Load() (*MatchConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, err := os.Stat(m.configFile); os.IsNotExist(err) {
		return DefaultMatchConfig(), nil
	}

	data, err := os.ReadFile(m.configFile)
	if err != nil {
		return DefaultMatchConfig(), fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := DefaultMatchConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return DefaultMatchConfig(), fmt.Errorf("解析配置文件失败: %w", err)
	}

	return config, nil
}

// Save 保存配置
func (m *Manager) Save(config *MatchConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureDir(); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(m.configFile, data, 0600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}

// Clear 清除配置
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.configFile); os.IsNotExist(err) {
		return nil
	}

	return os.Remove(m.configFile)
}

// GetConfigDir 获取配置目录
func (m *Manager) GetConfigDir() string {
	return m.configDir
}

// GetConfigFile 获取配置文件路径
func (m *Manager) GetConfigFile() string {
	return m.configFile
}

// DefaultHistoryPath 配置目录下的运行记录数据库路径
func (m *Manager) DefaultHistoryPath() string {
	return filepath.Join(m.configDir, "history.db")
}

// Exists 检查配置文件是否存在
func (m *Manager) Exists() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, err := os.Stat(m.configFile)
	return err == nil
}
