package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchConfig(t *testing.T) {
	config := DefaultMatchConfig()

	if config.Variant != "orb" {
		t.Errorf("默认 Variant 应为 orb, 实际为 %s", config.Variant)
	}
	if config.TopK != 0 || config.Ratio != 0 {
		t.Error("默认 TopK 与 Ratio 应为 0 (使用变体预设)")
	}
	if config.HistoryPath != "" {
		t.Error("默认不应记录运行历史")
	}
	if config.LogLevel != "INFO" {
		t.Errorf("默认 LogLevel 应为 INFO, 实际为 %s", config.LogLevel)
	}

	t.Logf("默认配置: %+v", config)
}

func TestManagerSaveAndLoad(t *testing.T) {
	// 使用临时目录
	tempDir := t.TempDir()
	manager := NewManagerWithDir(tempDir)

	// 检查初始状态
	if manager.Exists() {
		t.Error("初始时配置文件不应存在")
	}

	// 保存配置
	config := &MatchConfig{
		Variant:     "surf",
		Ratio:       0.65,
		IndexKind:   "kdtree",
		Trees:       8,
		Checks:      128,
		Annotate:    true,
		Concurrency: 4,
		LogLevel:    "DEBUG",
		HistoryPath: filepath.Join(tempDir, "history.db"),
	}

	err := manager.Save(config)
	if err != nil {
		t.Fatalf("保存配置失败: %v", err)
	}

	// 检查文件是否存在
	if !manager.Exists() {
		t.Error("保存后配置文件应存在")
	}

	// 加载配置
	loaded, err := manager.Load()
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	// 验证内容
	if *loaded != *config {
		t.Errorf("配置不匹配:\n 期望 %+v\n 实际 %+v", config, loaded)
	}

	t.Logf("加载的配置: %+v", loaded)
}

func TestManagerLoadPartial(t *testing.T) {
	tempDir := t.TempDir()
	manager := NewManagerWithDir(tempDir)

	// 只包含部分字段的文件，其余字段保持默认值
	err := os.WriteFile(manager.GetConfigFile(), []byte(`{"variant": "sift"}`), 0600)
	if err != nil {
		t.Fatalf("创建测试文件失败: %v", err)
	}

	config, err := manager.Load()
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if config.Variant != "sift" {
		t.Errorf("Variant 应为 sift, 实际为 %s", config.Variant)
	}
	if config.Concurrency != 2 || config.LogLevel != "INFO" {
		t.Errorf("缺省字段应保持默认值: %+v", config)
	}
}

func TestManagerClear(t *testing.T) {
	tempDir := t.TempDir()
	manager := NewManagerWithDir(tempDir)

	// 先保存一个配置
	err := manager.Save(DefaultMatchConfig())
	if err != nil {
		t.Fatalf("保存配置失败: %v", err)
	}

	if !manager.Exists() {
		t.Fatal("保存后配置文件应存在")
	}

	// 清除配置
	err = manager.Clear()
	if err != nil {
		t.Fatalf("清除配置失败: %v", err)
	}

	if manager.Exists() {
		t.Error("清除后配置文件不应存在")
	}

	// 清除不存在的文件不应报错
	err = manager.Clear()
	if err != nil {
		t.Errorf("清除不存在的配置不应报错: %v", err)
	}
}

func TestManagerLoadNonExistent(t *testing.T) {
	tempDir := t.TempDir()
	manager := NewManagerWithDir(tempDir)

	// 加载不存在的配置应返回默认值
	config, err := manager.Load()
	if err != nil {
		t.Fatalf("加载不存在的配置不应报错: %v", err)
	}

	if *config != *DefaultMatchConfig() {
		t.Errorf("应返回默认配置, 实际为 %+v", config)
	}
}

func TestManagerLoadCorruptedFile(t *testing.T) {
	tempDir := t.TempDir()
	manager := NewManagerWithDir(tempDir)

	// 创建一个损坏的配置文件
	configFile := filepath.Join(tempDir, "config.json")
	err := os.WriteFile(configFile, []byte("not valid json"), 0600)
	if err != nil {
		t.Fatalf("创建测试文件失败: %v", err)
	}

	// 加载损坏的配置应返回默认值和错误
	config, err := manager.Load()
	if err == nil {
		t.Error("加载损坏的配置应返回错误")
	}

	// 但仍应返回默认配置
	if config == nil || config.Variant != "orb" {
		t.Error("即使出错也应返回默认配置")
	}

	t.Logf("加载损坏配置的错误: %v", err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvVariant:  " SIFT ",
		EnvTopK:     "30",
		EnvRatio:    "0.8",
		EnvLogLevel: "debug",
		EnvHistory:  "/tmp/runs.db",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	config := DefaultMatchConfig()
	if err := config.applyEnv(lookup); err != nil {
		t.Fatalf("应用环境变量失败: %v", err)
	}
	if config.Variant != "sift" || config.TopK != 30 || config.Ratio != 0.8 {
		t.Errorf("环境变量未生效: %+v", config)
	}
	if config.LogLevel != "debug" || config.HistoryPath != "/tmp/runs.db" {
		t.Errorf("环境变量未生效: %+v", config)
	}
}

func TestApplyEnvInvalid(t *testing.T) {
	testCases := map[string]string{
		EnvTopK:  "many",
		EnvRatio: "0,7",
	}
	for key, value := range testCases {
		t.Run(key, func(t *testing.T) {
			lookup := func(k string) (string, bool) {
				if k == key {
					return value, true
				}
				return "", false
			}
			if err := DefaultMatchConfig().applyEnv(lookup); err == nil {
				t.Errorf("%s=%s 应返回错误", key, value)
			}
		})
	}
}

func TestApplyEnvEmpty(t *testing.T) {
	config := DefaultMatchConfig()
	if err := config.applyEnv(func(string) (string, bool) { return "", false }); err != nil {
		t.Fatalf("未设置环境变量不应报错: %v", err)
	}
	if *config != *DefaultMatchConfig() {
		t.Errorf("未设置环境变量时配置不应变化: %+v", config)
	}
}

func TestManagerPaths(t *testing.T) {
	tempDir := t.TempDir()
	manager := NewManagerWithDir(tempDir)

	if manager.GetConfigDir() != tempDir {
		t.Errorf("GetConfigDir 应为 %s", tempDir)
	}

	expectedFile := filepath.Join(tempDir, "config.json")
	if manager.GetConfigFile() != expectedFile {
		t.Errorf("GetConfigFile 应为 %s", expectedFile)
	}

	if manager.DefaultHistoryPath() != filepath.Join(tempDir, "history.db") {
		t.Errorf("DefaultHistoryPath 错误: %s", manager.DefaultHistoryPath())
	}
}

func TestNewManager(t *testing.T) {
	manager := NewManager()

	// 检查默认路径是否在用户目录下
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("无法获取用户目录: %v", err)
	}
	expectedDir := filepath.Join(homeDir, ".featmatch")

	if manager.GetConfigDir() != expectedDir {
		t.Errorf("默认配置目录应为 %s, 实际为 %s", expectedDir, manager.GetConfigDir())
	}
}

func TestConfigFilePermissions(t *testing.T) {
	tempDir := t.TempDir()
	manager := NewManagerWithDir(tempDir)

	if err := manager.Save(DefaultMatchConfig()); err != nil {
		t.Fatalf("保存配置失败: %v", err)
	}

	info, err := os.Stat(manager.GetConfigFile())
	if err != nil {
		t.Fatalf("获取文件信息失败: %v", err)
	}

	perm := info.Mode().Perm()
	// 在某些系统上权限可能略有不同
	if perm&0077 != 0 {
		t.Logf("警告: 配置文件权限为 %o", perm)
	}
}

// BenchmarkSaveLoad 基准测试
func BenchmarkSaveLoad(b *testing.B) {
	tempDir := b.TempDir()
	manager := NewManagerWithDir(tempDir)
	config := DefaultMatchConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		manager.Save(config)
		manager.Load()
	}
}
