package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644), "无法写入临时配置文件")
	return configPath
}

// TestLoadConfigFromFile 验证 YAML 字段被正确加载，未出现的字段保留默认值
func TestLoadConfigFromFile(t *testing.T) {
	configPath := writeTempConfig(t, `
embedding:
  base_url: "http://embed.local/v1"
  model: "text-embedding-3-small"
  dimensions: 1536
workspace:
  dir: "/tmp/screening"
redis:
  address: "localhost:6379"
model_qpm_limits:
  text-embedding-3-small: 100
`)

	config, err := LoadConfigFromFileOnly(configPath)
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "http://embed.local/v1", config.Embedding.BaseURL)
	assert.Equal(t, "text-embedding-3-small", config.Embedding.Model)
	assert.Equal(t, 1536, config.Embedding.Dimensions)
	assert.Equal(t, "/tmp/screening", config.Workspace.Dir)
	assert.Equal(t, "job_history.json", config.Workspace.HistoryFile, "未设置的字段应使用默认值")
	assert.Equal(t, filepath.Join("/tmp/screening", "job_history.json"), config.HistoryPath())
	assert.Equal(t, ":8000", config.Server.Address)
	assert.Equal(t, 10, config.Redis.PoolSize, "Redis 连接池默认值应保留")
	assert.Equal(t, 100, config.QPMFor("text-embedding-3-small"))
	assert.Equal(t, 30, config.Extraction.PDFTimeoutSeconds, "PDF 解析超时默认 30 秒")
	assert.False(t, config.Embedding.SendDimensions)
}

// TestLoadConfigEmptyFieldsFallBack 验证显式置空的字段回填默认值
func TestLoadConfigEmptyFieldsFallBack(t *testing.T) {
	configPath := writeTempConfig(t, `
server:
  address: ""
embedding:
  model: ""
`)
	config, err := LoadConfigFromFileOnly(configPath)
	require.NoError(t, err)
	assert.Equal(t, ":8000", config.Server.Address)
	assert.Equal(t, "all-MiniLM-L6-v2", config.Embedding.Model)
}

// TestLoadConfigEnvOverrides 验证环境变量覆盖配置文件
func TestLoadConfigEnvOverrides(t *testing.T) {
	configPath := writeTempConfig(t, `
embedding:
  api_key: "from-file"
  model: "from-file-model"
`)
	t.Setenv("EMBEDDING_API_KEY", "from-env")
	t.Setenv("EMBEDDING_MODEL", "env-model")
	t.Setenv("WORKSPACE_DIR", "env-uploads")

	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "from-env", config.Embedding.APIKey)
	assert.Equal(t, "env-model", config.Embedding.Model)
	assert.Equal(t, "env-uploads", config.Workspace.Dir)

	// 仅从文件加载时不应用环境变量
	fileOnly, err := LoadConfigFromFileOnly(configPath)
	require.NoError(t, err)
	assert.Equal(t, "from-file", fileOnly.Embedding.APIKey)
}

// TestLoadConfigInvalidYAML 验证错误的 YAML 返回解析错误
func TestLoadConfigInvalidYAML(t *testing.T) {
	configPath := writeTempConfig(t, "server: [unterminated\n")
	_, err := LoadConfigFromFileOnly(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "解析配置文件失败")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfigFromFileOnly(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "配置文件不存在")
}

func TestCreateSampleConfigDoesNotOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")
	require.NoError(t, CreateSampleConfig(path))

	loaded, err := LoadConfigFromFileOnly(path)
	require.NoError(t, err)
	assert.Equal(t, "uploads", loaded.Workspace.Dir)

	err = CreateSampleConfig(path)
	require.Error(t, err, "已存在的文件不应被覆盖")
}

func TestQPMForStripsVendorPrefix(t *testing.T) {
	config := createDefaultConfig()
	assert.Equal(t, 6000, config.QPMFor("sentence-transformers/all-MiniLM-L6-v2"))
	assert.Equal(t, 0, config.QPMFor("unknown-model"))
}

func TestDurationHelpers(t *testing.T) {
	assert.Equal(t, 3*time.Second, GetDuration("3s", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("bogus", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("", time.Minute))
	assert.Equal(t, 5*time.Second, Seconds(5, time.Minute))
	assert.Equal(t, time.Minute, Seconds(0, time.Minute))
}
