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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "无法写入临时配置文件")
	return path
}

// TestLoadConfigOverridesDefaults 验证YAML中的值覆盖默认值，未出现的字段保持默认
func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
llm:
  provider: openai
  model: gpt-4o-mini
  task_models:
    match_eval: gpt-4o
  call_timeout: 15s
matching:
  workers: 3
  lock_ttl: 30s
rabbitmq:
  prefetch_count: 8
`)
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey, "provider=openai 时应读取 OPENAI_API_KEY")
	assert.Equal(t, "gpt-4o", cfg.GetModelForTask("match_eval"))
	assert.Equal(t, "gpt-4o-mini", cfg.GetModelForTask("resume_parse"))
	assert.Equal(t, 15*time.Second, GetDuration(cfg.LLM.CallTimeout, time.Minute))
	assert.Equal(t, 3, cfg.Matching.Workers)
	assert.Equal(t, 8, cfg.RabbitMQ.PrefetchCount)

	// 默认值保留
	assert.Equal(t, "q.resume_parse", cfg.RabbitMQ.ParseQueue)
	assert.Equal(t, 10, cfg.Matching.DefaultLimit)
	assert.False(t, cfg.OCR.Enabled)
}

func TestLoadConfigWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 1, cfg.Matching.Workers, "批量匹配默认顺序执行")
}

func TestLoadConfigRejectsUnknownProvider(t *testing.T) {
	path := writeTempConfig(t, "llm:\n  provider: llama\n")
	t.Setenv("LLM_PROVIDER", "")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.provider")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestAPIKeysFromEnv(t *testing.T) {
	t.Setenv("API_KEYS", "k1, k2,,")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Auth.APIKeys)
}

func TestEffectiveQPM(t *testing.T) {
	cfg := createDefaultConfig()
	cfg.LLM.QPM = 5000
	assert.Equal(t, 1080, cfg.EffectiveQPM("qwen-max"), "应取官方限制的90%")
	assert.Equal(t, 5000, cfg.EffectiveQPM("qwen-plus"))
	assert.Equal(t, 5000, cfg.EffectiveQPM("unknown-model"))
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 2*time.Second, GetDuration("", 2*time.Second))
	assert.Equal(t, 2*time.Second, GetDuration("bogus", 2*time.Second))
	assert.Equal(t, 500*time.Millisecond, GetDuration("500ms", time.Second))
}
