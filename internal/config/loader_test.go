package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeWithNoOverrideUsesBuiltin(t *testing.T) {
	t.Setenv("QWEN_API_KEY", "test-key")
	t.Setenv("KIMI_API_KEY", "test-key-2")

	dir := t.TempDir()
	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Stats().LLMProviders)
	assert.Equal(t, "qwen-max", cfg.DefaultModel)
}

func TestInitializeFailsWithoutAnyAPIKey(t *testing.T) {
	t.Setenv("QWEN_API_KEY", "")
	t.Setenv("KIMI_API_KEY", "")

	dir := t.TempDir()
	_, err := Initialize(context.Background(), dir)
	assert.Error(t, err)
}

func TestLoadMergesUserOverrideOntoBuiltin(t *testing.T) {
	t.Setenv("QWEN_API_KEY", "test-key")
	dir := t.TempDir()

	yamlContent := `
default_model: qwen-turbo
llm:
  kimi:
    enabled: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "audit.yaml"), []byte(yamlContent), 0o644))

	cfg, err := load(dir)
	require.NoError(t, err)
	assert.Equal(t, "qwen-turbo", cfg.DefaultModel)
	assert.False(t, cfg.LLMProviders["kimi"].Enabled)
	// Untouched built-in fields survive the merge.
	assert.Equal(t, 10000, cfg.LLMProviders["qwen"].MaxRequestsPerMinute)
}

func TestEnvExpansionInConfigFile(t *testing.T) {
	t.Setenv("CUSTOM_BASE_URL", "https://example.test/v1")
	dir := t.TempDir()

	yamlContent := `
llm:
  qwen:
    base_url: "${CUSTOM_BASE_URL}"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "audit.yaml"), []byte(yamlContent), 0o644))

	cfg, err := load(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/v1", cfg.LLMProviders["qwen"].BaseURL)
}

func TestMissingConfigFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	cfg, err := load(dir)
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}
