package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRejectsMinGreaterThanMax(t *testing.T) {
	cfg := Builtin()
	cfg.LLMProviders["qwen"].APIKey = "x"
	cfg.LLMProviders["qwen"].Enabled = true
	delete(cfg.LLMProviders, "kimi")
	cfg.Concurrency.Min = 20
	cfg.Concurrency.Max = 10

	err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidateRejectsEnabledProviderWithoutKey(t *testing.T) {
	cfg := Builtin()
	delete(cfg.LLMProviders, "kimi")
	cfg.LLMProviders["qwen"].Enabled = true
	cfg.LLMProviders["qwen"].APIKey = ""

	err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidatePassesWithResolvedKey(t *testing.T) {
	cfg := Builtin()
	cfg.LLMProviders["qwen"].Enabled = true
	cfg.LLMProviders["qwen"].APIKey = "k"
	cfg.LLMProviders["kimi"].Enabled = false

	err := Validate(cfg)
	assert.NoError(t, err)
}

func TestValidateRejectsConfidenceFloorOutOfRange(t *testing.T) {
	cfg := Builtin()
	cfg.LLMProviders["qwen"].Enabled = true
	cfg.LLMProviders["qwen"].APIKey = "k"
	cfg.LLMProviders["kimi"].Enabled = false
	cfg.CrossFile.ConfidenceFloor = 1.5

	err := Validate(cfg)
	assert.Error(t, err)
}
