package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Initialize loads, merges, resolves secrets, and validates configuration.
// This is the primary entry point, mirroring the teacher's
// config.Initialize(ctx, configDir) in pkg/config/loader.go.
//
// Steps:
//  1. Load audit.yaml from configDir (if present).
//  2. Expand ${VAR} / ${VAR:-default} environment references.
//  3. Merge onto the built-in defaults (user overrides built-in).
//  4. Resolve each LLM provider's API key from its configured env var.
//  5. Validate the merged configuration.
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.InfoContext(ctx, "initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	resolveAPIKeys(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.InfoContext(ctx, "configuration initialized",
		"llm_providers", stats.LLMProviders,
		"languages", stats.Languages)

	return cfg, nil
}

// load reads audit.yaml (if present) and merges it onto the built-in
// defaults. A missing file is not an error — the built-in config is used
// as-is, matching the teacher's "user overrides optional" loader design.
func load(configDir string) (*Config, error) {
	cfg := Builtin()

	path := filepath.Join(configDir, "audit.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, NewLoadError(path, err)
	}

	raw = expandEnv(raw)

	var override Config
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	if err := mergo.Merge(cfg, &override, mergo.WithOverride); err != nil {
		return nil, NewLoadError(path, err)
	}

	return cfg, nil
}

// resolveAPIKeys populates each provider's APIKey from its APIKeyEnv.
func resolveAPIKeys(cfg *Config) {
	for _, p := range cfg.LLMProviders {
		if p.APIKeyEnv != "" {
			p.APIKey = os.Getenv(p.APIKeyEnv)
		}
	}
}
