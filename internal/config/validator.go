package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New()

// Validate runs struct-tag validation (github.com/go-playground/validator/v10)
// over every provider config plus cross-field invariants the tags can't
// express (at least one enabled provider with a resolved API key).
func Validate(cfg *Config) error {
	if len(cfg.LLMProviders) == 0 {
		return NewValidationError("llm", "providers", fmt.Errorf("at least one LLM provider must be configured"))
	}

	enabledWithKey := 0
	for name, p := range cfg.LLMProviders {
		if err := structValidator.Struct(p); err != nil {
			return NewValidationError("llm_provider", name, err)
		}
		if p.Enabled {
			if p.APIKey == "" {
				return NewValidationError("llm_provider", name,
					fmt.Errorf("provider enabled but env var %q is unset", p.APIKeyEnv))
			}
			enabledWithKey++
		}
	}
	if enabledWithKey == 0 {
		return NewValidationError("llm", "providers", fmt.Errorf("no enabled LLM provider has a resolved API key"))
	}

	if cfg.Concurrency.Min > cfg.Concurrency.Max {
		return NewValidationError("concurrency", "min", fmt.Errorf("min (%d) exceeds max (%d)", cfg.Concurrency.Min, cfg.Concurrency.Max))
	}
	if cfg.Concurrency.Initial < cfg.Concurrency.Min || cfg.Concurrency.Initial > cfg.Concurrency.Max {
		return NewValidationError("concurrency", "initial", fmt.Errorf("initial (%d) outside [min, max] = [%d, %d]", cfg.Concurrency.Initial, cfg.Concurrency.Min, cfg.Concurrency.Max))
	}

	if cfg.CrossFile.ConfidenceFloor < 0 || cfg.CrossFile.ConfidenceFloor > 1 {
		return NewValidationError("cross_file", "confidence_floor", fmt.Errorf("must be within [0, 1]"))
	}

	if len(cfg.Audit.SupportedLanguages) == 0 {
		return NewValidationError("audit", "supported_languages", fmt.Errorf("at least one supported language is required"))
	}

	return nil
}
