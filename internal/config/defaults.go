package config

import "time"

// Builtin returns the built-in default configuration. User-supplied YAML
// is merged on top of this via dario.cat/mergo (see loader.go), matching
// the teacher's built-in+override merge strategy (pkg/config/builtin.go).
func Builtin() *Config {
	return &Config{
		DefaultModel: "qwen-max",
		Strategy:     StrategyCostOptimized,
		LLMProviders: map[string]*LLMProviderConfig{
			"qwen": {
				Type:                 LLMProviderQwen,
				APIKeyEnv:            "QWEN_API_KEY",
				BaseURL:              "https://dashscope.aliyuncs.com/compatible-mode/v1",
				Enabled:              true,
				Priority:             1,
				MaxRequestsPerMinute: 10000,
				CostWeight:           1.0,
				PerformanceWeight:    1.0,
				SupportedModels:      []string{"qwen-max", "qwen-plus", "qwen-turbo"},
				MaxContextTokens: map[string]int{
					"qwen-max":   30000,
					"qwen-plus":  30000,
					"qwen-turbo": 8000,
				},
			},
			"kimi": {
				Type:                 LLMProviderKimi,
				APIKeyEnv:            "KIMI_API_KEY",
				BaseURL:              "https://api.moonshot.cn/v1",
				Enabled:              true,
				Priority:             2,
				MaxRequestsPerMinute: 10000,
				CostWeight:           1.2,
				PerformanceWeight:    0.9,
				SupportedModels:      []string{"moonshot-v1-8k", "moonshot-v1-32k"},
				MaxContextTokens: map[string]int{
					"moonshot-v1-8k":  8000,
					"moonshot-v1-32k": 32000,
				},
			},
		},
		RateLimiters: map[string]*RateLimiterConfig{
			"qwen": {RPM: 10000, TPM: 400000, WindowSeconds: 60, HistoryRingLen: 100},
			"kimi": {RPM: 10000, TPM: 400000, WindowSeconds: 60, HistoryRingLen: 100},
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  60 * time.Second,
			SuccessThreshold: 3,
		},
		Concurrency: ConcurrencyConfig{
			Initial:            15,
			Min:                5,
			Max:                25,
			AdjustmentInterval: 30 * time.Second,
		},
		FileFiltering: FileFilteringConfig{
			Enabled: true,
			IgnorePatterns: []string{
				".git/", "node_modules/", "vendor/", "dist/", "build/",
				"*.min.js", "*.map",
			},
			UseGitignore:    true,
			MaxFileSize:     1024 * 1024,
			DetectLibraries: true,
			LibraryKeywords: []string{
				"Generated by", "DO NOT EDIT", "auto-generated", "@license",
			},
			CSSFiles:  ConditionalIgnore{Enabled: true, Patterns: []string{"*.css", "*.scss", "*.less"}},
			TestFiles: ConditionalIgnore{Enabled: false, Patterns: []string{"*_test.go", "test_*.py", "*.test.js"}},
			DocFiles:  ConditionalIgnore{Enabled: true, Patterns: []string{"*.md", "*.rst", "*.txt"}},
			LogFiles:  ConditionalIgnore{Enabled: true, Patterns: []string{"*.log"}},
		},
		CrossFile: CrossFileConfig{
			MaxDepth:        3,
			ConfidenceFloor: 0.3,
			MaxRelatedFiles: 5,
			Search: CrossFileSearchConfig{
				MaxFiles:     100,
				MaxFileBytes: 512000,
				PreviewBytes: 10240,
			},
		},
		Recursion: RecursionConfig{MaxDepth: 50},
		Cache: CacheConfig{
			Dir:       ".ai_audit_cache",
			MaxSizeMB: 500,
			TTLHours:  24,
		},
		SecurityRules: SecurityRulesConfig{
			SQLInjection:   true,
			XSS:            true,
			CSRF:           true,
			Authentication: true,
			Authorization:  true,
		},
		Audit: AuditConfig{
			MaxConcurrentSessions: 3,
			CacheTTLSeconds:       86400,
			MaxFileSize:           1024 * 1024,
			MaxFilesPerAudit:      0,
			SupportedLanguages:    []string{"python", "javascript", "java", "go"},
		},
	}
}
