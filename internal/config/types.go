// Package config loads, merges, validates, and freezes the audit
// pipeline's configuration: LLM providers, rate limiting, circuit
// breaking, concurrency, file filtering, caching, cross-file analysis,
// and recursion limits. It mirrors the teacher's YAML+env-overlay
// loader shape (pkg/config/loader.go) adapted to this domain.
package config

import "time"

// LLMProviderType identifies a concrete backend implementation.
type LLMProviderType string

const (
	LLMProviderQwen LLMProviderType = "qwen"
	LLMProviderKimi LLMProviderType = "kimi"
)

// LoadBalancingStrategy selects how the LLM Manager orders providers for
// a request when no preferred provider is given.
type LoadBalancingStrategy string

const (
	StrategyRoundRobin           LoadBalancingStrategy = "round_robin"
	StrategyRandom               LoadBalancingStrategy = "random"
	StrategyCostOptimized        LoadBalancingStrategy = "cost_optimized"
	StrategyPerformanceOptimized LoadBalancingStrategy = "performance_optimized"
)

// LLMProviderConfig is one `llm.<provider>.*` block.
type LLMProviderConfig struct {
	Type                 LLMProviderType `yaml:"type" validate:"required"`
	APIKeyEnv            string          `yaml:"api_key_env"`
	APIKey               string          `yaml:"-"` // resolved from APIKeyEnv at load time
	BaseURL              string          `yaml:"base_url" validate:"required,url"`
	Enabled              bool            `yaml:"enabled"`
	Priority             int             `yaml:"priority" validate:"min=1"`
	MaxRequestsPerMinute int             `yaml:"max_requests_per_minute" validate:"min=1"`
	CostWeight           float64         `yaml:"cost_weight" validate:"min=0"`
	PerformanceWeight    float64         `yaml:"performance_weight" validate:"min=0"`
	SupportedModels      []string        `yaml:"supported_models" validate:"min=1"`
	MaxContextTokens     map[string]int  `yaml:"max_context_tokens"`
}

// RateLimiterConfig is the `rate_limiter.<provider>.*` block.
type RateLimiterConfig struct {
	RPM            int `yaml:"rpm" validate:"min=1"`
	TPM            int `yaml:"tpm" validate:"min=1"`
	WindowSeconds  int `yaml:"window_size_seconds" validate:"min=1"`
	HistoryRingLen int `yaml:"history_ring_len"`
}

// CircuitBreakerConfig is the `circuit_breaker.*` block.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" validate:"min=1"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout_seconds"`
	SuccessThreshold int           `yaml:"success_threshold" validate:"min=1"`
}

// ConcurrencyConfig is the `concurrency.*` block.
type ConcurrencyConfig struct {
	Initial            int           `yaml:"initial" validate:"min=1"`
	Min                int           `yaml:"min" validate:"min=1"`
	Max                int           `yaml:"max" validate:"min=1"`
	AdjustmentInterval time.Duration `yaml:"adjustment_interval_seconds"`
}

// ConditionalIgnore is a boolean + pattern list gate used by the File Filter
// for a class of files (css, test, doc, log).
type ConditionalIgnore struct {
	Enabled  bool     `yaml:"enabled"`
	Patterns []string `yaml:"patterns"`
}

// FileFilteringConfig is the `file_filtering.*` block.
type FileFilteringConfig struct {
	Enabled          bool              `yaml:"enabled"`
	IgnorePatterns   []string          `yaml:"ignore_patterns"`
	UseGitignore     bool              `yaml:"use_gitignore"`
	MaxFileSize      int64             `yaml:"max_file_size"`
	DetectLibraries  bool              `yaml:"detect_libraries"`
	LibraryKeywords  []string          `yaml:"library_keywords"`
	ForceInclude     []string          `yaml:"force_include"`
	CSSFiles         ConditionalIgnore `yaml:"css_files"`
	TestFiles        ConditionalIgnore `yaml:"test_files"`
	DocFiles         ConditionalIgnore `yaml:"doc_files"`
	LogFiles         ConditionalIgnore `yaml:"log_files"`
}

// CrossFileSearchConfig bounds the Cross-File Analyzer's caller search.
type CrossFileSearchConfig struct {
	MaxFiles     int `yaml:"max_files" validate:"min=1"`
	MaxFileBytes int `yaml:"max_file_bytes" validate:"min=1"`
	PreviewBytes int `yaml:"preview_bytes" validate:"min=1"`
}

// CrossFileConfig is the `cross_file.*` block.
type CrossFileConfig struct {
	MaxDepth         int                   `yaml:"max_depth" validate:"min=1"`
	ConfidenceFloor  float64               `yaml:"confidence_floor" validate:"min=0,max=1"`
	MaxRelatedFiles  int                   `yaml:"max_related_files" validate:"min=1"`
	Search           CrossFileSearchConfig `yaml:"search"`
}

// RecursionConfig is the `recursion.*` block.
type RecursionConfig struct {
	MaxDepth int `yaml:"max_depth" validate:"min=1"`
}

// CacheConfig configures the Result Cache.
type CacheConfig struct {
	Dir         string `yaml:"cache_dir"`
	MaxSizeMB   int64  `yaml:"max_size_mb" validate:"min=1"`
	TTLHours    int    `yaml:"ttl_hours" validate:"min=1"`
}

// SecurityRulesConfig enables/disables categories of analysis.
type SecurityRulesConfig struct {
	SQLInjection   bool `yaml:"sql_injection"`
	XSS            bool `yaml:"xss"`
	CSRF           bool `yaml:"csrf"`
	Authentication bool `yaml:"authentication"`
	Authorization  bool `yaml:"authorization"`
}

// AuditConfig is the `audit.*` block.
type AuditConfig struct {
	MaxConcurrentSessions int      `yaml:"max_concurrent_sessions" validate:"min=1"`
	CacheTTLSeconds       int      `yaml:"cache_ttl_seconds" validate:"min=1"`
	MaxFileSize           int64    `yaml:"max_file_size" validate:"min=1"`
	MaxFilesPerAudit      int      `yaml:"max_files_per_audit" validate:"min=0"`
	SupportedLanguages    []string `yaml:"supported_languages" validate:"min=1"`
}

// Config is the frozen, validated configuration record handed to every
// core component. It is produced once by Initialize/Load and never
// mutated afterward.
type Config struct {
	DefaultModel    string                        `yaml:"default_model"`
	Strategy        LoadBalancingStrategy         `yaml:"strategy"`
	LLMProviders    map[string]*LLMProviderConfig `yaml:"llm"`
	RateLimiters    map[string]*RateLimiterConfig `yaml:"rate_limiter"`
	CircuitBreaker  CircuitBreakerConfig          `yaml:"circuit_breaker"`
	Concurrency     ConcurrencyConfig             `yaml:"concurrency"`
	FileFiltering   FileFilteringConfig           `yaml:"file_filtering"`
	CrossFile       CrossFileConfig               `yaml:"cross_file"`
	Recursion       RecursionConfig               `yaml:"recursion"`
	Cache           CacheConfig                   `yaml:"cache"`
	SecurityRules   SecurityRulesConfig           `yaml:"security_rules"`
	Audit           AuditConfig                   `yaml:"audit"`
}

// Stats is a small snapshot used for health/status reporting.
type Stats struct {
	LLMProviders int
	Languages    int
}

// Stats summarizes the loaded configuration for status endpoints/logging.
func (c *Config) Stats() Stats {
	return Stats{
		LLMProviders: len(c.LLMProviders),
		Languages:    len(c.Audit.SupportedLanguages),
	}
}
