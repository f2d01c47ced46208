// Package masking redacts secret-shaped substrings from text that
// crosses a trust boundary, grounded on the teacher's pkg/masking
// regex-sweep design (pkg/masking/pattern.go, pkg/masking/service.go).
// Unlike the teacher's MCP-server-scoped registry of configurable
// pattern groups, this repo only ever has one caller (the LLM Provider
// echoing back a provider's raw HTTP response body), so the pattern set
// is a fixed built-in list rather than something loaded per-server from
// config.
package masking

import "regexp"

// pattern pairs a compiled regex with its replacement, mirroring the
// teacher's CompiledPattern.
type pattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// builtinPatterns covers the secret shapes most likely to appear in an
// LLM provider's error body: API keys, bearer tokens, and PEM private
// key blocks. Order matters: more specific patterns run first so a
// generic key=value sweep doesn't clobber a match a tighter pattern
// already redacted.
var builtinPatterns = []pattern{
	{
		name:        "openai_style_key",
		regex:       regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{16,}\b`),
		replacement: "[REDACTED_API_KEY]",
	},
	{
		name:        "aws_access_key_id",
		regex:       regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
		replacement: "[REDACTED_AWS_KEY_ID]",
	},
	{
		name:        "bearer_token",
		regex:       regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._~+/-]{10,}=*`),
		replacement: "Bearer [REDACTED_TOKEN]",
	},
	{
		name:        "pem_private_key",
		regex:       regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH )?PRIVATE KEY-----[\s\S]*?-----END (?:RSA |EC |OPENSSH )?PRIVATE KEY-----`),
		replacement: "[REDACTED_PRIVATE_KEY]",
	},
	{
		name:        "generic_secret_assignment",
		regex:       regexp.MustCompile(`(?i)\b(api[_-]?key|secret|password|token)("?\s*[:=]\s*"?)[^"\s,}]{6,}`),
		replacement: "$1$2[REDACTED]",
	},
}

// Service applies the built-in pattern set to arbitrary text.
type Service struct {
	patterns []pattern
}

// New builds a Service with all built-in patterns compiled and ready.
func New() *Service {
	return &Service{patterns: builtinPatterns}
}

// Mask redacts every built-in secret pattern found in content. Safe to
// call with arbitrary, untrusted text — it never returns an error,
// matching the fail-closed intent of the original: a pattern that
// doesn't match simply passes the text through unchanged.
func (s *Service) Mask(content string) string {
	masked := content
	for _, p := range s.patterns {
		masked = p.regex.ReplaceAllString(masked, p.replacement)
	}
	return masked
}
