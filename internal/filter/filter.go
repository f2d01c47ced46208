// Package filter implements the File Filter (spec §4.G): decides which
// discovered paths are worth analyzing, by pattern, gitignore, size, and
// content sniffing, in a fixed decision order. Grounded on the teacher's
// config-driven gating style (pkg/config) generalized from YAML-flag
// gating to path filtering.
package filter

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/aicodeaudit/auditor/internal/config"
)

// ExitReason records which decision step excluded (or included) a path.
type ExitReason string

const (
	ExitForceInclude ExitReason = "force_include"
	ExitIgnorePattern ExitReason = "ignore_pattern"
	ExitGitignore    ExitReason = "gitignore"
	ExitTooLarge     ExitReason = "too_large"
	ExitCSSFile      ExitReason = "css_file"
	ExitTestFile     ExitReason = "test_file"
	ExitDocFile      ExitReason = "doc_file"
	ExitLogFile      ExitReason = "log_file"
	ExitLibraryContent ExitReason = "library_content"
	ExitIncluded     ExitReason = "included"
)

// Stats counts how many candidate paths exited via each decision step.
type Stats struct {
	Counts map[ExitReason]int
}

func newStats() Stats { return Stats{Counts: make(map[ExitReason]int)} }

func (s Stats) record(reason ExitReason) { s.Counts[reason]++ }

// Filter applies a FileFilteringConfig to a candidate file list.
type Filter struct {
	cfg             config.FileFilteringConfig
	gitignorePatterns []string
}

// New builds a Filter for projectRoot, loading .gitignore if configured.
func New(projectRoot string, cfg config.FileFilteringConfig) *Filter {
	f := &Filter{cfg: cfg}
	if cfg.UseGitignore {
		f.gitignorePatterns = loadGitignore(filepath.Join(projectRoot, ".gitignore"))
	}
	return f
}

func loadGitignore(path string) []string {
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// Apply filters paths, returning the surviving list and per-step stats.
// Decision order (first match wins): force_include -> ignore_patterns ->
// gitignore -> too_large -> conditional blocks -> library_content -> include.
func (f *Filter) Apply(paths []string) ([]string, Stats) {
	stats := newStats()
	var kept []string

	for _, p := range paths {
		if !f.cfg.Enabled {
			kept = append(kept, p)
			stats.record(ExitIncluded)
			continue
		}

		reason := f.decide(p)
		stats.record(reason)
		if reason == ExitForceInclude || reason == ExitIncluded {
			kept = append(kept, p)
		}
	}

	return kept, stats
}

func (f *Filter) decide(path string) ExitReason {
	if matchAny(f.cfg.ForceInclude, path) {
		return ExitForceInclude
	}
	if matchAny(f.cfg.IgnorePatterns, path) {
		return ExitIgnorePattern
	}
	if matchAny(f.gitignorePatterns, path) {
		return ExitGitignore
	}
	if f.cfg.MaxFileSize > 0 {
		if info, err := os.Stat(path); err == nil && info.Size() > f.cfg.MaxFileSize {
			return ExitTooLarge
		}
	}
	if f.cfg.CSSFiles.Enabled && matchAny(f.cfg.CSSFiles.Patterns, path) {
		return ExitCSSFile
	}
	if f.cfg.TestFiles.Enabled && matchAny(f.cfg.TestFiles.Patterns, path) {
		return ExitTestFile
	}
	if f.cfg.DocFiles.Enabled && matchAny(f.cfg.DocFiles.Patterns, path) {
		return ExitDocFile
	}
	if f.cfg.LogFiles.Enabled && matchAny(f.cfg.LogFiles.Patterns, path) {
		return ExitLogFile
	}
	if f.cfg.DetectLibraries && sniffsLibrary(path, f.cfg.LibraryKeywords) {
		return ExitLibraryContent
	}
	return ExitIncluded
}

// matchAny reports whether path matches any glob-style or
// directory-suffix pattern in patterns.
func matchAny(patterns []string, path string) bool {
	base := filepath.Base(path)
	for _, pat := range patterns {
		if ok, _ := filepath.Match(pat, path); ok {
			return true
		}
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
		if strings.Contains(path, "/"+strings.TrimSuffix(pat, "/")+"/") {
			return true
		}
		if strings.HasSuffix(pat, "/") && strings.Contains(path, pat) {
			return true
		}
	}
	return false
}

// sniffsLibrary reads the first 10 lines of path and reports whether any
// library keyword appears.
func sniffsLibrary(path string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lines := 0
	for scanner.Scan() && lines < 10 {
		line := scanner.Text()
		for _, kw := range keywords {
			if strings.Contains(line, kw) {
				return true
			}
		}
		lines++
	}
	return false
}
