package filter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicodeaudit/auditor/internal/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestForceIncludeOverridesIgnorePatterns(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "vendor_keep.go", "package x")

	cfg := config.FileFilteringConfig{
		Enabled:        true,
		IgnorePatterns: []string{"*_keep.go"},
		ForceInclude:   []string{"*_keep.go"},
	}
	f := New(dir, cfg)
	kept, stats := f.Apply([]string{p})
	assert.Equal(t, []string{p}, kept)
	assert.Equal(t, 1, stats.Counts[ExitForceInclude])
}

func TestIgnorePatternExcludes(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "generated.pb.go", "package x")

	cfg := config.FileFilteringConfig{Enabled: true, IgnorePatterns: []string{"*.pb.go"}}
	f := New(dir, cfg)
	kept, stats := f.Apply([]string{p})
	assert.Empty(t, kept)
	assert.Equal(t, 1, stats.Counts[ExitIgnorePattern])
}

func TestTooLargeExcludes(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "big.go", "0123456789")

	cfg := config.FileFilteringConfig{Enabled: true, MaxFileSize: 5}
	f := New(dir, cfg)
	kept, stats := f.Apply([]string{p})
	assert.Empty(t, kept)
	assert.Equal(t, 1, stats.Counts[ExitTooLarge])
}

func TestConditionalTestFilesExcluded(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "foo_test.go", "package x")

	cfg := config.FileFilteringConfig{
		Enabled:   true,
		TestFiles: config.ConditionalIgnore{Enabled: true, Patterns: []string{"*_test.go"}},
	}
	f := New(dir, cfg)
	kept, stats := f.Apply([]string{p})
	assert.Empty(t, kept)
	assert.Equal(t, 1, stats.Counts[ExitTestFile])
}

func TestLibraryContentSniffExcludes(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "jquery.min.js", "// jQuery v3.6.0\nfoo()")

	cfg := config.FileFilteringConfig{Enabled: true, DetectLibraries: true, LibraryKeywords: []string{"jQuery"}}
	f := New(dir, cfg)
	kept, stats := f.Apply([]string{p})
	assert.Empty(t, kept)
	assert.Equal(t, 1, stats.Counts[ExitLibraryContent])
}

func TestIncludedByDefault(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "main.go", "package main")

	cfg := config.FileFilteringConfig{Enabled: true}
	f := New(dir, cfg)
	kept, stats := f.Apply([]string{p})
	assert.Equal(t, []string{p}, kept)
	assert.Equal(t, 1, stats.Counts[ExitIncluded])
}

func TestDisabledFilterIncludesEverything(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "anything.go", "package x")

	f := New(dir, config.FileFilteringConfig{Enabled: false})
	kept, _ := f.Apply([]string{p})
	assert.Equal(t, []string{p}, kept)
}
