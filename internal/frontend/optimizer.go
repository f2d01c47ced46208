// Package frontend implements the Frontend Optimizer (spec §4.N):
// classifies HTML/JS files so the orchestrator can skip static assets
// and asset bundles that carry no exploitable server-side logic, while
// still routing files with embedded input-handling code through full
// analysis. Grounded on the teacher's heuristic file-classification
// style in pkg/discovery/classify.go (extension + size + keyword
// scoring), adapted from "should this alert source be parsed" to
// "should this file be analyzed".
package frontend

import (
	"path"
	"regexp"
	"strings"
)

// Classification is the optimizer's verdict for one file.
type Classification string

const (
	// ClassSkip: static asset with no server-reachable logic (pure CSS,
	// minified vendor bundle, image-only markup).
	ClassSkip Classification = "skip"
	// ClassHotspot: contains patterns strongly associated with
	// client-side vulnerabilities (inline script with eval/innerHTML/etc).
	ClassHotspot Classification = "hotspot"
	// ClassInputExtraction: handles form/user input but without an
	// obvious hotspot pattern; worth a lighter-weight pass.
	ClassInputExtraction Classification = "input_extraction"
	// ClassLight: ordinary markup/script, analyzed at standard priority.
	ClassLight Classification = "light"
)

const bytesPerSecondEstimate = 1000.0

var minifiedSuffixes = []string{".min.js", ".min.css", ".bundle.js"}

var vendorDirs = []string{"/vendor/", "/node_modules/", "/dist/", "/static/lib/"}

var hotspotPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.innerHTML\s*=`),
	regexp.MustCompile(`(?i)document\.write\(`),
	regexp.MustCompile(`(?i)eval\(`),
	regexp.MustCompile(`(?i)dangerouslySetInnerHTML`),
	regexp.MustCompile(`(?i)new\s+Function\(`),
}

var inputPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<input`),
	regexp.MustCompile(`(?i)<form`),
	regexp.MustCompile(`(?i)\.value\b`),
	regexp.MustCompile(`(?i)addEventListener\(\s*['"]submit['"]`),
}

// Decision is the optimizer's output for one file.
type Decision struct {
	FilePath       string
	Class          Classification
	EstimatedSavedSeconds float64
}

// Classify decides how filePath should be routed, given its content.
func Classify(filePath string, content []byte) Decision {
	if isVendorOrMinified(filePath) {
		return Decision{FilePath: filePath, Class: ClassSkip, EstimatedSavedSeconds: savedSeconds(content)}
	}

	text := string(content)
	for _, re := range hotspotPatterns {
		if re.MatchString(text) {
			return Decision{FilePath: filePath, Class: ClassHotspot}
		}
	}

	ext := strings.ToLower(path.Ext(filePath))
	if ext != ".html" && ext != ".htm" && ext != ".js" && ext != ".jsx" {
		return Decision{FilePath: filePath, Class: ClassSkip, EstimatedSavedSeconds: savedSeconds(content)}
	}

	for _, re := range inputPatterns {
		if re.MatchString(text) {
			return Decision{FilePath: filePath, Class: ClassInputExtraction}
		}
	}

	if len(strings.TrimSpace(text)) == 0 {
		return Decision{FilePath: filePath, Class: ClassSkip, EstimatedSavedSeconds: savedSeconds(content)}
	}

	return Decision{FilePath: filePath, Class: ClassLight}
}

func isVendorOrMinified(filePath string) bool {
	lower := strings.ToLower(filePath)
	for _, suffix := range minifiedSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	for _, dir := range vendorDirs {
		if strings.Contains(lower, dir) {
			return true
		}
	}
	return false
}

// savedSeconds estimates the analysis time a skip decision avoids,
// assuming bytesPerSecondEstimate bytes/sec of LLM-equivalent throughput.
func savedSeconds(content []byte) float64 {
	return float64(len(content)) / bytesPerSecondEstimate
}

// Summary aggregates Decisions across a project pass.
type Summary struct {
	Skipped            int
	Hotspots           int
	InputExtractions   int
	Light              int
	TotalSavedSeconds  float64
}

// Summarize reduces a batch of per-file decisions into Summary counts.
func Summarize(decisions []Decision) Summary {
	var s Summary
	for _, d := range decisions {
		switch d.Class {
		case ClassSkip:
			s.Skipped++
			s.TotalSavedSeconds += d.EstimatedSavedSeconds
		case ClassHotspot:
			s.Hotspots++
		case ClassInputExtraction:
			s.InputExtractions++
		case ClassLight:
			s.Light++
		}
	}
	return s
}
