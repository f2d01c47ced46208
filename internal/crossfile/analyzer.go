// Package crossfile implements the Cross-File Analyzer (spec §4.L): for
// a Finding that looks incomplete in isolation, it locates a bounded set
// of related files, re-invokes the LLM Manager against them as
// related_file context, and folds the outcome into the finding's
// confidence. Grounded on the teacher's bounded-fanout tool-call style in
// pkg/agent/controller/react.go (the ReAct loop's own recursion guard is
// internal/recursion, reused here rather than duplicated) and on
// other_examples/7a5fd605_BaSui01-agentflow__llm-doc.go.go's
// Provider/Router re-dispatch pattern for the related_file re-invocation.
package crossfile

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/aicodeaudit/auditor/internal/llmmanager"
	"github.com/aicodeaudit/auditor/internal/model"
	"github.com/aicodeaudit/auditor/internal/recursion"
)

const (
	maxCandidateFiles  = 5
	maxSearchFiles     = 100
	maxSearchFileBytes = 500 * 1024
	searchReadBytes    = 10 * 1024
	maxMatchesPerFile  = 5

	corroborationAdjustment = 0.2
	safePatternAdjustment   = -0.1

	minFinalConfidence = 0.1
	maxFinalConfidence = 1.0
)

// FileProvider gives the analyzer read access to the project tree
// without coupling it to any particular filesystem layout.
type FileProvider interface {
	ReadFile(filePath string) ([]byte, error)
	ListFiles() []string
}

// Reanalyzer is the subset of llmmanager.Manager the analyzer needs to
// re-invoke analysis against a related file.
type Reanalyzer interface {
	AnalyzeCode(ctx context.Context, req llmmanager.AnalyzeCodeRequest) (*llmmanager.AnalyzeCodeResult, error)
}

// safePatterns recognizes content that rebuts rather than corroborates a
// finding (e.g. a parameterized-query call sitting right next to a raw
// string concatenation that triggered an injection finding elsewhere).
var safePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)parameteri`),
	regexp.MustCompile(`(?i)prepared\s*statement`),
	regexp.MustCompile(`(?i)escape(d)?\(`),
	regexp.MustCompile(`(?i)sanitiz`),
}

// corroboratingPatterns recognizes content suggesting the same concern
// recurs in a related file.
var corroboratingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)select\s.+\+`),
	regexp.MustCompile(`(?i)exec\(`),
	regexp.MustCompile(`(?i)eval\(`),
	regexp.MustCompile(`(?i)password\s*=`),
	regexp.MustCompile(`(?i)secret`),
}

// Result is the cross-file pass's output for one finding.
type Result struct {
	Evidence        []model.CrossFileEvidence
	FinalConfidence float64
	Recommendation  string
	Skipped         bool
	SkipReason      string
}

// Analyzer runs the cross-file follow-up pass.
type Analyzer struct {
	files      FileProvider
	reanalyzer Reanalyzer
	monitor    *recursion.Monitor

	mu    sync.Mutex
	cache map[string]bool // memoized content-search outcome, key'd by md5(path|category|line)
}

// New builds an Analyzer. monitor should be constructed fresh per
// session with recursion.DefaultCrossFileMaxDepth so depth is scoped to
// one audit run rather than shared globally.
func New(files FileProvider, reanalyzer Reanalyzer, monitor *recursion.Monitor) *Analyzer {
	return &Analyzer{
		files:      files,
		reanalyzer: reanalyzer,
		monitor:    monitor,
		cache:      make(map[string]bool),
	}
}

// Run performs the cross-file follow-up for finding, whose origin unit
// is sourceUnit. It early-exits (without error) if the recursion monitor
// rejects entry — already on the stack, or past max depth.
func (a *Analyzer) Run(ctx context.Context, finding model.Finding, sourceUnit model.CodeUnit) Result {
	if err := a.monitor.Enter("cross_file", finding.FilePath); err != nil {
		return Result{Skipped: true, SkipReason: err.Error(), FinalConfidence: finding.Confidence}
	}
	defer a.monitor.Exit("cross_file", finding.FilePath)

	candidates := a.candidateFiles(finding, sourceUnit)
	if len(candidates) == 0 {
		return Result{FinalConfidence: finding.Confidence, Recommendation: "no related files found"}
	}

	var evidence []model.CrossFileEvidence
	matched := 0
	for _, candidate := range candidates {
		if matched >= maxCandidateFiles {
			break
		}
		ev, ok := a.inspect(ctx, finding, candidate)
		if !ok {
			continue
		}
		evidence = append(evidence, ev)
		matched++
	}

	adjustment := 0.0
	for _, ev := range evidence {
		adjustment += ev.Adjustment
	}

	final := clip(finding.Confidence+adjustment, minFinalConfidence, maxFinalConfidence)

	return Result{
		Evidence:        evidence,
		FinalConfidence: final,
		Recommendation:  recommendation(final, finding.Confidence),
	}
}

// tokenSeparators splits a file stem into word tokens on any
// non-alphanumeric boundary (underscore, dash, dot).
var tokenSeparators = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// stemShares reports whether name's stem shares a whole word token with
// base, e.g. "auth" matches "auth_helper" but not "superuser_audit" —
// a word-token match rather than a raw substring test, so callers aren't
// pulled in just because an unrelated file happens to contain the stem.
func stemShares(base, name string) bool {
	stem := strings.TrimSuffix(name, path.Ext(name))
	for _, tok := range tokenSeparators.Split(strings.ToLower(stem), -1) {
		if tok == base {
			return true
		}
	}
	return false
}

// candidateFiles enumerates callers, callees, configs, templates, and a
// parent controller/handler file, capped at maxCandidateFiles total and
// deduplicated.
func (a *Analyzer) candidateFiles(finding model.Finding, unit model.CodeUnit) []string {
	all := a.files.ListFiles()
	base := strings.ToLower(strings.TrimSuffix(path.Base(finding.FilePath), path.Ext(finding.FilePath)))
	dir := path.Dir(finding.FilePath)

	seen := map[string]bool{finding.FilePath: true}
	var out []string
	add := func(p string) {
		if p == "" || seen[p] || len(out) >= maxCandidateFiles {
			return
		}
		seen[p] = true
		out = append(out, p)
	}

	for _, f := range all {
		if len(out) >= maxCandidateFiles {
			break
		}
		name := path.Base(f)
		lower := strings.ToLower(name)
		switch {
		case stemShares(base, name) && f != finding.FilePath: // caller/callee sharing the module name
			add(f)
		case strings.HasPrefix(lower, "config") || strings.HasPrefix(lower, "settings") || strings.HasPrefix(lower, ".env"):
			add(f)
		case strings.Contains(f, "templates/") && stemShares(base, name):
			add(f)
		case path.Dir(f) == path.Dir(dir) && (strings.Contains(lower, "controller") || strings.Contains(lower, "handler")):
			add(f)
		}
	}
	return out
}

// inspect performs the bounded content search against candidate and, if
// it turns up a match, re-invokes analysis for related_file context.
func (a *Analyzer) inspect(ctx context.Context, finding model.Finding, candidate string) (model.CrossFileEvidence, bool) {
	key := memoKey(candidate, string(finding.Category), finding.Line)
	a.mu.Lock()
	cached, has := a.cache[key]
	a.mu.Unlock()
	if has {
		if !cached {
			return model.CrossFileEvidence{}, false
		}
	}

	content, err := a.files.ReadFile(candidate)
	if err != nil || len(content) == 0 {
		a.memoize(key, false)
		return model.CrossFileEvidence{}, false
	}
	if len(content) > maxSearchFileBytes {
		content = content[:maxSearchFileBytes]
	}
	excerpt := content
	if len(excerpt) > searchReadBytes {
		excerpt = excerpt[:searchReadBytes]
	}

	corroborating, safe := scan(string(excerpt))
	if !corroborating && !safe {
		a.memoize(key, false)
		return model.CrossFileEvidence{}, false
	}
	a.memoize(key, true)

	req := llmmanager.AnalyzeCodeRequest{
		Code:            string(excerpt),
		FilePath:        candidate,
		AnalysisContext: llmmanager.ContextRelatedFile,
	}
	result, err := a.reanalyzer.AnalyzeCode(ctx, req)
	followUp := err == nil && result != nil && len(result.FindingIDs) > 0

	adjustment := 0.0
	switch {
	case corroborating && (followUp || !safe):
		adjustment = corroborationAdjustment
	case safe:
		adjustment = safePatternAdjustment
	}

	return model.CrossFileEvidence{
		FilePath:      candidate,
		Corroborating: adjustment > 0,
		Adjustment:    adjustment,
	}, true
}

func (a *Analyzer) memoize(key string, v bool) {
	a.mu.Lock()
	a.cache[key] = v
	a.mu.Unlock()
}

// scan caps matches at maxMatchesPerFile per the bounded-search rule and
// reports whether corroborating and/or safe-rebutting patterns were seen.
func scan(content string) (corroborating, safe bool) {
	matches := 0
	for _, re := range corroboratingPatterns {
		if matches >= maxMatchesPerFile {
			break
		}
		if re.MatchString(content) {
			corroborating = true
			matches++
		}
	}
	for _, re := range safePatterns {
		if matches >= maxMatchesPerFile {
			break
		}
		if re.MatchString(content) {
			safe = true
			matches++
		}
	}
	return corroborating, safe
}

func memoKey(filePath, category string, line *int) string {
	lineStr := ""
	if line != nil {
		lineStr = fmt.Sprintf("%d", *line)
	}
	sum := md5.Sum([]byte(filePath + "|" + category + "|" + lineStr))
	return hex.EncodeToString(sum[:])
}

func recommendation(final, original float64) string {
	switch {
	case final > original:
		return "cross-file evidence corroborates the finding; confidence increased"
	case final < original:
		return "cross-file evidence suggests a safe pattern nearby; confidence decreased"
	default:
		return "cross-file analysis inconclusive; confidence unchanged"
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
