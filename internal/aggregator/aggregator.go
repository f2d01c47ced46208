// Package aggregator implements the Aggregator (spec §4.P): parses an
// LLM's free-text analysis response into structured Findings, scores and
// deduplicates them, and exposes the resulting statistics. It also
// implements llmmanager.ResponseAggregator, closing the manager's
// injected-interface wiring loop with internal/confidence and
// internal/crossfile. Grounded on the teacher's free-text tool-output
// parsing in pkg/agent/controller/parse.go (regex-driven extraction with
// a conservative fallback), generalized from tool-call argument parsing
// to vulnerability-report parsing.
package aggregator

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aicodeaudit/auditor/internal/confidence"
	"github.com/aicodeaudit/auditor/internal/config"
	"github.com/aicodeaudit/auditor/internal/crossfile"
	"github.com/aicodeaudit/auditor/internal/llmmanager"
	"github.com/aicodeaudit/auditor/internal/model"
)

const (
	baseConfidence     = 0.5
	lineBonus          = 0.2
	snippetBonus       = 0.2
	cweBonus           = 0.1
	jaccardDedupeLimit = 0.8
)

var (
	headerPattern  = regexp.MustCompile(`(?im)^\s*(?:\d+[.)]\s*)?(?:\*\*)?(vulnerability|finding|issue)(?:\*\*)?\s*:?\s*(.+)$`)
	linePattern    = regexp.MustCompile(`(?i)line\s*:?\s*(\d+)`)
	cwePattern     = regexp.MustCompile(`(?i)(CWE-\d+)`)
	snippetPattern = regexp.MustCompile("(?s)```(?:[a-zA-Z0-9]*\\n)?(.*?)```")
	severityPattern = regexp.MustCompile(`(?i)severity\s*:?\s*(critical|high|medium|low|info)`)
)

// categoryKeywords maps free-text signals to a Category, checked in
// order so more specific categories win over CategoryOther.
var categoryKeywords = []struct {
	category model.Category
	keywords []string
}{
	{model.CategoryInjection, []string{"sql injection", "command injection", "injection", "eval(", "os.system"}},
	{model.CategoryAuth, []string{"authentication", "authorization", "access control", "privilege"}},
	{model.CategorySensitiveData, []string{"sensitive data", "pii", "data exposure", "information disclosure"}},
	{model.CategoryCrypto, []string{"cryptograph", "weak hash", "md5", "insecure random"}},
	{model.CategoryInputValidation, []string{"input validation", "unvalidated", "sanitiz"}},
	{model.CategorySession, []string{"session", "cookie", "csrf"}},
	{model.CategoryConfig, []string{"misconfiguration", "hardcoded", "default credential", "config"}},
	{model.CategoryDependency, []string{"vulnerable dependency", "outdated package", "cve-"}},
}

// FindingStore holds deduplicated findings across one session.
type FindingStore struct {
	mu       sync.Mutex
	findings map[string]model.Finding
}

func newFindingStore() *FindingStore {
	return &FindingStore{findings: make(map[string]model.Finding)}
}

// Aggregator parses LLM responses and maintains the session's finding set.
type Aggregator struct {
	store          *FindingStore
	calcCtx        confidence.Context
	crossAn        *crossfile.Analyzer
	rules          config.SecurityRulesConfig
	crossFileFloor float64
}

// New builds an Aggregator. crossAn may be nil to skip the cross-file
// follow-up pass (e.g. when analyzing related_file context, to avoid
// recursive re-triggering). rules gates which categories of finding are
// kept, per the security_rules.* toggles (spec §6). crossFileFloor is
// `cross_file.confidence_floor` (spec §4.L/§9): the lower bound of the
// adjusted-confidence window that triggers the follow-up pass.
func New(calcCtx confidence.Context, crossAn *crossfile.Analyzer, rules config.SecurityRulesConfig, crossFileFloor float64) *Aggregator {
	return &Aggregator{store: newFindingStore(), calcCtx: calcCtx, crossAn: crossAn, rules: rules, crossFileFloor: crossFileFloor}
}

// crossFileCeiling is spec §4.L's upper bound on the adjusted-confidence
// trigger window: a finding the model is already near-certain about
// (>= 0.98) doesn't need corroborating evidence from related files.
const crossFileCeiling = 0.98

// crossFileTriggerKeywords independently triggers the cross-file pass
// regardless of confidence, per spec §4.L ("or matches 'upload', 'XSS',
// 'path traversal', or 'permission' patterns") — these vulnerability
// classes routinely span a request handler and a separate config/routing
// file, so a single-file confidence score under-informs the decision.
var crossFileTriggerKeywords = []string{"upload", "xss", "path traversal", "permission"}

// shouldTriggerCrossFile reports whether finding (scored to confidence)
// should be handed to the Cross-File Analyzer, per spec §4.L's trigger
// condition.
func shouldTriggerCrossFile(floor, confidence float64, finding model.Finding) bool {
	if confidence > floor && confidence < crossFileCeiling {
		return true
	}
	lower := strings.ToLower(finding.Title + " " + finding.Description)
	for _, kw := range crossFileTriggerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ruleEnabled reports whether finding's concern is enabled under rules.
// Categories with no matching security_rules.* toggle are always kept.
func ruleEnabled(rules config.SecurityRulesConfig, finding model.Finding) bool {
	switch finding.Category {
	case model.CategoryInjection:
		return rules.SQLInjection
	case model.CategoryAuth:
		return rules.Authentication || rules.Authorization
	case model.CategorySession:
		return rules.CSRF
	}
	lower := strings.ToLower(finding.Title + " " + finding.Description)
	if strings.Contains(lower, "xss") || strings.Contains(lower, "cross-site scripting") {
		return rules.XSS
	}
	return true
}

// ProcessAnalysis implements llmmanager.ResponseAggregator: parses
// content into Findings, scores, deduplicates against the session store,
// optionally runs the cross-file follow-up, and reports the resulting IDs.
func (a *Aggregator) ProcessAnalysis(ctx context.Context, req llmmanager.AnalyzeCodeRequest, content string) (*llmmanager.AnalyzeCodeResult, error) {
	parsed := Parse(content, req.FilePath)

	var ids []string
	followUp := false

	for _, finding := range parsed {
		if !ruleEnabled(a.rules, finding) {
			continue
		}
		result := confidence.Calculate(finding, a.calcCtx)
		finding.Confidence = result.Final
		finding.FactorScores = result.Factors

		added := a.store.upsert(finding)
		if !added {
			continue
		}
		ids = append(ids, finding.ID)

		if req.AnalysisContext == llmmanager.ContextPrimary && a.crossAn != nil && shouldTriggerCrossFile(a.crossFileFloor, result.Final, finding) {
			cfResult := a.crossAn.Run(ctx, finding, model.CodeUnit{FilePath: req.FilePath})
			if !cfResult.Skipped {
				a.store.applyCrossFile(finding.ID, cfResult)
				if len(cfResult.Evidence) > 0 {
					followUp = true
				}
			}
		}
	}

	return &llmmanager.AnalyzeCodeResult{FindingIDs: ids, FollowUpTriggered: followUp}, nil
}

// Parse extracts Findings from one free-text LLM response.
func Parse(content, filePath string) []model.Finding {
	sections := splitSections(content)

	var findings []model.Finding
	for _, section := range sections {
		title := extractTitle(section)
		if title == "" {
			continue
		}

		var linePtr *int
		if m := linePattern.FindStringSubmatch(section); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				linePtr = &n
			}
		}

		snippet := ""
		if m := snippetPattern.FindStringSubmatch(section); m != nil {
			snippet = strings.TrimSpace(m[1])
		}

		cwe := ""
		if m := cwePattern.FindStringSubmatch(section); m != nil {
			cwe = strings.ToUpper(m[1])
		}

		severity := model.SeverityMedium
		if m := severityPattern.FindStringSubmatch(section); m != nil {
			severity = model.Severity(strings.ToLower(m[1]))
		}

		category := inferCategory(title + " " + section)

		conf := baseConfidence
		if linePtr != nil {
			conf += lineBonus
		}
		if snippet != "" {
			conf += snippetBonus
		}
		if cwe != "" {
			conf += cweBonus
		}
		if conf > 1.0 {
			conf = 1.0
		}

		findings = append(findings, model.Finding{
			ID:          model.ComputeID(title, filePath, linePtr),
			Title:       title,
			Description: strings.TrimSpace(section),
			Severity:    severity,
			Category:    category,
			FilePath:    filePath,
			Line:        linePtr,
			Snippet:     snippet,
			CWE:         cwe,
			Confidence:  conf,
		})
	}
	return findings
}

// splitSections breaks a response into per-finding chunks, one per
// detected header, falling back to the whole response as a single
// section when no header is recognized.
func splitSections(content string) []string {
	matches := headerPattern.FindAllStringIndex(content, -1)
	if len(matches) == 0 {
		return []string{content}
	}

	var sections []string
	for i, m := range matches {
		end := len(content)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		sections = append(sections, content[m[0]:end])
	}
	return sections
}

func extractTitle(section string) string {
	m := headerPattern.FindStringSubmatch(section)
	if m == nil {
		return ""
	}
	title := strings.TrimSpace(m[2])
	title = strings.TrimSuffix(title, "**")
	return title
}

func inferCategory(text string) model.Category {
	lower := strings.ToLower(text)
	for _, ck := range categoryKeywords {
		for _, kw := range ck.keywords {
			if strings.Contains(lower, kw) {
				return ck.category
			}
		}
	}
	return model.CategoryOther
}

// upsert adds finding to the store unless it's a duplicate of an
// existing one (same file + near-identical title, or same
// category/line/file). Returns whether it was newly added.
func (s *FindingStore) upsert(finding model.Finding) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.findings {
		if isDuplicate(existing, finding) {
			return false
		}
	}
	s.findings[finding.ID] = finding
	return true
}

func isDuplicate(a, b model.Finding) bool {
	if a.FilePath != b.FilePath {
		return false
	}
	if a.Category == b.Category && a.Line != nil && b.Line != nil && *a.Line == *b.Line {
		return true
	}
	return jaccard(titleWords(a.Title), titleWords(b.Title)) >= jaccardDedupeLimit
}

func titleWords(title string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(title))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func (s *FindingStore) applyCrossFile(id string, result crossfile.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	finding, ok := s.findings[id]
	if !ok {
		return
	}
	finding.Confidence = result.FinalConfidence
	finding.CrossFileEvidence = result.Evidence
	s.findings[id] = finding
}

// Findings returns all stored findings sorted by (severity, -confidence, file path).
func (a *Aggregator) Findings() []model.Finding {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	out := make([]model.Finding, 0, len(a.store.findings))
	for _, f := range a.store.findings {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() < out[j].Severity.Rank()
		}
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].FilePath < out[j].FilePath
	})
	return out
}

// FindingsByIDs resolves a set of finding IDs (as returned in
// AnalyzeCodeResult.FindingIDs) back to their stored Finding records, for
// callers that only carry IDs across a task boundary. Unknown IDs are
// skipped rather than erroring, since a finding can be dropped from the
// store after a task already captured its ID (e.g. by later dedup).
func (a *Aggregator) FindingsByIDs(ids []string) []model.Finding {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	out := make([]model.Finding, 0, len(ids))
	for _, id := range ids {
		if f, ok := a.store.findings[id]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Statistics is the aggregate report produced over all stored findings
// (spec §7).
type Statistics struct {
	Total            int
	BySeverity       map[model.Severity]int
	ByCategory       map[model.Category]int
	TopFiles         []FileCount
	AverageConfidence float64
	RiskScore        float64
}

// FileCount is one entry of the top-files-by-finding-count histogram.
type FileCount struct {
	FilePath string
	Count    int
}

// Stats computes spec §7's summary statistics over the current finding set.
func (a *Aggregator) Stats() Statistics {
	findings := a.Findings()

	stats := Statistics{
		BySeverity: make(map[model.Severity]int),
		ByCategory: make(map[model.Category]int),
	}
	fileCounts := make(map[string]int)
	confidenceSum := 0.0
	weightSum := 0.0

	for _, f := range findings {
		stats.Total++
		stats.BySeverity[f.Severity]++
		stats.ByCategory[f.Category]++
		fileCounts[f.FilePath]++
		confidenceSum += f.Confidence
		weightSum += f.Severity.Weight() * f.Confidence
	}

	if stats.Total > 0 {
		stats.AverageConfidence = confidenceSum / float64(stats.Total)
		stats.RiskScore = weightSum / float64(stats.Total)
	}

	var top []FileCount
	for path, count := range fileCounts {
		top = append(top, FileCount{FilePath: path, Count: count})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].FilePath < top[j].FilePath
	})
	if len(top) > 10 {
		top = top[:10]
	}
	stats.TopFiles = top

	return stats
}
