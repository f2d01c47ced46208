package aggregator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicodeaudit/auditor/internal/confidence"
	"github.com/aicodeaudit/auditor/internal/config"
	"github.com/aicodeaudit/auditor/internal/llmmanager"
	"github.com/aicodeaudit/auditor/internal/model"
)

var allRulesEnabled = config.SecurityRulesConfig{
	SQLInjection:   true,
	XSS:            true,
	CSRF:           true,
	Authentication: true,
	Authorization:  true,
}

const sampleResponse = `
1. **Vulnerability**: SQL Injection in login handler
Severity: high
Line: 42
CWE-89
` + "```python\nquery = \"SELECT * FROM users WHERE name=\" + name\n```" + `

2. **Vulnerability**: Hardcoded credential in config
Severity: medium
Line: 10
`

func TestParseExtractsMultipleFindings(t *testing.T) {
	findings := Parse(sampleResponse, "app.py")
	require.Len(t, findings, 2)
	assert.Equal(t, model.CategoryInjection, findings[0].Category)
	assert.Equal(t, model.SeverityHigh, findings[0].Severity)
	assert.NotNil(t, findings[0].Line)
	assert.Equal(t, 42, *findings[0].Line)
	assert.Equal(t, "CWE-89", findings[0].CWE)
	assert.NotEmpty(t, findings[0].Snippet)
}

func TestParseConfidenceReflectsSignalsPresent(t *testing.T) {
	findings := Parse(sampleResponse, "app.py")
	// finding 0 has line+snippet+cwe: 0.5+0.2+0.2+0.1 = 1.0
	assert.InDelta(t, 1.0, findings[0].Confidence, 0.001)
	// finding 1 has only line: 0.5+0.2 = 0.7
	assert.InDelta(t, 0.7, findings[1].Confidence, 0.001)
}

func TestParseFallsBackToWholeResponseWhenNoHeader(t *testing.T) {
	findings := Parse("just some free text with no structure", "app.py")
	assert.Len(t, findings, 0)
}

func TestProcessAnalysisDeduplicatesRepeatedFindings(t *testing.T) {
	a := New(confidence.Context{}, nil, allRulesEnabled, 0.3)
	req := llmmanager.AnalyzeCodeRequest{FilePath: "app.py", AnalysisContext: llmmanager.ContextPrimary}

	result1, err := a.ProcessAnalysis(context.Background(), req, sampleResponse)
	require.NoError(t, err)
	assert.Len(t, result1.FindingIDs, 2)

	result2, err := a.ProcessAnalysis(context.Background(), req, sampleResponse)
	require.NoError(t, err)
	assert.Empty(t, result2.FindingIDs)

	assert.Len(t, a.Findings(), 2)
}

func TestStatsComputesAveragesAndHistograms(t *testing.T) {
	a := New(confidence.Context{}, nil, allRulesEnabled, 0.3)
	req := llmmanager.AnalyzeCodeRequest{FilePath: "app.py", AnalysisContext: llmmanager.ContextPrimary}
	_, err := a.ProcessAnalysis(context.Background(), req, sampleResponse)
	require.NoError(t, err)

	stats := a.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Greater(t, stats.AverageConfidence, 0.0)
	assert.Equal(t, 1, stats.BySeverity[model.SeverityHigh])
	require.NotEmpty(t, stats.TopFiles)
	assert.Equal(t, "app.py", stats.TopFiles[0].FilePath)
}

func TestProcessAnalysisDropsFindingsForDisabledRule(t *testing.T) {
	rules := allRulesEnabled
	rules.SQLInjection = false
	a := New(confidence.Context{}, nil, rules, 0.3)
	req := llmmanager.AnalyzeCodeRequest{FilePath: "app.py", AnalysisContext: llmmanager.ContextPrimary}

	result, err := a.ProcessAnalysis(context.Background(), req, sampleResponse)
	require.NoError(t, err)
	assert.Len(t, result.FindingIDs, 1)
	assert.Equal(t, model.CategoryConfig, a.Findings()[0].Category)
}

func TestJaccardDeduplicatesSimilarTitles(t *testing.T) {
	a, b := titleWords("SQL Injection in login handler"), titleWords("SQL Injection login handler")
	assert.Greater(t, jaccard(a, b), 0.8)
}

func TestShouldTriggerCrossFile(t *testing.T) {
	plain := model.Finding{Title: "Hardcoded credential", Description: "a default password in config"}
	uploadFinding := model.Finding{Title: "Unrestricted file upload", Description: "no extension check"}

	cases := []struct {
		name       string
		floor      float64
		confidence float64
		finding    model.Finding
		want       bool
	}{
		{"below floor and no keyword", 0.3, 0.2, plain, false},
		{"inside window", 0.3, 0.6, plain, true},
		{"at or above ceiling and no keyword", 0.3, 0.98, plain, false},
		{"at floor exactly is exclusive", 0.3, 0.3, plain, false},
		{"keyword match overrides low confidence", 0.3, 0.1, uploadFinding, true},
		{"keyword match overrides high confidence", 0.3, 0.99, uploadFinding, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, shouldTriggerCrossFile(tc.floor, tc.confidence, tc.finding))
		})
	}
}
