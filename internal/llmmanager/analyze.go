package llmmanager

import (
	"context"
	"fmt"

	"github.com/aicodeaudit/auditor/internal/llmprovider"
)

// AnalysisContext distinguishes a top-level unit analysis from a
// recursive cross-file follow-up (spec §4.L/§4.E).
type AnalysisContext string

const (
	ContextPrimary     AnalysisContext = "primary"
	ContextRelatedFile AnalysisContext = "related_file"
)

// AnalyzeCodeRequest is the analyze_code contract's input (spec §4.E).
type AnalyzeCodeRequest struct {
	Code            string
	FilePath        string
	Language        string
	Template        string
	AnalysisContext AnalysisContext
	Model           string
}

// AnalyzeCodeResult is analyze_code's output: the findings extracted
// from one LLM response plus whether a cross-file follow-up was
// triggered for any of them.
type AnalyzeCodeResult struct {
	FindingIDs        []string
	FollowUpTriggered bool
}

// AnalyzeCode builds a system+user prompt from the template, dispatches
// it through ChatCompletion, and hands the raw content to the injected
// ResponseAggregator for parsing, false-positive filtering, confidence
// scoring, and (when applicable) cross-file follow-up.
func (m *Manager) AnalyzeCode(ctx context.Context, req AnalyzeCodeRequest) (*AnalyzeCodeResult, error) {
	messages := []llmprovider.Message{
		{Role: llmprovider.RoleSystem, Content: systemPrompt(req.Language, req.Template)},
		{Role: llmprovider.RoleUser, Content: userPrompt(req.Code, req.FilePath)},
	}

	resp, err := m.ChatCompletion(ctx, llmprovider.ChatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: 0.2,
		TopP:        0.95,
		MaxTokens:   4096,
	}, "", true)
	if err != nil {
		return nil, err
	}

	if m.aggregator == nil {
		return nil, fmt.Errorf("no response aggregator configured")
	}
	return m.aggregator.ProcessAnalysis(ctx, req, resp.Content)
}

// systemPrompt and userPrompt build the request body. Template content
// (rule catalogs, framework-specific phrasing) is out of scope; these
// produce a minimal scaffold around the supplied template name.
func systemPrompt(language, template string) string {
	return fmt.Sprintf("You are a security auditor analyzing %s source code using the %q ruleset. Report findings as JSON.", language, template)
}

func userPrompt(code, filePath string) string {
	return fmt.Sprintf("File: %s\n\n```\n%s\n```", filePath, code)
}
