package crossfile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicodeaudit/auditor/internal/llmmanager"
	"github.com/aicodeaudit/auditor/internal/model"
	"github.com/aicodeaudit/auditor/internal/recursion"
)

type fakeFiles struct {
	files map[string]string
}

func (f *fakeFiles) ReadFile(path string) ([]byte, error) {
	content, ok := f.files[path]
	if !ok {
		return nil, assert.AnError
	}
	return []byte(content), nil
}

func (f *fakeFiles) ListFiles() []string {
	var out []string
	for p := range f.files {
		out = append(out, p)
	}
	return out
}

type fakeReanalyzer struct {
	findingIDs []string
	err        error
}

func (f *fakeReanalyzer) AnalyzeCode(ctx context.Context, req llmmanager.AnalyzeCodeRequest) (*llmmanager.AnalyzeCodeResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llmmanager.AnalyzeCodeResult{FindingIDs: f.findingIDs}, nil
}

func TestRunReturnsUnchangedWhenNoCandidatesFound(t *testing.T) {
	files := &fakeFiles{files: map[string]string{"auth.py": "def login(): pass"}}
	a := New(files, &fakeReanalyzer{}, recursion.New(recursion.DefaultCrossFileMaxDepth))

	finding := model.Finding{FilePath: "auth.py", Category: model.CategoryAuth, Confidence: 0.6}
	result := a.Run(context.Background(), finding, model.CodeUnit{})

	assert.Equal(t, 0.6, result.FinalConfidence)
	assert.Empty(t, result.Evidence)
}

func TestRunIncreasesConfidenceOnCorroboratingEvidence(t *testing.T) {
	files := &fakeFiles{files: map[string]string{
		"auth.py":        "def login(): pass",
		"auth_helper.py": `query = "SELECT * FROM users WHERE name=" + name`,
	}}
	a := New(files, &fakeReanalyzer{findingIDs: []string{"f1"}}, recursion.New(recursion.DefaultCrossFileMaxDepth))

	finding := model.Finding{FilePath: "auth.py", Category: model.CategoryInjection, Confidence: 0.5}
	result := a.Run(context.Background(), finding, model.CodeUnit{})

	require.Len(t, result.Evidence, 1)
	assert.Greater(t, result.FinalConfidence, 0.5)
}

func TestRunDecreasesConfidenceOnSafePattern(t *testing.T) {
	files := &fakeFiles{files: map[string]string{
		"auth.py":        "def login(): pass",
		"auth_helper.py": "query = db.prepared_statement(sql, params) # sanitized",
	}}
	a := New(files, &fakeReanalyzer{}, recursion.New(recursion.DefaultCrossFileMaxDepth))

	finding := model.Finding{FilePath: "auth.py", Category: model.CategoryInjection, Confidence: 0.7}
	result := a.Run(context.Background(), finding, model.CodeUnit{})

	require.Len(t, result.Evidence, 1)
	assert.Less(t, result.FinalConfidence, 0.7)
}

func TestRunSkipsWhenRecursionMonitorRejects(t *testing.T) {
	files := &fakeFiles{files: map[string]string{"auth.py": "x"}}
	monitor := recursion.New(recursion.DefaultCrossFileMaxDepth)
	require.NoError(t, monitor.Enter("cross_file", "auth.py"))

	a := New(files, &fakeReanalyzer{}, monitor)
	finding := model.Finding{FilePath: "auth.py", Confidence: 0.5}
	result := a.Run(context.Background(), finding, model.CodeUnit{})

	assert.True(t, result.Skipped)
	assert.Equal(t, 0.5, result.FinalConfidence)
}

func TestFinalConfidenceClampedToUnitRange(t *testing.T) {
	files := &fakeFiles{files: map[string]string{
		"auth.py":   "x",
		"auth_2.py": `eval("x")`,
		"auth_3.py": `exec("x")`,
		"auth_4.py": `password = "hunter2"`,
		"auth_5.py": `secret = "shh"`,
		"auth_6.py": `secret2 = "shh"`,
	}}
	a := New(files, &fakeReanalyzer{findingIDs: []string{"f1"}}, recursion.New(recursion.DefaultCrossFileMaxDepth))

	finding := model.Finding{FilePath: "auth.py", Category: model.CategoryInjection, Confidence: 0.95}
	result := a.Run(context.Background(), finding, model.CodeUnit{})

	assert.LessOrEqual(t, result.FinalConfidence, 1.0)
}
