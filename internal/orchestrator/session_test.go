package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicodeaudit/auditor/internal/circuitbreaker"
	"github.com/aicodeaudit/auditor/internal/concurrency"
	"github.com/aicodeaudit/auditor/internal/coverage"
	"github.com/aicodeaudit/auditor/internal/llmmanager"
	"github.com/aicodeaudit/auditor/internal/llmprovider"
	"github.com/aicodeaudit/auditor/internal/model"
	"github.com/aicodeaudit/auditor/internal/ratelimiter"
	"github.com/aicodeaudit/auditor/internal/taskmatrix"
)

type fakeAggregator struct{}

func (fakeAggregator) ProcessAnalysis(ctx context.Context, req llmmanager.AnalyzeCodeRequest, content string) (*llmmanager.AnalyzeCodeResult, error) {
	return &llmmanager.AnalyzeCodeResult{FindingIDs: []string{"f1"}}, nil
}

func (fakeAggregator) FindingsByIDs(ids []string) []model.Finding {
	var out []model.Finding
	for _, id := range ids {
		out = append(out, model.Finding{ID: id})
	}
	return out
}

func newTestManager(t *testing.T, handler http.HandlerFunc) (*llmmanager.Manager, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)

	limiter := ratelimiter.NewAdaptive(ratelimiter.Config{RPM: 1000, TPM: 1_000_000, WindowSeconds: 60})
	breaker := circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 5, RecoveryTimeout: time.Minute, SuccessThreshold: 1})
	p := llmprovider.New(llmprovider.Config{
		Name:             "qwen",
		BaseURL:          server.URL,
		APIKey:           "k",
		SupportedModels:  []string{"qwen-max"},
		MaxContextTokens: map[string]int{"qwen-max": 1_000_000},
		MaxRetries:       1,
	}, limiter, http.DefaultClient)

	ctrl := concurrency.New(concurrency.Config{Initial: 4, Min: 1, Max: 8, AdjustmentInterval: time.Hour})
	mgr := llmmanager.New(llmmanager.RoundRobin, ctrl, fakeAggregator{})
	mgr.AddProvider("qwen", p, breaker, llmmanager.ProviderConfig{Enabled: true, Priority: 1})
	return mgr, server
}

func setupUnits(t *testing.T, n int) (string, []model.CodeUnit) {
	t.Helper()
	dir := t.TempDir()
	var units []model.CodeUnit
	for i := 0; i < n; i++ {
		name := filepath.Join(dir, "file.py")
		if i > 0 {
			name = filepath.Join(dir, "file"+string(rune('0'+i))+".py")
		}
		require.NoError(t, os.WriteFile(name, []byte("def f(): pass"), 0o644))
		units = append(units, model.CodeUnit{
			ID:       model.MakeUnitID(model.UnitFile, name, "file", 1),
			FilePath: name,
			UnitType: model.UnitFile,
			Status:   model.UnitPending,
			Priority: model.PriorityHigh,
		})
	}
	return dir, units
}

func buildMatrix(units []model.CodeUnit) *taskmatrix.Matrix {
	mx := taskmatrix.New()
	for _, u := range units {
		mx.Add(model.AnalysisTask{
			ID:         u.ID + "-task",
			UnitID:     u.ID,
			TaskType:   model.TaskFile,
			MaxRetries: model.DefaultMaxRetries,
			Metrics:    model.TaskMetrics{SecurityImpact: 0.8},
		})
	}
	return mx
}

func TestRunCompletesAllUnitsOnSuccess(t *testing.T) {
	mgr, server := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"qwen-max","choices":[{"message":{"content":"ok"},"finish_reason":"stop"}],"usage":{"total_tokens":5}}`))
	})
	defer server.Close()

	dir, units := setupUnits(t, 3)
	tracker := coverage.New()
	tracker.AddUnits(units)
	matrix := buildMatrix(units)

	var lastProgress model.Progress
	o := New(Config{WorkerCount: 2, DefaultModel: "qwen-max"}, matrix, tracker, mgr, fakeAggregator{}, func(p model.Progress) { lastProgress = p })

	err := o.Run(context.Background(), dir, len(units))
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, o.Session().Status)
	assert.Equal(t, 3, lastProgress.AnalyzedFiles)

	report := tracker.GenerateCoverageReport()
	assert.Equal(t, 3, report.ByStatus[model.UnitCompleted])

	results := o.Session().Results
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, "f1", r.ID)
	}
}

func TestRunMarksUnitFailedOnNonRetryableError(t *testing.T) {
	mgr, server := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid key"}}`))
	})
	defer server.Close()

	dir, units := setupUnits(t, 1)
	tracker := coverage.New()
	tracker.AddUnits(units)
	matrix := buildMatrix(units)

	o := New(Config{WorkerCount: 1, DefaultModel: "qwen-max"}, matrix, tracker, mgr, fakeAggregator{}, nil)
	err := o.Run(context.Background(), dir, len(units))
	require.NoError(t, err)

	report := tracker.GenerateCoverageReport()
	assert.Equal(t, 1, report.ByStatus[model.UnitFailed])
}

func TestRunReturnsErrorOnExternalCancellation(t *testing.T) {
	mgr, server := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`{"model":"qwen-max","choices":[{"message":{"content":"ok"},"finish_reason":"stop"}],"usage":{"total_tokens":5}}`))
	})
	defer server.Close()

	dir, units := setupUnits(t, 1)
	tracker := coverage.New()
	tracker.AddUnits(units)
	matrix := buildMatrix(units)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New(Config{WorkerCount: 1, DefaultModel: "qwen-max"}, matrix, tracker, mgr, fakeAggregator{}, nil)
	err := o.Run(ctx, dir, len(units))
	assert.Error(t, err)
	assert.Equal(t, model.SessionCancelled, o.Session().Status)
}
