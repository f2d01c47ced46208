// Package orchestrator drives one end-to-end audit run: the Session
// state machine, a bounded worker pool that pops tasks from the Task
// Matrix, loads and (if oversized) chunks file content, dispatches
// through the LLM Manager, and routes results through the Aggregator
// (spec §4.O). Grounded on the teacher's worker-pool shape in
// pkg/queue/pool.go and pkg/queue/worker.go (bounded goroutine pool over
// a shared queue, progress callback on state change) and the
// iteration-loop cancellation checks of pkg/agent/controller/react.go.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aicodeaudit/auditor/internal/auditerr"
	"github.com/aicodeaudit/auditor/internal/coverage"
	"github.com/aicodeaudit/auditor/internal/discovery"
	"github.com/aicodeaudit/auditor/internal/llmmanager"
	"github.com/aicodeaudit/auditor/internal/model"
	"github.com/aicodeaudit/auditor/internal/taskmatrix"
)

const (
	// DefaultWorkerCount is spec §4.O's default worker pool size.
	DefaultWorkerCount = 3
	// DefaultPerTaskTimeout is spec §5's default per-task timeout.
	DefaultPerTaskTimeout = 10 * time.Minute
	// DefaultSessionTimeout is spec §5's default per-session timeout.
	DefaultSessionTimeout = 60 * time.Minute
	// maxFileReadBytes bounds content handed to the LLM per task before
	// the chunker takes over (spec §4.O step 3).
	maxFileReadBytes = 50 * 1024
)

// ProgressFunc is invoked whenever analyzed_files or current_file changes.
type ProgressFunc func(model.Progress)

// Config bounds one Session's execution.
type Config struct {
	WorkerCount     int
	PerTaskTimeout  time.Duration
	SessionTimeout  time.Duration
	DefaultModel    string
	DefaultTemplate string
}

func (c Config) withDefaults() Config {
	if c.WorkerCount <= 0 {
		c.WorkerCount = DefaultWorkerCount
	}
	if c.PerTaskTimeout <= 0 {
		c.PerTaskTimeout = DefaultPerTaskTimeout
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	return c
}

// FindingLookup resolves the finding IDs an AnalyzeCodeResult carries back
// to the full records the Aggregator holds, so a successful task's
// findings can be appended to the Session (spec §4.O step 5) without the
// orchestrator importing the aggregator package directly.
type FindingLookup interface {
	FindingsByIDs(ids []string) []model.Finding
}

// Orchestrator drives a single Session to completion. Finding extraction
// happens inside manager.AnalyzeCode, which dispatches to whatever
// ResponseAggregator the Manager was built with; the orchestrator only
// owns scheduling, progress, and the Session record.
type Orchestrator struct {
	cfg        Config
	matrix     *taskmatrix.Matrix
	tracker    *coverage.Tracker
	manager    *llmmanager.Manager
	findings   FindingLookup
	onProgress ProgressFunc

	mu      sync.Mutex
	session *model.Session
}

// New builds an Orchestrator for one Session. findings may be nil, in
// which case successful tasks still advance coverage/progress but their
// results are not appended to Session.Results.
func New(cfg Config, matrix *taskmatrix.Matrix, tracker *coverage.Tracker, manager *llmmanager.Manager, findings FindingLookup, onProgress ProgressFunc) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg.withDefaults(),
		matrix:     matrix,
		tracker:    tracker,
		manager:    manager,
		findings:   findings,
		onProgress: onProgress,
		session: &model.Session{
			ID:        model.NewSessionID(),
			Status:    model.SessionCreated,
			CreatedAt: time.Now(),
		},
	}
}

// Session returns a snapshot of the current session record.
func (o *Orchestrator) Session() model.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return *o.session
}

// Run drives the session from created through a terminal state. It
// blocks until every dispatched task reaches a terminal state and no
// ready tasks remain, the context is cancelled, or the session timeout
// elapses.
func (o *Orchestrator) Run(ctx context.Context, projectPath string, totalUnits int) error {
	o.transition(model.SessionInitializing)
	o.mu.Lock()
	o.session.ProjectPath = projectPath
	now := time.Now()
	o.session.StartedAt = &now
	o.session.Progress.TotalFiles = totalUnits
	o.mu.Unlock()

	sessCtx, cancel := context.WithTimeout(ctx, o.cfg.SessionTimeout)
	defer cancel()

	o.transition(model.SessionRunning)

	var wg sync.WaitGroup
	for i := 0; i < o.cfg.WorkerCount; i++ {
		wg.Add(1)
		workerID := i
		go func() {
			defer wg.Done()
			o.workerLoop(sessCtx, workerID)
		}()
	}
	wg.Wait()

	switch {
	case ctx.Err() != nil:
		o.transition(model.SessionCancelled)
		return ctx.Err()
	case sessCtx.Err() != nil:
		o.transition(model.SessionCompleted)
		o.appendError("session timeout reached; completed with outstanding work abandoned")
		return nil
	default:
		o.transition(model.SessionCompleted)
		return nil
	}
}

// workerLoop is one worker's loop body (spec §4.O steps 1-6 plus the
// three cancellation checkpoints of spec §5).
func (o *Orchestrator) workerLoop(ctx context.Context, workerID int) {
	log := slog.With("worker_id", workerID, "session_id", o.session.ID)

	for {
		if ctx.Err() != nil { // checkpoint (a): after acquiring a task would be next
			return
		}

		task, ok := o.matrix.GetNextTask(taskmatrix.ResourceConstraints{})
		if !ok {
			return // no ready work remains; other workers may still produce dependents
		}

		if ctx.Err() != nil { // checkpoint (b): before dispatching to LLM Manager
			o.abandon(*task, "cancelled")
			return
		}

		o.tracker.MarkUnitInProgress(task.UnitID)
		unit, _ := o.tracker.Unit(task.UnitID)

		result, err := o.runTask(ctx, *task, unit, log)

		if ctx.Err() != nil { // checkpoint (c): after the HTTP call returns
			o.abandon(*task, "cancelled")
			return
		}

		if err != nil {
			o.handleFailure(*task, unit, err, log)
			continue
		}

		o.handleSuccess(*task, unit, result)
	}
}

// runTask loads the unit's content, dispatches via the LLM Manager under
// the per-task timeout, and returns the analyze_code result.
func (o *Orchestrator) runTask(ctx context.Context, task model.AnalysisTask, unit model.CodeUnit, log *slog.Logger) (*llmmanager.AnalyzeCodeResult, error) {
	taskCtx, cancel := context.WithTimeout(ctx, o.cfg.PerTaskTimeout)
	defer cancel()

	content, err := loadContent(unit.FilePath)
	if err != nil {
		return nil, auditerr.New(auditerr.ErrIO, false, err)
	}

	lang := discovery.DetectLanguage(unit.FilePath)

	req := llmmanager.AnalyzeCodeRequest{
		Code:            content,
		FilePath:        unit.FilePath,
		Language:        string(lang),
		Template:        o.cfg.DefaultTemplate,
		AnalysisContext: llmmanager.ContextPrimary,
		Model:           o.cfg.DefaultModel,
	}

	log.DebugContext(taskCtx, "dispatching analyze_code", "unit_id", unit.ID, "file", unit.FilePath)
	return o.manager.AnalyzeCode(taskCtx, req)
}

// loadContent reads filePath, truncating to maxFileReadBytes. Larger
// files are expected to have already been split upstream by
// discovery.ChunkContent; this is the per-task fallback truncation spec
// §4.O step 3 describes for whatever slips through.
func loadContent(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	if len(data) > maxFileReadBytes {
		return string(data[:maxFileReadBytes]) + "\n... [truncated]", nil
	}
	return string(data), nil
}

func (o *Orchestrator) handleSuccess(task model.AnalysisTask, unit model.CodeUnit, result *llmmanager.AnalyzeCodeResult) {
	o.tracker.MarkUnitAnalyzed(task.UnitID, 0)
	o.matrix.CompleteTask(task.ID)
	if o.findings != nil && result != nil && len(result.FindingIDs) > 0 {
		o.appendResults(o.findings.FindingsByIDs(result.FindingIDs))
	}
	o.bumpProgress(unit.FilePath, true)
}

func (o *Orchestrator) handleFailure(task model.AnalysisTask, unit model.CodeUnit, err error, log *slog.Logger) {
	log.Warn("task failed", "task_id", task.ID, "unit_id", task.UnitID, "error", err)

	if !auditerr.IsRetryable(err) || task.RetryCount+1 >= task.MaxRetries {
		o.tracker.MarkUnitFailed(task.UnitID, err.Error())
		o.appendError(fmt.Sprintf("unit %s failed: %v", unit.FilePath, err))
		o.bumpProgress(unit.FilePath, false)
		return
	}
	o.matrix.FailTask(task)
}

func (o *Orchestrator) abandon(task model.AnalysisTask, reason string) {
	o.tracker.MarkUnitFailed(task.UnitID, reason)
}

func (o *Orchestrator) transition(next model.SessionStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.session.Status = next
	if next == model.SessionCompleted || next == model.SessionFailed || next == model.SessionCancelled {
		now := time.Now()
		o.session.EndedAt = &now
	}
}

func (o *Orchestrator) appendError(msg string) {
	o.mu.Lock()
	o.session.Errors = append(o.session.Errors, msg)
	o.mu.Unlock()
}

func (o *Orchestrator) appendResults(results []model.Finding) {
	o.mu.Lock()
	o.session.Results = append(o.session.Results, results...)
	o.mu.Unlock()
}

func (o *Orchestrator) bumpProgress(currentFile string, analyzed bool) {
	o.mu.Lock()
	if analyzed {
		o.session.Progress.AnalyzedFiles++
	} else {
		o.session.Progress.FailedFiles++
	}
	o.session.Progress.CurrentFile = currentFile
	progress := o.session.Progress
	o.mu.Unlock()

	if o.onProgress != nil {
		o.onProgress(progress)
	}
}
