// Package coverage implements the Coverage Tracker (spec §4.I): a
// unit-id-keyed map plus priority-bucketed FIFO queues, status
// transitions, and aggregate/per-file reporting. Grounded on the
// teacher's in-memory session-state bookkeeping style (pkg/queue, which
// tracks per-session work under a mutex) adapted to per-unit status
// tracking instead of per-session.
package coverage

import (
	"sync"
	"time"

	"github.com/aicodeaudit/auditor/internal/model"
)

var priorityOrder = []model.Priority{
	model.PriorityCritical, model.PriorityHigh, model.PriorityMedium, model.PriorityLow,
}

// Tracker owns one Session's CodeUnit states and priority dispatch queues.
type Tracker struct {
	mu     sync.Mutex
	units  map[string]*model.CodeUnit
	queues map[model.Priority][]string // unit ids, FIFO
}

// New builds an empty Tracker.
func New() *Tracker {
	t := &Tracker{
		units:  make(map[string]*model.CodeUnit),
		queues: make(map[model.Priority][]string),
	}
	for _, p := range priorityOrder {
		t.queues[p] = nil
	}
	return t
}

// AddUnits registers freshly discovered units, queuing each by priority.
func (t *Tracker) AddUnits(units []model.CodeUnit) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range units {
		u := units[i]
		t.units[u.ID] = &u
		t.queues[u.Priority] = append(t.queues[u.Priority], u.ID)
	}
}

// GetNextUnits drains up to count pending unit ids in
// CRITICAL->HIGH->MEDIUM->LOW order, optionally restricted to
// priorityFilter. Units whose status is no longer pending are skipped
// (they were already claimed or transitioned) without consuming a slot.
func (t *Tracker) GetNextUnits(count int, priorityFilter *model.Priority) []*model.CodeUnit {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []*model.CodeUnit
	for _, p := range priorityOrder {
		if priorityFilter != nil && *priorityFilter != p {
			continue
		}
		queue := t.queues[p]
		kept := queue[:0:0]
		for _, id := range queue {
			u := t.units[id]
			if len(out) < count && u.Status == model.UnitPending {
				out = append(out, u)
			} else if u.Status == model.UnitPending {
				kept = append(kept, id)
			}
			// Non-pending ids are dropped from the queue permanently.
		}
		t.queues[p] = kept
		if len(out) >= count {
			break
		}
	}
	return out
}

// MarkUnitInProgress transitions a unit to in_progress.
func (t *Tracker) MarkUnitInProgress(id string) bool {
	return t.transition(id, model.UnitInProgress, "")
}

// MarkUnitAnalyzed transitions a unit to completed and stamps AnalyzedAt.
func (t *Tracker) MarkUnitAnalyzed(id string, duration time.Duration) bool {
	t.mu.Lock()
	u, ok := t.units[id]
	if !ok || !u.Status.CanTransitionTo(model.UnitCompleted) {
		t.mu.Unlock()
		return false
	}
	now := time.Now()
	u.Status = model.UnitCompleted
	u.AnalyzedAt = &now
	u.AnalysisDuration = duration
	t.mu.Unlock()
	return true
}

// MarkUnitFailed transitions a unit to failed with a reason.
func (t *Tracker) MarkUnitFailed(id, reason string) bool {
	return t.transition(id, model.UnitFailed, reason)
}

// MarkUnitSkipped transitions a unit to skipped with a reason.
func (t *Tracker) MarkUnitSkipped(id, reason string) bool {
	return t.transition(id, model.UnitSkipped, reason)
}

func (t *Tracker) transition(id string, next model.UnitStatus, reason string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.units[id]
	if !ok || !u.Status.CanTransitionTo(next) {
		return false
	}
	u.Status = next
	if reason != "" {
		u.FailureReason = reason
	}
	return true
}

// Report is the aggregate + per-file coverage snapshot (spec §4.I).
type Report struct {
	Total        int
	ByStatus     map[model.UnitStatus]int
	CoveragePct  float64
	SuccessRate  float64
	PerFile      map[string]FileStats
}

// FileStats is one file's unit-status breakdown within a Report.
type FileStats struct {
	Total    int
	ByStatus map[model.UnitStatus]int
}

// GenerateCoverageReport computes aggregate and per-file statistics.
func (t *Tracker) GenerateCoverageReport() Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	report := Report{
		ByStatus: make(map[model.UnitStatus]int),
		PerFile:  make(map[string]FileStats),
	}

	for _, u := range t.units {
		report.Total++
		report.ByStatus[u.Status]++

		fs, ok := report.PerFile[u.FilePath]
		if !ok {
			fs = FileStats{ByStatus: make(map[model.UnitStatus]int)}
		}
		fs.Total++
		fs.ByStatus[u.Status]++
		report.PerFile[u.FilePath] = fs
	}

	analyzed := report.ByStatus[model.UnitCompleted]
	failed := report.ByStatus[model.UnitFailed]

	if report.Total > 0 {
		report.CoveragePct = float64(analyzed) / float64(report.Total)
	}
	if analyzed+failed > 0 {
		report.SuccessRate = float64(analyzed) / float64(analyzed+failed)
	}

	return report
}

// Unit returns a copy of one tracked unit's current state, if known.
func (t *Tracker) Unit(id string) (model.CodeUnit, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.units[id]
	if !ok {
		return model.CodeUnit{}, false
	}
	return *u, true
}
