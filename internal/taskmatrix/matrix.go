// Package taskmatrix implements the priority-score heap of
// AnalysisTasks with dependency gating and periodic rebalancing (spec
// §4.J). Grounded on the teacher's priority-queue-over-worker-pool shape
// (pkg/queue/pool.go schedules ready work under a mutex-guarded
// structure); the scoring heap itself is container/heap, the idiomatic
// Go stdlib choice the teacher would reach for absent a dedicated
// priority-queue dependency anywhere in the pack.
package taskmatrix

import (
	"container/heap"
	"sync"
	"time"

	"github.com/aicodeaudit/auditor/internal/model"
)

const (
	priorityBoostThreshold  = 3
	retryBoostMultiplier    = 1.2
	overdueBoostMultiplier  = 1.3
	defaultRebalanceMinutes = 15
)

// ResourceConstraints bounds what a popped task must fit within.
type ResourceConstraints struct {
	MaxMemoryMB        float64
	MaxDurationSeconds float64
	MaxComplexity      float64
}

func (c ResourceConstraints) fits(t *taskItem) bool {
	if c.MaxDurationSeconds > 0 && t.task.Metrics.EstimatedDurationSec > c.MaxDurationSeconds {
		return false
	}
	if c.MaxComplexity > 0 && t.task.Metrics.Complexity > c.MaxComplexity {
		return false
	}
	return true
}

// PriorityScore computes spec §4.J's weighted score.
func PriorityScore(m model.TaskMetrics) float64 {
	durationTerm := clip(m.EstimatedDurationSec/300, 0, 1)
	depTerm := clip(float64(m.DependencyCount)/10, 0, 1)

	return 0.35*m.SecurityImpact +
		0.25*m.BusinessCriticality -
		0.15*m.Complexity -
		0.10*durationTerm -
		0.05*depTerm -
		0.10*m.FailureRisk
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

type taskItem struct {
	task     model.AnalysisTask
	score    float64
	queuedAt time.Time
	index    int
}

type taskHeap []*taskItem

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score > h[j].score // max-heap
	}
	return h[i].queuedAt.Before(h[j].queuedAt) // FIFO tie-break
}
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *taskHeap) Push(x any) {
	item := x.(*taskItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Matrix is the task scheduling structure for one Session.
type Matrix struct {
	mu             sync.Mutex
	ready          taskHeap
	waiting        map[string]*taskItem // tasks with unmet dependencies
	completed      map[string]struct{}
	failed         map[string]*taskItem
	dependents     map[string][]string // task id -> ids depending on it
	lastRebalance  time.Time
}

// New builds an empty Matrix.
func New() *Matrix {
	return &Matrix{
		waiting:    make(map[string]*taskItem),
		completed:  make(map[string]struct{}),
		failed:     make(map[string]*taskItem),
		dependents: make(map[string][]string),
		lastRebalance: time.Now(),
	}
}

// Add enqueues a task, placing it in the ready heap if all its
// dependencies are already completed, or the waiting set otherwise.
func (m *Matrix) Add(task model.AnalysisTask) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := &taskItem{task: task, score: PriorityScore(task.Metrics), queuedAt: time.Now()}

	for dep := range task.Dependencies {
		m.dependents[dep] = append(m.dependents[dep], task.ID)
	}

	if m.isReadyLocked(task) {
		heap.Push(&m.ready, item)
	} else {
		m.waiting[task.ID] = item
	}
}

func (m *Matrix) isReadyLocked(task model.AnalysisTask) bool {
	for dep := range task.Dependencies {
		if _, ok := m.completed[dep]; !ok {
			return false
		}
	}
	return true
}

// GetNextTask pops the highest-scored ready task fitting constraints.
// Tasks that don't fit are set aside and requeued before returning.
func (m *Matrix) GetNextTask(constraints ResourceConstraints) (*model.AnalysisTask, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deferred []*taskItem
	var result *model.AnalysisTask

	for m.ready.Len() > 0 {
		item := heap.Pop(&m.ready).(*taskItem)
		if constraints.fits(item) {
			t := item.task
			result = &t
			break
		}
		deferred = append(deferred, item)
	}

	for _, item := range deferred {
		heap.Push(&m.ready, item)
	}

	return result, result != nil
}

// CompleteTask marks task done, promoting any dependents whose last
// outstanding dependency was this task.
func (m *Matrix) CompleteTask(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.completed[taskID] = struct{}{}

	for _, depID := range m.dependents[taskID] {
		waiting, ok := m.waiting[depID]
		if !ok {
			continue
		}
		delete(waiting.task.Dependencies, taskID)
		if len(waiting.task.Dependencies) == 0 {
			delete(m.waiting, depID)
			waiting.queuedAt = time.Now()
			heap.Push(&m.ready, waiting)
		}
	}
}

// FailTask handles a task failure: retried with a boosted score if
// retry_count < max_retries, otherwise moved to the failed set.
func (m *Matrix) FailTask(task model.AnalysisTask) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task.RetryCount++
	if task.RetryCount >= task.MaxRetries {
		m.failed[task.ID] = &taskItem{task: task, score: PriorityScore(task.Metrics)}
		return
	}

	if task.RetryCount >= priorityBoostThreshold {
		task.Metrics.SecurityImpact = clip(task.Metrics.SecurityImpact*retryBoostMultiplier, 0, 1)
	}

	item := &taskItem{task: task, score: PriorityScore(task.Metrics), queuedAt: time.Now()}
	if m.isReadyLocked(task) {
		heap.Push(&m.ready, item)
	} else {
		m.waiting[task.ID] = item
	}
}

// Rebalance recomputes every remaining ready task's score, boosting
// overdue tasks (queued longer than staleAfter), and rebuilds the heap.
// Intended to be called on a rebalance_interval_minutes ticker (default 15).
func (m *Matrix) Rebalance(staleAfter time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	items := make([]*taskItem, len(m.ready))
	copy(items, m.ready)

	for _, item := range items {
		if now.Sub(item.queuedAt) > staleAfter {
			item.task.Metrics.SecurityImpact = clip(item.task.Metrics.SecurityImpact*overdueBoostMultiplier, 0, 1)
		}
		item.score = PriorityScore(item.task.Metrics)
	}

	m.ready = items
	heap.Init(&m.ready)
	m.lastRebalance = now
}

// DefaultRebalanceInterval is spec §4.J's default rebalance_interval_minutes.
const DefaultRebalanceInterval = defaultRebalanceMinutes * time.Minute
