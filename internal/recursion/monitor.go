// Package recursion implements the Recursion Monitor (spec §4.K): a
// per-analysis-request call stack of (analysis_type, path) pairs guarding
// against cycles and unbounded depth. Grounded on the teacher's
// context-scoped guard style (pkg/agent/controller/react.go's
// iteration-count guard against runaway tool loops), generalized from an
// iteration counter to a duplicate-aware stack.
package recursion

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/aicodeaudit/auditor/internal/auditerr"
)

// DefaultMaxDepth is spec §4.K's default overall stack depth ceiling.
const DefaultMaxDepth = 50

// DefaultCrossFileMaxDepth is spec §4.L's per-run cross-file follow-up budget.
const DefaultCrossFileMaxDepth = 3

type frame struct {
	analysisType string
	path         string
}

// Monitor tracks one end-user analysis request's call stack. Not safe
// for concurrent use from more than one logical analysis at a time —
// its scope is a single request, matching spec §4.K.
type Monitor struct {
	mu       sync.Mutex
	maxDepth int
	stack    []frame
}

// New builds a Monitor bounded at maxDepth (0 uses DefaultMaxDepth).
func New(maxDepth int) *Monitor {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Monitor{maxDepth: maxDepth}
}

// Enter pushes (analysisType, path) onto the stack, failing fast with a
// recursion error if the pair is already present or depth would exceed
// maxDepth.
func (m *Monitor) Enter(analysisType, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range m.stack {
		if f.analysisType == analysisType && f.path == path {
			return auditerr.New(auditerr.ErrRecursion, false,
				fmt.Errorf("analysis cycle detected: %s already on stack for %s", analysisType, path))
		}
	}
	if len(m.stack) >= m.maxDepth {
		return auditerr.New(auditerr.ErrRecursion, false,
			fmt.Errorf("recursion depth %d reached max %d", len(m.stack), m.maxDepth))
	}

	m.stack = append(m.stack, frame{analysisType: analysisType, path: path})
	return nil
}

// Exit pops the top frame. If it doesn't match (analysisType, path), a
// warning is logged but the pop proceeds anyway — spec §4.K's documented
// best-effort behavior for a mismatched exit.
func (m *Monitor) Exit(analysisType, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.stack) == 0 {
		return
	}
	top := m.stack[len(m.stack)-1]
	if top.analysisType != analysisType || top.path != path {
		slog.Warn("recursion monitor exit mismatch",
			"expected_type", top.analysisType, "expected_path", top.path,
			"got_type", analysisType, "got_path", path)
	}
	m.stack = m.stack[:len(m.stack)-1]
}

// Depth reports the current stack depth.
func (m *Monitor) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stack)
}
