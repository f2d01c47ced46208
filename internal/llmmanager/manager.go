// Package llmmanager routes chat-completion requests across providers
// with configurable load-balancing, fallback, and the analyze_code entry
// point (spec §4.E). Grounded on the Router/WithProvider/WithFallback
// shape documented in other_examples/7a5fd605_BaSui01-agentflow__llm-doc.go.go
// and the teacher's provider-map wiring in pkg/agent/llm_client.go.
package llmmanager

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/aicodeaudit/auditor/internal/auditerr"
	"github.com/aicodeaudit/auditor/internal/circuitbreaker"
	"github.com/aicodeaudit/auditor/internal/concurrency"
	"github.com/aicodeaudit/auditor/internal/llmprovider"
)

// Strategy selects how providers are ordered absent a preferred provider.
type Strategy string

const (
	RoundRobin           Strategy = "round_robin"
	Random               Strategy = "random"
	CostOptimized        Strategy = "cost_optimized"
	PerformanceOptimized Strategy = "performance_optimized"
)

// ProviderConfig mirrors spec §4.E's ProviderConfig record.
type ProviderConfig struct {
	Enabled           bool
	Priority          int
	CostWeight        float64
	PerformanceWeight float64
}

// entry binds one Provider to its routing metadata and breaker.
type entry struct {
	name       string
	provider   *llmprovider.Provider
	breaker    *circuitbreaker.Breaker
	cfg        ProviderConfig
	requestCnt int
}

// Manager owns a set of providers and routes requests across them.
type Manager struct {
	strategy    Strategy
	controller  *concurrency.Controller
	aggregator  ResponseAggregator

	mu          sync.Mutex
	entries     map[string]*entry
	lastUsed    string
	order       []string
}

// ResponseAggregator parses a provider's free-text response into
// findings and adjusts confidence. Implemented by internal/aggregator +
// internal/confidence + internal/crossfile; injected here to avoid an
// import cycle between the manager and the components it dispatches to.
type ResponseAggregator interface {
	ProcessAnalysis(ctx context.Context, req AnalyzeCodeRequest, content string) (*AnalyzeCodeResult, error)
}

// New builds a Manager using strategy for unsteered ordering and
// controller to bound in-flight dispatches.
func New(strategy Strategy, controller *concurrency.Controller, aggregator ResponseAggregator) *Manager {
	return &Manager{
		strategy:   strategy,
		controller: controller,
		aggregator: aggregator,
		entries:    make(map[string]*entry),
	}
}

// AddProvider registers a provider under name with its routing config and
// per-provider circuit breaker.
func (m *Manager) AddProvider(name string, provider *llmprovider.Provider, breaker *circuitbreaker.Breaker, cfg ProviderConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[name] = &entry{name: name, provider: provider, breaker: breaker, cfg: cfg}
	m.order = append(m.order, name)
}

// orderedProviders returns the candidate list for one request: enabled,
// supporting the model, ordered per preferredProvider/strategy.
func (m *Manager) orderedProviders(model, preferredProvider string) []*entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates []*entry
	for _, name := range m.order {
		e := m.entries[name]
		if e.cfg.Enabled && e.provider.SupportsModel(model) {
			candidates = append(candidates, e)
		}
	}

	if preferredProvider != "" {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].name == preferredProvider && candidates[j].name != preferredProvider
		})
		return candidates
	}

	switch m.strategy {
	case CostOptimized:
		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].cfg.CostWeight < candidates[j].cfg.CostWeight })
	case PerformanceOptimized:
		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].cfg.PerformanceWeight < candidates[j].cfg.PerformanceWeight })
	case Random:
		rand.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	default: // RoundRobin
		candidates = m.rotateFromLastUsedLocked(candidates)
	}

	return candidates
}

func (m *Manager) rotateFromLastUsedLocked(candidates []*entry) []*entry {
	if m.lastUsed == "" || len(candidates) == 0 {
		return candidates
	}
	idx := -1
	for i, e := range candidates {
		if e.name == m.lastUsed {
			idx = i
			break
		}
	}
	if idx == -1 {
		return candidates
	}
	rotated := make([]*entry, 0, len(candidates))
	rotated = append(rotated, candidates[idx+1:]...)
	rotated = append(rotated, candidates[:idx+1]...)
	return rotated
}

// ChatCompletion dispatches req across the ordered provider list,
// acquiring a concurrency permit for the duration of the attempt chain
// and falling back on failure when fallback is true (spec §4.E Dispatch).
func (m *Manager) ChatCompletion(ctx context.Context, req llmprovider.ChatRequest, preferredProvider string, fallback bool) (*llmprovider.ChatResponse, error) {
	candidates := m.orderedProviders(req.Model, preferredProvider)
	if len(candidates) == 0 {
		return nil, auditerr.New(auditerr.ErrAllProvidersFailed, false, fmt.Errorf("no enabled provider supports model %s", req.Model))
	}

	if err := m.controller.Acquire(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	for _, e := range candidates {
		if !e.breaker.Allow() {
			continue
		}

		resp, err := e.provider.ChatCompletion(ctx, req)
		if err != nil {
			lastErr = err
			e.breaker.RecordFailure()
			if !fallback {
				break
			}
			continue
		}

		m.mu.Lock()
		e.requestCnt++
		m.lastUsed = e.name
		m.mu.Unlock()
		e.breaker.RecordSuccess()
		m.controller.Release(true)
		return resp, nil
	}

	m.controller.Release(false)
	if lastErr == nil {
		lastErr = fmt.Errorf("no provider's circuit breaker admitted the request")
	}
	return nil, auditerr.New(auditerr.ErrAllProvidersFailed, false, lastErr)
}
