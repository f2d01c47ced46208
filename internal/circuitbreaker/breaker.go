// Package circuitbreaker implements the per-provider CLOSED/OPEN/HALF_OPEN
// circuit breaker (spec §4.B), grounded on the CircuitBreaker pattern
// documented for tool-execution resilience (see other_examples
// jonwraymond-toolops resilience package) and adapted for LLM provider
// calls instead of generic tool execution.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/aicodeaudit/auditor/internal/auditerr"
)

// State is one of the three circuit-breaker states.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Config configures failure/recovery thresholds for a Breaker.
type Config struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int
}

// Breaker is a single provider's circuit breaker. Zero value is not
// usable; construct with New.
type Breaker struct {
	cfg Config

	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
}

// New builds a Breaker starting Closed.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, state: Closed}
}

// State reports the breaker's current state, advancing Open -> HalfOpen
// automatically once the recovery timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeRecoverLocked()
	return b.state
}

func (b *Breaker) maybeRecoverLocked() {
	if b.state == Open && time.Since(b.lastFailureTime) >= b.cfg.RecoveryTimeout {
		b.state = HalfOpen
		b.successCount = 0
	}
}

// Allow reports whether a call may proceed. It never blocks: a caller
// who receives false should treat the provider as unavailable and try
// a fallback provider.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeRecoverLocked()
	return b.state != Open
}

// RecordSuccess notes a successful call. In HalfOpen, enough
// consecutive successes close the breaker; in Closed it resets the
// failure streak.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = Closed
			b.failureCount = 0
			b.successCount = 0
		}
	case Closed:
		b.failureCount = 0
	}
}

// RecordFailure notes a failed call. In Closed it trips the breaker
// once the failure threshold is reached; in HalfOpen a single failure
// reopens it immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureTime = time.Now()

	switch b.state {
	case HalfOpen:
		b.state = Open
		b.successCount = 0
	case Closed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.state = Open
		}
	}
}

// Execute runs fn if the breaker allows it, recording the outcome.
// It returns auditerr.ErrCircuitOpen (via auditerr.Classified) without
// calling fn if the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	if !b.Allow() {
		return auditerr.New(auditerr.ErrCircuitOpen, true, auditerr.ErrCircuitOpen)
	}

	err := fn()
	if err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}
