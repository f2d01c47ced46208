// Package concurrency implements the adaptive semaphore bounding
// in-flight LLM calls (spec §4.C). It resizes itself periodically based
// on the observed error rate, shrinking when the provider pool is
// unhealthy and growing back when it recovers, grounded on the
// Bulkhead pattern's channel-based semaphore (other_examples
// jonwraymond-toolops resilience package) adapted to be dynamically
// resizable rather than fixed-capacity.
package concurrency

import (
	"context"
	"sync"
	"time"
)

// Config bounds and paces the controller's resizing.
type Config struct {
	Initial            int
	Min                int
	Max                int
	AdjustmentInterval time.Duration
}

const (
	highErrorRate = 0.15
	lowErrorRate  = 0.03
	shrinkFactor  = 0.7
	growFactor    = 1.3
)

// Controller is a dynamically sized semaphore. Acquire/Release bound
// in-flight work; ReportOutcome feeds the error-rate window that drives
// periodic resizing.
type Controller struct {
	cfg Config

	mu         sync.Mutex
	size       int
	inFlight   int
	sem        chan struct{}
	successes  int
	failures   int
	lastResize time.Time
}

// New builds a Controller at cfg.Initial capacity. sem is allocated at
// its maximum possible physical capacity (cfg.Max) up front and is
// never reallocated afterward — resizing only ever adds or drains
// tokens from this one channel (see resizeLocked). That keeps sem
// immutable for the Controller's lifetime, so Acquire and
// putPermitBack can read the field without holding mu: the race would
// otherwise be a blocked `case <-c.sem` capturing a channel value that
// a concurrent resize then swaps out from under it, stranding that
// goroutine's permit on a channel no Release ever posts to again.
func New(cfg Config) *Controller {
	c := &Controller{
		cfg:        cfg,
		size:       cfg.Initial,
		sem:        make(chan struct{}, cfg.Max),
		lastResize: time.Now(),
	}
	for i := 0; i < cfg.Initial; i++ {
		c.sem <- struct{}{}
	}
	return c
}

// Acquire blocks until a permit is available or ctx is done.
func (c *Controller) Acquire(ctx context.Context) error {
	select {
	case <-c.sem:
		c.mu.Lock()
		c.inFlight++
		c.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit and records whether the call it guarded
// succeeded, which feeds the next resize decision.
func (c *Controller) Release(success bool) {
	c.mu.Lock()
	c.inFlight--
	if success {
		c.successes++
	} else {
		c.failures++
	}
	// Only return the permit if doing so keeps total live tokens
	// (available in sem, plus still in flight) within the current
	// size; sem's physical capacity is cfg.Max, not c.size, so this
	// check — not channel fullness — is what realizes a shrink.
	putBack := len(c.sem)+c.inFlight < c.size
	shouldResize := time.Since(c.lastResize) >= c.cfg.AdjustmentInterval
	c.mu.Unlock()

	if putBack {
		c.putPermitBack()
	}

	if shouldResize {
		c.maybeResize()
	}
}

// putPermitBack returns one permit to sem. The non-blocking default
// case is a safety net against sem being momentarily at capacity (e.g.
// a concurrent grow raced ahead of this send); it should not trigger in
// the steady state, since Release only calls this once it has already
// confirmed room under c.size.
func (c *Controller) putPermitBack() {
	select {
	case c.sem <- struct{}{}:
	default:
	}
}

// maybeResize recomputes capacity from the observed error rate and
// applies it without losing outstanding permits.
func (c *Controller) maybeResize() {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.successes + c.failures
	if total == 0 {
		c.lastResize = time.Now()
		return
	}
	errorRate := float64(c.failures) / float64(total)

	newSize := c.size
	switch {
	case errorRate > highErrorRate:
		newSize = round(float64(c.size) * shrinkFactor)
		if newSize < c.cfg.Min {
			newSize = c.cfg.Min
		}
	case errorRate < lowErrorRate:
		newSize = round(float64(c.size) * growFactor)
		if newSize > c.cfg.Max {
			newSize = c.cfg.Max
		}
	}

	if newSize != c.size {
		c.resizeLocked(newSize)
	}

	c.successes = 0
	c.failures = 0
	c.lastResize = time.Now()
}

// resizeLocked adjusts the number of available tokens in the existing
// sem channel to match newSize, preserving in-flight permits: new_available
// = new_size - in_flight, clamped to zero. It never replaces sem itself
// (see New), only drains or refills it; both operations are
// non-blocking so a token currently checked out by an in-flight call is
// never touched.
func (c *Controller) resizeLocked(newSize int) {
	newAvailable := newSize - c.inFlight
	if newAvailable < 0 {
		newAvailable = 0
	}

	current := len(c.sem)
	switch {
	case newAvailable > current:
		for i := 0; i < newAvailable-current; i++ {
			select {
			case c.sem <- struct{}{}:
			default:
				// sem is already at its fixed physical capacity (cfg.Max).
			}
		}
	case newAvailable < current:
		for i := 0; i < current-newAvailable; i++ {
			select {
			case <-c.sem:
			default:
				// Nothing left to drain right now; the shrink is realized
				// gradually as putPermitBack withholds future permits.
			}
		}
	}

	c.size = newSize
}

// Size reports the controller's current configured capacity.
func (c *Controller) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func round(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}
