package ratelimiter

import (
	"sync"
	"time"
)

// Config configures one provider's rate limiter (spec §4.A).
type Config struct {
	RPM           int
	TPM           int
	WindowSeconds int
}

// Usage is a point-in-time snapshot of a Limiter's load.
type Usage struct {
	CurrentRPM       int
	MaxRPM           int
	RPMUsagePercent  float64
	CurrentTPM       int
	MaxTPM           int
	TPMUsagePercent  float64
	AvailableTokens  float64
	AvailableRequests float64
}

// record is one accepted request's (timestamp, tokens) pair, kept only
// long enough to compute the sliding-window usage snapshot.
type record struct {
	at     time.Time
	tokens int
}

// Limiter is a sliding-window RPM/TPM limiter backed by two token
// buckets, one for request count and one for token count. Grounded on
// the original SlidingWindowRateLimiter (ai_code_audit/llm/rate_limiter.py).
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	records []record

	rpmBucket *tokenBucket
	tpmBucket *tokenBucket
}

// New builds a Limiter for the given provider configuration.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:       cfg,
		rpmBucket: newTokenBucket(cfg.RPM, float64(cfg.RPM)/60.0),
		tpmBucket: newTokenBucket(cfg.TPM, float64(cfg.TPM)/60.0),
	}
}

// Acquire attempts to admit one request estimated to cost estimatedTokens.
// It returns false immediately if either the RPM or TPM budget is
// exhausted; it never blocks (callers decide whether to wait, via WaitTime).
func (l *Limiter) Acquire(estimatedTokens int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.cleanupLocked(now)

	if !l.rpmBucket.consume(1) {
		return false
	}
	if !l.tpmBucket.consume(estimatedTokens) {
		return false
	}

	l.records = append(l.records, record{at: now, tokens: estimatedTokens})
	return true
}

// WaitTime reports how long a caller should sleep before Acquire is
// likely to succeed for estimatedTokens.
func (l *Limiter) WaitTime(estimatedTokens int) time.Duration {
	rpmWait := l.rpmBucket.waitTime(1)
	tpmWait := l.tpmBucket.waitTime(estimatedTokens)
	if rpmWait > tpmWait {
		return rpmWait
	}
	return tpmWait
}

func (l *Limiter) cleanupLocked(now time.Time) {
	cutoff := now.Add(-time.Duration(l.cfg.WindowSeconds) * time.Second)
	i := 0
	for i < len(l.records) && l.records[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		l.records = l.records[i:]
	}
}

// Usage reports the limiter's current window occupancy.
func (l *Limiter) Usage() Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.cleanupLocked(now)

	tokens := 0
	for _, r := range l.records {
		tokens += r.tokens
	}

	rpmPct := 0.0
	if l.cfg.RPM > 0 {
		rpmPct = float64(len(l.records)) / float64(l.cfg.RPM) * 100
	}
	tpmPct := 0.0
	if l.cfg.TPM > 0 {
		tpmPct = float64(tokens) / float64(l.cfg.TPM) * 100
	}

	return Usage{
		CurrentRPM:        len(l.records),
		MaxRPM:            l.cfg.RPM,
		RPMUsagePercent:   rpmPct,
		CurrentTPM:        tokens,
		MaxTPM:            l.cfg.TPM,
		TPMUsagePercent:   tpmPct,
		AvailableTokens:   l.tpmBucket.available(),
		AvailableRequests: l.rpmBucket.available(),
	}
}
