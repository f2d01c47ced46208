package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// defaultTokenEstimate seeds estimation before any history exists.
	defaultTokenEstimate = 5000
	// historyRingLen bounds how many recent actual-usage samples feed
	// the rolling average, matching the original token_history deque.
	historyRingLen = 100
	// minTokenEstimate is the floor below which estimation never drops,
	// since even trivial prompts carry fixed overhead.
	minTokenEstimate = 1000
	// charsPerToken approximates characters-to-tokens for content with
	// no usage history yet.
	charsPerToken = 0.3
	// contentLengthBaseline is the content length "1.0x" scaling factor
	// is calibrated against once history exists.
	contentLengthBaseline = 10000.0
)

// Adaptive wraps a Limiter with content-length-aware token estimation
// that learns from actually-observed usage, mirroring the original
// AdaptiveRateLimiter (ai_code_audit/llm/rate_limiter.py).
type Adaptive struct {
	base *Limiter

	mu                  sync.Mutex
	successCount        int
	errorCount          int
	tokenHistory        []int
	defaultTokenEstimate int
}

// NewAdaptive builds an Adaptive limiter over a fresh Limiter for cfg.
func NewAdaptive(cfg Config) *Adaptive {
	return &Adaptive{
		base:                 New(cfg),
		defaultTokenEstimate: defaultTokenEstimate,
	}
}

// AcquireWithEstimation estimates the token cost of a request from its
// content length, waits out any required backoff, and admits it. It
// blocks until the ctx deadline or admission succeeds.
func (a *Adaptive) AcquireWithEstimation(ctx context.Context, contentLength int) bool {
	estimated := a.estimateTokens(contentLength)

	wait := a.base.WaitTime(estimated)
	if wait > 0 {
		slog.DebugContext(ctx, "rate limit reached, waiting", "wait", wait, "estimated_tokens", estimated)
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return false
		}
	}

	return a.base.Acquire(estimated)
}

func (a *Adaptive) estimateTokens(contentLength int) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.tokenHistory) == 0 {
		if contentLength > 0 {
			return max(int(float64(contentLength)*charsPerToken), minTokenEstimate)
		}
		return a.defaultTokenEstimate
	}

	sum := 0
	for _, t := range a.tokenHistory {
		sum += t
	}
	avg := float64(sum) / float64(len(a.tokenHistory))

	var estimated int
	if contentLength > 0 {
		lengthFactor := float64(contentLength) / contentLengthBaseline
		if lengthFactor < 0.5 {
			lengthFactor = 0.5
		} else if lengthFactor > 2.0 {
			lengthFactor = 2.0
		}
		estimated = int(avg * lengthFactor)
	} else {
		estimated = int(avg)
	}

	return max(estimated, minTokenEstimate)
}

// RecordActualUsage folds a real token count into the rolling history
// and refreshes the default estimate once enough samples exist.
func (a *Adaptive) RecordActualUsage(actualTokens int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.tokenHistory = append(a.tokenHistory, actualTokens)
	if len(a.tokenHistory) > historyRingLen {
		a.tokenHistory = a.tokenHistory[len(a.tokenHistory)-historyRingLen:]
	}
	a.successCount++

	if len(a.tokenHistory) >= 10 {
		sum := 0
		for _, t := range a.tokenHistory {
			sum += t
		}
		a.defaultTokenEstimate = sum / len(a.tokenHistory)
	}
}

// RecordError notes a failed request for error-rate stats.
func (a *Adaptive) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errorCount++
}

// Stats snapshot of this limiter's adaptive behavior, layered on top of
// the base Limiter's window usage.
type Stats struct {
	Usage
	SuccessCount        int
	ErrorCount          int
	ErrorRate           float64
	AvgActualTokens     float64
	CurrentTokenEstimate int
	TokenHistorySize    int
}

// Stats reports the limiter's current usage plus adaptive counters.
func (a *Adaptive) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := a.successCount + a.errorCount
	errRate := 0.0
	if total > 0 {
		errRate = float64(a.errorCount) / float64(total)
	}

	avg := 0.0
	if len(a.tokenHistory) > 0 {
		sum := 0
		for _, t := range a.tokenHistory {
			sum += t
		}
		avg = float64(sum) / float64(len(a.tokenHistory))
	}

	return Stats{
		Usage:                a.base.Usage(),
		SuccessCount:         a.successCount,
		ErrorCount:           a.errorCount,
		ErrorRate:            errRate,
		AvgActualTokens:      avg,
		CurrentTokenEstimate: a.defaultTokenEstimate,
		TokenHistorySize:     len(a.tokenHistory),
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
