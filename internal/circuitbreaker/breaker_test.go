package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker() *Breaker {
	return New(Config{FailureThreshold: 2, RecoveryTimeout: 10 * time.Millisecond, SuccessThreshold: 2})
}

func TestBreakerStartsClosed(t *testing.T) {
	b := newTestBreaker()
	assert.Equal(t, Closed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := newTestBreaker()
	b.RecordFailure()
	assert.Equal(t, Closed, b.State())
	b.RecordFailure()
	assert.Equal(t, Open, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerRecoversToHalfOpenAfterTimeout(t *testing.T) {
	b := newTestBreaker()
	b.RecordFailure()
	b.RecordFailure()
	require.Equal(t, Open, b.State())

	time.Sleep(15 * time.Millisecond)
	assert.Equal(t, HalfOpen, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := newTestBreaker()
	b.RecordFailure()
	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	require.Equal(t, HalfOpen, b.State())

	b.RecordFailure()
	assert.Equal(t, Open, b.State())
}

func TestBreakerHalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	b := newTestBreaker()
	b.RecordFailure()
	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	require.Equal(t, HalfOpen, b.State())

	b.RecordSuccess()
	assert.Equal(t, HalfOpen, b.State())
	b.RecordSuccess()
	assert.Equal(t, Closed, b.State())
}

func TestBreakerExecuteRejectsWhenOpen(t *testing.T) {
	b := newTestBreaker()
	b.RecordFailure()
	b.RecordFailure()

	err := b.Execute(func() error { return nil })
	require.Error(t, err)
}

func TestBreakerExecutePropagatesFnError(t *testing.T) {
	b := newTestBreaker()
	sentinel := errors.New("boom")
	err := b.Execute(func() error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
}

func TestBreakerClosedSuccessResetsFailureStreak(t *testing.T) {
	b := newTestBreaker()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	assert.Equal(t, Closed, b.State())
}
