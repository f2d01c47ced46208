package concurrency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewControllerStartsAtInitialSize(t *testing.T) {
	c := New(Config{Initial: 5, Min: 2, Max: 10, AdjustmentInterval: time.Hour})
	assert.Equal(t, 5, c.Size())
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	c := New(Config{Initial: 2, Min: 1, Max: 4, AdjustmentInterval: time.Hour})
	ctx := context.Background()

	require.NoError(t, c.Acquire(ctx))
	require.NoError(t, c.Acquire(ctx))

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
	defer cancel()
	assert.Error(t, c.Acquire(ctx2))

	c.Release(true)
	require.NoError(t, c.Acquire(ctx))
}

func TestMaybeResizeShrinksOnHighErrorRate(t *testing.T) {
	c := New(Config{Initial: 10, Min: 5, Max: 25, AdjustmentInterval: 0})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, c.Acquire(ctx))
		c.Release(false)
	}

	assert.Less(t, c.Size(), 10)
	assert.GreaterOrEqual(t, c.Size(), 5)
}

func TestMaybeResizeGrowsOnLowErrorRate(t *testing.T) {
	c := New(Config{Initial: 10, Min: 5, Max: 25, AdjustmentInterval: 0})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, c.Acquire(ctx))
		c.Release(true)
	}

	assert.Greater(t, c.Size(), 10)
	assert.LessOrEqual(t, c.Size(), 25)
}

func TestResizeNeverExceedsConfiguredBounds(t *testing.T) {
	c := New(Config{Initial: 24, Min: 5, Max: 25, AdjustmentInterval: 0})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, c.Acquire(ctx))
		c.Release(true)
	}
	assert.LessOrEqual(t, c.Size(), 25)
}

func TestBlockedAcquireSucceedsAfterConcurrentGrow(t *testing.T) {
	c := New(Config{Initial: 2, Min: 1, Max: 5, AdjustmentInterval: 0})
	ctx := context.Background()

	require.NoError(t, c.Acquire(ctx))
	require.NoError(t, c.Acquire(ctx))

	done := make(chan error, 1)
	go func() {
		done <- c.Acquire(ctx)
	}()

	time.Sleep(20 * time.Millisecond) // let the goroutine park on the empty sem

	// Releasing with AdjustmentInterval: 0 both returns a permit and
	// immediately triggers a grow resize. If resize ever swapped sem
	// for a new channel, the goroutine above — parked on the old
	// channel value — would never see a permit again.
	c.Release(true)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked Acquire never completed after a concurrent resize; permit was stranded on a stale channel")
	}
}

func TestResizePreservesInFlightPermits(t *testing.T) {
	c := New(Config{Initial: 10, Min: 2, Max: 20, AdjustmentInterval: 0})
	ctx := context.Background()

	require.NoError(t, c.Acquire(ctx))
	require.NoError(t, c.Acquire(ctx))

	for i := 0; i < 10; i++ {
		require.NoError(t, c.Acquire(ctx))
		c.Release(false)
	}

	assert.True(t, c.Size() >= 2)
}
