package recursion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnterThenExitRoundTrips(t *testing.T) {
	m := New(5)
	require.NoError(t, m.Enter("file", "a.py"))
	assert.Equal(t, 1, m.Depth())
	m.Exit("file", "a.py")
	assert.Equal(t, 0, m.Depth())
}

func TestEnterDetectsCycle(t *testing.T) {
	m := New(5)
	require.NoError(t, m.Enter("file", "a.py"))
	err := m.Enter("file", "a.py")
	assert.Error(t, err)
}

func TestEnterDifferentTypeSamePathAllowed(t *testing.T) {
	m := New(5)
	require.NoError(t, m.Enter("file", "a.py"))
	assert.NoError(t, m.Enter("function", "a.py"))
}

func TestEnterRejectsBeyondMaxDepth(t *testing.T) {
	m := New(2)
	require.NoError(t, m.Enter("file", "a.py"))
	require.NoError(t, m.Enter("file", "b.py"))
	err := m.Enter("file", "c.py")
	assert.Error(t, err)
}

func TestExitOnEmptyStackIsNoop(t *testing.T) {
	m := New(5)
	assert.NotPanics(t, func() { m.Exit("file", "a.py") })
}

func TestExitMismatchStillPops(t *testing.T) {
	m := New(5)
	require.NoError(t, m.Enter("file", "a.py"))
	m.Exit("function", "b.py")
	assert.Equal(t, 0, m.Depth())
}
