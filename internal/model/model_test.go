package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityRankOrdersCriticalFirst(t *testing.T) {
	assert.Less(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Less(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Less(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.Less(t, SeverityLow.Rank(), SeverityInfo.Rank())
}

func TestSeverityWeightDescendsWithRank(t *testing.T) {
	assert.Greater(t, SeverityCritical.Weight(), SeverityHigh.Weight())
	assert.Greater(t, SeverityHigh.Weight(), SeverityMedium.Weight())
	assert.Greater(t, SeverityMedium.Weight(), SeverityLow.Weight())
	assert.Greater(t, SeverityLow.Weight(), SeverityInfo.Weight())
}

func TestComputeIDStableForSameInputs(t *testing.T) {
	line := 42
	a := ComputeID("SQL Injection", "app/db.py", &line)
	b := ComputeID("SQL Injection", "app/db.py", &line)
	assert.Equal(t, a, b)
}

func TestComputeIDDiffersOnLine(t *testing.T) {
	l1, l2 := 42, 43
	a := ComputeID("SQL Injection", "app/db.py", &l1)
	b := ComputeID("SQL Injection", "app/db.py", &l2)
	assert.NotEqual(t, a, b)
}

func TestComputeIDHandlesNilLine(t *testing.T) {
	assert.NotPanics(t, func() {
		ComputeID("SQL Injection", "app/db.py", nil)
	})
}

func TestUnitStatusForwardTransitionsOnly(t *testing.T) {
	assert.True(t, UnitPending.CanTransitionTo(UnitInProgress))
	assert.True(t, UnitInProgress.CanTransitionTo(UnitCompleted))
	assert.True(t, UnitInProgress.CanTransitionTo(UnitFailed))
	assert.True(t, UnitInProgress.CanTransitionTo(UnitSkipped))

	assert.False(t, UnitCompleted.CanTransitionTo(UnitInProgress))
	assert.False(t, UnitFailed.CanTransitionTo(UnitInProgress))
	assert.False(t, UnitPending.CanTransitionTo(UnitCompleted))
	assert.False(t, UnitSkipped.CanTransitionTo(UnitPending))
}

func TestMakeUnitIDIsDeterministic(t *testing.T) {
	a := MakeUnitID(UnitFunction, "app/db.py", "run_query", 10)
	b := MakeUnitID(UnitFunction, "app/db.py", "run_query", 10)
	assert.Equal(t, a, b)
}
