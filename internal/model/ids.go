package model

import "github.com/google/uuid"

// NewSessionID mints a new random Session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// NewTaskID mints a new random AnalysisTask identifier.
func NewTaskID() string {
	return uuid.NewString()
}
