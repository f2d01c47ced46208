// Package model holds the data types shared across the audit pipeline:
// Finding, CodeUnit, AnalysisTask, and Session, as specified in spec §3.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Severity is a Finding's severity level.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// severityRank orders severities for sorting (lower rank = more severe).
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
	SeverityInfo:     4,
}

// Rank returns the sort rank of a severity (0 = most severe).
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// Weight returns the risk-score weight of a severity (spec §7).
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 10
	case SeverityHigh:
		return 7
	case SeverityMedium:
		return 4
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 0.5
	default:
		return 0
	}
}

// Category classifies the kind of security concern a Finding describes.
type Category string

const (
	CategoryInjection      Category = "injection"
	CategoryAuth           Category = "auth"
	CategorySensitiveData  Category = "sensitive-data"
	CategoryCrypto         Category = "crypto"
	CategoryInputValidation Category = "input-validation"
	CategorySession        Category = "session"
	CategoryConfig         Category = "config"
	CategoryQuality        Category = "quality"
	CategoryDependency     Category = "dependency"
	CategoryOther          Category = "other"
)

// CrossFileEvidence records one related-file re-analysis outcome folded
// into a Finding's confidence adjustment (spec §4.L step 4).
type CrossFileEvidence struct {
	FilePath       string
	Corroborating  bool
	Adjustment     float64
	MatchedFinding string
}

// Finding is the atomic, immutable result of one LLM analysis (spec §3).
type Finding struct {
	ID             string
	Title          string
	Description    string
	Severity       Severity
	Category       Category
	FilePath       string
	Line           *int
	Snippet        string
	CWE            string
	Confidence     float64
	FactorScores   map[string]float64
	CrossFileEvidence []CrossFileEvidence
}

// ComputeID derives the stable Finding id: hash(title+path+line).
func ComputeID(title, filePath string, line *int) string {
	lineStr := ""
	if line != nil {
		lineStr = fmt.Sprintf("%d", *line)
	}
	sum := sha256.Sum256([]byte(title + "|" + filePath + "|" + lineStr))
	return hex.EncodeToString(sum[:])[:16]
}

// UnitType classifies a CodeUnit's scope.
type UnitType string

const (
	UnitFile     UnitType = "file"
	UnitFunction UnitType = "function"
	UnitClass    UnitType = "class"
	UnitModule   UnitType = "module"
)

// Priority orders CodeUnits and AnalysisTasks for dispatch.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// UnitStatus is a CodeUnit's lifecycle state. Transitions are
// forward-only: pending -> in_progress -> {completed|failed|skipped}.
type UnitStatus string

const (
	UnitPending    UnitStatus = "pending"
	UnitInProgress UnitStatus = "in_progress"
	UnitCompleted  UnitStatus = "completed"
	UnitSkipped    UnitStatus = "skipped"
	UnitFailed     UnitStatus = "failed"
)

// CanTransitionTo reports whether moving from the receiver status to next
// is a legal forward transition (spec §3 invariant: no revival).
func (s UnitStatus) CanTransitionTo(next UnitStatus) bool {
	switch s {
	case UnitPending:
		return next == UnitInProgress
	case UnitInProgress:
		return next == UnitCompleted || next == UnitFailed || next == UnitSkipped
	default:
		return false // terminal states never transition again
	}
}

// CodeUnit is one analyzable scope: a file, function, class, or module.
type CodeUnit struct {
	ID               string
	Name             string
	FilePath         string
	StartLine        int
	EndLine          int
	UnitType         UnitType
	Status           UnitStatus
	Priority         Priority
	Dependencies     map[string]struct{}
	AnalyzedAt       *time.Time
	AnalysisDuration time.Duration
	FailureReason    string
}

// MakeUnitID builds the id (type:path:name:line) used by CodeUnit.ID.
func MakeUnitID(unitType UnitType, filePath, name string, startLine int) string {
	return fmt.Sprintf("%s:%s:%s:%d", unitType, filePath, name, startLine)
}

// TaskType classifies the kind of work an AnalysisTask performs.
type TaskType string

const (
	TaskFile            TaskType = "file"
	TaskFunction        TaskType = "function"
	TaskClass           TaskType = "class"
	TaskSecurityScan    TaskType = "security_scan"
	TaskDependencyCheck TaskType = "dependency_check"
	TaskContextBuild    TaskType = "context_build"
)

// TaskMetrics feeds the priority_score formula (spec §4.J).
type TaskMetrics struct {
	SecurityImpact       float64 // [0,1]
	BusinessCriticality  float64 // [0,1]
	Complexity           float64 // [0,1]
	EstimatedDurationSec float64 // seconds
	DependencyCount      int
	FailureRisk          float64 // [0,1]
}

// AnalysisTask is a scheduled piece of work binding a CodeUnit to a
// task_type, model, priority, and dependency set (spec §3).
type AnalysisTask struct {
	ID           string
	UnitID       string
	TaskType     TaskType
	Model        string
	Priority     Priority
	Dependencies map[string]struct{}
	RetryCount   int
	MaxRetries   int
	Metrics      TaskMetrics
	CreatedAt    time.Time
}

// DefaultMaxRetries is the spec's default retry budget per task.
const DefaultMaxRetries = 3

// SessionStatus is a Session's lifecycle state (spec §3/§4.O).
type SessionStatus string

const (
	SessionCreated      SessionStatus = "created"
	SessionInitializing SessionStatus = "initializing"
	SessionRunning      SessionStatus = "running"
	SessionPaused       SessionStatus = "paused"
	SessionCompleted    SessionStatus = "completed"
	SessionFailed       SessionStatus = "failed"
	SessionCancelled    SessionStatus = "cancelled"
)

// Progress tracks a Session's discovered/analyzed/failed file counts.
type Progress struct {
	TotalFiles          int
	AnalyzedFiles       int
	FailedFiles         int
	CurrentFile         string
	EstimatedCompletion *time.Time
}

// Session is one end-to-end audit run.
type Session struct {
	ID         string
	ProjectPath string
	Status     SessionStatus
	Progress   Progress
	Results    []Finding
	Errors     []string
	CreatedAt  time.Time
	StartedAt  *time.Time
	EndedAt    *time.Time
}
