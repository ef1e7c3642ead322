// Package run defines the analysis run model shared by the scheduler,
// aggregator, and artifact store.
package run

import "time"

// Status is the lifecycle state of an analysis run.
type Status string

const (
	StatusInProgress            Status = "in_progress"
	StatusCompleted             Status = "completed"
	StatusCompletedWithFailures Status = "completed_with_failures"
	StatusAborted               Status = "aborted"
)

// Outcome is the terminal state of a single tool execution within a run.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeTimedOut Outcome = "timed_out"
	OutcomeSkipped  Outcome = "skipped"
)

// Severity levels for findings.
const (
	SevCritical = "critical"
	SevHigh     = "high"
	SevMedium   = "medium"
	SevLow      = "low"
	SevInfo     = "info"
)

// Severities lists all known severity levels in descending order.
var Severities = []string{SevCritical, SevHigh, SevMedium, SevLow, SevInfo}

// SeverityRank returns a numeric rank for the given severity level:
// info=0 up to critical=4. Unknown values return -1.
func SeverityRank(sev string) int {
	switch sev {
	case SevInfo:
		return 0
	case SevLow:
		return 1
	case SevMedium:
		return 2
	case SevHigh:
		return 3
	case SevCritical:
		return 4
	default:
		return -1
	}
}

// Finding is one normalized issue reported by a tool. Immutable once built.
type Finding struct {
	ToolID         string `json:"tool_id"`
	Category       string `json:"category"`
	Severity       string `json:"severity"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	FilePath       string `json:"file_path,omitempty"`
	Line           int    `json:"line,omitempty"` // 1-indexed, 0 = not applicable
	RuleID         string `json:"rule_id,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
}

// ToolExecution is the outcome of one tool against one run.
// ExitCode is nil when the process never ran (skipped, launch failure).
type ToolExecution struct {
	ToolID       string    `json:"tool_id"`
	Outcome      Outcome   `json:"outcome"`
	ExitCode     *int      `json:"exit_code,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	RawOutput    string    `json:"raw_output,omitempty"`
	Findings     []Finding `json:"findings,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// AnalysisRun is one invocation of the engine against one target.
// Executions are ordered by registry order and never mutated after the
// run is frozen.
type AnalysisRun struct {
	RunID           string          `json:"run_id"`
	TargetReference string          `json:"target_reference"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
	Status          Status          `json:"status"`
	Executions      []ToolExecution `json:"executions"`
}

// RunSummary is derived from an AnalysisRun's execution set.
// Breakdown maps always carry every known severity and category so
// repeated summarization is byte-identical.
type RunSummary struct {
	TotalFindings     int            `json:"total_findings"`
	SeverityBreakdown map[string]int `json:"severity_breakdown"`
	CategoryBreakdown map[string]int `json:"category_breakdown"`
	ToolsTotal        int            `json:"tools_total"`
	ToolsSucceeded    int            `json:"tools_succeeded"`
	ToolsFailed       int            `json:"tools_failed"`
	ToolsSkipped      int            `json:"tools_skipped"`
}
