package registry

import (
	"time"

	"github.com/tessellate-ai/foundry/services/analysis/internal/run"
)

// Category groups tools by the kind of signal they produce.
type Category string

const (
	CategorySecurity    Category = "security"
	CategoryQuality     Category = "quality"
	CategoryPerformance Category = "performance"
)

// Applicability states what a tool needs from the target.
type Applicability string

const (
	// AppliesSource runs against a source tree; every target has one.
	AppliesSource Applicability = "source"
	// AppliesInstance needs a running instance to probe.
	AppliesInstance Applicability = "instance"
	// AppliesBoth needs source and a running instance together.
	AppliesBoth Applicability = "both"
)

// ToolDefinition describes one registered analysis tool.
// Immutable after registration; category is fixed here, never inferred
// from tool output at run time.
type ToolDefinition struct {
	ID              string
	DisplayName     string
	Category        Category
	Applicability   Applicability
	TimeoutSeconds  int
	CommandTemplate []string // argv with {source_dir} style placeholders
	OutputFormat    string   // "json", "jsonlines", "lines"

	// OKExitCodes lists exit codes that still mean "tool ran and
	// reported"; linters commonly exit 1 when they find issues. Nil
	// means only 0.
	OKExitCodes []int
}

// Timeout returns the per-execution time budget.
func (d ToolDefinition) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// AppliesTo reports whether the tool should run against a target of the
// given kind. Source tools run everywhere; anything needing a live
// instance requires instance_available.
func (d ToolDefinition) AppliesTo(kind run.TargetKind) bool {
	switch d.Applicability {
	case AppliesSource:
		return true
	case AppliesInstance, AppliesBoth:
		return kind == run.TargetInstanceAvailable
	default:
		return false
	}
}

// ExitCodeOK reports whether code counts as a reporting exit for this tool.
func (d ToolDefinition) ExitCodeOK(code int) bool {
	if len(d.OKExitCodes) == 0 {
		return code == 0
	}
	for _, ok := range d.OKExitCodes {
		if code == ok {
			return true
		}
	}
	return false
}
