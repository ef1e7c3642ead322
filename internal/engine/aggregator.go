package engine

import (
	"github.com/tessellate-ai/foundry/services/analysis/internal/registry"
	"github.com/tessellate-ai/foundry/services/analysis/internal/run"
)

// Summarize derives a RunSummary from a frozen run. Pure function of
// the execution set: no side effects, deterministic, safe to call
// repeatedly and concurrently.
//
// Findings are only counted from successful executions; failed and
// timed-out tools contribute to tools_failed, skipped ones to
// tools_skipped. Zero findings is a valid, fully successful outcome.
func Summarize(r *run.AnalysisRun) run.RunSummary {
	summary := run.RunSummary{
		SeverityBreakdown: make(map[string]int, len(run.Severities)),
		CategoryBreakdown: make(map[string]int, 3),
	}
	for _, sev := range run.Severities {
		summary.SeverityBreakdown[sev] = 0
	}
	for _, cat := range []registry.Category{registry.CategorySecurity, registry.CategoryQuality, registry.CategoryPerformance} {
		summary.CategoryBreakdown[string(cat)] = 0
	}

	for _, exec := range r.Executions {
		summary.ToolsTotal++
		switch exec.Outcome {
		case run.OutcomeSuccess:
			summary.ToolsSucceeded++
		case run.OutcomeFailed, run.OutcomeTimedOut:
			summary.ToolsFailed++
		case run.OutcomeSkipped:
			summary.ToolsSkipped++
		}
		if exec.Outcome != run.OutcomeSuccess {
			continue
		}
		for _, f := range exec.Findings {
			summary.TotalFindings++
			summary.SeverityBreakdown[f.Severity]++
			summary.CategoryBreakdown[f.Category]++
		}
	}
	return summary
}
