// Package engine schedules tool executions against a target and folds
// the outcomes into an analysis run.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/tessellate-ai/foundry/services/analysis/internal/registry"
	"github.com/tessellate-ai/foundry/services/analysis/internal/run"
	"github.com/tessellate-ai/foundry/services/analysis/internal/storage"
)

// Executor runs a single applicable tool to a terminal outcome. The
// production implementation is adapter.CommandAdapter.
type Executor interface {
	Execute(ctx context.Context, target run.Target, def registry.ToolDefinition) run.ToolExecution
}

// DefaultMaxWorkers bounds simultaneous tool processes when the
// configuration does not say otherwise.
const DefaultMaxWorkers = 4

// Scheduler fans tool executions out to a bounded worker pool and
// collects completions through a single aggregation point.
type Scheduler struct {
	executor   Executor
	maxWorkers int64
	events     storage.EventWriter
	logger     *zap.Logger
}

// NewScheduler creates a scheduler. events may be nil when no audit
// stream is configured.
func NewScheduler(executor Executor, maxWorkers int, events storage.EventWriter, logger *zap.Logger) *Scheduler {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	return &Scheduler{
		executor:   executor,
		maxWorkers: int64(maxWorkers),
		events:     events,
		logger:     logger,
	}
}

// completion carries one finished execution back to the aggregation
// point, tagged with its definition index for stable ordering.
type completion struct {
	idx  int
	exec run.ToolExecution
}

// Run executes every applicable definition against the target and
// returns the frozen run. Cancelling ctx aborts the run: still-pending
// executions are dropped, in-flight ones are cancelled best-effort, and
// everything already completed is preserved.
//
// Each dispatched execution gets its own timeout scope derived from the
// tool's budget; one tool timing out never cancels its siblings. The
// run's execution set is only ever written by the collection loop below,
// in whatever order completions arrive.
func (s *Scheduler) Run(ctx context.Context, runID string, target run.Target, defs []registry.ToolDefinition) *run.AnalysisRun {
	started := time.Now().UTC()

	completed := make(map[int]run.ToolExecution, len(defs))
	var dispatched []int

	for i, def := range defs {
		if !def.AppliesTo(target.Kind) {
			// Not applicable: recorded as skipped, no process launched.
			completed[i] = run.ToolExecution{
				ToolID:  def.ID,
				Outcome: run.OutcomeSkipped,
			}
			continue
		}
		dispatched = append(dispatched, i)
	}

	// Buffered to len(dispatched) so workers never block on send after
	// an abort stops the collection loop.
	ch := make(chan completion, len(dispatched))
	sem := semaphore.NewWeighted(s.maxWorkers)

	for _, idx := range dispatched {
		go func(idx int, def registry.ToolDefinition) {
			if err := sem.Acquire(ctx, 1); err != nil {
				return // run aborted while queued
			}
			defer sem.Release(1)

			execCtx, cancel := context.WithTimeout(ctx, def.Timeout())
			defer cancel()
			ch <- completion{idx: idx, exec: s.executor.Execute(execCtx, target, def)}
		}(idx, defs[idx])
	}

	// Single-writer aggregation point: one completion applied at a time.
	aborted := false
	remaining := len(dispatched)
	for remaining > 0 {
		select {
		case c := <-ch:
			completed[c.idx] = c.exec
			remaining--
			s.emitEvent(runID, target, defs[c.idx], c.exec)
		case <-ctx.Done():
			s.logger.Warn("run aborted, returning completed executions",
				zap.String("run_id", runID),
				zap.Int("pending", remaining),
			)
			aborted = true
			remaining = 0
		}
	}

	r := &run.AnalysisRun{
		RunID:           runID,
		TargetReference: target.Reference,
		StartedAt:       started,
		FinishedAt:      time.Now().UTC(),
	}

	// Freeze executions in registry order; slots lost to an abort are
	// simply absent.
	failures := false
	for i := range defs {
		exec, ok := completed[i]
		if !ok {
			continue
		}
		if exec.Outcome == run.OutcomeFailed || exec.Outcome == run.OutcomeTimedOut {
			failures = true
		}
		r.Executions = append(r.Executions, exec)
	}

	switch {
	case aborted:
		r.Status = run.StatusAborted
	case failures:
		r.Status = run.StatusCompletedWithFailures
	default:
		r.Status = run.StatusCompleted
	}
	return r
}

func (s *Scheduler) emitEvent(runID string, target run.Target, def registry.ToolDefinition, exec run.ToolExecution) {
	if s.events == nil {
		return
	}
	event := &storage.ExecutionEvent{
		RunID:           runID,
		TargetReference: target.Reference,
		Timestamp:       time.Now().UTC(),
		ToolID:          exec.ToolID,
		Category:        string(def.Category),
		Outcome:         string(exec.Outcome),
		DurationMS:      exec.DurationMS,
		FindingCount:    int32(len(exec.Findings)),
		ErrorMessage:    exec.ErrorMessage,
	}
	if exec.ExitCode != nil {
		event.ExitCode = int32(*exec.ExitCode)
		event.HasExitCode = true
	}
	s.events.Write(event)
}
