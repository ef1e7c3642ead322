package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tessellate-ai/foundry/services/analysis/internal/registry"
	"github.com/tessellate-ai/foundry/services/analysis/internal/run"
)

// stubExecutor returns scripted executions per tool id; tools without
// a scripted outcome succeed immediately.
type stubExecutor struct {
	mu       sync.Mutex
	outcomes map[string]run.ToolExecution
	calls    []string
}

func (s *stubExecutor) Execute(ctx context.Context, target run.Target, def registry.ToolDefinition) run.ToolExecution {
	s.mu.Lock()
	s.calls = append(s.calls, def.ID)
	exec, ok := s.outcomes[def.ID]
	s.mu.Unlock()

	if !ok {
		exec = run.ToolExecution{ToolID: def.ID, Outcome: run.OutcomeSuccess}
	}
	return exec
}

func (s *stubExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func sourceDef(id string) registry.ToolDefinition {
	return registry.ToolDefinition{
		ID:              id,
		Category:        registry.CategoryQuality,
		Applicability:   registry.AppliesSource,
		TimeoutSeconds:  5,
		CommandTemplate: []string{"true"},
	}
}

func instanceDef(id string) registry.ToolDefinition {
	d := sourceDef(id)
	d.Category = registry.CategoryPerformance
	d.Applicability = registry.AppliesInstance
	return d
}

func TestRun_AllSucceedIsCompleted(t *testing.T) {
	exec := &stubExecutor{}
	s := NewScheduler(exec, 4, nil, zap.NewNop())

	defs := []registry.ToolDefinition{sourceDef("a"), sourceDef("b"), sourceDef("c")}
	r := s.Run(context.Background(), "run-1", run.Target{Reference: "t", Kind: run.TargetSourceOnly}, defs)

	if r.Status != run.StatusCompleted {
		t.Fatalf("expected completed, got %s", r.Status)
	}
	if len(r.Executions) != 3 {
		t.Fatalf("expected 3 executions, got %d", len(r.Executions))
	}
	// Frozen in registry order regardless of completion order.
	for i, id := range []string{"a", "b", "c"} {
		if r.Executions[i].ToolID != id {
			t.Fatalf("execution %d: expected %s, got %s", i, id, r.Executions[i].ToolID)
		}
	}
}

func TestRun_InstanceToolsSkippedForSourceOnly(t *testing.T) {
	exec := &stubExecutor{}
	s := NewScheduler(exec, 4, nil, zap.NewNop())

	defs := []registry.ToolDefinition{sourceDef("lint"), instanceDef("probe")}
	r := s.Run(context.Background(), "run-1", run.Target{Reference: "t", Kind: run.TargetSourceOnly}, defs)

	if r.Status != run.StatusCompleted {
		t.Fatalf("skips are not failures, expected completed, got %s", r.Status)
	}
	if len(r.Executions) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(r.Executions))
	}
	if r.Executions[1].Outcome != run.OutcomeSkipped {
		t.Fatalf("probe should be skipped, got %s", r.Executions[1].Outcome)
	}
	// Skip decisions happen before dispatch; the executor never sees
	// the instance tool.
	if exec.callCount() != 1 {
		t.Fatalf("expected 1 executor call, got %d", exec.callCount())
	}
}

func TestRun_FailureIsolation(t *testing.T) {
	exec := &stubExecutor{
		outcomes: map[string]run.ToolExecution{
			"bad":  {ToolID: "bad", Outcome: run.OutcomeFailed, ErrorMessage: "exit code 3"},
			"slow": {ToolID: "slow", Outcome: run.OutcomeTimedOut},
		},
	}
	s := NewScheduler(exec, 4, nil, zap.NewNop())

	defs := []registry.ToolDefinition{sourceDef("good"), sourceDef("bad"), sourceDef("slow")}
	r := s.Run(context.Background(), "run-1", run.Target{Reference: "t", Kind: run.TargetSourceOnly}, defs)

	if r.Status != run.StatusCompletedWithFailures {
		t.Fatalf("expected completed_with_failures, got %s", r.Status)
	}
	if r.Executions[0].Outcome != run.OutcomeSuccess {
		t.Fatalf("good tool should be unaffected, got %s", r.Executions[0].Outcome)
	}
}

func TestRun_AbortPreservesCompletedExecutions(t *testing.T) {
	// hang blocks until the test releases it, so the only way Run can
	// return is through the abort path.
	release := make(chan struct{})
	defer close(release)
	exec := &blockingExecutor{blocked: map[string]chan struct{}{"hang": release}}
	s := NewScheduler(exec, 4, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// Give the fast tools time to finish, then abort.
		time.Sleep(300 * time.Millisecond)
		cancel()
	}()

	defs := []registry.ToolDefinition{sourceDef("a"), sourceDef("b"), sourceDef("hang")}
	start := time.Now()
	r := s.Run(ctx, "run-1", run.Target{Reference: "t", Kind: run.TargetSourceOnly}, defs)

	if time.Since(start) > 5*time.Second {
		t.Fatalf("abort did not return promptly")
	}
	if r.Status != run.StatusAborted {
		t.Fatalf("expected aborted, got %s", r.Status)
	}
	if len(r.Executions) != 2 {
		t.Fatalf("completed executions should be preserved, got %d", len(r.Executions))
	}
	for _, e := range r.Executions {
		if e.Outcome != run.OutcomeSuccess {
			t.Fatalf("completed execution %s lost its outcome: %s", e.ToolID, e.Outcome)
		}
	}
}

// blockingExecutor parks listed tools on their channel; everything else
// succeeds immediately.
type blockingExecutor struct {
	blocked map[string]chan struct{}
}

func (b *blockingExecutor) Execute(ctx context.Context, target run.Target, def registry.ToolDefinition) run.ToolExecution {
	if ch, ok := b.blocked[def.ID]; ok {
		<-ch
		return run.ToolExecution{ToolID: def.ID, Outcome: run.OutcomeFailed, ErrorMessage: "cancelled"}
	}
	return run.ToolExecution{ToolID: def.ID, Outcome: run.OutcomeSuccess}
}

func TestRun_WorkerBoundHolds(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0

	exec := &countingExecutor{
		onExecute: func() {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()
			time.Sleep(50 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
		},
	}
	s := NewScheduler(exec, 2, nil, zap.NewNop())

	var defs []registry.ToolDefinition
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		defs = append(defs, sourceDef(id))
	}
	r := s.Run(context.Background(), "run-1", run.Target{Reference: "t", Kind: run.TargetSourceOnly}, defs)

	if r.Status != run.StatusCompleted {
		t.Fatalf("expected completed, got %s", r.Status)
	}
	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Fatalf("worker bound exceeded: peak %d", peak)
	}
}

type countingExecutor struct {
	onExecute func()
}

func (c *countingExecutor) Execute(ctx context.Context, target run.Target, def registry.ToolDefinition) run.ToolExecution {
	c.onExecute()
	return run.ToolExecution{ToolID: def.ID, Outcome: run.OutcomeSuccess}
}
