package engine

import (
	"context"
	"sync"
	"time"

	"github.com/tessellate-ai/foundry/services/analysis/internal/run"
)

// RunState is a point-in-time view of a tracked run for status queries.
type RunState struct {
	RunID           string     `json:"run_id"`
	TargetReference string     `json:"target_reference"`
	StartedAt       time.Time  `json:"started_at"`
	Status          run.Status `json:"status"`
}

// Tracker indexes in-flight runs so the trigger surface can answer
// status queries before an artifact exists and can route aborts to the
// right cancellation scope. Terminal runs are evicted once persisted;
// the artifact store owns them from then on.
type Tracker struct {
	mu   sync.Mutex
	runs map[string]*trackedRun
}

type trackedRun struct {
	state  RunState
	cancel context.CancelFunc
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{runs: make(map[string]*trackedRun)}
}

// Begin registers a new in-progress run with its cancellation scope.
func (t *Tracker) Begin(runID, targetRef string, cancel context.CancelFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs[runID] = &trackedRun{
		state: RunState{
			RunID:           runID,
			TargetReference: targetRef,
			StartedAt:       time.Now().UTC(),
			Status:          run.StatusInProgress,
		},
		cancel: cancel,
	}
}

// Finish removes a run from the tracker after its artifact is saved.
func (t *Tracker) Finish(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.runs, runID)
}

// Abort cancels a tracked run. Returns false if the run is unknown or
// already finished. The run stays tracked until its goroutine persists
// the aborted artifact and calls Finish.
func (t *Tracker) Abort(runID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr, ok := t.runs[runID]
	if !ok {
		return false
	}
	tr.cancel()
	return true
}

// Get returns the state of an in-flight run.
func (t *Tracker) Get(runID string) (RunState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr, ok := t.runs[runID]
	if !ok {
		return RunState{}, false
	}
	return tr.state, true
}
