// Package storage persists analysis artifacts and streams execution
// audit events.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tessellate-ai/foundry/services/analysis/internal/run"
)

// ErrNotFound is returned when no artifact matches the lookup.
var ErrNotFound = errors.New("artifact not found")

// Artifact is the persisted record of one analysis run. Immutable once
// saved; re-running analysis produces a new artifact, never an in-place
// update.
type Artifact struct {
	RunID           string              `json:"run_id"`
	TargetReference string              `json:"target_reference"`
	StartedAt       time.Time           `json:"started_at"`
	FinishedAt      time.Time           `json:"finished_at"`
	Status          run.Status          `json:"status"`
	Summary         run.RunSummary      `json:"summary"`
	Executions      []run.ToolExecution `json:"executions"`
}

// NewArtifact assembles the persisted shape from a frozen run and its
// derived summary.
func NewArtifact(r *run.AnalysisRun, summary run.RunSummary) *Artifact {
	return &Artifact{
		RunID:           r.RunID,
		TargetReference: r.TargetReference,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		Status:          r.Status,
		Summary:         summary,
		Executions:      r.Executions,
	}
}

// ArtifactStore persists analysis artifacts. Saves are atomic from the
// consumer's point of view: Load never observes a partial write. The
// artifact id equals the run id — one run, one artifact.
type ArtifactStore interface {
	Save(ctx context.Context, artifact *Artifact) (string, error)
	Load(ctx context.Context, artifactID string) (*Artifact, error)
	// LatestForTarget returns the most recently started artifact for a
	// logical target reference.
	LatestForTarget(ctx context.Context, targetRef string) (*Artifact, error)
	Close() error
}
