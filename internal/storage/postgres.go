package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/tessellate-ai/foundry/services/analysis/internal/run"
)

// artifactDB abstracts DB queries for testability.
type artifactDB interface {
	InsertArtifact(ctx context.Context, artifact *Artifact, summary, executions []byte) error
	SelectArtifact(ctx context.Context, artifactID string) (*artifactRow, error)
	SelectLatestForTarget(ctx context.Context, targetRef string) (*artifactRow, error)
	Close() error
}

type artifactRow struct {
	RunID           string
	TargetReference string
	StartedAt       sql.NullTime
	FinishedAt      sql.NullTime
	Status          string
	Summary         string // JSONB as string
	Executions      string // JSONB as string
}

// sqlArtifactDB is the real implementation using *sql.DB.
type sqlArtifactDB struct {
	db *sql.DB
}

func (s *sqlArtifactDB) InsertArtifact(ctx context.Context, artifact *Artifact, summary, executions []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_artifacts
			(run_id, target_reference, started_at, finished_at, status, summary, executions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, artifact.RunID, artifact.TargetReference, artifact.StartedAt,
		artifact.FinishedAt, string(artifact.Status), summary, executions)
	return err
}

func (s *sqlArtifactDB) SelectArtifact(ctx context.Context, artifactID string) (*artifactRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, target_reference, started_at, finished_at, status, summary, executions
		FROM analysis_artifacts
		WHERE run_id = $1
	`, artifactID)
	return scanArtifactRow(row)
}

func (s *sqlArtifactDB) SelectLatestForTarget(ctx context.Context, targetRef string) (*artifactRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, target_reference, started_at, finished_at, status, summary, executions
		FROM analysis_artifacts
		WHERE target_reference = $1
		ORDER BY started_at DESC
		LIMIT 1
	`, targetRef)
	return scanArtifactRow(row)
}

func (s *sqlArtifactDB) Close() error {
	return s.db.Close()
}

func scanArtifactRow(row *sql.Row) (*artifactRow, error) {
	var r artifactRow
	if err := row.Scan(
		&r.RunID, &r.TargetReference, &r.StartedAt, &r.FinishedAt,
		&r.Status, &r.Summary, &r.Executions,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

// PostgresArtifactStore persists artifacts in the analysis_artifacts
// table, with summary and executions stored as JSONB.
type PostgresArtifactStore struct {
	store  artifactDB
	logger *zap.Logger
}

// NewPostgresArtifactStore creates a store backed by the given database.
func NewPostgresArtifactStore(db *sql.DB, logger *zap.Logger) *PostgresArtifactStore {
	return &PostgresArtifactStore{
		store:  &sqlArtifactDB{db: db},
		logger: logger,
	}
}

// newPostgresArtifactStoreWithDB creates a store with a custom backend (for testing).
func newPostgresArtifactStoreWithDB(store artifactDB, logger *zap.Logger) *PostgresArtifactStore {
	return &PostgresArtifactStore{store: store, logger: logger}
}

func (s *PostgresArtifactStore) Save(ctx context.Context, artifact *Artifact) (string, error) {
	if artifact.RunID == "" {
		return "", fmt.Errorf("artifact has no run id")
	}

	summary, err := json.Marshal(artifact.Summary)
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	executions, err := json.Marshal(artifact.Executions)
	if err != nil {
		return "", fmt.Errorf("marshal executions: %w", err)
	}

	if err := s.store.InsertArtifact(ctx, artifact, summary, executions); err != nil {
		return "", fmt.Errorf("insert artifact: %w", err)
	}

	s.logger.Debug("artifact saved",
		zap.String("artifact_id", artifact.RunID),
		zap.String("target_reference", artifact.TargetReference))
	return artifact.RunID, nil
}

func (s *PostgresArtifactStore) Load(ctx context.Context, artifactID string) (*Artifact, error) {
	row, err := s.store.SelectArtifact(ctx, artifactID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load artifact: %w", err)
	}
	return parseArtifactRow(row)
}

func (s *PostgresArtifactStore) LatestForTarget(ctx context.Context, targetRef string) (*Artifact, error) {
	row, err := s.store.SelectLatestForTarget(ctx, targetRef)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("latest artifact: %w", err)
	}
	return parseArtifactRow(row)
}

func (s *PostgresArtifactStore) Close() error {
	return s.store.Close()
}

func parseArtifactRow(row *artifactRow) (*Artifact, error) {
	artifact := &Artifact{
		RunID:           row.RunID,
		TargetReference: row.TargetReference,
	}
	if row.StartedAt.Valid {
		artifact.StartedAt = row.StartedAt.Time
	}
	if row.FinishedAt.Valid {
		artifact.FinishedAt = row.FinishedAt.Time
	}
	artifact.Status = run.Status(row.Status)

	if row.Summary != "" {
		if err := json.Unmarshal([]byte(row.Summary), &artifact.Summary); err != nil {
			return nil, fmt.Errorf("parse artifact summary: %w", err)
		}
	}
	if row.Executions != "" && row.Executions != "null" {
		if err := json.Unmarshal([]byte(row.Executions), &artifact.Executions); err != nil {
			return nil, fmt.Errorf("parse artifact executions: %w", err)
		}
	}
	return artifact, nil
}
