// Package server exposes the analysis engine over HTTP: run triggers,
// status queries, aborts, and artifact retrieval.
package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tessellate-ai/foundry/services/analysis/internal/auth"
	"github.com/tessellate-ai/foundry/services/analysis/internal/engine"
	"github.com/tessellate-ai/foundry/services/analysis/internal/registry"
	"github.com/tessellate-ai/foundry/services/analysis/internal/run"
	"github.com/tessellate-ai/foundry/services/analysis/internal/storage"
)

// Server wires the scheduler, registry, tracker, and artifact store
// behind the HTTP API.
type Server struct {
	scheduler *engine.Scheduler
	registry  *registry.Registry
	tracker   *engine.Tracker
	store     storage.ArtifactStore
	auth      auth.Authenticator
	logger    *zap.Logger
}

// NewServer creates a Server with the given dependencies.
func NewServer(
	scheduler *engine.Scheduler,
	reg *registry.Registry,
	tracker *engine.Tracker,
	store storage.ArtifactStore,
	authenticator auth.Authenticator,
	logger *zap.Logger,
) *Server {
	return &Server{
		scheduler: scheduler,
		registry:  reg,
		tracker:   tracker,
		store:     store,
		auth:      authenticator,
		logger:    logger,
	}
}

// Handler returns the routed HTTP handler. Every /api route goes
// through authentication; /health does not.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/runs", s.withAuth(s.handleTriggerRun))
	mux.HandleFunc("GET /api/runs/{id}", s.withAuth(s.handleGetRun))
	mux.HandleFunc("POST /api/runs/{id}/abort", s.withAuth(s.handleAbortRun))
	mux.HandleFunc("GET /api/artifacts/{id}", s.withAuth(s.handleGetArtifact))
	mux.HandleFunc("GET /api/artifacts/{id}/findings.csv", s.withAuth(s.handleFindingsCSV))
	mux.HandleFunc("GET /api/targets/{ref}/latest", s.withAuth(s.handleLatestForTarget))
	return mux
}

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiKey, err := auth.ParseBearer(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing or malformed API key")
			return
		}
		client, err := s.auth.Authenticate(r.Context(), apiKey)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication failed")
			return
		}
		s.logger.Debug("request authenticated",
			zap.String("client_id", client.ClientID),
			zap.String("path", r.URL.Path),
		)
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// triggerRequest is the POST /api/runs body. ToolIDs empty means the
// full registry.
type triggerRequest struct {
	Target  run.Target `json:"target"`
	ToolIDs []string   `json:"tool_ids,omitempty"`
}

type triggerResponse struct {
	RunID  string     `json:"run_id"`
	Status run.Status `json:"status"`
}

func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Target.Reference == "" {
		writeError(w, http.StatusBadRequest, "target.reference is required")
		return
	}
	if !run.ValidKind(req.Target.Kind) {
		writeError(w, http.StatusBadRequest, "target.kind must be source_only or instance_available")
		return
	}

	defs, err := s.registry.Subset(req.ToolIDs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID := uuid.New().String()

	// Run lifetime is detached from the request; the trigger returns as
	// soon as the run is tracked. Abort goes through the tracker's
	// cancel func.
	runCtx, cancel := context.WithCancel(context.Background())
	s.tracker.Begin(runID, req.Target.Reference, cancel)

	go s.executeRun(runCtx, cancel, runID, req.Target, defs)

	s.logger.Info("run triggered",
		zap.String("run_id", runID),
		zap.String("target_reference", req.Target.Reference),
		zap.String("target_kind", string(req.Target.Kind)),
		zap.Int("tools", len(defs)),
	)
	writeJSON(w, http.StatusAccepted, triggerResponse{RunID: runID, Status: run.StatusInProgress})
}

func (s *Server) executeRun(ctx context.Context, cancel context.CancelFunc, runID string, target run.Target, defs []registry.ToolDefinition) {
	defer cancel()
	defer s.tracker.Finish(runID)

	r := s.scheduler.Run(ctx, runID, target, defs)
	summary := engine.Summarize(r)

	// Persistence must survive an aborted run context.
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer saveCancel()
	if _, err := s.store.Save(saveCtx, storage.NewArtifact(r, summary)); err != nil {
		s.logger.Error("artifact save failed",
			zap.String("run_id", runID),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("run finished",
		zap.String("run_id", runID),
		zap.String("status", string(r.Status)),
		zap.Int("total_findings", summary.TotalFindings),
		zap.Int("tools_failed", summary.ToolsFailed),
	)
}

// runStatusResponse is the GET /api/runs/{id} body. FinishedAt and
// Summary are present only once the run is terminal.
type runStatusResponse struct {
	RunID           string          `json:"run_id"`
	TargetReference string          `json:"target_reference"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      *time.Time      `json:"finished_at,omitempty"`
	Status          run.Status      `json:"status"`
	Summary         *run.RunSummary `json:"summary,omitempty"`
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")

	if state, ok := s.tracker.Get(runID); ok {
		writeJSON(w, http.StatusOK, runStatusResponse{
			RunID:           state.RunID,
			TargetReference: state.TargetReference,
			StartedAt:       state.StartedAt,
			Status:          state.Status,
		})
		return
	}

	// Not in flight: the artifact store owns terminal runs.
	artifact, err := s.store.Load(r.Context(), runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("artifact load failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "artifact lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, runStatusResponse{
		RunID:           artifact.RunID,
		TargetReference: artifact.TargetReference,
		StartedAt:       artifact.StartedAt,
		FinishedAt:      &artifact.FinishedAt,
		Status:          artifact.Status,
		Summary:         &artifact.Summary,
	})
}

func (s *Server) handleAbortRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if !s.tracker.Abort(runID) {
		writeError(w, http.StatusNotFound, "no run in progress with that id")
		return
	}
	s.logger.Info("run abort requested", zap.String("run_id", runID))
	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
		"status": string(run.StatusAborted),
	})
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	artifact, ok := s.loadArtifact(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

func (s *Server) handleLatestForTarget(w http.ResponseWriter, r *http.Request) {
	targetRef := r.PathValue("ref")
	artifact, err := s.store.LatestForTarget(r.Context(), targetRef)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no artifacts for target")
			return
		}
		s.logger.Error("latest artifact lookup failed",
			zap.String("target_reference", targetRef),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "artifact lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

// csvHeader is the findings export column order.
var csvHeader = []string{"tool", "category", "severity", "title", "file", "line", "rule_id"}

func (s *Server) handleFindingsCSV(w http.ResponseWriter, r *http.Request) {
	artifact, ok := s.loadArtifact(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	cw.Write(csvHeader)
	for _, exec := range artifact.Executions {
		for _, f := range exec.Findings {
			line := ""
			if f.Line > 0 {
				line = strconv.Itoa(f.Line)
			}
			cw.Write([]string{f.ToolID, f.Category, f.Severity, f.Title, f.FilePath, line, f.RuleID})
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.logger.Warn("findings csv write failed",
			zap.String("artifact_id", artifact.RunID),
			zap.Error(err),
		)
	}
}

func (s *Server) loadArtifact(w http.ResponseWriter, r *http.Request, artifactID string) (*storage.Artifact, bool) {
	artifact, err := s.store.Load(r.Context(), artifactID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "artifact not found")
			return nil, false
		}
		s.logger.Error("artifact load failed", zap.String("artifact_id", artifactID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "artifact lookup failed")
		return nil, false
	}
	return artifact, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
