package storage

import (
	"time"

	"go.uber.org/zap"
)

// EventWriter is the interface for the tool execution audit stream.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *ExecutionEvent)
	Close()
}

// ExecutionEvent is one completed tool execution, emitted for audit and
// offline analytics. This is a stream of facts, not the artifact of
// record; the artifact store owns that.
type ExecutionEvent struct {
	RunID           string
	TargetReference string
	Timestamp       time.Time
	ToolID          string
	Category        string
	Outcome         string
	ExitCode        int32
	HasExitCode     bool
	DurationMS      int64
	FindingCount    int32
	ErrorMessage    string
}

// LogWriter is a fallback EventWriter for local development.
type LogWriter struct {
	logger *zap.Logger
}

// NewLogWriter creates a LogWriter that outputs events to the given logger.
func NewLogWriter(logger *zap.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

func (w *LogWriter) Write(event *ExecutionEvent) {
	w.logger.Info("tool_execution_event",
		zap.String("run_id", event.RunID),
		zap.String("target", event.TargetReference),
		zap.String("tool_id", event.ToolID),
		zap.String("category", event.Category),
		zap.String("outcome", event.Outcome),
		zap.Int64("duration_ms", event.DurationMS),
		zap.Int32("finding_count", event.FindingCount),
		zap.String("error", event.ErrorMessage),
	)
}

func (w *LogWriter) Close() {}
