// Package adapter executes registered analysis tools as isolated child
// processes and normalizes their output into the shared findings model.
package adapter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tessellate-ai/foundry/services/analysis/internal/registry"
	"github.com/tessellate-ai/foundry/services/analysis/internal/run"
)

// CommandAdapter runs any registered tool via its command template and
// routes the output through the tool's normalizer.
type CommandAdapter struct {
	normalizers map[string]Normalizer
	logger      *zap.Logger
}

// NewCommandAdapter builds an adapter over the given normalizers.
func NewCommandAdapter(normalizers []Normalizer, logger *zap.Logger) *CommandAdapter {
	byID := make(map[string]Normalizer, len(normalizers))
	for _, n := range normalizers {
		byID[n.ToolID()] = n
	}
	return &CommandAdapter{normalizers: byID, logger: logger}
}

// Execute runs one tool against one target under ctx, which carries the
// per-tool deadline. The returned execution is always terminal: success,
// failed, or timed_out. Skip decisions happen before dispatch; by the
// time Execute is called the tool is applicable.
func (a *CommandAdapter) Execute(ctx context.Context, target run.Target, def registry.ToolDefinition) run.ToolExecution {
	start := time.Now()

	argv, err := BuildCommand(def, target)
	if err != nil {
		return run.ToolExecution{
			ToolID:       def.ID,
			Outcome:      run.OutcomeFailed,
			DurationMS:   time.Since(start).Milliseconds(),
			ErrorMessage: fmt.Sprintf("build command: %v", err),
		}
	}

	res, err := runProcess(ctx, argv)
	if err != nil {
		return run.ToolExecution{
			ToolID:       def.ID,
			Outcome:      run.OutcomeFailed,
			DurationMS:   time.Since(start).Milliseconds(),
			ErrorMessage: fmt.Sprintf("launch %s: %v", argv[0], err),
		}
	}

	exec := run.ToolExecution{
		ToolID:     def.ID,
		ExitCode:   &res.ExitCode,
		DurationMS: time.Since(start).Milliseconds(),
		RawOutput:  string(res.Stdout),
	}

	if res.TimedOut {
		exec.Outcome = run.OutcomeTimedOut
		exec.ExitCode = nil
		exec.ErrorMessage = fmt.Sprintf("timed out after %s", def.Timeout())
		return exec
	}

	if !def.ExitCodeOK(res.ExitCode) {
		exec.Outcome = run.OutcomeFailed
		exec.ErrorMessage = firstLine(res.Stderr)
		if exec.ErrorMessage == "" {
			exec.ErrorMessage = fmt.Sprintf("exit code %d", res.ExitCode)
		}
		return exec
	}

	exec.Outcome = run.OutcomeSuccess
	exec.Findings = a.normalize(def, target, res.Stdout)
	return exec
}

// normalize runs the tool's normalizer over raw output. Malformed
// output on a reporting exit is a partial-trust boundary: log it, keep
// the raw output, return zero findings.
func (a *CommandAdapter) normalize(def registry.ToolDefinition, target run.Target, raw []byte) []run.Finding {
	n, ok := a.normalizers[def.ID]
	if !ok {
		a.logger.Warn("no normalizer registered for tool, keeping raw output only",
			zap.String("tool_id", def.ID),
		)
		return nil
	}

	findings, err := n.Normalize(raw)
	if err != nil {
		a.logger.Warn("tool output unparseable, recording success with zero findings",
			zap.String("tool_id", def.ID),
			zap.String("target", target.Reference),
			zap.Error(err),
		)
		return nil
	}

	// Stamp ownership fields; normalizers only know the payload.
	for i := range findings {
		findings[i].ToolID = def.ID
		findings[i].Category = string(def.Category)
	}
	return findings
}

func firstLine(b []byte) string {
	for i, c := range b {
		if c == '\n' {
			return string(b[:i])
		}
	}
	return string(b)
}
