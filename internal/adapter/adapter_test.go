package adapter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tessellate-ai/foundry/services/analysis/internal/registry"
	"github.com/tessellate-ai/foundry/services/analysis/internal/run"
)

// stubNormalizer returns fixed findings or a fixed error.
type stubNormalizer struct {
	id       string
	findings []run.Finding
	err      error
}

func (s *stubNormalizer) ToolID() string { return s.id }
func (s *stubNormalizer) Normalize(raw []byte) ([]run.Finding, error) {
	return s.findings, s.err
}

func shellDef(id, script string) registry.ToolDefinition {
	return registry.ToolDefinition{
		ID:              id,
		Category:        registry.CategoryQuality,
		Applicability:   registry.AppliesSource,
		TimeoutSeconds:  5,
		CommandTemplate: []string{"/bin/sh", "-c", script},
	}
}

func TestExecute_SuccessStampsFindings(t *testing.T) {
	logger := zap.NewNop()
	a := NewCommandAdapter([]Normalizer{
		&stubNormalizer{id: "echo_tool", findings: []run.Finding{{Severity: run.SevLow, Title: "x"}}},
	}, logger)

	exec := a.Execute(context.Background(), run.Target{Reference: "t"}, shellDef("echo_tool", "echo hello"))

	if exec.Outcome != run.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", exec.Outcome, exec.ErrorMessage)
	}
	if exec.ExitCode == nil || *exec.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %v", exec.ExitCode)
	}
	if len(exec.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(exec.Findings))
	}
	if exec.Findings[0].ToolID != "echo_tool" || exec.Findings[0].Category != "quality" {
		t.Fatalf("ownership fields not stamped: %+v", exec.Findings[0])
	}
	if exec.RawOutput != "hello\n" {
		t.Fatalf("raw output not preserved: %q", exec.RawOutput)
	}
}

func TestExecute_NonZeroExitIsFailed(t *testing.T) {
	a := NewCommandAdapter(nil, zap.NewNop())
	exec := a.Execute(context.Background(), run.Target{}, shellDef("fail_tool", "echo boom >&2; exit 2"))

	if exec.Outcome != run.OutcomeFailed {
		t.Fatalf("expected failed, got %s", exec.Outcome)
	}
	if exec.ExitCode == nil || *exec.ExitCode != 2 {
		t.Fatalf("expected exit code 2, got %v", exec.ExitCode)
	}
	if exec.ErrorMessage != "boom" {
		t.Fatalf("expected stderr first line, got %q", exec.ErrorMessage)
	}
}

func TestExecute_OKExitCodeStillNormalizes(t *testing.T) {
	def := shellDef("linter", "echo output; exit 1")
	def.OKExitCodes = []int{0, 1}
	a := NewCommandAdapter([]Normalizer{
		&stubNormalizer{id: "linter", findings: []run.Finding{{Severity: run.SevMedium, Title: "issue"}}},
	}, zap.NewNop())

	exec := a.Execute(context.Background(), run.Target{}, def)
	if exec.Outcome != run.OutcomeSuccess {
		t.Fatalf("exit 1 should be a reporting exit, got %s", exec.Outcome)
	}
	if len(exec.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(exec.Findings))
	}
}

func TestExecute_TimeoutKillsProcess(t *testing.T) {
	a := NewCommandAdapter(nil, zap.NewNop())
	def := shellDef("slow_tool", "sleep 30")
	def.TimeoutSeconds = 1

	ctx, cancel := context.WithTimeout(context.Background(), def.Timeout())
	defer cancel()

	start := time.Now()
	exec := a.Execute(ctx, run.Target{}, def)
	elapsed := time.Since(start)

	if exec.Outcome != run.OutcomeTimedOut {
		t.Fatalf("expected timed_out, got %s", exec.Outcome)
	}
	if exec.ExitCode != nil {
		t.Fatalf("timed out execution should have nil exit code, got %d", *exec.ExitCode)
	}
	if elapsed > 10*time.Second {
		t.Fatalf("process not killed promptly, took %v", elapsed)
	}
}

func TestExecute_LaunchFailureIsFailed(t *testing.T) {
	a := NewCommandAdapter(nil, zap.NewNop())
	def := registry.ToolDefinition{
		ID:              "missing",
		Category:        registry.CategoryQuality,
		TimeoutSeconds:  5,
		CommandTemplate: []string{"/nonexistent/binary"},
	}

	exec := a.Execute(context.Background(), run.Target{}, def)
	if exec.Outcome != run.OutcomeFailed {
		t.Fatalf("expected failed, got %s", exec.Outcome)
	}
	if exec.ExitCode != nil {
		t.Fatalf("launch failure should have nil exit code")
	}
	if exec.ErrorMessage == "" {
		t.Fatalf("expected an error message")
	}
}

func TestExecute_MalformedOutputIsSuccessWithZeroFindings(t *testing.T) {
	a := NewCommandAdapter([]Normalizer{
		&stubNormalizer{id: "parser", err: fmt.Errorf("not json")},
	}, zap.NewNop())

	exec := a.Execute(context.Background(), run.Target{}, shellDef("parser", "echo 'not json'"))
	if exec.Outcome != run.OutcomeSuccess {
		t.Fatalf("malformed output on a clean exit should still be success, got %s", exec.Outcome)
	}
	if len(exec.Findings) != 0 {
		t.Fatalf("expected zero findings, got %d", len(exec.Findings))
	}
	if exec.RawOutput == "" {
		t.Fatalf("raw output should be kept for diagnosis")
	}
}

func TestRunProcess_LargeOutputNotTruncated(t *testing.T) {
	// More than a pipe buffer's worth of stdout from a fast-exiting
	// child; every byte must survive the wait.
	const want = 4 << 20
	res, err := runProcess(context.Background(), []string{"head", "-c", fmt.Sprintf("%d", want), "/dev/zero"})
	if err != nil {
		t.Fatalf("runProcess: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d", res.ExitCode)
	}
	if len(res.Stdout) != want {
		t.Fatalf("stdout truncated: got %d bytes, want %d", len(res.Stdout), want)
	}
}
