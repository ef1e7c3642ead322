package normalizers

import (
	"testing"

	"go.uber.org/zap"

	"github.com/tessellate-ai/foundry/services/analysis/internal/run"
)

func TestK6_InBudgetIsZeroFindings(t *testing.T) {
	raw := []byte(`{
		"metrics": {
			"http_req_failed": {"rate": 0.001},
			"http_req_duration": {"p(95)": 120.5}
		}
	}`)

	findings, err := NewK6("k6_smoke", zap.NewNop()).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("run inside budget should yield zero findings, got %d", len(findings))
	}
}

func TestK6_BudgetBreachesBecomeFindings(t *testing.T) {
	raw := []byte(`{
		"metrics": {
			"http_req_failed": {"rate": 0.08},
			"http_req_duration": {"p(95)": 910.0}
		}
	}`)

	findings, err := NewK6("k6_soak", zap.NewNop()).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	if findings[0].Severity != run.SevHigh || findings[0].RuleID != "load-error-rate" {
		t.Fatalf("unexpected error-rate finding: %+v", findings[0])
	}
	if findings[1].Severity != run.SevMedium || findings[1].RuleID != "load-p95-latency" {
		t.Fatalf("unexpected latency finding: %+v", findings[1])
	}
}

func TestK6_EmptyMetricsIsAnError(t *testing.T) {
	if _, err := NewK6("k6_smoke", zap.NewNop()).Normalize([]byte(`{"metrics": {}}`)); err == nil {
		t.Fatalf("expected error for missing metrics")
	}
}

func TestLatencyProbe_BudgetChecks(t *testing.T) {
	raw := []byte(`{
		"summary": {"successRate": 0.95, "average": 0.120},
		"latencyPercentiles": {"p95": 0.740}
	}`)

	findings, err := NewLatencyProbe(zap.NewNop()).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	if findings[0].RuleID != "probe-success-rate" || findings[1].RuleID != "probe-p95-latency" {
		t.Fatalf("unexpected findings: %+v", findings)
	}
}

func TestResourceProfile_BudgetChecks(t *testing.T) {
	raw := []byte(`{"Name": "app-1", "CPUPerc": "97.3%", "MemPerc": "12.0%"}
{"Name": "app-1", "CPUPerc": "4.1%", "MemPerc": "91.5%"}
`)

	findings, err := NewResourceProfile(zap.NewNop()).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	if findings[0].RuleID != "resource-cpu" || findings[1].RuleID != "resource-memory" {
		t.Fatalf("unexpected findings: %+v", findings)
	}
}

func TestResourceProfile_NoSamplesIsAnError(t *testing.T) {
	if _, err := NewResourceProfile(zap.NewNop()).Normalize([]byte("\n")); err == nil {
		t.Fatalf("expected error for empty stats stream")
	}
}

func TestAll_CoversEveryBuiltinTool(t *testing.T) {
	seen := map[string]bool{}
	for _, n := range All(zap.NewNop()) {
		if seen[n.ToolID()] {
			t.Fatalf("duplicate normalizer for %s", n.ToolID())
		}
		seen[n.ToolID()] = true
	}
	if len(seen) != 18 {
		t.Fatalf("expected 18 normalizers, got %d", len(seen))
	}
}
