package normalizers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tessellate-ai/foundry/services/analysis/internal/run"
)

// Performance budgets. Breaches become findings; a run inside budget
// produces zero findings, which is a fully successful outcome.
const (
	errorRateBudget  = 0.01   // fraction of failed requests
	p95BudgetMS      = 500.0  // milliseconds
	memPercentBudget = 80.0   // container memory usage
	cpuPercentBudget = 90.0   // container CPU usage
)

// K6 parses a k6 --summary-export document. The same format backs both
// the smoke and soak profiles, so the tool id is injected.
type K6 struct {
	id     string
	logger *zap.Logger
}

func NewK6(id string, logger *zap.Logger) *K6 {
	return &K6{id: id, logger: logger}
}

func (n *K6) ToolID() string { return n.id }

func (n *K6) Normalize(raw []byte) ([]run.Finding, error) {
	var doc struct {
		Metrics map[string]map[string]float64 `json:"metrics"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("k6 summary: %w", err)
	}
	if len(doc.Metrics) == 0 {
		return nil, fmt.Errorf("k6 summary: no metrics section")
	}

	var findings []run.Finding
	if failed, ok := doc.Metrics["http_req_failed"]; ok {
		if rate := failed["rate"]; rate > errorRateBudget {
			findings = append(findings, run.Finding{
				Severity:       run.SevHigh,
				Title:          fmt.Sprintf("request error rate %.2f%% exceeds %.2f%% budget", rate*100, errorRateBudget*100),
				RuleID:         "load-error-rate",
				Recommendation: "inspect application logs for failing endpoints under load",
			})
		}
	}
	if dur, ok := doc.Metrics["http_req_duration"]; ok {
		if p95 := dur["p(95)"]; p95 > p95BudgetMS {
			findings = append(findings, run.Finding{
				Severity:       run.SevMedium,
				Title:          fmt.Sprintf("p95 latency %.0fms exceeds %.0fms budget", p95, p95BudgetMS),
				RuleID:         "load-p95-latency",
				Recommendation: "profile slow handlers or add caching",
			})
		}
	}
	return findings, nil
}

// LatencyProbe parses oha's JSON report.
type LatencyProbe struct {
	logger *zap.Logger
}

func NewLatencyProbe(logger *zap.Logger) *LatencyProbe {
	return &LatencyProbe{logger: logger}
}

func (n *LatencyProbe) ToolID() string { return "latency_probe" }

func (n *LatencyProbe) Normalize(raw []byte) ([]run.Finding, error) {
	var doc struct {
		Summary struct {
			SuccessRate float64 `json:"successRate"`
			Average     float64 `json:"average"` // seconds
		} `json:"summary"`
		LatencyPercentiles struct {
			P95 float64 `json:"p95"` // seconds
		} `json:"latencyPercentiles"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("oha output: %w", err)
	}

	var findings []run.Finding
	if doc.Summary.SuccessRate < 1-errorRateBudget {
		findings = append(findings, run.Finding{
			Severity:       run.SevHigh,
			Title:          fmt.Sprintf("probe success rate %.2f%% below budget", doc.Summary.SuccessRate*100),
			RuleID:         "probe-success-rate",
			Recommendation: "inspect application logs for failing requests",
		})
	}
	if p95 := doc.LatencyPercentiles.P95 * 1000; p95 > p95BudgetMS {
		findings = append(findings, run.Finding{
			Severity:       run.SevMedium,
			Title:          fmt.Sprintf("p95 latency %.0fms exceeds %.0fms budget", p95, p95BudgetMS),
			RuleID:         "probe-p95-latency",
			Recommendation: "profile slow handlers or add caching",
		})
	}
	return findings, nil
}

// ResourceProfile parses `docker stats --format json` lines for the
// target container.
type ResourceProfile struct {
	logger *zap.Logger
}

func NewResourceProfile(logger *zap.Logger) *ResourceProfile {
	return &ResourceProfile{logger: logger}
}

func (n *ResourceProfile) ToolID() string { return "resource_profile" }

func (n *ResourceProfile) Normalize(raw []byte) ([]run.Finding, error) {
	var findings []run.Finding
	sc := bufio.NewScanner(bytes.NewReader(raw))
	parsed := false
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec struct {
			Name    string `json:"Name"`
			CPUPerc string `json:"CPUPerc"`
			MemPerc string `json:"MemPerc"`
		}
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("docker stats output: %w", err)
		}
		parsed = true
		if cpu := parsePercent(rec.CPUPerc); cpu > cpuPercentBudget {
			findings = append(findings, run.Finding{
				Severity:       run.SevMedium,
				Title:          fmt.Sprintf("container %s at %.1f%% CPU while idle-profiled", rec.Name, cpu),
				RuleID:         "resource-cpu",
				Recommendation: "look for busy loops or runaway background work",
			})
		}
		if mem := parsePercent(rec.MemPerc); mem > memPercentBudget {
			findings = append(findings, run.Finding{
				Severity:       run.SevMedium,
				Title:          fmt.Sprintf("container %s at %.1f%% of its memory limit", rec.Name, mem),
				RuleID:         "resource-memory",
				Recommendation: "raise the limit or reduce the application's working set",
			})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("docker stats output: %w", err)
	}
	if !parsed {
		return nil, fmt.Errorf("docker stats output: no samples")
	}
	return findings, nil
}

// parsePercent turns "42.5%" into 42.5. Unparseable values read as 0.
func parsePercent(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil {
		return 0
	}
	return v
}
