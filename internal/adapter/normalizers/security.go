package normalizers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tessellate-ai/foundry/services/analysis/internal/run"
)

// Bandit parses `bandit -f json` output.
type Bandit struct {
	sev severityMap
}

func NewBandit(logger *zap.Logger) *Bandit {
	return &Bandit{sev: severityMap{
		toolID: "bandit",
		levels: map[string]string{
			"LOW":    run.SevLow,
			"MEDIUM": run.SevMedium,
			"HIGH":   run.SevHigh,
		},
		logger: logger,
	}}
}

func (n *Bandit) ToolID() string { return "bandit" }

func (n *Bandit) Normalize(raw []byte) ([]run.Finding, error) {
	var doc struct {
		Results []struct {
			Filename      string `json:"filename"`
			IssueSeverity string `json:"issue_severity"`
			IssueText     string `json:"issue_text"`
			TestID        string `json:"test_id"`
			TestName      string `json:"test_name"`
			LineNumber    int    `json:"line_number"`
			MoreInfo      string `json:"more_info"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("bandit output: %w", err)
	}

	findings := make([]run.Finding, 0, len(doc.Results))
	for _, r := range doc.Results {
		findings = append(findings, run.Finding{
			Severity:       n.sev.lookup(r.IssueSeverity),
			Title:          r.TestName,
			Description:    r.IssueText,
			FilePath:       r.Filename,
			Line:           r.LineNumber,
			RuleID:         r.TestID,
			Recommendation: r.MoreInfo,
		})
	}
	return findings, nil
}

// PipAudit parses `pip-audit --format json` output. The advisory feed
// carries no severity levels, so every known vulnerability in a pinned
// dependency is reported high.
type PipAudit struct {
	logger *zap.Logger
}

func NewPipAudit(logger *zap.Logger) *PipAudit {
	return &PipAudit{logger: logger}
}

func (n *PipAudit) ToolID() string { return "pip_audit" }

func (n *PipAudit) Normalize(raw []byte) ([]run.Finding, error) {
	var doc struct {
		Dependencies []struct {
			Name    string `json:"name"`
			Version string `json:"version"`
			Vulns   []struct {
				ID          string   `json:"id"`
				Description string   `json:"description"`
				FixVersions []string `json:"fix_versions"`
			} `json:"vulns"`
		} `json:"dependencies"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("pip-audit output: %w", err)
	}

	var findings []run.Finding
	for _, dep := range doc.Dependencies {
		for _, v := range dep.Vulns {
			rec := ""
			if len(v.FixVersions) > 0 {
				rec = fmt.Sprintf("upgrade %s to %s", dep.Name, strings.Join(v.FixVersions, " or "))
			}
			findings = append(findings, run.Finding{
				Severity:       run.SevHigh,
				Title:          fmt.Sprintf("%s %s: %s", dep.Name, dep.Version, v.ID),
				Description:    v.Description,
				RuleID:         v.ID,
				Recommendation: rec,
			})
		}
	}
	return findings, nil
}

// Trufflehog parses trufflehog's JSON-lines stream. Verified secrets
// are critical; unverified detector hits are high.
type Trufflehog struct {
	logger *zap.Logger
}

func NewTrufflehog(logger *zap.Logger) *Trufflehog {
	return &Trufflehog{logger: logger}
}

func (n *Trufflehog) ToolID() string { return "trufflehog" }

func (n *Trufflehog) Normalize(raw []byte) ([]run.Finding, error) {
	var findings []run.Finding
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec struct {
			DetectorName   string `json:"DetectorName"`
			Verified       bool   `json:"Verified"`
			SourceMetadata struct {
				Data struct {
					Filesystem struct {
						File string `json:"file"`
						Line int    `json:"line"`
					} `json:"Filesystem"`
				} `json:"Data"`
			} `json:"SourceMetadata"`
		}
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("trufflehog output: %w", err)
		}
		if rec.DetectorName == "" {
			// Progress/log lines share the stream; skip them.
			continue
		}
		sev := run.SevHigh
		title := fmt.Sprintf("potential %s credential", rec.DetectorName)
		if rec.Verified {
			sev = run.SevCritical
			title = fmt.Sprintf("verified %s credential", rec.DetectorName)
		}
		findings = append(findings, run.Finding{
			Severity:       sev,
			Title:          title,
			Description:    "secret material committed to the generated source tree",
			FilePath:       rec.SourceMetadata.Data.Filesystem.File,
			Line:           rec.SourceMetadata.Data.Filesystem.Line,
			RuleID:         rec.DetectorName,
			Recommendation: "rotate the credential and move it to runtime configuration",
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("trufflehog output: %w", err)
	}
	return findings, nil
}

// Semgrep parses `semgrep scan --json` output.
type Semgrep struct {
	sev severityMap
}

func NewSemgrep(logger *zap.Logger) *Semgrep {
	return &Semgrep{sev: severityMap{
		toolID: "semgrep",
		levels: map[string]string{
			"ERROR":   run.SevHigh,
			"WARNING": run.SevMedium,
			"INFO":    run.SevInfo,
		},
		logger: logger,
	}}
}

func (n *Semgrep) ToolID() string { return "semgrep" }

func (n *Semgrep) Normalize(raw []byte) ([]run.Finding, error) {
	var doc struct {
		Results []struct {
			CheckID string `json:"check_id"`
			Path    string `json:"path"`
			Start   struct {
				Line int `json:"line"`
			} `json:"start"`
			Extra struct {
				Severity string `json:"severity"`
				Message  string `json:"message"`
				Fix      string `json:"fix"`
			} `json:"extra"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("semgrep output: %w", err)
	}

	findings := make([]run.Finding, 0, len(doc.Results))
	for _, r := range doc.Results {
		findings = append(findings, run.Finding{
			Severity:       n.sev.lookup(r.Extra.Severity),
			Title:          shortCheckID(r.CheckID),
			Description:    r.Extra.Message,
			FilePath:       r.Path,
			Line:           r.Start.Line,
			RuleID:         r.CheckID,
			Recommendation: r.Extra.Fix,
		})
	}
	return findings, nil
}

// shortCheckID trims the rule path down to its last segment for titles.
func shortCheckID(id string) string {
	if i := strings.LastIndexByte(id, '.'); i >= 0 && i+1 < len(id) {
		return id[i+1:]
	}
	return id
}

// ZapBaseline parses the ZAP baseline scan's JSON report. Risk codes
// follow ZAP's 0-3 scale.
type ZapBaseline struct {
	sev severityMap
}

func NewZapBaseline(logger *zap.Logger) *ZapBaseline {
	return &ZapBaseline{sev: severityMap{
		toolID: "zap_baseline",
		levels: map[string]string{
			"0": run.SevInfo,
			"1": run.SevLow,
			"2": run.SevMedium,
			"3": run.SevHigh,
		},
		logger: logger,
	}}
}

func (n *ZapBaseline) ToolID() string { return "zap_baseline" }

func (n *ZapBaseline) Normalize(raw []byte) ([]run.Finding, error) {
	var doc struct {
		Site []struct {
			Alerts []struct {
				Alert     string `json:"alert"`
				RiskCode  string `json:"riskcode"`
				Desc      string `json:"desc"`
				Solution  string `json:"solution"`
				PluginID  string `json:"pluginid"`
				Instances []struct {
					URI string `json:"uri"`
				} `json:"instances"`
			} `json:"alerts"`
		} `json:"site"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("zap baseline output: %w", err)
	}

	var findings []run.Finding
	for _, site := range doc.Site {
		for _, a := range site.Alerts {
			desc := stripTags(a.Desc)
			if len(a.Instances) > 0 {
				desc = fmt.Sprintf("%s (first seen at %s)", desc, a.Instances[0].URI)
			}
			findings = append(findings, run.Finding{
				Severity:       n.sev.lookup(a.RiskCode),
				Title:          a.Alert,
				Description:    desc,
				RuleID:         a.PluginID,
				Recommendation: stripTags(a.Solution),
			})
		}
	}
	return findings, nil
}

// stripTags removes the simple <p> markup ZAP embeds in descriptions.
func stripTags(s string) string {
	r := strings.NewReplacer("<p>", "", "</p>", "\n")
	return strings.TrimSpace(r.Replace(s))
}

// HeaderProbe parses shcheck's JSON report of present/missing security
// headers. The severity of a missing header is declared per header.
type HeaderProbe struct {
	headers map[string]string
	logger  *zap.Logger
}

func NewHeaderProbe(logger *zap.Logger) *HeaderProbe {
	return &HeaderProbe{
		headers: map[string]string{
			"Content-Security-Policy":    run.SevHigh,
			"Strict-Transport-Security":  run.SevHigh,
			"X-Content-Type-Options":     run.SevMedium,
			"X-Frame-Options":            run.SevMedium,
			"Referrer-Policy":            run.SevLow,
			"Permissions-Policy":         run.SevLow,
			"Cross-Origin-Opener-Policy": run.SevLow,
		},
		logger: logger,
	}
}

// headerSeverity rates a missing header. Headers shcheck knows about
// but we have no rating for default to medium.
func (n *HeaderProbe) headerSeverity(header string) string {
	if sev, ok := n.headers[header]; ok {
		return sev
	}
	n.logger.Warn("unrated security header reported missing, defaulting to medium",
		zap.String("tool_id", "header_probe"),
		zap.String("header", header),
	)
	return run.SevMedium
}

func (n *HeaderProbe) ToolID() string { return "header_probe" }

func (n *HeaderProbe) Normalize(raw []byte) ([]run.Finding, error) {
	// shcheck keys the report by the probed URL.
	var doc map[string]struct {
		Missing []string `json:"missing"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("shcheck output: %w", err)
	}

	// Key order of a JSON object is lost in the map; sort URLs so the
	// finding sequence is deterministic.
	urls := make([]string, 0, len(doc))
	for url := range doc {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	var findings []run.Finding
	for _, url := range urls {
		for _, header := range doc[url].Missing {
			findings = append(findings, run.Finding{
				Severity:       n.headerSeverity(header),
				Title:          fmt.Sprintf("missing %s header", header),
				Description:    fmt.Sprintf("%s is not set on responses from %s", header, url),
				RuleID:         header,
				Recommendation: fmt.Sprintf("configure the application to send %s", header),
			})
		}
	}
	return findings, nil
}
