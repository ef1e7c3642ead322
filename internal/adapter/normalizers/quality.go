package normalizers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tessellate-ai/foundry/services/analysis/internal/run"
)

// Ruff parses `ruff check --output-format json` output. Ruff codes have
// no native severity; pyflakes-derived F rules point at real defects and
// map to medium, style rules to low.
type Ruff struct {
	logger *zap.Logger
}

func NewRuff(logger *zap.Logger) *Ruff {
	return &Ruff{logger: logger}
}

func (n *Ruff) ToolID() string { return "ruff" }

func (n *Ruff) Normalize(raw []byte) ([]run.Finding, error) {
	var items []struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Filename string `json:"filename"`
		Location struct {
			Row int `json:"row"`
		} `json:"location"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("ruff output: %w", err)
	}

	findings := make([]run.Finding, 0, len(items))
	for _, it := range items {
		sev := run.SevLow
		if strings.HasPrefix(it.Code, "F") || strings.HasPrefix(it.Code, "B") {
			sev = run.SevMedium
		}
		findings = append(findings, run.Finding{
			Severity: sev,
			Title:    fmt.Sprintf("%s: %s", it.Code, it.Message),
			FilePath: it.Filename,
			Line:     it.Location.Row,
			RuleID:   it.Code,
		})
	}
	return findings, nil
}

// Pylint parses `pylint --output-format json` output.
type Pylint struct {
	sev severityMap
}

func NewPylint(logger *zap.Logger) *Pylint {
	return &Pylint{sev: severityMap{
		toolID: "pylint",
		levels: map[string]string{
			"fatal":      run.SevHigh,
			"error":      run.SevHigh,
			"warning":    run.SevMedium,
			"refactor":   run.SevLow,
			"convention": run.SevInfo,
		},
		logger: logger,
	}}
}

func (n *Pylint) ToolID() string { return "pylint" }

func (n *Pylint) Normalize(raw []byte) ([]run.Finding, error) {
	var items []struct {
		Type      string `json:"type"`
		Path      string `json:"path"`
		Line      int    `json:"line"`
		Symbol    string `json:"symbol"`
		Message   string `json:"message"`
		MessageID string `json:"message-id"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("pylint output: %w", err)
	}

	findings := make([]run.Finding, 0, len(items))
	for _, it := range items {
		findings = append(findings, run.Finding{
			Severity:    n.sev.lookup(it.Type),
			Title:       it.Symbol,
			Description: it.Message,
			FilePath:    it.Path,
			Line:        it.Line,
			RuleID:      it.MessageID,
		})
	}
	return findings, nil
}

// mypyLine matches "path.py:12: error: message  [code]".
var mypyLine = regexp.MustCompile(`^(.+?):(\d+):(?:\d+:)? (error|warning|note): (.*?)(?:\s+\[([\w-]+)\])?$`)

// Mypy parses mypy's line diagnostics.
type Mypy struct {
	sev severityMap
}

func NewMypy(logger *zap.Logger) *Mypy {
	return &Mypy{sev: severityMap{
		toolID: "mypy",
		levels: map[string]string{
			"error":   run.SevMedium,
			"warning": run.SevLow,
			"note":    run.SevInfo,
		},
		logger: logger,
	}}
}

func (n *Mypy) ToolID() string { return "mypy" }

func (n *Mypy) Normalize(raw []byte) ([]run.Finding, error) {
	var findings []run.Finding
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		m := mypyLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		line := atoiOrZero(m[2])
		findings = append(findings, run.Finding{
			Severity:    n.sev.lookup(m[3]),
			Title:       fmt.Sprintf("type check %s", m[3]),
			Description: m[4],
			FilePath:    m[1],
			Line:        line,
			RuleID:      m[5],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("mypy output: %w", err)
	}
	return findings, nil
}

// Radon parses `radon cc -j` output and reports blocks ranked C or
// worse. Ranks A and B are healthy and produce no findings.
type Radon struct {
	sev severityMap
}

func NewRadon(logger *zap.Logger) *Radon {
	return &Radon{sev: severityMap{
		toolID: "radon",
		levels: map[string]string{
			"C": run.SevLow,
			"D": run.SevMedium,
			"E": run.SevHigh,
			"F": run.SevHigh,
		},
		logger: logger,
	}}
}

func (n *Radon) ToolID() string { return "radon" }

func (n *Radon) Normalize(raw []byte) ([]run.Finding, error) {
	var doc map[string][]struct {
		Type       string `json:"type"`
		Rank       string `json:"rank"`
		Complexity int    `json:"complexity"`
		Name       string `json:"name"`
		Lineno     int    `json:"lineno"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("radon output: %w", err)
	}

	paths := make([]string, 0, len(doc))
	for p := range doc {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var findings []run.Finding
	for _, path := range paths {
		for _, block := range doc[path] {
			if block.Rank == "A" || block.Rank == "B" {
				continue
			}
			findings = append(findings, run.Finding{
				Severity:       n.sev.lookup(block.Rank),
				Title:          fmt.Sprintf("%s %s has cyclomatic complexity %d (rank %s)", block.Type, block.Name, block.Complexity, block.Rank),
				FilePath:       path,
				Line:           block.Lineno,
				RuleID:         "radon-cc-" + block.Rank,
				Recommendation: "split the block into smaller units",
			})
		}
	}
	return findings, nil
}

// cpdHeader matches "Found a 12 line (140 tokens) duplication in the following files:".
var cpdHeader = regexp.MustCompile(`^Found a (\d+) line \((\d+) tokens\) duplication in the following files:`)

// cpdLocation matches "Starting at line 10 of /src/app/models.py".
var cpdLocation = regexp.MustCompile(`^Starting at line (\d+) of (.+)$`)

// CPD parses PMD CPD's text report. One finding per duplicated block,
// anchored at its first occurrence.
type CPD struct {
	logger *zap.Logger
}

func NewCPD(logger *zap.Logger) *CPD {
	return &CPD{logger: logger}
}

func (n *CPD) ToolID() string { return "cpd" }

func (n *CPD) Normalize(raw []byte) ([]run.Finding, error) {
	var findings []run.Finding
	sc := bufio.NewScanner(bytes.NewReader(raw))
	var pending *run.Finding
	for sc.Scan() {
		line := sc.Text()
		if m := cpdHeader.FindStringSubmatch(line); m != nil {
			if pending != nil {
				findings = append(findings, *pending)
			}
			pending = &run.Finding{
				Severity:       run.SevLow,
				Title:          fmt.Sprintf("%s duplicated lines (%s tokens)", m[1], m[2]),
				RuleID:         "cpd-duplication",
				Recommendation: "extract the repeated block into a shared helper",
			}
			continue
		}
		if pending != nil && pending.FilePath == "" {
			if m := cpdLocation.FindStringSubmatch(line); m != nil {
				pending.Line = atoiOrZero(m[1])
				pending.FilePath = m[2]
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("cpd output: %w", err)
	}
	if pending != nil {
		findings = append(findings, *pending)
	}
	return findings, nil
}

// copyleftLicenses are flagged because generated applications are
// shipped under a permissive license.
var copyleftLicenses = []string{"GPL", "AGPL", "LGPL", "SSPL", "EUPL"}

// PipLicenses parses `pip-licenses --format json` output and flags
// copyleft or unknown dependency licenses.
type PipLicenses struct {
	logger *zap.Logger
}

func NewPipLicenses(logger *zap.Logger) *PipLicenses {
	return &PipLicenses{logger: logger}
}

func (n *PipLicenses) ToolID() string { return "pip_licenses" }

func (n *PipLicenses) Normalize(raw []byte) ([]run.Finding, error) {
	var items []struct {
		Name    string `json:"Name"`
		Version string `json:"Version"`
		License string `json:"License"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("pip-licenses output: %w", err)
	}

	var findings []run.Finding
	for _, it := range items {
		switch {
		case isCopyleft(it.License):
			findings = append(findings, run.Finding{
				Severity:       run.SevMedium,
				Title:          fmt.Sprintf("%s %s is licensed under %s", it.Name, it.Version, it.License),
				RuleID:         "license-copyleft",
				Recommendation: "replace the dependency or review distribution terms",
			})
		case it.License == "UNKNOWN" || it.License == "":
			findings = append(findings, run.Finding{
				Severity: run.SevInfo,
				Title:    fmt.Sprintf("%s %s has no declared license", it.Name, it.Version),
				RuleID:   "license-unknown",
			})
		}
	}
	return findings, nil
}

func isCopyleft(license string) bool {
	up := strings.ToUpper(license)
	for _, l := range copyleftLicenses {
		if strings.Contains(up, l) {
			return true
		}
	}
	return false
}

// interrogateResult matches "RESULT: FAILED (minimum: 80.0%, actual: 61.2%)".
var interrogateResult = regexp.MustCompile(`RESULT: (PASSED|FAILED) \(minimum: ([\d.]+)%, actual: ([\d.]+)%\)`)

// Interrogate parses interrogate's docstring coverage summary. A pass
// produces no findings.
type Interrogate struct {
	logger *zap.Logger
}

func NewInterrogate(logger *zap.Logger) *Interrogate {
	return &Interrogate{logger: logger}
}

func (n *Interrogate) ToolID() string { return "interrogate" }

func (n *Interrogate) Normalize(raw []byte) ([]run.Finding, error) {
	m := interrogateResult.FindStringSubmatch(string(raw))
	if m == nil {
		return nil, fmt.Errorf("interrogate output: no RESULT line")
	}
	if m[1] == "PASSED" {
		return nil, nil
	}
	return []run.Finding{{
		Severity:       run.SevLow,
		Title:          fmt.Sprintf("docstring coverage %s%% below minimum %s%%", m[3], m[2]),
		RuleID:         "docstring-coverage",
		Recommendation: "document public modules, classes, and functions",
	}}, nil
}

// RuffFormat parses `ruff format --check` output: one "Would reformat:"
// line per unformatted file.
type RuffFormat struct {
	logger *zap.Logger
}

func NewRuffFormat(logger *zap.Logger) *RuffFormat {
	return &RuffFormat{logger: logger}
}

func (n *RuffFormat) ToolID() string { return "ruff_format" }

func (n *RuffFormat) Normalize(raw []byte) ([]run.Finding, error) {
	var findings []run.Finding
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		path, ok := strings.CutPrefix(line, "Would reformat: ")
		if !ok {
			continue
		}
		findings = append(findings, run.Finding{
			Severity:       run.SevInfo,
			Title:          "file is not formatted",
			FilePath:       path,
			RuleID:         "format-check",
			Recommendation: "run ruff format",
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ruff format output: %w", err)
	}
	return findings, nil
}

func atoiOrZero(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
