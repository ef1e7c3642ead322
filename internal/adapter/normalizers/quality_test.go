package normalizers

import (
	"testing"

	"go.uber.org/zap"

	"github.com/tessellate-ai/foundry/services/analysis/internal/run"
)

func TestRuff_FlakeRulesAreMedium(t *testing.T) {
	raw := []byte(`[
		{"code": "F821", "message": "Undefined name 'foo'", "filename": "app/views.py", "location": {"row": 10}},
		{"code": "E501", "message": "Line too long", "filename": "app/views.py", "location": {"row": 3}}
	]`)

	findings, err := NewRuff(zap.NewNop()).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if findings[0].Severity != run.SevMedium {
		t.Fatalf("F rule should be medium, got %s", findings[0].Severity)
	}
	if findings[1].Severity != run.SevLow {
		t.Fatalf("style rule should be low, got %s", findings[1].Severity)
	}
}

func TestPylint_MapsMessageTypes(t *testing.T) {
	raw := []byte(`[
		{"type": "error", "path": "app/models.py", "line": 5, "symbol": "no-member", "message": "Instance has no member", "message-id": "E1101"},
		{"type": "convention", "path": "app/models.py", "line": 1, "symbol": "missing-docstring", "message": "Missing module docstring", "message-id": "C0114"}
	]`)

	findings, err := NewPylint(zap.NewNop()).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if findings[0].Severity != run.SevHigh || findings[0].RuleID != "E1101" {
		t.Fatalf("unexpected error finding: %+v", findings[0])
	}
	if findings[1].Severity != run.SevInfo {
		t.Fatalf("convention should be info, got %s", findings[1].Severity)
	}
}

func TestMypy_ParsesLineDiagnostics(t *testing.T) {
	raw := []byte(`app/service.py:23: error: Argument 1 has incompatible type "str"  [arg-type]
app/service.py:40: note: Consider using a protocol
Found 1 error in 1 file (checked 12 source files)
`)

	findings, err := NewMypy(zap.NewNop()).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	f := findings[0]
	if f.FilePath != "app/service.py" || f.Line != 23 || f.Severity != run.SevMedium || f.RuleID != "arg-type" {
		t.Fatalf("unexpected finding: %+v", f)
	}
	if findings[1].Severity != run.SevInfo {
		t.Fatalf("note should be info, got %s", findings[1].Severity)
	}
}

func TestRadon_HealthyRanksProduceNoFindings(t *testing.T) {
	raw := []byte(`{
		"app/views.py": [
			{"type": "function", "rank": "A", "complexity": 2, "name": "index", "lineno": 1},
			{"type": "method", "rank": "D", "complexity": 24, "name": "process", "lineno": 88}
		]
	}`)

	findings, err := NewRadon(zap.NewNop()).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected only the D block, got %d findings", len(findings))
	}
	if findings[0].Severity != run.SevMedium || findings[0].Line != 88 {
		t.Fatalf("unexpected finding: %+v", findings[0])
	}
}

func TestCPD_OneFindingPerDuplication(t *testing.T) {
	raw := []byte(`Found a 12 line (140 tokens) duplication in the following files:
Starting at line 10 of /src/app/models.py
Starting at line 55 of /src/app/admin.py

Found a 8 line (92 tokens) duplication in the following files:
Starting at line 3 of /src/app/utils.py
Starting at line 20 of /src/app/helpers.py
`)

	findings, err := NewCPD(zap.NewNop()).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	if findings[0].FilePath != "/src/app/models.py" || findings[0].Line != 10 {
		t.Fatalf("first duplication should anchor at first occurrence: %+v", findings[0])
	}
}

func TestPipLicenses_FlagsCopyleftAndUnknown(t *testing.T) {
	raw := []byte(`[
		{"Name": "mysqlclient", "Version": "2.2.0", "License": "GNU General Public License v2 (GPLv2)"},
		{"Name": "somelib", "Version": "0.1", "License": "UNKNOWN"},
		{"Name": "requests", "Version": "2.31.0", "License": "Apache Software License"}
	]`)

	findings, err := NewPipLicenses(zap.NewNop()).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	if findings[0].Severity != run.SevMedium || findings[0].RuleID != "license-copyleft" {
		t.Fatalf("unexpected copyleft finding: %+v", findings[0])
	}
	if findings[1].Severity != run.SevInfo || findings[1].RuleID != "license-unknown" {
		t.Fatalf("unexpected unknown-license finding: %+v", findings[1])
	}
}

func TestInterrogate_PassProducesNoFindings(t *testing.T) {
	pass := []byte("RESULT: PASSED (minimum: 80.0%, actual: 93.1%)\n")
	findings, err := NewInterrogate(zap.NewNop()).Normalize(pass)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("pass should produce no findings, got %d", len(findings))
	}

	fail := []byte("RESULT: FAILED (minimum: 80.0%, actual: 61.2%)\n")
	findings, err = NewInterrogate(zap.NewNop()).Normalize(fail)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(findings) != 1 || findings[0].Severity != run.SevLow {
		t.Fatalf("unexpected fail findings: %+v", findings)
	}
}

func TestRuffFormat_OneFindingPerFile(t *testing.T) {
	raw := []byte(`Would reformat: app/views.py
Would reformat: app/models.py
2 files would be reformatted, 14 files already formatted
`)

	findings, err := NewRuffFormat(zap.NewNop()).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	if findings[0].FilePath != "app/views.py" {
		t.Fatalf("unexpected file path: %q", findings[0].FilePath)
	}
}
