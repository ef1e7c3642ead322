package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func writeOverlayFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overlay.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	return path
}

func TestLoadOverlay_Valid(t *testing.T) {
	path := writeOverlayFile(t, `{"tools": [{"id": "pylint", "enabled": false}, {"id": "radon", "timeout_seconds": 120}]}`)
	o, err := LoadOverlay(path)
	if err != nil {
		t.Fatalf("LoadOverlay failed: %v", err)
	}
	if len(o.Tools) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(o.Tools))
	}
}

func TestLoadOverlay_RejectsUnknownField(t *testing.T) {
	path := writeOverlayFile(t, `{"tools": [{"id": "pylint", "retries": 3}]}`)
	if _, err := LoadOverlay(path); err == nil {
		t.Fatalf("expected schema validation error")
	}
}

func TestLoadOverlay_RejectsZeroTimeout(t *testing.T) {
	path := writeOverlayFile(t, `{"tools": [{"id": "pylint", "timeout_seconds": 0}]}`)
	if _, err := LoadOverlay(path); err == nil {
		t.Fatalf("expected schema validation error")
	}
}

func TestApply_DisableAndOverride(t *testing.T) {
	disabled := false
	o := &Overlay{Tools: []OverlayEntry{
		{ID: "a", Enabled: &disabled},
		{ID: "b", TimeoutSeconds: 99},
	}}

	defs, err := o.Apply([]ToolDefinition{validDef("a"), validDef("b"), validDef("c")})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected a removed, got %v", ids(defs))
	}
	if defs[0].ID != "b" || defs[0].TimeoutSeconds != 99 {
		t.Fatalf("expected b with overridden timeout, got %+v", defs[0])
	}
	if defs[1].ID != "c" || defs[1].TimeoutSeconds != 30 {
		t.Fatalf("expected c untouched, got %+v", defs[1])
	}
}

func TestApply_UnknownIDFails(t *testing.T) {
	o := &Overlay{Tools: []OverlayEntry{{ID: "typo"}}}
	if _, err := o.Apply([]ToolDefinition{validDef("a")}); err == nil {
		t.Fatalf("expected unknown id error")
	}
}
