package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// overlaySchema constrains the operator-supplied catalog overlay file.
// Validated before any merge so a bad overlay is a startup error, not a
// half-applied catalog.
const overlaySchema = `{
	"type": "object",
	"properties": {
		"tools": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"enabled": {"type": "boolean"},
					"timeout_seconds": {"type": "integer", "minimum": 1}
				},
				"required": ["id"],
				"additionalProperties": false
			}
		}
	},
	"required": ["tools"],
	"additionalProperties": false
}`

// Overlay is an operator adjustment layered over the builtin catalog:
// tools can be disabled or given a different time budget, nothing else.
type Overlay struct {
	Tools []OverlayEntry `json:"tools"`
}

// OverlayEntry adjusts a single tool. Enabled defaults to true.
type OverlayEntry struct {
	ID             string `json:"id"`
	Enabled        *bool  `json:"enabled,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// LoadOverlay reads and validates an overlay file.
func LoadOverlay(path string) (*Overlay, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadOverlay: %w", err)
	}
	if msg := validateOverlay(raw); msg != "" {
		return nil, fmt.Errorf("LoadOverlay: %s: %s", path, msg)
	}
	var o Overlay
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("LoadOverlay: %w", err)
	}
	return &o, nil
}

func validateOverlay(raw []byte) string {
	var schemaObj any
	if err := json.Unmarshal([]byte(overlaySchema), &schemaObj); err != nil {
		return fmt.Sprintf("schema unmarshal error: %v", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("overlay.json", schemaObj); err != nil {
		return fmt.Sprintf("schema compile error: %v", err)
	}
	sch, err := c.Compile("overlay.json")
	if err != nil {
		return fmt.Sprintf("schema compile error: %v", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Sprintf("overlay is not valid JSON: %v", err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Sprintf("schema validation failed: %v", err)
	}
	return ""
}

// Apply merges the overlay into a definition list, returning the new
// list. Unknown ids are rejected so typos fail at startup. Disabled
// tools are removed entirely; ListApplicable never sees them.
func (o *Overlay) Apply(defs []ToolDefinition) ([]ToolDefinition, error) {
	byID := make(map[string]*OverlayEntry, len(o.Tools))
	known := make(map[string]bool, len(defs))
	for _, d := range defs {
		known[d.ID] = true
	}
	for i := range o.Tools {
		e := &o.Tools[i]
		if !known[e.ID] {
			return nil, fmt.Errorf("overlay: unknown tool id %q", e.ID)
		}
		byID[e.ID] = e
	}

	var out []ToolDefinition
	for _, d := range defs {
		e, ok := byID[d.ID]
		if !ok {
			out = append(out, d)
			continue
		}
		if e.Enabled != nil && !*e.Enabled {
			continue
		}
		if e.TimeoutSeconds > 0 {
			d.TimeoutSeconds = e.TimeoutSeconds
		}
		out = append(out, d)
	}
	return out, nil
}
