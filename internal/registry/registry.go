// Package registry holds the static catalog of analysis tool definitions.
package registry

import (
	"fmt"

	"github.com/tessellate-ai/foundry/services/analysis/internal/run"
)

// Registry is the process-wide tool catalog. Read-only after New;
// definition order is registration order and is the stable tie-break
// everywhere executions or findings are sorted.
type Registry struct {
	defs []ToolDefinition
	byID map[string]int
}

// New validates the definitions and builds a registry.
// Duplicate ids, non-positive timeouts, and unknown category or
// applicability values are construction-time errors, never per-run ones.
func New(defs []ToolDefinition) (*Registry, error) {
	r := &Registry{
		defs: make([]ToolDefinition, 0, len(defs)),
		byID: make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("registry: tool with empty id")
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate tool id %q", d.ID)
		}
		if d.TimeoutSeconds <= 0 {
			return nil, fmt.Errorf("registry: tool %q has non-positive timeout %d", d.ID, d.TimeoutSeconds)
		}
		switch d.Category {
		case CategorySecurity, CategoryQuality, CategoryPerformance:
		default:
			return nil, fmt.Errorf("registry: tool %q has unknown category %q", d.ID, d.Category)
		}
		switch d.Applicability {
		case AppliesSource, AppliesInstance, AppliesBoth:
		default:
			return nil, fmt.Errorf("registry: tool %q has unknown applicability %q", d.ID, d.Applicability)
		}
		if len(d.CommandTemplate) == 0 {
			return nil, fmt.Errorf("registry: tool %q has empty command template", d.ID)
		}
		r.byID[d.ID] = len(r.defs)
		r.defs = append(r.defs, d)
	}
	return r, nil
}

// All returns every definition in registration order.
func (r *Registry) All() []ToolDefinition {
	out := make([]ToolDefinition, len(r.defs))
	copy(out, r.defs)
	return out
}

// ListApplicable returns the definitions whose applicability predicate
// accepts the given target kind, in registration order.
func (r *Registry) ListApplicable(kind run.TargetKind) []ToolDefinition {
	var out []ToolDefinition
	for _, d := range r.defs {
		if d.AppliesTo(kind) {
			out = append(out, d)
		}
	}
	return out
}

// Get returns the definition for id, or false if not registered.
func (r *Registry) Get(id string) (ToolDefinition, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return ToolDefinition{}, false
	}
	return r.defs[idx], true
}

// Subset returns the definitions for the given ids in registration
// order, erroring on any unknown id. An empty ids slice means all.
func (r *Registry) Subset(ids []string) ([]ToolDefinition, error) {
	if len(ids) == 0 {
		return r.All(), nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.byID[id]; !ok {
			return nil, fmt.Errorf("registry: unknown tool id %q", id)
		}
		want[id] = true
	}
	var out []ToolDefinition
	for _, d := range r.defs {
		if want[d.ID] {
			out = append(out, d)
		}
	}
	return out, nil
}
