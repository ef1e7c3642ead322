package adapter

import (
	"github.com/tessellate-ai/foundry/services/analysis/internal/run"
)

// Normalizer turns one tool's raw output into Finding records. Each
// registered tool has exactly one normalizer, selected by tool id; no
// format sniffing.
//
// A returned error means the output could not be interpreted at all.
// The adapter treats that as success with zero findings and keeps the
// raw output for audit; it never fails the execution over content.
type Normalizer interface {
	// ToolID returns the id of the tool this normalizer understands.
	ToolID() string

	// Normalize parses raw stdout into findings, preserving the tool's
	// native emission order.
	Normalize(raw []byte) ([]run.Finding, error)
}
