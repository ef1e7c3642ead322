// Package normalizers holds the per-tool output parsers. One normalizer
// per registered tool, selected by tool id; severity mapping for a
// tool's native vocabulary is declared once, next to its parser.
package normalizers

import (
	"go.uber.org/zap"

	"github.com/tessellate-ai/foundry/services/analysis/internal/adapter"
	"github.com/tessellate-ai/foundry/services/analysis/internal/run"
)

// All returns a normalizer for every tool in the builtin catalog.
func All(logger *zap.Logger) []adapter.Normalizer {
	return []adapter.Normalizer{
		NewBandit(logger),
		NewPipAudit(logger),
		NewTrufflehog(logger),
		NewSemgrep(logger),
		NewZapBaseline(logger),
		NewHeaderProbe(logger),
		NewRuff(logger),
		NewPylint(logger),
		NewMypy(logger),
		NewRadon(logger),
		NewCPD(logger),
		NewPipLicenses(logger),
		NewInterrogate(logger),
		NewRuffFormat(logger),
		NewK6("k6_smoke", logger),
		NewLatencyProbe(logger),
		NewResourceProfile(logger),
		NewK6("k6_soak", logger),
	}
}

// severityMap translates a tool's native level vocabulary into the
// shared severity scale. Lookup is total: levels absent from the table
// fall back to medium and are logged, never silently dropped.
type severityMap struct {
	toolID string
	levels map[string]string
	logger *zap.Logger
}

func (m severityMap) lookup(native string) string {
	if sev, ok := m.levels[native]; ok {
		return sev
	}
	m.logger.Warn("unmapped native severity level, defaulting to medium",
		zap.String("tool_id", m.toolID),
		zap.String("native_level", native),
	)
	return run.SevMedium
}
