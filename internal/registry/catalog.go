package registry

// BuiltinCatalog returns the default tool set shipped with the engine:
// 6 security, 8 quality, 4 performance. Registration order here is the
// canonical ordering for executions and exported findings.
//
// Command templates reference whitelisted target descriptor fields only;
// see adapter.BuildCommand for the expansion rules.
func BuiltinCatalog() []ToolDefinition {
	return []ToolDefinition{
		// Security — static
		{
			ID:              "bandit",
			DisplayName:     "Bandit",
			Category:        CategorySecurity,
			Applicability:   AppliesSource,
			TimeoutSeconds:  120,
			CommandTemplate: []string{"bandit", "-r", "-f", "json", "-q", "{source_dir}"},
			OutputFormat:    "json",
			OKExitCodes:     []int{0, 1},
		},
		{
			ID:              "pip_audit",
			DisplayName:     "pip-audit",
			Category:        CategorySecurity,
			Applicability:   AppliesSource,
			TimeoutSeconds:  180,
			CommandTemplate: []string{"pip-audit", "--format", "json", "-r", "{source_dir}/requirements.txt"},
			OutputFormat:    "json",
			OKExitCodes:     []int{0, 1},
		},
		{
			ID:              "trufflehog",
			DisplayName:     "TruffleHog",
			Category:        CategorySecurity,
			Applicability:   AppliesSource,
			TimeoutSeconds:  120,
			CommandTemplate: []string{"trufflehog", "filesystem", "--json", "--no-update", "{source_dir}"},
			OutputFormat:    "jsonlines",
		},
		{
			ID:              "semgrep",
			DisplayName:     "Semgrep",
			Category:        CategorySecurity,
			Applicability:   AppliesSource,
			TimeoutSeconds:  300,
			CommandTemplate: []string{"semgrep", "scan", "--json", "--quiet", "--config", "auto", "{source_dir}"},
			OutputFormat:    "json",
			OKExitCodes:     []int{0, 1},
		},
		// Security — dynamic
		{
			ID:              "zap_baseline",
			DisplayName:     "OWASP ZAP Baseline",
			Category:        CategorySecurity,
			Applicability:   AppliesInstance,
			TimeoutSeconds:  600,
			CommandTemplate: []string{"zap-baseline.py", "-t", "{base_url}", "-J", "-", "-s"},
			OutputFormat:    "json",
			OKExitCodes:     []int{0, 1, 2},
		},
		{
			ID:              "header_probe",
			DisplayName:     "HTTP Security Headers",
			Category:        CategorySecurity,
			Applicability:   AppliesInstance,
			TimeoutSeconds:  60,
			CommandTemplate: []string{"shcheck", "-j", "{base_url}"},
			OutputFormat:    "json",
		},

		// Quality
		{
			ID:              "ruff",
			DisplayName:     "Ruff",
			Category:        CategoryQuality,
			Applicability:   AppliesSource,
			TimeoutSeconds:  60,
			CommandTemplate: []string{"ruff", "check", "--output-format", "json", "--exit-zero", "{source_dir}"},
			OutputFormat:    "json",
		},
		{
			ID:              "pylint",
			DisplayName:     "Pylint",
			Category:        CategoryQuality,
			Applicability:   AppliesSource,
			TimeoutSeconds:  180,
			CommandTemplate: []string{"pylint", "--output-format", "json", "--recursive", "y", "{source_dir}"},
			OutputFormat:    "json",
			OKExitCodes:     []int{0, 4, 8, 16, 20, 28},
		},
		{
			ID:              "mypy",
			DisplayName:     "Mypy",
			Category:        CategoryQuality,
			Applicability:   AppliesSource,
			TimeoutSeconds:  180,
			CommandTemplate: []string{"mypy", "--no-color-output", "--no-error-summary", "{source_dir}"},
			OutputFormat:    "lines",
			OKExitCodes:     []int{0, 1},
		},
		{
			ID:              "radon",
			DisplayName:     "Radon Complexity",
			Category:        CategoryQuality,
			Applicability:   AppliesSource,
			TimeoutSeconds:  60,
			CommandTemplate: []string{"radon", "cc", "-j", "{source_dir}"},
			OutputFormat:    "json",
		},
		{
			ID:              "cpd",
			DisplayName:     "Copy/Paste Detector",
			Category:        CategoryQuality,
			Applicability:   AppliesSource,
			TimeoutSeconds:  120,
			CommandTemplate: []string{"pmd", "cpd", "--minimum-tokens", "100", "--dir", "{source_dir}"},
			OutputFormat:    "lines",
			OKExitCodes:     []int{0, 4},
		},
		{
			ID:              "pip_licenses",
			DisplayName:     "License Audit",
			Category:        CategoryQuality,
			Applicability:   AppliesSource,
			TimeoutSeconds:  60,
			CommandTemplate: []string{"pip-licenses", "--format", "json", "--with-urls"},
			OutputFormat:    "json",
		},
		{
			ID:              "interrogate",
			DisplayName:     "Docstring Coverage",
			Category:        CategoryQuality,
			Applicability:   AppliesSource,
			TimeoutSeconds:  60,
			CommandTemplate: []string{"interrogate", "-q", "{source_dir}"},
			OutputFormat:    "lines",
			OKExitCodes:     []int{0, 1},
		},
		{
			ID:              "ruff_format",
			DisplayName:     "Ruff Formatting",
			Category:        CategoryQuality,
			Applicability:   AppliesSource,
			TimeoutSeconds:  60,
			CommandTemplate: []string{"ruff", "format", "--check", "{source_dir}"},
			OutputFormat:    "lines",
			OKExitCodes:     []int{0, 1},
		},

		// Performance — all need a live instance
		{
			ID:              "k6_smoke",
			DisplayName:     "k6 Smoke Load",
			Category:        CategoryPerformance,
			Applicability:   AppliesInstance,
			TimeoutSeconds:  300,
			CommandTemplate: []string{"k6", "run", "--quiet", "--summary-export", "/dev/stdout", "-e", "BASE_URL={base_url}", "/opt/foundry/loadtests/smoke.js"},
			OutputFormat:    "json",
			OKExitCodes:     []int{0, 99},
		},
		{
			ID:              "latency_probe",
			DisplayName:     "Latency Probe",
			Category:        CategoryPerformance,
			Applicability:   AppliesInstance,
			TimeoutSeconds:  120,
			CommandTemplate: []string{"oha", "--json", "--no-tui", "-z", "30s", "{base_url}"},
			OutputFormat:    "json",
		},
		{
			ID:              "resource_profile",
			DisplayName:     "Container Resource Profile",
			Category:        CategoryPerformance,
			Applicability:   AppliesBoth,
			TimeoutSeconds:  60,
			CommandTemplate: []string{"docker", "stats", "--no-stream", "--format", "json", "{container_id}"},
			OutputFormat:    "jsonlines",
		},
		{
			ID:              "k6_soak",
			DisplayName:     "k6 Soak",
			Category:        CategoryPerformance,
			Applicability:   AppliesInstance,
			TimeoutSeconds:  900,
			CommandTemplate: []string{"k6", "run", "--quiet", "--summary-export", "/dev/stdout", "-e", "BASE_URL={base_url}", "/opt/foundry/loadtests/soak.js"},
			OutputFormat:    "json",
			OKExitCodes:     []int{0, 99},
		},
	}
}
