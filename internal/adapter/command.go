package adapter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tessellate-ai/foundry/services/analysis/internal/registry"
	"github.com/tessellate-ai/foundry/services/analysis/internal/run"
)

// Template placeholders are restricted to these target descriptor
// fields. Anything else in a command template is a launch error, never
// an eval of arbitrary input.
func templateParams(target run.Target) map[string]string {
	params := make(map[string]string, 5)
	if target.SourceDir != "" {
		params["source_dir"] = target.SourceDir
	}
	if target.BaseURL != "" {
		params["base_url"] = target.BaseURL
	}
	if target.Host != "" {
		params["host"] = target.Host
	}
	if target.Port > 0 {
		params["port"] = strconv.Itoa(target.Port)
	}
	if target.ContainerID != "" {
		params["container_id"] = target.ContainerID
	}
	return params
}

// BuildCommand expands a definition's command template against the
// target descriptor. Placeholders use {name} syntax and may appear
// embedded in an argument ("{host}:{port}"). Unknown placeholders and
// placeholders that expand to nothing are errors: a half-built argv
// must never reach exec.
func BuildCommand(def registry.ToolDefinition, target run.Target) ([]string, error) {
	params := templateParams(target)
	argv := make([]string, 0, len(def.CommandTemplate))
	for _, tpl := range def.CommandTemplate {
		arg, err := expandArg(tpl, params)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", def.ID, err)
		}
		argv = append(argv, arg)
	}
	return argv, nil
}

func expandArg(tpl string, params map[string]string) (string, error) {
	var b strings.Builder
	rest := tpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return "", fmt.Errorf("unterminated placeholder in %q", tpl)
		}
		name := rest[open+1 : open+closing]
		val, ok := params[name]
		if !ok {
			return "", fmt.Errorf("unknown or unset placeholder {%s} in %q", name, tpl)
		}
		b.WriteString(rest[:open])
		b.WriteString(val)
		rest = rest[open+closing+1:]
	}
}
