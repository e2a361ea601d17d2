package tools

import (
	"sort"

	"codeassist/internal/logging"
)

// shapeRule maps an exact key set to a tool.
type shapeRule struct {
	keys []string
	tool string
}

var shapeRules = []shapeRule{
	{keys: []string{"content", "path"}, tool: ToolWriteFile},
	{keys: []string{"code", "filepath"}, tool: ToolGenerateCode},
	{keys: []string{"filepath", "new_code", "original_code"}, tool: ToolModifyCode},
}

// InferTool deduces the intended tool from an unnamed parameter snapshot.
// The directory-existence check runs before any schema matching. It returns
// false when no single tool fits; callers drop the snapshot in that case.
func InferTool(input map[string]any, registry *Registry, paths PathProber) (string, bool) {
	if len(input) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if p, ok := input["path"].(string); ok && len(keys) == 1 && paths != nil && paths.IsDir(p) {
		if registry.Has(ToolSetWorkingDirectory) {
			return ToolSetWorkingDirectory, true
		}
	}

	for _, rule := range shapeRules {
		if !sameKeys(keys, rule.keys) {
			continue
		}
		if registry.Has(rule.tool) {
			logging.PerceptionDebug("Inferred %s from keys %v", rule.tool, keys)
			return rule.tool, true
		}
	}

	// Fall back to schemas: every required key present, no unknown keys.
	var matches []string
	for _, t := range registry.List() {
		if schemaAccepts(t.Schema, input) {
			matches = append(matches, t.Name)
		}
	}
	if len(matches) == 1 {
		logging.PerceptionDebug("Inferred %s from schema match on keys %v", matches[0], keys)
		return matches[0], true
	}
	logging.PerceptionDebug("Tool inference ambiguous for keys %v (%d candidates)", keys, len(matches))
	return "", false
}

func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func schemaAccepts(schema ToolSchema, input map[string]any) bool {
	if len(schema.Properties) == 0 {
		return false
	}
	for _, req := range schema.Required {
		if _, ok := input[req]; !ok {
			return false
		}
	}
	for k := range input {
		if _, ok := schema.Properties[k]; !ok {
			return false
		}
	}
	return true
}
