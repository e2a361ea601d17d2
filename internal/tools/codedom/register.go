package codedom

import (
	"codeassist/internal/tools"
	"codeassist/internal/tools/core"
)

// RegisterAll registers the code tools, bound to ws, with the registry.
func RegisterAll(registry *tools.Registry, ws *core.Workspace) error {
	allTools := []*tools.Tool{
		// Editing
		GenerateCodeTool(ws),
		ModifyCodeTool(ws),
		ParseSuggestionsTool(),
		ApplyChangesTool(ws),

		// Analysis
		AnalyzeCodeTool(ws),
	}

	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	return nil
}
