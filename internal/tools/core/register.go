package core

import (
	"codeassist/internal/tools"
)

// RegisterAll registers the file tools, bound to ws, with the registry.
func RegisterAll(registry *tools.Registry, ws *Workspace) error {
	allTools := []*tools.Tool{
		// Workspace
		SetWorkingDirectoryTool(ws),
		ListLoadedFilesTool(ws),

		// File I/O
		ReadFileTool(ws),
		WriteFileTool(ws),

		// Discovery
		ListDirectoryTool(ws),
		FindFilesTool(ws),

		GenerateDiffTool(),
	}

	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	return nil
}
