package codedom

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"codeassist/internal/diff"
	"codeassist/internal/logging"
	"codeassist/internal/tools"
	"codeassist/internal/tools/core"
)

const (
	// fuzzyMaxWindow bounds the number of lines a fuzzy match may span.
	fuzzyMaxWindow = 20

	// fuzzyThreshold is the minimum positional similarity for a fuzzy match.
	fuzzyThreshold = 0.8
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// editTools binds the editing executors to a workspace.
type editTools struct {
	ws *core.Workspace
}

// GenerateCodeTool returns a tool that writes generated code to a file.
func GenerateCodeTool(ws *core.Workspace) *tools.Tool {
	et := &editTools{ws: ws}
	return &tools.Tool{
		Name:        tools.ToolGenerateCode,
		Description: "Generate new code based on a prompt and save it to a file",
		Category:    tools.CategoryCode,
		Execute:     et.generateCode,
		Schema: tools.ToolSchema{
			Required: []string{"filepath", "code"},
			Properties: map[string]tools.Property{
				"filepath": {Type: "string", Description: "Path to save the generated code"},
				"code":     {Type: "string", Description: "The code to write to the file"},
				"confirm":  {Type: "boolean", Description: "Whether to ask for confirmation before saving", Default: true},
			},
		},
	}
}

func (et *editTools) generateCode(ctx context.Context, args map[string]any) (tools.Result, error) {
	filepath, err := tools.RequireString(args, "filepath")
	if err != nil {
		return nil, err
	}
	code, err := tools.RequireString(args, "code")
	if err != nil {
		return nil, err
	}
	if filepath == "" {
		return tools.ErrorResult("Missing required parameter: filepath"), nil
	}

	var previous string
	exists := et.ws.IsFile(filepath)
	if exists {
		if _, previous, _, err = et.ws.ReadFile(filepath); err != nil {
			return tools.ErrorResult("Error generating code: %v", err), nil
		}
	}

	if _, err := et.ws.WriteFile(filepath, code); err != nil {
		return tools.ErrorResult("Failed to write file: %s", filepath), nil
	}

	res := tools.Result{
		"success":    true,
		"filepath":   filepath,
		"action":     "created",
		"size_bytes": len(code),
	}
	if exists {
		res["action"] = "updated"
		if d := unifiedFor(filepath, previous, code); d != "" {
			res["diff"] = d
		}
	}
	logging.Tools("generate_code: %s %s (%d bytes)", res["action"], filepath, len(code))
	return res, nil
}

// ModifyCodeTool returns a tool that replaces a code segment in a file.
func ModifyCodeTool(ws *core.Workspace) *tools.Tool {
	et := &editTools{ws: ws}
	return &tools.Tool{
		Name:        tools.ToolModifyCode,
		Description: "Modify existing code in a file",
		Category:    tools.CategoryCode,
		Execute:     et.modifyCode,
		Schema: tools.ToolSchema{
			Required: []string{"filepath", "original_code", "new_code"},
			Properties: map[string]tools.Property{
				"filepath":      {Type: "string", Description: "Path to the file to modify"},
				"original_code": {Type: "string", Description: "The original code segment to replace"},
				"new_code":      {Type: "string", Description: "The new code to replace it with"},
				"confirm":       {Type: "boolean", Description: "Whether to ask for confirmation before saving", Default: true},
			},
		},
	}
}

func (et *editTools) modifyCode(ctx context.Context, args map[string]any) (tools.Result, error) {
	filepath, err := tools.RequireString(args, "filepath")
	if err != nil {
		return nil, err
	}
	original, err := tools.RequireString(args, "original_code")
	if err != nil {
		return nil, err
	}
	replacement, err := tools.RequireString(args, "new_code")
	if err != nil {
		return nil, err
	}

	content, errRes := et.currentContent(filepath, args)
	if errRes != nil {
		return errRes, nil
	}

	target := original
	if original == "" || !strings.Contains(content, original) {
		match, ok := FindClosestMatch(content, original)
		if !ok {
			return tools.ErrorResult("Original code segment not found in %s. Try reading the file first to get the exact content.", filepath), nil
		}
		logging.ToolsDebug("modify_code: fuzzy match in %s (%d bytes)", filepath, len(match))
		target = match
	}

	modified := strings.ReplaceAll(content, target, replacement)
	if _, err := et.ws.WriteFile(filepath, modified); err != nil {
		return tools.ErrorResult("Failed to write file: %s", filepath), nil
	}
	return tools.Result{
		"success":  true,
		"filepath": filepath,
		"diff":     unifiedFor(filepath, content, modified),
	}, nil
}

// currentContent returns the text an edit starts from: the content merged
// by a preceding read when present, otherwise a fresh read.
func (et *editTools) currentContent(filepath string, args map[string]any) (string, tools.Result) {
	if !et.ws.IsFile(filepath) {
		return "", tools.ErrorResult("File not found: %s", filepath)
	}
	if merged, ok := args[tools.FileContentField].(string); ok {
		return merged, nil
	}
	_, content, _, err := et.ws.ReadFile(filepath)
	if err != nil {
		return "", tools.ErrorResult("Error reading file: %v", err)
	}
	return content, nil
}

// FindClosestMatch locates the segment of content that best corresponds to
// target when an exact match fails. Windows of up to 20 lines are compared,
// smallest first, with whitespace runs collapsed. A window matches when it
// contains the target, when it is contained in the target and covers most
// of it, or when their positional similarity exceeds 0.8.
func FindClosestMatch(content, target string) (string, bool) {
	normTarget := normalizeSpace(target)
	if normTarget == "" {
		return "", false
	}

	lines := strings.Split(content, "\n")
	for size := 1; size <= fuzzyMaxWindow && size <= len(lines); size++ {
		for i := 0; i+size <= len(lines); i++ {
			window := strings.Join(lines[i:i+size], "\n")
			normWindow := normalizeSpace(window)
			if normWindow == "" {
				continue
			}
			if strings.Contains(normWindow, normTarget) {
				return window, true
			}
			if strings.Contains(normTarget, normWindow) && float64(len(normWindow)) >= fuzzyThreshold*float64(len(normTarget)) {
				return window, true
			}
			if diff.Similarity(normTarget, normWindow) > fuzzyThreshold {
				return window, true
			}
		}
	}
	return "", false
}

func normalizeSpace(s string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

// ApplyChangesTool returns a tool that applies structured changes to a file.
func ApplyChangesTool(ws *core.Workspace) *tools.Tool {
	et := &editTools{ws: ws}
	return &tools.Tool{
		Name:        tools.ToolApplyChanges,
		Description: "Apply structured code changes to a file",
		Category:    tools.CategoryCode,
		Execute:     et.applyChanges,
		Schema: tools.ToolSchema{
			Required: []string{"filepath", "changes"},
			Properties: map[string]tools.Property{
				"filepath": {Type: "string", Description: "Path to the file to modify"},
				"changes": {
					Type:        "array",
					Description: "Array of changes to apply",
					Items: &tools.PropertyItems{
						Type: "object",
						Properties: map[string]tools.Property{
							"line":     {Type: "integer", Description: "Line number to modify (0 for whole-file changes)"},
							"old_code": {Type: "string", Description: "Original code to replace"},
							"new_code": {Type: "string", Description: "New code to insert"},
						},
					},
				},
				"confirm": {Type: "boolean", Description: "Whether to ask for confirmation before saving", Default: true},
			},
		},
	}
}

func (et *editTools) applyChanges(ctx context.Context, args map[string]any) (tools.Result, error) {
	filepath, err := tools.RequireString(args, "filepath")
	if err != nil {
		return nil, err
	}
	changes, err := decodeChanges(args["changes"])
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return tools.ErrorResult("No changes provided"), nil
	}

	original, errRes := et.currentContent(filepath, args)
	if errRes != nil {
		return errRes, nil
	}

	modified, warnings := ApplyChanges(original, changes)
	res := tools.Result{
		"success":         true,
		"filepath":        filepath,
		"changes_applied": len(changes) - len(warnings),
		"diff":            unifiedFor(filepath, original, modified),
	}
	if len(warnings) > 0 {
		res["warnings"] = warnings
	}
	if _, err := et.ws.WriteFile(filepath, modified); err != nil {
		res["success"] = false
		res["error"] = fmt.Sprintf("Failed to write file: %s", filepath)
	}
	return res, nil
}

// ApplyChanges applies changes to content from the highest line down so
// earlier line numbers stay valid. Line 0 replaces a segment anywhere in the
// content, falling back to FindClosestMatch. Changes that cannot be applied
// are reported as warnings.
func ApplyChanges(content string, changes []Change) (string, []string) {
	sorted := make([]Change, len(changes))
	copy(sorted, changes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Line > sorted[j].Line })

	var warnings []string
	for _, c := range sorted {
		if c.OldCode == "" {
			warnings = append(warnings, fmt.Sprintf("Empty old_code for line %d", c.Line))
			continue
		}

		if c.Line == 0 {
			target := c.OldCode
			if !strings.Contains(content, target) {
				match, ok := FindClosestMatch(content, target)
				if !ok {
					warnings = append(warnings, fmt.Sprintf("Couldn't find segment: %s...", truncate(c.OldCode, 50)))
					continue
				}
				target = match
			}
			content = strings.ReplaceAll(content, target, c.NewCode)
			continue
		}

		lines := strings.Split(content, "\n")
		switch {
		case c.Line < 1 || c.Line > len(lines):
			warnings = append(warnings, fmt.Sprintf("Line %d is out of range (file has %d lines)", c.Line, len(lines)))
		case !strings.Contains(lines[c.Line-1], c.OldCode):
			warnings = append(warnings, fmt.Sprintf("Couldn't find code on line %d: %s", c.Line, c.OldCode))
		default:
			lines[c.Line-1] = strings.ReplaceAll(lines[c.Line-1], c.OldCode, c.NewCode)
			content = strings.Join(lines, "\n")
		}
	}
	return content, warnings
}

func unifiedFor(filepath, before, after string) string {
	return diff.Unified("original/"+filepath, "modified/"+filepath, before, after, diff.DefaultContext)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
