// Package tools holds the tool registry, the dispatcher that executes tool
// calls against it, the append-only call log consulted by chain rules, and
// the shape inference used for unnamed parameter snapshots.
//
// Executors live in subpackages (core for files, codedom for code) and are
// registered once at startup:
//
//	Registry ← core.RegisterAll / codedom.RegisterAll
//	ToolCall → Dispatcher.Execute → Tool.Execute → Result
package tools

import (
	"context"
	"fmt"
	"sort"

	"codeassist/internal/types"
)

// Tool names shared by the dispatcher, chain rules and inference.
const (
	ToolSetWorkingDirectory = "set_working_directory"
	ToolListLoadedFiles     = "list_loaded_files"
	ToolReadFile            = "read_file"
	ToolWriteFile           = "write_file"
	ToolListDirectory       = "list_directory"
	ToolFindFiles           = "find_files"
	ToolGenerateDiff        = "generate_diff"
	ToolGenerateCode        = "generate_code"
	ToolModifyCode          = "modify_code"
	ToolParseSuggestions    = "parse_diff_suggestions"
	ToolApplyChanges        = "apply_changes"
	ToolAnalyzeCode         = "analyze_code"
)

// FileContentField is the input key under which a chained read hands the
// file's content to modify_code.
const FileContentField = "file_content"

// ToolCategory groups tools for listing.
type ToolCategory string

const (
	// CategoryFile covers workspace navigation and file I/O.
	CategoryFile ToolCategory = "/file"

	// CategoryCode covers code generation, editing and analysis.
	CategoryCode ToolCategory = "/code"
)

// Property describes a single parameter property for JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
	// Items describes array element schema (required for type="array")
	Items *PropertyItems `json:"items,omitempty"`
}

// PropertyItems describes the schema for array elements.
type PropertyItems struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
}

// ToolSchema defines the JSON schema for tool arguments.
type ToolSchema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// ExecuteFunc is the signature for tool execution. Executors report
// domain failures either as a returned error or as a Result carrying an
// "error" key; the dispatcher normalizes both.
type ExecuteFunc func(ctx context.Context, args map[string]any) (Result, error)

// Tool is a registered, schema-described capability.
type Tool struct {
	// Name is the unique identifier for the tool.
	Name string

	// Description explains what the tool does to the model.
	Description string

	Category ToolCategory

	Execute ExecuteFunc

	Schema ToolSchema

	// FileOriented tools accept a bare string input as {"path": raw}.
	FileOriented bool
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// Definition renders the tool as a transport tool definition.
func (t *Tool) Definition() types.ToolDefinition {
	props := make(map[string]any, len(t.Schema.Properties))
	for name, p := range t.Schema.Properties {
		props[name] = p.schema()
	}
	required := t.Schema.Required
	if required == nil {
		required = []string{}
	}
	return types.ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
	}
}

func (p Property) schema() map[string]any {
	out := map[string]any{"type": p.Type}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if p.Default != nil {
		out["default"] = p.Default
	}
	if len(p.Enum) > 0 {
		out["enum"] = p.Enum
	}
	if p.Items != nil {
		items := map[string]any{"type": p.Items.Type}
		if len(p.Items.Properties) > 0 {
			nested := make(map[string]any, len(p.Items.Properties))
			for k, v := range p.Items.Properties {
				nested[k] = v.schema()
			}
			items["properties"] = nested
		}
		out["items"] = items
	}
	return out
}

// =============================================================================
// Calls and results
// =============================================================================

// Origin records how a tool call came about.
type Origin string

const (
	OriginExplicit Origin = "explicit" // named by the model or a command
	OriginInferred Origin = "inferred" // deduced from an unnamed parameter snapshot
	OriginChained  Origin = "chained"  // issued by a chain rule
)

// ToolCall is a single requested invocation.
type ToolCall struct {
	ID     string
	Name   string
	Input  map[string]any
	Origin Origin

	// RawInput holds unparsed input text when the transport could not
	// deliver a structured map. The dispatcher normalizes it before execution.
	RawInput string
}

// Result is a tool's structured payload. Failure is signalled by a
// non-empty "error" key.
type Result map[string]any

// ErrorResult builds a failed result.
func ErrorResult(format string, args ...any) Result {
	return Result{"error": fmt.Sprintf(format, args...)}
}

// ErrorMessage returns the error text, or "" on success.
func (r Result) ErrorMessage() string {
	if r == nil {
		return ""
	}
	switch v := r["error"].(type) {
	case string:
		return v
	case error:
		return v.Error()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// IsSuccess reports whether the result carries no error.
func (r Result) IsSuccess() bool {
	return r.ErrorMessage() == ""
}

// Keys returns the sorted payload keys.
func (r Result) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// Argument helpers
// =============================================================================

// StringArg returns a string argument or def when absent or mistyped.
func StringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return def
}

// BoolArg returns a bool argument, accepting "true"/"false" strings.
func BoolArg(args map[string]any, key string, def bool) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		switch v {
		case "true", "True", "1":
			return true
		case "false", "False", "0":
			return false
		}
	}
	return def
}

// IntArg returns an integer argument; JSON numbers decode as float64.
func IntArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// RequireString fetches a required non-empty string argument.
func RequireString(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingRequiredArg, key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidArgType, key)
	}
	return s, nil
}
