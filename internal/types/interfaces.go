package types

// ToolDefinition describes a tool that the model can invoke.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"` // JSON Schema for parameters
}

// ToolUse is a tool invocation surfaced by a transport.
// RawInput is set instead of Input when the arguments could not be decoded.
type ToolUse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Input    map[string]any `json:"input,omitempty"`
	RawInput string         `json:"raw_input,omitempty"`
}

// Usage captures token usage reported by the model service.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
