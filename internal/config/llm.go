package config

// LLMConfig configures the model transport.
type LLMConfig struct {
	Provider string `yaml:"provider"` // anthropic, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"` // empty = no timeout

	MaxResponseTokens int  `yaml:"max_response_tokens"`
	Stream            bool `yaml:"stream"`

	// FollowUp asks the model to comment on tool results with a second
	// round-trip (no tools offered).
	FollowUp bool `yaml:"follow_up"`

	// SystemPrompt is the base instruction sent when history carries none.
	SystemPrompt string `yaml:"system_prompt"`
}

// DefaultSystemPrompt is the base instruction for the assistant.
const DefaultSystemPrompt = `You are a coding assistant working inside the user's workspace.
Use the available tools to read, search, analyze and edit files instead of guessing at their contents.
Read a file before modifying it. Prefer small, targeted edits with modify_code over rewriting whole files.
When a tool fails, explain the failure and suggest the next step.`

// DefaultLLMConfig returns transport defaults.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:          ProviderAnthropic,
		Model:             "claude-3-7-sonnet-20250219",
		BaseURL:           "https://api.anthropic.com/v1",
		MaxResponseTokens: 4096,
		Stream:            true,
		FollowUp:          true,
		SystemPrompt:      DefaultSystemPrompt,
	}
}

const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// DefaultGeminiModel is used when the provider is switched to gemini without a model.
const DefaultGeminiModel = "gemini-2.5-flash"
