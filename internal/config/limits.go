package config

// ContextConfig configures the conversation token budget and compaction policy.
type ContextConfig struct {
	MaxTokens          int     `yaml:"max_tokens"`
	CompactThreshold   float64 `yaml:"compact_threshold"` // fraction of max_tokens that triggers compaction
	CompactTarget      float64 `yaml:"compact_target"`    // fraction of max_tokens to reduce toward
	RecentWindow       int     `yaml:"recent_window"`
	SummaryMaxMessages int     `yaml:"summary_max_messages"`
}

// ToolsConfig configures dispatch and chaining.
type ToolsConfig struct {
	// ChainWindow is how many audit records the pre-modify read check inspects.
	ChainWindow      int      `yaml:"chain_window"`
	SourceExtensions []string `yaml:"source_extensions"`
	// NoticeMaxChars caps the result JSON embedded in a tool notice message.
	NoticeMaxChars int `yaml:"notice_max_chars"`
}

// DefaultContextConfig returns compaction defaults.
func DefaultContextConfig() ContextConfig {
	return ContextConfig{
		MaxTokens:          200000,
		CompactThreshold:   0.9,
		CompactTarget:      0.7,
		RecentWindow:       6,
		SummaryMaxMessages: 10,
	}
}

// DefaultToolsConfig returns dispatch defaults.
func DefaultToolsConfig() ToolsConfig {
	return ToolsConfig{
		ChainWindow: 10,
		SourceExtensions: []string{
			".py", ".go", ".js", ".ts", ".jsx", ".tsx", ".java", ".c", ".cpp",
			".h", ".hpp", ".cs", ".rb", ".rs", ".php", ".swift", ".kt",
		},
		NoticeMaxChars: 16000,
	}
}
