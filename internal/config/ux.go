package config

// UXConfig holds terminal presentation settings.
type UXConfig struct {
	TypingDelay         string `yaml:"typing_delay"`
	UseColors           bool   `yaml:"use_colors"`
	RenderMarkdown      bool   `yaml:"render_markdown"`
	TokenWarningPercent int    `yaml:"token_warning_percent"`
	WordWrap            int    `yaml:"word_wrap"`
}

// DefaultUXConfig returns sensible UX defaults.
func DefaultUXConfig() UXConfig {
	return UXConfig{
		TypingDelay:         "10ms",
		UseColors:           true,
		RenderMarkdown:      true,
		TokenWarningPercent: 50,
		WordWrap:            100,
	}
}
