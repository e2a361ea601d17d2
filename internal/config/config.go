package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrAPIKeyMissing is returned by Validate when no key is configured.
var ErrAPIKeyMissing = errors.New("LLM API key not configured (set ANTHROPIC_API_KEY or GEMINI_API_KEY)")

// DefaultConfigPath is relative to the workspace root.
const DefaultConfigPath = ".assist/config.yaml"

// Config holds all codeassist configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	LLM     LLMConfig     `yaml:"llm"`
	Context ContextConfig `yaml:"context"`
	Tools   ToolsConfig   `yaml:"tools"`
	UX      UXConfig      `yaml:"ux"`
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "codeassist",
		Version: "0.4.0",
		LLM:     DefaultLLMConfig(),
		Context: DefaultContextConfig(),
		Tools:   DefaultToolsConfig(),
		UX:      DefaultUXConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults;
// environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && c.LLM.Provider == ProviderAnthropic {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.LLM.Provider == ProviderGemini {
		c.LLM.APIKey = key
	}
	if p := os.Getenv("ASSIST_PROVIDER"); p != "" {
		c.SetProvider(p)
	}
	if m := os.Getenv("ASSIST_MODEL"); m != "" {
		c.LLM.Model = m
	}
	if v := os.Getenv("ASSIST_DEBUG"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = on
		}
	}
}

// SetProvider switches provider and picks up that provider's key and
// default model from the environment when needed.
func (c *Config) SetProvider(provider string) {
	if provider == c.LLM.Provider {
		return
	}
	c.LLM.Provider = provider
	c.LLM.APIKey = ""
	switch provider {
	case ProviderAnthropic:
		c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		c.LLM.Model = DefaultLLMConfig().Model
		c.LLM.BaseURL = DefaultLLMConfig().BaseURL
	case ProviderGemini:
		c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		c.LLM.Model = DefaultGeminiModel
		c.LLM.BaseURL = ""
	}
}

// GetLLMTimeout returns the per-turn timeout. Zero means none.
func (c *Config) GetLLMTimeout() time.Duration {
	if c.LLM.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// GetTypingDelay returns the per-chunk typing delay.
func (c *Config) GetTypingDelay() time.Duration {
	d, err := time.ParseDuration(c.UX.TypingDelay)
	if err != nil {
		return 10 * time.Millisecond
	}
	return d
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{ProviderAnthropic, ProviderGemini}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return ErrAPIKeyMissing
	}

	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}

	cc := c.Context
	if cc.MaxTokens <= 0 {
		return fmt.Errorf("context.max_tokens must be positive, got %d", cc.MaxTokens)
	}
	if cc.CompactTarget <= 0 || cc.CompactThreshold <= cc.CompactTarget || cc.CompactThreshold > 1 {
		return fmt.Errorf("context thresholds invalid: target=%.2f threshold=%.2f", cc.CompactTarget, cc.CompactThreshold)
	}
	if cc.RecentWindow < 1 {
		return fmt.Errorf("context.recent_window must be at least 1, got %d", cc.RecentWindow)
	}
	if c.Tools.ChainWindow < 1 {
		return fmt.Errorf("tools.chain_window must be at least 1, got %d", c.Tools.ChainWindow)
	}

	return nil
}
