package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ANTHROPIC_API_KEY", "GEMINI_API_KEY", "ASSIST_MODEL", "ASSIST_PROVIDER", "ASSIST_DEBUG"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "codeassist", cfg.Name)
	assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, "claude-3-7-sonnet-20250219", cfg.LLM.Model)
	assert.Equal(t, 200000, cfg.Context.MaxTokens)
	assert.Equal(t, 6, cfg.Context.RecentWindow)
	assert.Equal(t, 10, cfg.Tools.ChainWindow)
	assert.True(t, cfg.LLM.Stream)
	assert.Equal(t, time.Duration(0), cfg.GetLLMTimeout())
	assert.Equal(t, 10*time.Millisecond, cfg.GetTypingDelay())
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.LLM.APIKey = "sk-test"
	cfg.LLM.Timeout = "90s"
	cfg.Context.MaxTokens = 50000
	cfg.Logging.Categories = map[string]bool{"tools": false}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", loaded.LLM.APIKey)
	assert.Equal(t, 50000, loaded.Context.MaxTokens)
	assert.Equal(t, 90*time.Second, loaded.GetLLMTimeout())
	assert.False(t, loaded.Logging.Categories["tools"])
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Context, cfg.Context)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("context:\n  max_tokens: 1000\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Context.MaxTokens)
	assert.Equal(t, 0.9, cfg.Context.CompactThreshold)
	assert.Equal(t, 4096, cfg.LLM.MaxResponseTokens)
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_EnvOverrides(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "anthropic key",
			env:  map[string]string{"ANTHROPIC_API_KEY": "sk-ant"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "sk-ant", cfg.LLM.APIKey)
			},
		},
		{
			name: "switch to gemini",
			env:  map[string]string{"ASSIST_PROVIDER": "gemini", "GEMINI_API_KEY": "g-key"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
				assert.Equal(t, "g-key", cfg.LLM.APIKey)
				assert.Equal(t, DefaultGeminiModel, cfg.LLM.Model)
			},
		},
		{
			name: "model override wins over provider default",
			env:  map[string]string{"ASSIST_PROVIDER": "gemini", "ASSIST_MODEL": "gemini-2.5-pro"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
			},
		},
		{
			name: "debug flag",
			env:  map[string]string{"ASSIST_DEBUG": "true"},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Logging.DebugMode)
			},
		},
		{
			name: "malformed debug flag ignored",
			env:  map[string]string{"ASSIST_DEBUG": "maybe"},
			check: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Logging.DebugMode)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := DefaultConfig()
			cfg.applyEnvOverrides()
			tt.check(t, cfg)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAPIKeyMissing))

	cfg.LLM.APIKey = "k"
	assert.NoError(t, cfg.Validate())

	cfg.LLM.Provider = "openai"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.LLM.APIKey = "k"
	cfg.Context.CompactTarget = 0.95
	assert.Error(t, cfg.Validate(), "target above threshold")

	cfg = DefaultConfig()
	cfg.LLM.APIKey = "k"
	cfg.Tools.ChainWindow = 0
	assert.Error(t, cfg.Validate())
}

func TestGetLLMTimeout_Invalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "soon"
	assert.Equal(t, time.Duration(0), cfg.GetLLMTimeout())
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	lc := LoggingConfig{}
	assert.False(t, lc.IsCategoryEnabled("tools"))

	lc.DebugMode = true
	assert.True(t, lc.IsCategoryEnabled("tools"))

	lc.Categories = map[string]bool{"tools": false}
	assert.False(t, lc.IsCategoryEnabled("tools"))
	assert.True(t, lc.IsCategoryEnabled("session"))
	assert.Equal(t, lc.Categories, lc.ToLogging().Categories)
}
