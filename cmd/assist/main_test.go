package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestToolsCmdListsRegistry(t *testing.T) {
	logger = zap.NewNop()
	workspace = t.TempDir()
	defer func() { workspace = "" }()

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	require.NoError(t, runTools(cmd, nil))
	for _, name := range []string{"set_working_directory", "read_file", "find_files", "modify_code", "analyze_code"} {
		assert.Contains(t, out.String(), name)
	}
}

func TestStatusCmdWithoutKey(t *testing.T) {
	logger = zap.NewNop()
	workspace = t.TempDir()
	defer func() { workspace = "" }()
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ASSIST_PROVIDER", "")
	t.Setenv("ASSIST_MODEL", "")

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	require.NoError(t, runStatus(cmd, nil))
	assert.Contains(t, out.String(), "Connection:  unavailable")
	assert.Contains(t, out.String(), "claude")
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	cfg, root, err := loadConfig(appOptions{
		Workspace: t.TempDir(),
		APIKey:    "k",
		Debug:     true,
		NoStream:  true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, root)
	assert.Equal(t, "k", cfg.LLM.APIKey)
	assert.True(t, cfg.Logging.DebugMode)
	assert.False(t, cfg.LLM.Stream)
}
