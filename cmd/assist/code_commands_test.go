package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeassist/internal/tools"
)

func explicit(name string, input map[string]any) tools.ToolCall {
	return tools.ToolCall{Name: name, Input: input, Origin: tools.OriginExplicit}
}

func TestParseCodeCommandToolCalls(t *testing.T) {
	tests := []struct {
		line string
		want []tools.ToolCall
	}{
		{"code:workdir:/tmp", []tools.ToolCall{
			explicit(tools.ToolSetWorkingDirectory, map[string]any{"path": "/tmp"}),
		}},
		{"code:read:a.py, b.py", []tools.ToolCall{
			explicit(tools.ToolReadFile, map[string]any{"path": "a.py"}),
			explicit(tools.ToolReadFile, map[string]any{"path": "b.py"}),
		}},
		{"code:find:src", []tools.ToolCall{
			explicit(tools.ToolFindFiles, map[string]any{"path": "src", "pattern": ".*", "recursive": false}),
		}},
		{"code:find:recursive:src", []tools.ToolCall{
			explicit(tools.ToolFindFiles, map[string]any{"path": "src", "pattern": ".*", "recursive": true}),
		}},
		{"code:find", []tools.ToolCall{
			explicit(tools.ToolFindFiles, map[string]any{"path": ".", "pattern": ".*", "recursive": false}),
		}},
		{"code:list", []tools.ToolCall{
			explicit(tools.ToolListLoadedFiles, map[string]any{}),
		}},
		{"code:analyze:main.py", []tools.ToolCall{
			explicit(tools.ToolAnalyzeCode, map[string]any{"filepath": "main.py", "analysis_type": "basic"}),
		}},
		{"Code:Structure:main.py", []tools.ToolCall{
			explicit(tools.ToolAnalyzeCode, map[string]any{"filepath": "main.py", "analysis_type": "structure"}),
		}},
		{"code:pylint:main.py", []tools.ToolCall{
			explicit(tools.ToolAnalyzeCode, map[string]any{"filepath": "main.py", "analysis_type": "pylint"}),
		}},
		{"code:fullanalysis:main.py", []tools.ToolCall{
			explicit(tools.ToolAnalyzeCode, map[string]any{"filepath": "main.py", "analysis_type": "full"}),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, err := parseCodeCommand(tt.line)
			require.NoError(t, err)
			assert.Equal(t, codeTools, cmd.Kind)
			if diff := cmp.Diff(tt.want, cmd.Calls); diff != "" {
				t.Errorf("calls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseCodeCommandKinds(t *testing.T) {
	cmd, err := parseCodeCommand("code:diff:main.py")
	require.NoError(t, err)
	assert.Equal(t, codeDiff, cmd.Kind)
	assert.Equal(t, "main.py", cmd.File)

	cmd, err = parseCodeCommand("code:apply:main.py")
	require.NoError(t, err)
	assert.Equal(t, codeApply, cmd.Kind)

	cmd, err = parseCodeCommand("code:generate:hello.py:print a greeting: loudly")
	require.NoError(t, err)
	assert.Equal(t, codePrompt, cmd.Kind)
	assert.Equal(t, "hello.py", cmd.File)
	assert.Contains(t, cmd.Prompt, "print a greeting: loudly")
	assert.Contains(t, cmd.Prompt, tools.ToolGenerateCode)

	cmd, err = parseCodeCommand("code:change:main.py:rename foo to bar")
	require.NoError(t, err)
	assert.Contains(t, cmd.Prompt, tools.ToolModifyCode)
}

func TestParseCodeCommandErrors(t *testing.T) {
	for _, line := range []string{
		"read:main.py",
		"code:workdir",
		"code:read:",
		"code:read: , ",
		"code:diff",
		"code:analyze",
		"code:apply",
		"code:generate:main.py",
		"code:change::do it",
		"code:explode:now",
	} {
		_, err := parseCodeCommand(line)
		assert.Error(t, err, line)
	}
}
