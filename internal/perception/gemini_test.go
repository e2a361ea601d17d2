package perception

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"codeassist/internal/config"
	"codeassist/internal/types"
)

func TestGeminiRequest(t *testing.T) {
	req := &Request{
		System: "sys",
		Messages: []types.WireMessage{
			{Role: types.RoleUser, Content: []types.ContentBlock{types.TextBlock("hi")}},
			{Role: types.RoleAssistant, Content: []types.ContentBlock{types.TextBlock("hello")}},
		},
		Tools:     []types.ToolDefinition{{Name: "read_file", Description: "read", InputSchema: map[string]any{"type": "object"}}},
		MaxTokens: 100,
	}
	contents, cfg := geminiRequest(req)

	require.Len(t, contents, 2)
	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	assert.Equal(t, "hello", contents[1].Parts[0].Text)

	assert.Equal(t, int32(100), cfg.MaxOutputTokens)
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "sys", cfg.SystemInstruction.Parts[0].Text)
	require.Len(t, cfg.Tools, 1)
	require.Len(t, cfg.Tools[0].FunctionDeclarations, 1)
	assert.Equal(t, "read_file", cfg.Tools[0].FunctionDeclarations[0].Name)
}

func TestGeminiEvents_FunctionCallsAreNamedSnapshots(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking out loud", Thought: true},
				{Text: "Reading."},
				{FunctionCall: &genai.FunctionCall{ID: "f1", Name: "read_file", Args: map[string]any{"path": "a.go"}}},
			}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 7, CandidatesTokenCount: 3},
	}

	events := geminiEvents(resp, 2)
	assert.Equal(t, []Event{
		TextDelta{Text: "Reading."},
		ToolSignal{Phase: ToolSnapshot, Index: 2, ID: "f1", Name: "read_file", Input: map[string]any{"path": "a.go"}},
	}, events)

	stop, usage := geminiFinish(resp)
	assert.Equal(t, "STOP", stop)
	assert.Equal(t, types.Usage{InputTokens: 7, OutputTokens: 3}, usage)
}

func TestGeminiEvents_Empty(t *testing.T) {
	assert.Nil(t, geminiEvents(nil, 0))
	assert.Nil(t, geminiEvents(&genai.GenerateContentResponse{}, 0))
}

func TestNewTransport(t *testing.T) {
	_, err := NewTransport(context.Background(), config.LLMConfig{Provider: config.ProviderAnthropic})
	assert.ErrorIs(t, err, ErrAPIKeyMissing)

	tr, err := NewTransport(context.Background(), config.LLMConfig{Provider: config.ProviderAnthropic, APIKey: "k", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", tr.Provider())
	assert.Equal(t, "m", tr.Model())

	_, err = NewTransport(context.Background(), config.LLMConfig{Provider: "openai", APIKey: "k"})
	assert.Error(t, err)
}
