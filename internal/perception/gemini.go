package perception

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"codeassist/internal/config"
	"codeassist/internal/logging"
	"codeassist/internal/types"
)

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiClient is a Transport backed by the genai SDK. Function calls arrive
// whole, so every tool signal it produces is a named snapshot.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini transport.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyMissing
	}
	if cfg.Model == "" {
		cfg.Model = config.DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client, model: cfg.Model}, nil
}

// Provider returns "gemini".
func (c *GeminiClient) Provider() string { return config.ProviderGemini }

// Model returns the configured model.
func (c *GeminiClient) Model() string { return c.model }

// Send performs a unary GenerateContent call.
func (c *GeminiClient) Send(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	contents, cfg := geminiRequest(req)
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		logging.APIError("[Gemini] Send: %v", err)
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	out := &Response{}
	for _, ev := range geminiEvents(resp, 0) {
		switch e := ev.(type) {
		case TextDelta:
			out.Text += e.Text
		case ToolSignal:
			out.ToolUses = append(out.ToolUses, types.ToolUse{ID: e.ID, Name: e.Name, Input: e.Input})
		}
	}
	out.StopReason, out.Usage = geminiFinish(resp)
	logging.API("[Gemini] Send: completed in %v text_len=%d tool_uses=%d", time.Since(start), len(out.Text), len(out.ToolUses))
	return out, nil
}

// Stream performs a GenerateContentStream call.
func (c *GeminiClient) Stream(ctx context.Context, req *Request) (<-chan Event, <-chan error) {
	events := make(chan Event, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errc)

		start := time.Now()
		contents, cfg := geminiRequest(req)
		var (
			stop  string
			usage types.Usage
			calls int
		)
		for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, contents, cfg) {
			if err != nil {
				logging.APIError("[Gemini] Stream: failed after %v: %v", time.Since(start), err)
				errc <- fmt.Errorf("stream error: %w", err)
				return
			}
			chunk := geminiEvents(resp, calls)
			for _, ev := range chunk {
				if _, ok := ev.(ToolSignal); ok {
					calls++
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
			}
			s, u := geminiFinish(resp)
			if s != "" {
				stop = s
			}
			if u != (types.Usage{}) {
				usage = u
			}
		}
		select {
		case events <- Completion{StopReason: stop, Usage: usage}:
		case <-ctx.Done():
			errc <- ctx.Err()
			return
		}
		logging.API("[Gemini] Stream: completed in %v", time.Since(start))
	}()

	return events, errc
}

// Ping fetches the model's metadata.
func (c *GeminiClient) Ping(ctx context.Context) error {
	if _, err := c.client.Models.Get(ctx, c.model, nil); err != nil {
		return fmt.Errorf("gemini ping failed: %w", err)
	}
	return nil
}

// geminiRequest converts a Request into genai contents and config.
func geminiRequest(req *Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range alternateRoles(req.Messages) {
		var role genai.Role = genai.RoleUser
		if m.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text(), role))
	}

	cfg := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 t.Name,
				Description:          t.Description,
				ParametersJsonSchema: t.InputSchema,
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return contents, cfg
}

// geminiEvents decodes the first candidate of resp. Tool indices continue
// from offset so streamed calls stay distinct.
func geminiEvents(resp *genai.GenerateContentResponse, offset int) []Event {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var out []Event
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part == nil:
		case part.FunctionCall != nil:
			out = append(out, ToolSignal{
				Phase: ToolSnapshot,
				Index: offset,
				ID:    part.FunctionCall.ID,
				Name:  part.FunctionCall.Name,
				Input: part.FunctionCall.Args,
			})
			offset++
		case part.Thought:
		case part.Text != "":
			out = append(out, TextDelta{Text: part.Text})
		}
	}
	return out
}

func geminiFinish(resp *genai.GenerateContentResponse) (string, types.Usage) {
	var stop string
	var usage types.Usage
	if resp == nil {
		return stop, usage
	}
	if len(resp.Candidates) > 0 {
		stop = string(resp.Candidates[0].FinishReason)
	}
	if resp.UsageMetadata != nil {
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return stop, usage
}
