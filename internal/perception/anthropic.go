package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"codeassist/internal/config"
	"codeassist/internal/logging"
	"codeassist/internal/types"
)

const anthropicAPIVersion = "2023-06-01"

// AnthropicConfig holds configuration for the Anthropic client.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string

	MaxRetries   int
	RetryBackoff time.Duration // first retry delay, doubled per attempt

	HTTPClient *http.Client
}

// DefaultAnthropicConfig returns sensible defaults.
func DefaultAnthropicConfig(apiKey string) AnthropicConfig {
	def := config.DefaultLLMConfig()
	return AnthropicConfig{
		APIKey:       apiKey,
		BaseURL:      def.BaseURL,
		Model:        def.Model,
		MaxRetries:   3,
		RetryBackoff: time.Second,
	}
}

// AnthropicClient talks to the Messages API. Streaming responses are read as
// server-sent events.
type AnthropicClient struct {
	apiKey       string
	baseURL      string
	model        string
	maxRetries   int
	retryBackoff time.Duration
	httpClient   *http.Client
}

// NewAnthropicClient creates a client; zero fields in cfg take defaults.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	def := DefaultAnthropicConfig(cfg.APIKey)
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if cfg.HTTPClient == nil {
		// No client timeout: it would cut long streams. Callers bound calls
		// with their context.
		cfg.HTTPClient = &http.Client{}
	}
	return &AnthropicClient{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		model:        cfg.Model,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		httpClient:   cfg.HTTPClient,
	}
}

// Provider returns "anthropic".
func (c *AnthropicClient) Provider() string { return config.ProviderAnthropic }

// Model returns the configured model.
func (c *AnthropicClient) Model() string { return c.model }

type anthropicRequest struct {
	Model     string                 `json:"model"`
	MaxTokens int                    `json:"max_tokens"`
	System    string                 `json:"system,omitempty"`
	Messages  []types.WireMessage    `json:"messages"`
	Tools     []types.ToolDefinition `json:"tools,omitempty"`
	Stream    bool                   `json:"stream,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text,omitempty"`
		ID    string          `json:"id,omitempty"`
		Name  string          `json:"name,omitempty"`
		Input json.RawMessage `json:"input,omitempty"`
	} `json:"content"`
	StopReason string      `json:"stop_reason"`
	Usage      types.Usage `json:"usage"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *AnthropicClient) buildRequest(req *Request, stream bool) anthropicRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = config.DefaultLLMConfig().MaxResponseTokens
	}
	return anthropicRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  alternateRoles(req.Messages),
		Tools:     req.Tools,
		Stream:    stream,
	}
}

// alternateRoles drops system and leading assistant messages and merges
// consecutive messages of the same role, since the API expects a user-first
// alternating conversation.
func alternateRoles(msgs []types.WireMessage) []types.WireMessage {
	out := make([]types.WireMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == types.RoleSystem {
			continue
		}
		if len(out) == 0 && m.Role != types.RoleUser {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			merged := make([]types.ContentBlock, 0, len(out[n-1].Content)+len(m.Content))
			merged = append(merged, out[n-1].Content...)
			merged = append(merged, m.Content...)
			out[n-1].Content = merged
			continue
		}
		out = append(out, m)
	}
	return out
}

func (c *AnthropicClient) newHTTPRequest(ctx context.Context, body any, stream bool) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	return httpReq, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == 529 || status >= 500
}

// Send performs a unary call, retrying rate limits and server errors with
// exponential backoff.
func (c *AnthropicClient) Send(ctx context.Context, req *Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, ErrAPIKeyMissing
	}
	start := time.Now()
	body := c.buildRequest(req, false)
	logging.APIDebug("[Anthropic] Send: model=%s messages=%d tools=%d system_len=%d",
		c.model, len(body.Messages), len(body.Tools), len(body.System))

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryBackoff * time.Duration(1<<uint(attempt-1))
			logging.API("[Anthropic] Retry %d/%d in %v: %v", attempt, c.maxRetries, delay, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		httpReq, err := c.newHTTPRequest(ctx, body, false)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if retryable(resp.StatusCode) {
			lastErr = fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			logging.APIError("[Anthropic] Send: status %d", resp.StatusCode)
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}

		out, err := decodeAnthropicResponse(data)
		if err != nil {
			return nil, err
		}
		logging.API("[Anthropic] Send: completed in %v text_len=%d tool_uses=%d stop=%s",
			time.Since(start), len(out.Text), len(out.ToolUses), out.StopReason)
		return out, nil
	}

	logging.APIError("[Anthropic] Send: max retries exceeded after %v: %v", time.Since(start), lastErr)
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func decodeAnthropicResponse(data []byte) (*Response, error) {
	var ar anthropicResponse
	if err := json.Unmarshal(data, &ar); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if ar.Error != nil {
		return nil, fmt.Errorf("API error: %s", ar.Error.Message)
	}

	out := &Response{StopReason: ar.StopReason, Usage: ar.Usage}
	var text strings.Builder
	for _, block := range ar.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			tu := types.ToolUse{ID: block.ID, Name: block.Name}
			if err := json.Unmarshal(block.Input, &tu.Input); err != nil || tu.Input == nil {
				tu.Input = nil
				tu.RawInput = string(block.Input)
			}
			out.ToolUses = append(out.ToolUses, tu)
		}
	}
	out.Text = text.String()
	return out, nil
}

// Stream performs a streaming call. Events are delivered in arrival order.
func (c *AnthropicClient) Stream(ctx context.Context, req *Request) (<-chan Event, <-chan error) {
	events := make(chan Event, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errc)

		if c.apiKey == "" {
			errc <- ErrAPIKeyMissing
			return
		}
		start := time.Now()
		body := c.buildRequest(req, true)
		logging.APIDebug("[Anthropic] Stream: model=%s messages=%d tools=%d", c.model, len(body.Messages), len(body.Tools))

		httpReq, err := c.newHTTPRequest(ctx, body, true)
		if err != nil {
			errc <- err
			return
		}
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			errc <- fmt.Errorf("request failed: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(resp.Body)
			errc <- fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
			return
		}

		if err := newSSEDecoder().decode(ctx, resp.Body, events); err != nil {
			logging.APIError("[Anthropic] Stream: failed after %v: %v", time.Since(start), err)
			errc <- fmt.Errorf("stream error: %w", err)
			return
		}
		logging.API("[Anthropic] Stream: completed in %v", time.Since(start))
	}()

	return events, errc
}

// Ping sends a one-token request to verify the key and endpoint.
func (c *AnthropicClient) Ping(ctx context.Context) error {
	if c.apiKey == "" {
		return ErrAPIKeyMissing
	}
	body := anthropicRequest{
		Model:     c.model,
		MaxTokens: 1,
		Messages:  []types.WireMessage{{Role: types.RoleUser, Content: []types.ContentBlock{types.TextBlock("ping")}}},
	}
	httpReq, err := c.newHTTPRequest(ctx, body, false)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("invalid API key")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status from Anthropic API: %d", resp.StatusCode)
	}
	return nil
}
