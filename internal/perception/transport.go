package perception

import (
	"context"
	"errors"
	"fmt"

	"codeassist/internal/config"
	"codeassist/internal/types"
)

// ErrAPIKeyMissing is returned when a transport is built without a key.
var ErrAPIKeyMissing = errors.New("API key not configured")

// Request is one model call.
type Request struct {
	System    string
	Messages  []types.WireMessage
	Tools     []types.ToolDefinition
	MaxTokens int
}

// Response is a complete unary reply.
type Response struct {
	Text       string
	ToolUses   []types.ToolUse
	StopReason string
	Usage      types.Usage
}

// Events replays the response as the event sequence a stream would have
// produced, with each tool use as a named snapshot.
func (r *Response) Events() []Event {
	var out []Event
	if r.Text != "" {
		out = append(out, TextDelta{Text: r.Text})
	}
	for i, tu := range r.ToolUses {
		sig := ToolSignal{Phase: ToolSnapshot, Index: i, ID: tu.ID, Name: tu.Name, Input: tu.Input}
		if tu.Input == nil && tu.RawInput != "" {
			// Undecodable arguments travel as a delta so the dispatcher can
			// normalize them.
			out = append(out,
				ToolSignal{Phase: ToolStart, Index: i, ID: tu.ID, Name: tu.Name},
				ToolSignal{Phase: ToolDelta, Index: i, PartialJSON: tu.RawInput},
				ToolSignal{Phase: ToolStop, Index: i})
			continue
		}
		out = append(out, sig)
	}
	out = append(out, Completion{StopReason: r.StopReason, Usage: r.Usage})
	return out
}

// Transport is a model service connection.
//
// Stream delivers events on the first channel in arrival order and closes
// both channels when the response ends. At most one error is sent. Callers
// must either drain the event channel or cancel ctx.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
	Stream(ctx context.Context, req *Request) (<-chan Event, <-chan error)
	Ping(ctx context.Context) error

	Provider() string
	Model() string
}

// NewTransport builds the transport selected by cfg.
func NewTransport(ctx context.Context, cfg config.LLMConfig) (Transport, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyMissing
	}
	switch cfg.Provider {
	case config.ProviderAnthropic, "":
		return NewAnthropicClient(AnthropicConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}), nil
	case config.ProviderGemini:
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
