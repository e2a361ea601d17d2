package perception

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"codeassist/internal/logging"
	"codeassist/internal/types"
)

// streamEvent is the union of Anthropic SSE payloads.
type streamEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`

	Message *struct {
		Model string      `json:"model"`
		Usage types.Usage `json:"usage"`
	} `json:"message,omitempty"`

	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
		Text string `json:"text"`
	} `json:"content_block,omitempty"`

	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta,omitempty"`

	Usage *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`

	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// sseDecoder turns an Anthropic event stream into Events.
type sseDecoder struct {
	toolBlocks map[int]bool
	usage      types.Usage
	stopReason string
	completed  bool
}

func newSSEDecoder() *sseDecoder {
	return &sseDecoder{toolBlocks: make(map[int]bool)}
}

// decode reads body until message_stop, EOF or an error event, sending each
// decoded event on out. It returns ctx.Err() if the consumer goes away.
func (d *sseDecoder) decode(ctx context.Context, body io.Reader, out chan<- Event) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	emit := func(ev Event) error {
		select {
		case out <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			break
		}

		var evt streamEvent
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			logging.PerceptionDebug("Skipping malformed SSE payload: %v", err)
			continue
		}

		events, err := d.translate(&evt, data)
		if err != nil {
			return err
		}
		for _, ev := range events {
			if err := emit(ev); err != nil {
				return err
			}
		}
		if d.completed {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	if !d.completed {
		// Stream ended without message_stop; close the response anyway.
		return emit(Completion{StopReason: d.stopReason, Usage: d.usage})
	}
	return nil
}

func (d *sseDecoder) translate(evt *streamEvent, raw string) ([]Event, error) {
	switch evt.Type {
	case "message_start":
		if evt.Message != nil {
			d.usage.InputTokens = evt.Message.Usage.InputTokens
			d.usage.OutputTokens = evt.Message.Usage.OutputTokens
		}
	case "content_block_start":
		if evt.ContentBlock == nil {
			return nil, nil
		}
		switch evt.ContentBlock.Type {
		case "tool_use":
			d.toolBlocks[evt.Index] = true
			return []Event{ToolSignal{
				Phase: ToolStart,
				Index: evt.Index,
				ID:    evt.ContentBlock.ID,
				Name:  evt.ContentBlock.Name,
			}}, nil
		case "text":
			if evt.ContentBlock.Text != "" {
				return []Event{TextDelta{Text: evt.ContentBlock.Text}}, nil
			}
		}
	case "content_block_delta":
		if evt.Delta == nil {
			return nil, nil
		}
		switch evt.Delta.Type {
		case "text_delta":
			if evt.Delta.Text != "" {
				return []Event{TextDelta{Text: evt.Delta.Text}}, nil
			}
		case "input_json_delta":
			return []Event{ToolSignal{Phase: ToolDelta, Index: evt.Index, PartialJSON: evt.Delta.PartialJSON}}, nil
		default:
			return []Event{Unknown{Type: evt.Type + "/" + evt.Delta.Type, Raw: raw}}, nil
		}
	case "content_block_stop":
		if d.toolBlocks[evt.Index] {
			delete(d.toolBlocks, evt.Index)
			return []Event{ToolSignal{Phase: ToolStop, Index: evt.Index}}, nil
		}
	case "message_delta":
		if evt.Delta != nil && evt.Delta.StopReason != "" {
			d.stopReason = evt.Delta.StopReason
		}
		if evt.Usage != nil {
			d.usage.OutputTokens = evt.Usage.OutputTokens
		}
	case "message_stop":
		d.completed = true
		return []Event{Completion{StopReason: d.stopReason, Usage: d.usage}}, nil
	case "ping":
	case "error":
		msg := "unknown stream error"
		if evt.Error != nil {
			msg = evt.Error.Message
		}
		return nil, fmt.Errorf("API error: %s", msg)
	default:
		return []Event{Unknown{Type: evt.Type, Raw: raw}}, nil
	}
	return nil, nil
}
