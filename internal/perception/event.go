// Package perception is the boundary to the model service.
//
// Transports decode whatever their wire format delivers into the closed
// Event variant defined here, so callers switch on concrete types and never
// probe for optional fields. Two transports exist: AnthropicClient (HTTPS +
// server-sent events) and GeminiClient (google.golang.org/genai).
//
// The package also hosts IntentStrategy, the replaceable best-effort mapping
// from free text to an explicit tool call.
package perception

import "codeassist/internal/types"

// Event is one decoded transport event. The concrete types are TextDelta,
// ToolSignal, Completion and Unknown.
type Event interface {
	isEvent()
}

// TextDelta carries an incremental piece of assistant text.
type TextDelta struct {
	Text string
}

// ToolPhase identifies which part of a tool invocation a ToolSignal carries.
type ToolPhase int

const (
	// ToolStart opens a tool block and names the tool up front.
	ToolStart ToolPhase = iota
	// ToolDelta appends a fragment of the block's JSON arguments.
	ToolDelta
	// ToolStop closes the block; its accumulated arguments are complete.
	ToolStop
	// ToolSnapshot delivers a complete argument map in one event. Name may
	// be empty, in which case the tool has to be inferred from the keys.
	ToolSnapshot
)

func (p ToolPhase) String() string {
	switch p {
	case ToolStart:
		return "start"
	case ToolDelta:
		return "delta"
	case ToolStop:
		return "stop"
	case ToolSnapshot:
		return "snapshot"
	}
	return "unknown"
}

// ToolSignal is one tool-call signal. Index ties start/delta/stop events of
// the same block together.
type ToolSignal struct {
	Phase ToolPhase
	Index int
	ID    string
	Name  string

	// PartialJSON is set on ToolDelta.
	PartialJSON string

	// Input is set on ToolSnapshot.
	Input map[string]any
}

// Completion ends a response.
type Completion struct {
	StopReason string
	Usage      types.Usage
}

// Unknown preserves an event the decoder does not model.
type Unknown struct {
	Type string
	Raw  string
}

func (TextDelta) isEvent()  {}
func (ToolSignal) isEvent() {}
func (Completion) isEvent() {}
func (Unknown) isEvent()    {}
