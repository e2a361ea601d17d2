package perception

import (
	"encoding/json"
	"sort"
	"strings"

	"codeassist/internal/logging"
	"codeassist/internal/types"
)

type pendingTool struct {
	id   string
	name string
	args strings.Builder
}

// Assembler folds an event sequence into assistant text and resolved tool
// uses. Streaming and unary responses go through the same assembler, so both
// converge on one result shape.
type Assembler struct {
	text       strings.Builder
	open       map[int]*pendingTool
	resolved   []types.ToolUse
	completion Completion
	completed  bool
	unknown    int
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{open: make(map[int]*pendingTool)}
}

// Add consumes one event and returns the text it contributed, if any.
func (a *Assembler) Add(ev Event) string {
	switch e := ev.(type) {
	case TextDelta:
		a.text.WriteString(e.Text)
		return e.Text
	case ToolSignal:
		a.addSignal(e)
	case Completion:
		a.completion = e
		a.completed = true
	case Unknown:
		a.unknown++
		logging.PerceptionDebug("Ignoring unknown event %s", e.Type)
	}
	return ""
}

func (a *Assembler) addSignal(s ToolSignal) {
	switch s.Phase {
	case ToolStart:
		a.open[s.Index] = &pendingTool{id: s.ID, name: s.Name}
	case ToolDelta:
		p, ok := a.open[s.Index]
		if !ok {
			p = &pendingTool{}
			a.open[s.Index] = p
		}
		p.args.WriteString(s.PartialJSON)
	case ToolStop:
		if p, ok := a.open[s.Index]; ok {
			delete(a.open, s.Index)
			a.resolve(p)
		}
	case ToolSnapshot:
		input := s.Input
		if input == nil {
			input = map[string]any{}
		}
		a.resolved = append(a.resolved, types.ToolUse{ID: s.ID, Name: s.Name, Input: input})
	}
}

// resolve decodes a block's accumulated arguments. Undecodable text is kept
// raw for the dispatcher to normalize.
func (a *Assembler) resolve(p *pendingTool) {
	tu := types.ToolUse{ID: p.id, Name: p.name}
	raw := strings.TrimSpace(p.args.String())
	if raw == "" {
		tu.Input = map[string]any{}
	} else if err := json.Unmarshal([]byte(raw), &tu.Input); err != nil || tu.Input == nil {
		tu.Input = nil
		tu.RawInput = raw
	}
	a.resolved = append(a.resolved, tu)
}

// Finish resolves blocks that never received a stop signal, in index order.
func (a *Assembler) Finish() {
	if len(a.open) == 0 {
		return
	}
	idx := make([]int, 0, len(a.open))
	for i := range a.open {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		a.resolve(a.open[i])
	}
	a.open = make(map[int]*pendingTool)
}

// Text returns the accumulated assistant text.
func (a *Assembler) Text() string { return a.text.String() }

// ToolUses returns resolved tool uses in resolution order. Name is empty for
// unnamed snapshots.
func (a *Assembler) ToolUses() []types.ToolUse {
	out := make([]types.ToolUse, len(a.resolved))
	copy(out, a.resolved)
	return out
}

// Completion returns the completion event and whether one arrived.
func (a *Assembler) Completion() (Completion, bool) { return a.completion, a.completed }

// Unknown returns how many unmodeled events were skipped.
func (a *Assembler) Unknown() int { return a.unknown }
