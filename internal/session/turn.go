package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	ctxcompress "codeassist/internal/context"
	"codeassist/internal/logging"
	"codeassist/internal/perception"
	"codeassist/internal/tools"
	"codeassist/internal/types"
	"codeassist/internal/usage"
)

// TurnOptions are per-turn parameters.
type TurnOptions struct {
	// Stream selects the streaming transport call.
	Stream bool

	// OnDelta receives text as it becomes visible: model text deltas, tool
	// annotations and follow-up text. It is never called after the turn
	// returns.
	OnDelta func(text string)

	// Debug adds tool inputs and result excerpts to the annotations.
	Debug bool
}

// TurnResult is the outcome of one turn.
type TurnResult struct {
	ID string

	// Response is everything the caller should show. On failure it is the
	// synthetic "Error: <message>" text.
	Response string

	// Err is set when the turn failed. History then holds the user message
	// but no assistant message.
	Err error

	// ToolCalls lists the calls executed in this turn, chained ones
	// included, in execution order.
	ToolCalls []tools.Record

	Usage    types.Usage
	Duration time.Duration
}

// turnState accumulates one turn's output.
type turnState struct {
	id    string
	opts  TurnOptions
	audit *logging.AuditLogger

	out     strings.Builder
	text    string // model text of the first round
	notices []string
	records []tools.Record
	usage   types.Usage
}

func newTurn(opts TurnOptions) *turnState {
	id := uuid.NewString()
	return &turnState{id: id, opts: opts, audit: logging.AuditWithTurn(id)}
}

// emit appends visible text and forwards it to the caller.
func (t *turnState) emit(s string) {
	if s == "" {
		return
	}
	t.out.WriteString(s)
	if t.opts.OnDelta != nil {
		t.opts.OnDelta(s)
	}
}

func (t *turnState) result(start time.Time) TurnResult {
	return TurnResult{
		ID:        t.id,
		Response:  strings.TrimSpace(t.out.String()),
		ToolCalls: t.records,
		Usage:     t.usage,
		Duration:  time.Since(start),
	}
}

// Process runs one conversational turn for input.
func (e *Executor) Process(ctx context.Context, input string, opts TurnOptions) TurnResult {
	start := time.Now()
	turn := newTurn(opts)

	if !e.gate.TryAcquire(1) {
		return failed(turn, start, ErrTurnInProgress)
	}
	defer e.gate.Release(1)
	defer e.setState(StateIdle)

	transport := e.Transport()
	if transport == nil {
		e.usage.TurnCompleted(usage.OutcomeError)
		return failed(turn, start, ErrNoTransport)
	}

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	logging.Session("Turn %s: processing %d chars (stream=%v)", turn.id, len(input), opts.Stream)
	turn.audit.TurnStart(len(input))

	if err := ctx.Err(); err != nil {
		e.usage.TurnCompleted(usage.OutcomeCancelled)
		return failed(turn, start, err)
	}

	// Idle → AwaitingModel
	e.setState(StateAwaitingModel)
	e.history.AddMessage(types.RoleUser, input)

	asm, err := e.complete(ctx, transport, turn, e.buildRequest(true))
	if err != nil {
		e.usage.TurnCompleted(outcomeOf(ctx))
		turn.audit.TurnEnd(false, 0, time.Since(start))
		logging.SessionWarn("Turn %s: transport failed: %v", turn.id, err)
		return failed(turn, start, err)
	}
	turn.text = asm.Text()

	// StreamingOrUnary → ToolPhase
	e.setState(StateToolPhase)
	for _, use := range asm.ToolUses() {
		call, ok := e.resolveToolUse(use)
		if !ok {
			continue
		}
		e.runCall(ctx, turn, call)
	}

	if len(turn.records) > 0 && e.config.FollowUp {
		e.followUp(ctx, transport, turn)
	}

	// ToolPhase → Finalizing
	e.setState(StateFinalizing)
	res := turn.result(start)
	if res.Response != "" {
		e.history.AddMessage(types.RoleAssistant, res.Response)
	}

	e.usage.TurnCompleted(usage.OutcomeOK)
	turn.audit.TurnEnd(true, len(turn.records), res.Duration)
	logging.Session("Turn %s complete: %d tool calls, %v", turn.id, len(turn.records), res.Duration)
	return res
}

// ExecuteDirect runs explicit tool calls without a model round-trip. Chain
// rules, notices and the audit log apply exactly as in a model turn.
func (e *Executor) ExecuteDirect(ctx context.Context, calls []tools.ToolCall, opts TurnOptions) TurnResult {
	start := time.Now()
	turn := newTurn(opts)

	if !e.gate.TryAcquire(1) {
		return failed(turn, start, ErrTurnInProgress)
	}
	defer e.gate.Release(1)
	defer e.setState(StateIdle)

	logging.Session("Turn %s: %d direct tool calls", turn.id, len(calls))
	e.setState(StateToolPhase)
	for _, call := range calls {
		if call.Origin == "" {
			call.Origin = tools.OriginExplicit
		}
		e.runCall(ctx, turn, call)
	}

	res := turn.result(start)
	if err := ctx.Err(); err != nil {
		res.Err = err
		e.usage.TurnCompleted(usage.OutcomeCancelled)
	} else {
		e.usage.TurnCompleted(usage.OutcomeOK)
	}
	turn.audit.TurnEnd(res.Err == nil, len(turn.records), res.Duration)
	return res
}

// buildRequest assembles system prompt, history and optionally tools.
func (e *Executor) buildRequest(withTools bool) *perception.Request {
	sys, msgs := e.history.ExtractSystemMessage()
	system := e.config.SystemPrompt
	if sys != "" {
		if system != "" {
			system += "\n\n"
		}
		system += sys
	}

	req := &perception.Request{
		System:    system,
		Messages:  ctxcompress.FormatForTransport(msgs),
		MaxTokens: e.config.MaxResponseTokens,
	}
	if withTools {
		req.Tools = e.Registry().Definitions()
	}
	return req
}

// complete performs one model call and assembles its events. Visible text
// is emitted through the turn as it arrives.
func (e *Executor) complete(ctx context.Context, t perception.Transport, turn *turnState, req *perception.Request) (*perception.Assembler, error) {
	start := time.Now()
	asm := perception.NewAssembler()
	e.setState(StateAwaitingModel)

	var err error
	if turn.opts.Stream {
		events, errc := t.Stream(ctx, req)
		first := true
		for ev := range events {
			if first {
				e.setState(StateStreamingOrUnary)
				first = false
			}
			turn.emit(asm.Add(ev))
		}
		err = <-errc
	} else {
		var resp *perception.Response
		resp, err = t.Send(ctx, req)
		if err == nil {
			e.setState(StateStreamingOrUnary)
			for _, ev := range resp.Events() {
				turn.emit(asm.Add(ev))
			}
		}
	}
	if err == nil {
		err = ctx.Err()
	}
	turn.audit.LLMCall(t.Provider(), turn.opts.Stream, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	asm.Finish()
	if c, ok := asm.Completion(); ok {
		turn.usage.InputTokens += c.Usage.InputTokens
		turn.usage.OutputTokens += c.Usage.OutputTokens
		e.usage.Tokens(c.Usage.InputTokens, c.Usage.OutputTokens)
		logging.APIDebug("Completion: stop=%s in=%d out=%d", c.StopReason, c.Usage.InputTokens, c.Usage.OutputTokens)
	}
	if n := asm.Unknown(); n > 0 {
		logging.PerceptionDebug("Ignored %d unknown transport events", n)
	}
	return asm, nil
}

// followUp asks the model, without tools, to comment on this turn's tool
// results. Failures leave the primary response intact.
func (e *Executor) followUp(ctx context.Context, t perception.Transport, turn *turnState) {
	req := e.buildRequest(false)
	if turn.text != "" {
		req.Messages = append(req.Messages, types.WireMessage{
			Role:    types.RoleAssistant,
			Content: []types.ContentBlock{types.TextBlock(turn.text)},
		})
	}

	var sb strings.Builder
	sb.WriteString("Tool results from this turn:\n\n")
	for _, n := range turn.notices {
		sb.WriteString(n)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Briefly explain these results and what to do next.")
	req.Messages = append(req.Messages, types.WireMessage{
		Role:    types.RoleUser,
		Content: []types.ContentBlock{types.TextBlock(sb.String())},
	})

	turn.emit("\n\n")
	if _, err := e.complete(ctx, t, turn, req); err != nil {
		logging.SessionWarn("Turn %s: follow-up failed: %v", turn.id, err)
	}
}

// resolveToolUse turns an assembled tool use into a call. Unnamed snapshots
// are inferred from their keys; ambiguous ones are dropped.
func (e *Executor) resolveToolUse(use types.ToolUse) (tools.ToolCall, bool) {
	call := tools.ToolCall{
		ID:       use.ID,
		Name:     use.Name,
		Input:    use.Input,
		RawInput: use.RawInput,
		Origin:   tools.OriginExplicit,
	}
	if call.Name != "" {
		return call, true
	}
	name, ok := tools.InferTool(use.Input, e.Registry(), e.dispatcher.Paths())
	if !ok {
		logging.PerceptionDebug("Dropping unnamed tool snapshot (%d keys)", len(use.Input))
		return call, false
	}
	call.Name = name
	call.Origin = tools.OriginInferred
	return call, true
}

func failed(turn *turnState, start time.Time, err error) TurnResult {
	return TurnResult{
		ID:        turn.id,
		Response:  fmt.Sprintf("Error: %v", err),
		Err:       err,
		ToolCalls: turn.records,
		Duration:  time.Since(start),
	}
}

func outcomeOf(ctx context.Context) string {
	if ctx.Err() != nil {
		return usage.OutcomeCancelled
	}
	return usage.OutcomeError
}
