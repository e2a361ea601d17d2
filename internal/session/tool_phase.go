package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"codeassist/internal/logging"
	"codeassist/internal/tools"
	"codeassist/internal/tools/chain"
	"codeassist/internal/types"
)

// runCall executes call plus at most one chained call. A pre-execution
// chain runs first and may fold its result into call; otherwise result
// rules are consulted once call has run.
func (e *Executor) runCall(ctx context.Context, turn *turnState, call tools.ToolCall) {
	evalText := turn.text
	if evalText == "" {
		evalText = e.history.LastAssistantText()
	}

	pre := e.chains.NextAfterIssue(call, e.calls.Recent(e.chains.Window()))
	if pre != nil {
		res, _, ok := e.execute(ctx, turn, pre.Call, pre.Rule, call.Name)
		if ok && pre.Merge != nil {
			pre.Merge(&call, res)
		}
	}

	res, effective, ok := e.execute(ctx, turn, call, "", "")
	if !ok || pre != nil {
		return
	}

	next := e.chains.NextAfterResult(effective, res, chain.EvalContext{LastAssistantText: evalText})
	if next != nil {
		e.execute(ctx, turn, next.Call, next.Rule, effective.Name)
	}
}

// execute dispatches one call, records it and appends its notice. The
// returned call carries the dispatcher's normalized input and effective
// name. ok is false when the call was skipped because ctx is done.
func (e *Executor) execute(ctx context.Context, turn *turnState, call tools.ToolCall, rule, parent string) (tools.Result, tools.ToolCall, bool) {
	if err := ctx.Err(); err != nil {
		logging.SessionWarn("Skipping %s: %v", call.Name, err)
		return nil, call, false
	}
	if call.ID == "" {
		call.ID = "call_" + uuid.NewString()
	}
	if call.Origin == "" {
		call.Origin = tools.OriginExplicit
	}

	requested := call.Name
	turn.audit.ToolInvoke(requested, string(call.Origin))
	start := time.Now()
	res := e.dispatcher.Execute(ctx, &call)
	turn.audit.ToolComplete(call.Name, res.ErrorMessage(), time.Since(start))
	if call.Name != requested {
		logging.Tools("%s redirected to %s", requested, call.Name)
	}

	rec := e.calls.Append(call, res, rule)
	if rule != "" {
		e.usage.ChainHop(rule)
		turn.audit.ChainFired(rule, parent, call.Name)
	}

	notice := e.notice(rec)
	e.history.AddMessage(types.RoleSystem, notice)
	turn.notices = append(turn.notices, notice)
	turn.records = append(turn.records, rec)
	turn.emit(annotation(rec, turn.opts.Debug))

	if turn.opts.Debug {
		logging.SessionDebug("Tool %s (%s) input=%s", call.Name, call.Origin, compactJSON(call.Input))
	}
	return res, call, true
}

// notice renders the durable system message for a recorded call.
func (e *Executor) notice(rec tools.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tool call: %s", rec.Call.Name)
	if rec.Rule != "" {
		fmt.Fprintf(&sb, " (chained by %s)", rec.Rule)
	}
	fmt.Fprintf(&sb, "\nInput: %s", compactJSON(rec.Call.Input))

	result := compactJSON(rec.Result)
	if limit := e.config.NoticeMaxChars; limit > 0 && len(result) > limit {
		result = strings.ToValidUTF8(result[:limit], "") + "... [truncated]"
	}
	fmt.Fprintf(&sb, "\nResult: %s", result)
	return sb.String()
}

// annotation is the human-readable line added to the turn's visible output.
func annotation(rec tools.Record, debug bool) string {
	label := rec.Call.Name
	if rec.Rule != "" {
		label += " (auto: " + rec.Rule + ")"
	}

	var sb strings.Builder
	if msg := rec.Result.ErrorMessage(); msg != "" {
		fmt.Fprintf(&sb, "\n[Tool %s failed: %s]\n", label, msg)
	} else {
		fmt.Fprintf(&sb, "\n[Tool %s completed]\n", label)
	}
	if debug {
		fmt.Fprintf(&sb, "  input: %s\n", compactJSON(rec.Call.Input))
		fmt.Fprintf(&sb, "  result: %s\n", excerpt(compactJSON(rec.Result), 200))
	}
	return sb.String()
}

// compactJSON marshals v without HTML escaping so source text stays legible.
func compactJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSpace(buf.String())
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "") + "..."
}
