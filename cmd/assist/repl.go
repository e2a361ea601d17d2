package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"codeassist/internal/logging"
	"codeassist/internal/session"
	"codeassist/internal/tools"
)

type inputLine struct {
	text string
	err  error
}

// readLoop feeds complete inputs to the returned channel until EOF or a
// read error, which is delivered last.
func readLoop(ctx context.Context, in io.Reader) <-chan inputLine {
	ch := make(chan inputLine)
	go func() {
		defer close(ch)
		r := bufio.NewReader(in)
		for {
			text, err := readInput(r)
			select {
			case ch <- inputLine{text: text, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

// run is the interactive loop. It returns when input ends, /exit is
// entered or ctx is cancelled.
func (a *app) run(ctx context.Context, in io.Reader) error {
	a.banner()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := readLoop(ctx, in)
	for {
		fmt.Fprint(a.out, a.styles.Prompt.Render("\nyou> "))
		var line inputLine
		select {
		case <-ctx.Done():
			fmt.Fprintln(a.out)
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}
		if errors.Is(line.err, io.EOF) {
			fmt.Fprintln(a.out)
			return nil
		}
		if line.err != nil {
			return fmt.Errorf("failed to read input: %w", line.err)
		}
		if a.handle(ctx, line.text) {
			return nil
		}
	}
}

func (a *app) banner() {
	fmt.Fprintln(a.out, a.styles.Box.Render(
		a.styles.Title.Render(a.cfg.Name+" "+a.cfg.Version)+"\n"+
			a.styles.Muted.Render("Workspace: "+a.ws.WorkDir())+"\n"+
			a.styles.Muted.Render("End multi-line input with END. Type /help for commands.")))
}

// handle routes one input. It reports whether the session should end.
func (a *app) handle(ctx context.Context, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}
	logging.CLIDebug("Input (%d chars)", len(input))

	switch {
	case strings.HasPrefix(input, "/"):
		return a.slash(input)
	case strings.HasPrefix(strings.ToLower(input), "code:"):
		a.code(ctx, input)
	default:
		if in, ok := a.intents.Detect(input); ok {
			logging.CLI("Intent %s recognized", in.Tool)
			a.direct(ctx, []tools.ToolCall{{Name: in.Tool, Input: in.Input, Origin: tools.OriginExplicit}})
		}
		a.turn(ctx, input)
	}
	return false
}

// turn runs one model turn and renders its reply.
func (a *app) turn(ctx context.Context, input string) {
	opts := session.TurnOptions{Stream: a.stream, Debug: a.debug}
	fmt.Fprintln(a.out, a.styles.Assistant.Render("assistant>"))
	if a.stream {
		opts.OnDelta = typist{ctx: ctx, w: a.out, delay: a.delay}.Write
	}

	res := a.exec.Process(ctx, input, opts)
	switch {
	case res.Err != nil:
		if a.stream {
			fmt.Fprintln(a.out)
		}
		a.errorf("%s", res.Response)
	case a.stream:
		fmt.Fprintln(a.out)
	default:
		fmt.Fprintln(a.out, a.md.Render(res.Response))
	}
	logging.CLIDebug("Turn %s finished in %s with %d tool call(s)", res.ID, res.Duration, len(res.ToolCalls))
	a.tokenWarning()
}

func (a *app) tokenWarning() {
	pct := a.exec.Context().TokenPercentage()
	if limit := a.cfg.UX.TokenWarningPercent; limit > 0 && pct > float64(limit) {
		a.warn("Context is %.1f%% full; older messages will be summarized past %.0f%%.",
			pct, a.cfg.Context.CompactThreshold*100)
	}
}

// direct executes explicit calls through the tool phase and prints each
// record, chained ones included.
func (a *app) direct(ctx context.Context, calls []tools.ToolCall) []tools.Record {
	res := a.exec.ExecuteDirect(ctx, calls, session.TurnOptions{Debug: a.debug})
	for _, rec := range res.ToolCalls {
		fmt.Fprintln(a.out, present(rec, a.styles))
	}
	if res.Err != nil {
		a.errorf("Error: %v", res.Err)
	}
	return res.ToolCalls
}

func (a *app) code(ctx context.Context, input string) {
	cmd, err := parseCodeCommand(input)
	if err != nil {
		a.errorf("%v", err)
		return
	}
	switch cmd.Kind {
	case codeTools:
		a.direct(ctx, cmd.Calls)
	case codeDiff:
		a.diffLoaded(ctx, cmd.File)
	case codeApply:
		a.applySuggestions(ctx, cmd.File)
	case codePrompt:
		a.turn(ctx, cmd.Prompt)
	}
}

// diffLoaded diffs the loaded copy of file against the disk.
func (a *app) diffLoaded(ctx context.Context, file string) {
	cached, ok := a.ws.Cached(file)
	if !ok {
		a.warn("%s is not loaded; read it first with code:read:%s", file, file)
		return
	}
	disk, err := os.ReadFile(a.ws.Resolve(file))
	if err != nil {
		a.errorf("Error reading %s: %v", file, err)
		return
	}
	a.direct(ctx, []tools.ToolCall{{
		Name:   tools.ToolGenerateDiff,
		Origin: tools.OriginExplicit,
		Input: map[string]any{
			"original": cached,
			"modified": string(disk),
			"filename": file,
		},
	}})
}

// applySuggestions parses change suggestions out of the last reply and
// applies them to file.
func (a *app) applySuggestions(ctx context.Context, file string) {
	text := a.exec.Context().LastAssistantText()
	if text == "" {
		a.warn("No assistant reply to take suggestions from.")
		return
	}
	recs := a.direct(ctx, []tools.ToolCall{{
		Name:   tools.ToolParseSuggestions,
		Origin: tools.OriginExplicit,
		Input:  map[string]any{"suggestion_text": text},
	}})
	if len(recs) == 0 || !recs[0].Result.IsSuccess() {
		return
	}
	changes := recs[0].Result["changes"]
	if n, _ := recs[0].Result["count"].(int); n == 0 {
		a.warn("No change suggestions found in the last reply.")
		return
	}
	a.direct(ctx, []tools.ToolCall{{
		Name:   tools.ToolApplyChanges,
		Origin: tools.OriginExplicit,
		Input:  map[string]any{"filepath": file, "changes": changes},
	}})
}

const helpText = `Commands:
  /help                 show this help
  /exit                 leave the session
  /clear                forget the conversation (loaded files are kept)
  /status               token budget, loaded files and session counters
  /debug                toggle tool details and debug logging
  /tools                list the registered tools
  /history              list the conversation messages
  /metrics              dump session counters in prometheus text format

Code commands:
  code:workdir:<dir>            set the working directory
  code:read:<file>[,<file>]     read files
  code:find:<dir>               list files (code:find:recursive:<dir> descends)
  code:list                     list loaded files
  code:diff:<file>              diff the loaded copy against the disk
  code:analyze:<file>           basic analysis (also structure, pylint, fullanalysis)
  code:apply:<file>             apply suggestions from the last reply
  code:generate:<file>:<what>   ask the model to write a new file
  code:change:<file>:<what>     ask the model to edit a file

Anything else is sent to the model. End multi-line input with END.`

// slash runs a slash command. It reports whether the session should end.
func (a *app) slash(input string) bool {
	name, _, _ := strings.Cut(strings.TrimSpace(input), " ")
	logging.CLI("Slash command %s", name)

	switch strings.ToLower(name) {
	case "/help":
		fmt.Fprintln(a.out, helpText)
	case "/exit", "/quit":
		a.info("Goodbye.")
		return true
	case "/clear":
		if err := a.exec.Clear(); err != nil {
			a.errorf("%v", err)
			break
		}
		a.seedSystemMessage()
		a.info("Conversation cleared.")
	case "/status":
		a.status()
	case "/debug":
		a.debug = !a.debug
		logging.SetDebugMode(a.debug)
		if a.debug {
			logging.SetLevel("debug")
		} else {
			logging.SetLevel(a.cfg.Logging.Level)
		}
		a.info("Debug mode %s.", onOff(a.debug))
	case "/tools":
		a.listTools()
	case "/history":
		a.history()
	case "/metrics":
		if err := a.exec.Usage().WriteText(a.out); err != nil {
			a.errorf("Error writing metrics: %v", err)
		}
	default:
		a.warn("Unknown command %s. Type /help for commands.", name)
	}
	return false
}

func (a *app) status() {
	h := a.exec.Context()
	model := "not connected"
	if t := a.exec.Transport(); t != nil {
		model = t.Provider() + "/" + t.Model()
	}
	snap := a.exec.Usage().Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "Model:          %s\n", model)
	fmt.Fprintf(&b, "Working dir:    %s\n", a.ws.WorkDir())
	fmt.Fprintf(&b, "Tokens:         %d / %d (%.1f%%)\n", h.TokenUsage(), h.MaxTokens(), h.TokenPercentage())
	fmt.Fprintf(&b, "Messages:       %d\n", h.Len())
	fmt.Fprintf(&b, "Loaded files:   %d\n", len(a.ws.LoadedPaths()))
	fmt.Fprintf(&b, "Turns:          %d\n", snap.TotalTurns())
	fmt.Fprintf(&b, "Tool calls:     %d (%d failed)\n", snap.ToolCalls, snap.ToolErrors)
	fmt.Fprintf(&b, "Chain hops:     %d\n", snap.TotalChainHops())
	fmt.Fprintf(&b, "Compactions:    %d\n", snap.Compactions)
	fmt.Fprintf(&b, "Model tokens:   %d in / %d out\n", snap.Tokens.Input, snap.Tokens.Output)
	fmt.Fprintf(&b, "Debug:          %s", onOff(a.debug))
	fmt.Fprintln(a.out, a.styles.Box.Render(b.String()))
}

func (a *app) listTools() {
	list := a.exec.Registry().List()
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	for _, t := range list {
		fmt.Fprintf(a.out, "%s  %s\n", a.styles.Title.Render(fmt.Sprintf("%-24s", t.Name)), t.Description)
	}
}

func (a *app) history() {
	msgs := a.exec.Context().Messages()
	if len(msgs) == 0 {
		a.info("History is empty.")
		return
	}
	for i, m := range msgs {
		content := strings.ReplaceAll(m.Content, "\n", " ")
		if len(content) > 100 {
			content = content[:100] + "..."
		}
		fmt.Fprintf(a.out, "%3d %s %s\n", i+1, a.styles.Muted.Render(fmt.Sprintf("%-9s", m.Role)), content)
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
