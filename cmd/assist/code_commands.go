package main

import (
	"fmt"
	"strings"

	"codeassist/internal/tools"
)

// codeKind says how a parsed code: command is carried out.
type codeKind int

const (
	codeTools  codeKind = iota // run Calls directly
	codeDiff                   // diff cached content against disk
	codeApply                  // parse the last reply's suggestions, then apply them
	codePrompt                 // model turn with Prompt
)

// codeCommand is a parsed "code:<sub>:<args>" line.
type codeCommand struct {
	Kind   codeKind
	Calls  []tools.ToolCall
	File   string
	Prompt string
}

var analysisTypes = map[string]string{
	"analyze":      "basic",
	"structure":    "structure",
	"pylint":       "pylint",
	"fullanalysis": "full",
}

// parseCodeCommand maps a code: line onto explicit tool calls or a
// model prompt.
func parseCodeCommand(line string) (codeCommand, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(strings.ToLower(line), "code:") {
		return codeCommand{}, fmt.Errorf("not a code command: %q", line)
	}
	rest := line[len("code:"):]
	sub, arg, _ := strings.Cut(rest, ":")
	sub = strings.ToLower(strings.TrimSpace(sub))
	arg = strings.TrimSpace(arg)

	call := func(name string, input map[string]any) tools.ToolCall {
		return tools.ToolCall{Name: name, Input: input, Origin: tools.OriginExplicit}
	}

	switch sub {
	case "workdir":
		if arg == "" {
			return codeCommand{}, fmt.Errorf("usage: code:workdir:<directory>")
		}
		return codeCommand{Kind: codeTools, Calls: []tools.ToolCall{
			call(tools.ToolSetWorkingDirectory, map[string]any{"path": arg}),
		}}, nil

	case "read":
		var calls []tools.ToolCall
		for _, f := range strings.Split(arg, ",") {
			if f = strings.TrimSpace(f); f != "" {
				calls = append(calls, call(tools.ToolReadFile, map[string]any{"path": f}))
			}
		}
		if len(calls) == 0 {
			return codeCommand{}, fmt.Errorf("usage: code:read:<file>[,<file>...]")
		}
		return codeCommand{Kind: codeTools, Calls: calls}, nil

	case "find":
		recursive := false
		if mode, dir, ok := strings.Cut(arg, ":"); ok && strings.EqualFold(mode, "recursive") {
			recursive, arg = true, strings.TrimSpace(dir)
		} else if strings.EqualFold(arg, "recursive") {
			recursive, arg = true, ""
		}
		if arg == "" {
			arg = "."
		}
		return codeCommand{Kind: codeTools, Calls: []tools.ToolCall{
			call(tools.ToolFindFiles, map[string]any{"path": arg, "pattern": ".*", "recursive": recursive}),
		}}, nil

	case "list":
		return codeCommand{Kind: codeTools, Calls: []tools.ToolCall{
			call(tools.ToolListLoadedFiles, map[string]any{}),
		}}, nil

	case "diff":
		if arg == "" {
			return codeCommand{}, fmt.Errorf("usage: code:diff:<file>")
		}
		return codeCommand{Kind: codeDiff, File: arg}, nil

	case "analyze", "structure", "pylint", "fullanalysis":
		if arg == "" {
			return codeCommand{}, fmt.Errorf("usage: code:%s:<file>", sub)
		}
		return codeCommand{Kind: codeTools, Calls: []tools.ToolCall{
			call(tools.ToolAnalyzeCode, map[string]any{"filepath": arg, "analysis_type": analysisTypes[sub]}),
		}}, nil

	case "apply":
		if arg == "" {
			return codeCommand{}, fmt.Errorf("usage: code:apply:<file>")
		}
		return codeCommand{Kind: codeApply, File: arg}, nil

	case "generate", "change":
		file, prompt, _ := strings.Cut(arg, ":")
		file, prompt = strings.TrimSpace(file), strings.TrimSpace(prompt)
		if file == "" || prompt == "" {
			return codeCommand{}, fmt.Errorf("usage: code:%s:<file>:<instructions>", sub)
		}
		return codeCommand{Kind: codePrompt, File: file, Prompt: codePromptFor(sub, file, prompt)}, nil
	}
	return codeCommand{}, fmt.Errorf("unknown code command %q (try /help)", sub)
}

func codePromptFor(sub, file, instructions string) string {
	if sub == "generate" {
		return fmt.Sprintf("Generate the file %s: %s\n\nWrite the complete file with the %s tool.",
			file, instructions, tools.ToolGenerateCode)
	}
	return fmt.Sprintf("Change %s: %s\n\nRead the file if you have not seen it, then apply the edit with the %s tool.",
		file, instructions, tools.ToolModifyCode)
}
