package codedom

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"codeassist/internal/tools"
)

// Change is one structured edit. Line 0 means "anywhere in the file".
type Change struct {
	Line    int    `json:"line"`
	OldCode string `json:"old_code"`
	NewCode string `json:"new_code"`
}

// AsMap renders the change the way tool results carry it.
func (c Change) AsMap() map[string]any {
	return map[string]any{"line": c.Line, "old_code": c.OldCode, "new_code": c.NewCode}
}

var (
	lineSuggestion = regexp.MustCompile(`(?i)line\s+(\d+):\s*(?:replace|change)\s+'([^']+)'\s+(?:with|to)\s+'([^']+)'`)
	fencedBlock    = regexp.MustCompile("(?s)```[\\w+-]*\\n(.*?)```")
	hunkHeader     = regexp.MustCompile(`@@ -\d+(?:,\d+)? \+(\d+)`)
	replaceThis    = regexp.MustCompile("(?is)(?:replace|change) this:\\s*```[\\w+-]*\\n(.*?)```\\s*(?:with|to):? this:\\s*```[\\w+-]*\\n(.*?)```")
)

// ParseSuggestions extracts structured changes from free text. Three
// notations are recognized, in this order:
//
//	Line 12: replace 'a' with 'b'
//	fenced blocks of -old/+new pairs, optionally git hunks (@@ -x +y @@)
//	Replace this: ```old``` With this: ```new```
func ParseSuggestions(text string) []Change {
	changes := make([]Change, 0)

	for _, m := range lineSuggestion.FindAllStringSubmatch(text, -1) {
		n, _ := strconv.Atoi(m[1])
		changes = append(changes, Change{Line: n, OldCode: m[2], NewCode: m[3]})
	}

	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		changes = append(changes, parseFencedBlock(strings.Split(m[1], "\n"))...)
	}

	for _, m := range replaceThis.FindAllStringSubmatch(text, -1) {
		changes = append(changes, Change{
			Line:    0,
			OldCode: strings.TrimSpace(m[1]),
			NewCode: strings.TrimSpace(m[2]),
		})
	}
	return changes
}

// parseFencedBlock pairs each "-" line with an immediately following "+"
// line. Git hunks position the pair from the header's new-file start;
// plain blocks count non-addition lines from zero.
func parseFencedBlock(lines []string) []Change {
	isGit := false
	for _, l := range lines {
		if strings.HasPrefix(l, "@@ ") || strings.HasPrefix(l, "--- ") {
			isGit = true
			break
		}
	}

	var out []Change
	current := 0
	for i, l := range lines {
		if isGit && strings.HasPrefix(l, "@@ ") {
			if m := hunkHeader.FindStringSubmatch(l); m != nil {
				current, _ = strconv.Atoi(m[1])
			}
			continue
		}

		paired := strings.HasPrefix(l, "-") && !strings.HasPrefix(l, "---") &&
			i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+") && !strings.HasPrefix(lines[i+1], "+++")
		if paired {
			out = append(out, Change{
				Line:    current,
				OldCode: strings.TrimSpace(l[1:]),
				NewCode: strings.TrimSpace(lines[i+1][1:]),
			})
		}

		if isGit {
			if !strings.HasPrefix(l, "+") && !strings.HasPrefix(l, "-") {
				current++
			}
		} else if !strings.HasPrefix(l, "+") {
			current++
		}
	}
	return out
}

// decodeChanges accepts changes as decoded JSON ([]any of objects) or as
// already-typed slices.
func decodeChanges(raw any) ([]Change, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []Change:
		return v, nil
	case []map[string]any:
		out := make([]Change, 0, len(v))
		for _, m := range v {
			out = append(out, changeFromMap(m))
		}
		return out, nil
	case []any:
		out := make([]Change, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: changes[%d] must be an object", tools.ErrInvalidArgType, i)
			}
			out = append(out, changeFromMap(m))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: changes must be an array", tools.ErrInvalidArgType)
	}
}

func changeFromMap(m map[string]any) Change {
	return Change{
		Line:    tools.IntArg(m, "line", 0),
		OldCode: tools.StringArg(m, "old_code", ""),
		NewCode: tools.StringArg(m, "new_code", ""),
	}
}

// ParseSuggestionsTool returns the tool wrapper around ParseSuggestions.
func ParseSuggestionsTool() *tools.Tool {
	return &tools.Tool{
		Name:        tools.ToolParseSuggestions,
		Description: "Parse code change suggestions from text into structured format",
		Category:    tools.CategoryCode,
		Execute:     executeParseSuggestions,
		Schema: tools.ToolSchema{
			Required: []string{"suggestion_text"},
			Properties: map[string]tools.Property{
				"suggestion_text": {Type: "string", Description: "Text containing code change suggestions"},
			},
		},
	}
}

func executeParseSuggestions(ctx context.Context, args map[string]any) (tools.Result, error) {
	text, err := tools.RequireString(args, "suggestion_text")
	if err != nil {
		return nil, err
	}
	if text == "" {
		return tools.ErrorResult("Missing required parameter: suggestion_text"), nil
	}

	changes := ParseSuggestions(text)
	out := make([]map[string]any, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.AsMap())
	}
	return tools.Result{"changes": out, "count": len(out)}, nil
}
