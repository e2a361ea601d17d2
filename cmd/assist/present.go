package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"codeassist/internal/tools"
)

// previewLines bounds how much of a read file is echoed back.
const previewLines = 20

// present renders one executed call for the terminal.
func present(rec tools.Record, s styles) string {
	var b strings.Builder
	header := rec.Call.Name
	if rec.Rule != "" {
		header += " (auto: " + rec.Rule + ")"
	}
	b.WriteString(s.Title.Render(header))
	b.WriteString("\n")

	res := rec.Result
	if msg := res.ErrorMessage(); msg != "" {
		b.WriteString(s.Error.Render("Error: " + msg))
		return b.String()
	}

	switch rec.Call.Name {
	case tools.ToolSetWorkingDirectory:
		b.WriteString(fmt.Sprint(res["message"]))
	case tools.ToolReadFile:
		b.WriteString(presentRead(res, s))
	case tools.ToolListDirectory:
		b.WriteString(presentListing(res, s))
	case tools.ToolFindFiles:
		matches := stringList(res["matches"], "path")
		fmt.Fprintf(&b, "%d match(es) for %v in %v", len(matches), res["pattern"], res["search_path"])
		for _, m := range matches {
			b.WriteString("\n  " + m)
		}
	case tools.ToolListLoadedFiles:
		b.WriteString(fmt.Sprint(res["summary"]))
	default:
		if d, ok := res["diff"].(string); ok {
			if strings.TrimSpace(d) == "" {
				b.WriteString(s.Muted.Render("No changes."))
			} else {
				b.WriteString(s.colorDiff(strings.TrimRight(d, "\n")))
			}
			break
		}
		b.WriteString(indentJSON(res))
	}
	return strings.TrimRight(b.String(), "\n")
}

func presentRead(res tools.Result, s styles) string {
	content, _ := res["content"].(string)
	lines := strings.Split(content, "\n")
	var b strings.Builder
	fmt.Fprintf(&b, "%v (%v bytes, %v)\n", res["absolute_path"], res["size_bytes"], res["encoding"])
	shown := lines
	if len(shown) > previewLines {
		shown = shown[:previewLines]
	}
	for i, l := range shown {
		fmt.Fprintf(&b, "%s %s\n", s.Muted.Render(fmt.Sprintf("%4d", i+1)), l)
	}
	if rest := len(lines) - len(shown); rest > 0 {
		b.WriteString(s.Muted.Render(fmt.Sprintf("... %d more line(s)", rest)))
	}
	return b.String()
}

func presentListing(res tools.Result, s styles) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v (%v entries)", res["path"], res["total_entries"])
	for _, d := range stringList(res["directories"], "name") {
		b.WriteString("\n  " + s.Info.Render(d+"/"))
	}
	for _, f := range stringList(res["files"], "name") {
		b.WriteString("\n  " + f)
	}
	return b.String()
}

// stringList accepts the slice shapes tools return for entry lists. Map
// entries contribute their key field.
func stringList(v any, key string) []string {
	switch xs := v.(type) {
	case []string:
		return xs
	case []any:
		out := make([]string, 0, len(xs))
		for _, x := range xs {
			if m, ok := x.(map[string]any); ok {
				out = append(out, fmt.Sprint(m[key]))
				continue
			}
			out = append(out, fmt.Sprint(x))
		}
		return out
	case []map[string]any:
		out := make([]string, 0, len(xs))
		for _, m := range xs {
			out = append(out, fmt.Sprint(m[key]))
		}
		return out
	}
	return nil
}

func indentJSON(res tools.Result) string {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return strings.Join(res.Keys(), ", ")
	}
	return string(data)
}
