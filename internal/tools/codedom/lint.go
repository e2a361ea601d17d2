package codedom

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// MaxLineLength is the line-too-long limit.
const MaxLineLength = 100

// Lint message identifiers, following pylint's numbering.
const (
	LintLineTooLong     = "C0301"
	LintMissingClassDoc = "C0115"
	LintMissingFuncDoc  = "C0116"
	LintBareExcept      = "W0702"
	LintUnusedImport    = "W0611"
	LintFixme           = "W0511"
)

var lintSymbols = map[string]string{
	LintLineTooLong:     "line-too-long",
	LintMissingClassDoc: "missing-class-docstring",
	LintMissingFuncDoc:  "missing-function-docstring",
	LintBareExcept:      "bare-except",
	LintUnusedImport:    "unused-import",
	LintFixme:           "fixme",
}

var fixmeMarker = regexp.MustCompile(`\b(TODO|FIXME|XXX)\b`)

// LintIssue is one finding.
type LintIssue struct {
	Line    int    `json:"line"`
	Code    string `json:"code"`
	Symbol  string `json:"symbol"`
	Message string `json:"message"`
}

// LintReport collects findings for one file.
type LintReport struct {
	Issues []LintIssue    `json:"issues"`
	Counts map[string]int `json:"counts"`
	Score  float64        `json:"score"`
	lines  int
}

func (r *LintReport) add(line int, code, format string, args ...any) {
	r.Issues = append(r.Issues, LintIssue{
		Line:    line,
		Code:    code,
		Symbol:  lintSymbols[code],
		Message: fmt.Sprintf(format, args...),
	})
	r.Counts[lintSymbols[code]]++
}

// Lint runs the style checks for lang over src.
func Lint(ctx context.Context, lang string, src []byte) (*LintReport, error) {
	tree, err := parse(ctx, lang, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	r := &LintReport{Issues: []LintIssue{}, Counts: map[string]int{}}
	lines := strings.Split(string(src), "\n")
	r.lines = len(lines)
	for i, l := range lines {
		if n := utf8.RuneCountInString(strings.TrimRight(l, "\r")); n > MaxLineLength {
			r.add(i+1, LintLineTooLong, "Line too long (%d/%d)", n, MaxLineLength)
		}
	}

	root := tree.RootNode()
	walk(root, func(n *sitter.Node) {
		if n.Type() == "comment" {
			if fixmeMarker.MatchString(n.Content(src)) {
				r.add(int(n.StartPoint().Row)+1, LintFixme, "%s", strings.TrimSpace(strings.TrimLeft(n.Content(src), "#/* ")))
			}
		}
	})

	switch lang {
	case LangPython:
		lintPython(root, src, r)
	case LangGo:
		lintGo(root, src, r)
	case LangJavaScript:
		lintJavaScript(root, src, r)
	}

	sort.SliceStable(r.Issues, func(i, j int) bool { return r.Issues[i].Line < r.Issues[j].Line })
	r.Score = score(len(r.Issues), r.lines)
	return r, nil
}

// score maps issue density to a 0-10 rating.
func score(issues, lines int) float64 {
	if lines == 0 {
		return 10
	}
	s := 10 - 10*float64(issues)/float64(lines)
	if s < 0 {
		return 0
	}
	return float64(int(s*100)) / 100
}

func walk(n *sitter.Node, fn func(*sitter.Node)) {
	fn(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), fn)
	}
}

// =============================================================================
// Python
// =============================================================================

func lintPython(root *sitter.Node, src []byte, r *LintReport) {
	imported := make(map[string]int)
	used := make(map[string]bool)

	walk(root, func(n *sitter.Node) {
		switch n.Type() {
		case "class_definition":
			if !hasPythonDocstring(n) {
				r.add(int(n.StartPoint().Row)+1, LintMissingClassDoc, "Missing class docstring for %s", fieldText(n, "name", src))
			}
		case "function_definition":
			if !hasPythonDocstring(n) {
				r.add(int(n.StartPoint().Row)+1, LintMissingFuncDoc, "Missing function or method docstring for %s", fieldText(n, "name", src))
			}
		case "except_clause":
			if isBareExcept(n) {
				r.add(int(n.StartPoint().Row)+1, LintBareExcept, "No exception type(s) specified")
			}
		case "import_statement", "import_from_statement":
			for name, line := range pythonBoundNames(n, src) {
				imported[name] = line
			}
		case "identifier":
			if !insideImport(n) {
				used[n.Content(src)] = true
			}
		}
	})

	reportUnused(imported, used, r)
}

func hasPythonDocstring(def *sitter.Node) bool {
	body := def.ChildByFieldName("body")
	if body == nil {
		return false
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		first := body.NamedChild(i)
		if first.Type() == "comment" {
			continue
		}
		return first.Type() == "expression_statement" &&
			first.NamedChildCount() > 0 && first.NamedChild(0).Type() == "string"
	}
	return false
}

func isBareExcept(n *sitter.Node) bool {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		switch n.NamedChild(i).Type() {
		case "block", "comment":
			continue
		default:
			return false
		}
	}
	return true
}

// pythonBoundNames returns the names an import binds in the module scope.
func pythonBoundNames(n *sitter.Node, src []byte) map[string]int {
	out := make(map[string]int)
	line := int(n.StartPoint().Row) + 1
	module := n.ChildByFieldName("module_name")
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if module != nil && c.StartByte() == module.StartByte() {
			continue
		}
		switch c.Type() {
		case "dotted_name":
			out[strings.SplitN(c.Content(src), ".", 2)[0]] = line
		case "aliased_import":
			out[fieldText(c, "alias", src)] = line
		}
	}
	return out
}

func insideImport(n *sitter.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "import_statement", "import_from_statement", "import_declaration":
			return true
		}
	}
	return false
}

func reportUnused(imported map[string]int, used map[string]bool, r *LintReport) {
	names := make([]string, 0, len(imported))
	for name := range imported {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name != "" && name != "*" && !used[name] {
			r.add(imported[name], LintUnusedImport, "Unused import %s", name)
		}
	}
}

// =============================================================================
// Go
// =============================================================================

func lintGo(root *sitter.Node, src []byte, r *LintReport) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "function_declaration", "method_declaration":
			name := fieldText(n, "name", src)
			if isExported(name) && !hasLeadingComment(n) {
				r.add(int(n.StartPoint().Row)+1, LintMissingFuncDoc, "Exported function %s should have a comment", name)
			}
		case "type_declaration":
			for j := 0; j < int(n.NamedChildCount()); j++ {
				spec := n.NamedChild(j)
				name := fieldText(spec, "name", src)
				if spec.Type() == "type_spec" && isExported(name) && !hasLeadingComment(n) {
					r.add(int(spec.StartPoint().Row)+1, LintMissingClassDoc, "Exported type %s should have a comment", name)
				}
			}
		}
	}
}

func isExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

// hasLeadingComment reports whether a comment ends on the line directly
// above n.
func hasLeadingComment(n *sitter.Node) bool {
	prev := n.PrevNamedSibling()
	return prev != nil && prev.Type() == "comment" && prev.EndPoint().Row+1 == n.StartPoint().Row
}

// =============================================================================
// JavaScript
// =============================================================================

func lintJavaScript(root *sitter.Node, src []byte, r *LintReport) {
	imported := make(map[string]int)
	used := make(map[string]bool)

	walk(root, func(n *sitter.Node) {
		switch n.Type() {
		case "import_clause":
			line := int(n.StartPoint().Row) + 1
			walk(n, func(c *sitter.Node) {
				if c.Type() != "identifier" {
					return
				}
				// import { a as b } binds b.
				if p := c.Parent(); p != nil && p.Type() == "import_specifier" {
					if alias := p.ChildByFieldName("alias"); alias != nil && alias.StartByte() != c.StartByte() {
						return
					}
				}
				imported[c.Content(src)] = line
			})
		case "identifier", "shorthand_property_identifier":
			if !insideJSImport(n) {
				used[n.Content(src)] = true
			}
		case "catch_clause":
			if n.ChildByFieldName("parameter") == nil {
				r.add(int(n.StartPoint().Row)+1, LintBareExcept, "catch clause discards the error")
			}
		}
	})

	reportUnused(imported, used, r)
}

func insideJSImport(n *sitter.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type() == "import_statement" {
			return true
		}
	}
	return false
}
