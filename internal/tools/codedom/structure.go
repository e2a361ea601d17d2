package codedom

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
)

// Language names used in analysis results.
const (
	LangPython     = "python"
	LangGo         = "go"
	LangJavaScript = "javascript"
)

// languageByExt maps file extensions to analysis languages.
var languageByExt = map[string]string{
	".py":  LangPython,
	".pyw": LangPython,
	".go":  LangGo,
	".js":  LangJavaScript,
	".mjs": LangJavaScript,
	".cjs": LangJavaScript,
	".jsx": LangJavaScript,
}

// DetectLanguage returns the analysis language for path, or the bare
// extension when the language is not supported.
func DetectLanguage(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := languageByExt[ext]; ok {
		return lang, true
	}
	if ext == "" {
		return "unknown", false
	}
	return strings.TrimPrefix(ext, "."), false
}

func grammar(lang string) *sitter.Language {
	switch lang {
	case LangPython:
		return python.GetLanguage()
	case LangGo:
		return golang.GetLanguage()
	case LangJavaScript:
		return javascript.GetLanguage()
	}
	return nil
}

// parse builds a syntax tree with a fresh parser; parsers are not safe for
// concurrent use.
func parse(ctx context.Context, lang string, src []byte) (*sitter.Tree, error) {
	g := grammar(lang)
	if g == nil {
		return nil, fmt.Errorf("no grammar for %s", lang)
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g)
	return parser.ParseCtx(ctx, nil, src)
}

// Symbol is a named definition with 1-based inclusive line bounds.
type Symbol struct {
	Name      string   `json:"name"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	Receiver  string   `json:"receiver,omitempty"`
	Methods   []Symbol `json:"methods,omitempty"`
}

// Import is one imported module or package.
type Import struct {
	Module string `json:"module"`
	Line   int    `json:"line"`
}

// Structure is the outline of a source file.
type Structure struct {
	Language  string   `json:"language"`
	Classes   []Symbol `json:"classes"`
	Functions []Symbol `json:"functions"`
	Imports   []Import `json:"imports"`
}

func symbolOf(n *sitter.Node, name string) Symbol {
	return Symbol{
		Name:      name,
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
	}
}

func fieldText(n *sitter.Node, field string, src []byte) string {
	if c := n.ChildByFieldName(field); c != nil {
		return c.Content(src)
	}
	return ""
}

// Outline extracts classes, functions, methods and imports from src.
func Outline(ctx context.Context, lang string, src []byte) (*Structure, error) {
	tree, err := parse(ctx, lang, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	s := &Structure{Language: lang, Classes: []Symbol{}, Functions: []Symbol{}, Imports: []Import{}}
	root := tree.RootNode()
	switch lang {
	case LangPython:
		outlinePython(root, src, s)
	case LangGo:
		outlineGo(root, src, s)
	case LangJavaScript:
		outlineJavaScript(root, src, s)
	}
	return s, nil
}

func outlinePython(root *sitter.Node, src []byte, s *Structure) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		def := child
		if child.Type() == "decorated_definition" {
			if inner := child.ChildByFieldName("definition"); inner != nil {
				def = inner
			}
		}

		switch def.Type() {
		case "class_definition":
			cls := symbolOf(child, fieldText(def, "name", src))
			if body := def.ChildByFieldName("body"); body != nil {
				for j := 0; j < int(body.NamedChildCount()); j++ {
					m := body.NamedChild(j)
					fn := m
					if m.Type() == "decorated_definition" {
						if inner := m.ChildByFieldName("definition"); inner != nil {
							fn = inner
						}
					}
					if fn.Type() == "function_definition" {
						cls.Methods = append(cls.Methods, symbolOf(m, fieldText(fn, "name", src)))
					}
				}
			}
			s.Classes = append(s.Classes, cls)
		case "function_definition":
			s.Functions = append(s.Functions, symbolOf(child, fieldText(def, "name", src)))
		case "import_statement", "import_from_statement":
			s.Imports = append(s.Imports, pythonImports(def, src)...)
		}
	}
}

func pythonImports(n *sitter.Node, src []byte) []Import {
	line := int(n.StartPoint().Row) + 1
	if n.Type() == "import_from_statement" {
		return []Import{{Module: fieldText(n, "module_name", src), Line: line}}
	}
	var out []Import
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "dotted_name":
			out = append(out, Import{Module: c.Content(src), Line: line})
		case "aliased_import":
			out = append(out, Import{Module: fieldText(c, "name", src), Line: line})
		}
	}
	return out
}

func outlineGo(root *sitter.Node, src []byte, s *Structure) {
	types := make(map[string]int)
	var methods []Symbol

	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "function_declaration":
			s.Functions = append(s.Functions, symbolOf(n, fieldText(n, "name", src)))
		case "method_declaration":
			m := symbolOf(n, fieldText(n, "name", src))
			m.Receiver = goReceiverType(n, src)
			methods = append(methods, m)
		case "type_declaration":
			for j := 0; j < int(n.NamedChildCount()); j++ {
				spec := n.NamedChild(j)
				if spec.Type() != "type_spec" {
					continue
				}
				types[fieldText(spec, "name", src)] = len(s.Classes)
				s.Classes = append(s.Classes, symbolOf(spec, fieldText(spec, "name", src)))
			}
		case "import_declaration":
			collectGoImports(n, src, s)
		}
	}

	for _, m := range methods {
		if idx, ok := types[m.Receiver]; ok {
			s.Classes[idx].Methods = append(s.Classes[idx].Methods, m)
			continue
		}
		s.Functions = append(s.Functions, m)
	}
}

// goReceiverType returns the receiver's base type name without pointer or
// type parameters.
func goReceiverType(n *sitter.Node, src []byte) string {
	recv := n.ChildByFieldName("receiver")
	if recv == nil || recv.NamedChildCount() == 0 {
		return ""
	}
	param := recv.NamedChild(0)
	t := fieldText(param, "type", src)
	t = strings.TrimPrefix(t, "*")
	if i := strings.IndexByte(t, '['); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

func collectGoImports(n *sitter.Node, src []byte, s *Structure) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "import_spec":
			s.Imports = append(s.Imports, Import{
				Module: strings.Trim(fieldText(c, "path", src), "\"`"),
				Line:   int(c.StartPoint().Row) + 1,
			})
		case "import_spec_list":
			collectGoImports(c, src, s)
		}
	}
}

func outlineJavaScript(root *sitter.Node, src []byte, s *Structure) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		if n.Type() == "export_statement" {
			if decl := n.ChildByFieldName("declaration"); decl != nil {
				n = decl
			}
		}

		switch n.Type() {
		case "class_declaration":
			cls := symbolOf(n, fieldText(n, "name", src))
			if body := n.ChildByFieldName("body"); body != nil {
				for j := 0; j < int(body.NamedChildCount()); j++ {
					m := body.NamedChild(j)
					if m.Type() == "method_definition" {
						cls.Methods = append(cls.Methods, symbolOf(m, fieldText(m, "name", src)))
					}
				}
			}
			s.Classes = append(s.Classes, cls)
		case "function_declaration", "generator_function_declaration":
			s.Functions = append(s.Functions, symbolOf(n, fieldText(n, "name", src)))
		case "lexical_declaration", "variable_declaration":
			for j := 0; j < int(n.NamedChildCount()); j++ {
				d := n.NamedChild(j)
				if d.Type() != "variable_declarator" {
					continue
				}
				if v := d.ChildByFieldName("value"); v != nil && (v.Type() == "arrow_function" || v.Type() == "function_expression" || v.Type() == "function") {
					s.Functions = append(s.Functions, symbolOf(d, fieldText(d, "name", src)))
				}
			}
		case "import_statement":
			s.Imports = append(s.Imports, Import{
				Module: strings.Trim(fieldText(n, "source", src), "'\""),
				Line:   int(n.StartPoint().Row) + 1,
			})
		}
	}
}
