// Package chain decides when a tool call should automatically trigger one
// follow-up call.
//
// Two rule tables exist. Issue rules run before a call executes and may
// mutate it (the pre-modify read). Result rules run after a call and look
// at its outcome. Within each table rules are evaluated in insertion order
// and the first match wins. Chained calls are never chained again.
package chain

import (
	"path/filepath"
	"regexp"
	"strings"

	"codeassist/internal/logging"
	"codeassist/internal/tools"
)

// Config tunes the canonical rules.
type Config struct {
	// Window is how many recent audit records the pre-modify check inspects.
	Window int

	// SourceExtensions gates the read-then-analyze rule.
	SourceExtensions []string
}

// DefaultConfig returns the standard rule configuration.
func DefaultConfig() Config {
	return Config{
		Window: 10,
		SourceExtensions: []string{
			".py", ".go", ".js", ".ts", ".jsx", ".tsx", ".java", ".c", ".cpp",
			".h", ".hpp", ".cs", ".rb", ".rs", ".php", ".swift", ".kt",
		},
	}
}

// EvalContext carries conversation state that result rules may consult.
type EvalContext struct {
	LastAssistantText string
}

// Chained is a follow-up call issued by a rule.
type Chained struct {
	Call tools.ToolCall
	Rule string

	// Merge folds the chained call's result into the parent call before the
	// parent executes. Only issue rules set it.
	Merge func(parent *tools.ToolCall, res tools.Result)
}

// IssueRule inspects a call before execution.
type IssueRule struct {
	Name  string
	Match func(call tools.ToolCall, recent []tools.Record) *Chained
}

// ResultRule inspects a call and its result after execution.
type ResultRule struct {
	Name  string
	Match func(call tools.ToolCall, res tools.Result, ec EvalContext) *Chained
}

// Engine holds the ordered rule tables.
type Engine struct {
	window      int
	issueRules  []IssueRule
	resultRules []ResultRule
}

// Rule names.
const (
	RuleReadBeforeModify  = "read_before_modify"
	RuleListAfterWorkdir  = "list_after_workdir"
	RuleAnalyzeAfterRead  = "analyze_after_read"
	RuleReadSingleMatch   = "read_single_match"
	FileContentMergeField = tools.FileContentField
)

var analysisIntent = regexp.MustCompile(`(?i)\b(analy[sz]e|analy[sz]is|analy[sz]ing|review|reviewing|inspect|examine|audit)\b`)

// NewEngine builds an engine with the canonical rules installed.
func NewEngine(cfg Config) *Engine {
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.SourceExtensions == nil {
		cfg.SourceExtensions = DefaultConfig().SourceExtensions
	}
	exts := make(map[string]bool, len(cfg.SourceExtensions))
	for _, e := range cfg.SourceExtensions {
		exts[strings.ToLower(e)] = true
	}

	e := &Engine{window: cfg.Window}
	e.AddIssueRule(IssueRule{Name: RuleReadBeforeModify, Match: readBeforeModify})
	e.AddResultRule(ResultRule{Name: RuleListAfterWorkdir, Match: listAfterWorkdir})
	e.AddResultRule(ResultRule{Name: RuleAnalyzeAfterRead, Match: analyzeAfterRead(exts)})
	e.AddResultRule(ResultRule{Name: RuleReadSingleMatch, Match: readSingleMatch})
	return e
}

// AddIssueRule appends a pre-execution rule.
func (e *Engine) AddIssueRule(r IssueRule) {
	e.issueRules = append(e.issueRules, r)
}

// AddResultRule appends a post-execution rule.
func (e *Engine) AddResultRule(r ResultRule) {
	e.resultRules = append(e.resultRules, r)
}

// Window returns the audit window size used by issue rules.
func (e *Engine) Window() int {
	return e.window
}

// NextAfterIssue returns the pre-execution follow-up for call, if any.
// recent should hold the latest Window() audit records.
func (e *Engine) NextAfterIssue(call tools.ToolCall, recent []tools.Record) *Chained {
	if call.Origin == tools.OriginChained {
		return nil
	}
	if len(recent) > e.window {
		recent = recent[len(recent)-e.window:]
	}
	for _, r := range e.issueRules {
		if next := r.Match(call, recent); next != nil {
			next.Rule = r.Name
			next.Call.Origin = tools.OriginChained
			logging.Chain("Issue rule %s fired: %s -> %s", r.Name, call.Name, next.Call.Name)
			return next
		}
	}
	return nil
}

// NextAfterResult returns the post-execution follow-up for call, if any.
func (e *Engine) NextAfterResult(call tools.ToolCall, res tools.Result, ec EvalContext) *Chained {
	if call.Origin == tools.OriginChained {
		return nil
	}
	for _, r := range e.resultRules {
		if next := r.Match(call, res, ec); next != nil {
			next.Rule = r.Name
			next.Call.Origin = tools.OriginChained
			logging.Chain("Result rule %s fired: %s -> %s", r.Name, call.Name, next.Call.Name)
			return next
		}
	}
	logging.ChainDebug("No result rule matched %s", call.Name)
	return nil
}

// =============================================================================
// Canonical rules
// =============================================================================

func readBeforeModify(call tools.ToolCall, recent []tools.Record) *Chained {
	if call.Name != tools.ToolModifyCode {
		return nil
	}
	target := tools.StringArg(call.Input, "filepath", "")
	if target == "" {
		return nil
	}
	for _, rec := range recent {
		if rec.Call.Name == tools.ToolReadFile && samePath(rec, target) {
			return nil
		}
	}
	return &Chained{
		Call: tools.ToolCall{
			Name:  tools.ToolReadFile,
			Input: map[string]any{"path": target},
		},
		Merge: func(parent *tools.ToolCall, res tools.Result) {
			content, ok := res["content"].(string)
			if !ok || !res.IsSuccess() {
				return
			}
			if parent.Input == nil {
				parent.Input = map[string]any{}
			}
			parent.Input[FileContentMergeField] = content
		},
	}
}

func samePath(rec tools.Record, target string) bool {
	clean := filepath.Clean(target)
	if p := tools.StringArg(rec.Call.Input, "path", ""); p != "" && filepath.Clean(p) == clean {
		return true
	}
	if abs, ok := rec.Result["absolute_path"].(string); ok && filepath.IsAbs(clean) && abs == clean {
		return true
	}
	return false
}

func listAfterWorkdir(call tools.ToolCall, res tools.Result, _ EvalContext) *Chained {
	if call.Name != tools.ToolSetWorkingDirectory || !res.IsSuccess() {
		return nil
	}
	if ok, present := res["success"].(bool); present && !ok {
		return nil
	}
	// The call's own path may be relative to the directory just left.
	path, _ := res["path"].(string)
	if !filepath.IsAbs(path) {
		path = tools.StringArg(call.Input, "path", "")
	}
	if path == "" {
		return nil
	}
	return &Chained{Call: tools.ToolCall{
		Name:  tools.ToolListDirectory,
		Input: map[string]any{"path": path},
	}}
}

func analyzeAfterRead(exts map[string]bool) func(tools.ToolCall, tools.Result, EvalContext) *Chained {
	return func(call tools.ToolCall, res tools.Result, ec EvalContext) *Chained {
		if call.Name != tools.ToolReadFile || !res.IsSuccess() {
			return nil
		}
		path := tools.StringArg(call.Input, "path", "")
		if !exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if !analysisIntent.MatchString(ec.LastAssistantText) {
			return nil
		}
		return &Chained{Call: tools.ToolCall{
			Name:  tools.ToolAnalyzeCode,
			Input: map[string]any{"filepath": path, "analysis_type": "basic"},
		}}
	}
}

func readSingleMatch(call tools.ToolCall, res tools.Result, _ EvalContext) *Chained {
	if call.Name != tools.ToolFindFiles || !res.IsSuccess() {
		return nil
	}
	matches := matchPaths(res["matches"])
	if len(matches) != 1 {
		return nil
	}
	if total, ok := asInt(res["total_matches"]); ok && total != 1 {
		return nil
	}
	return &Chained{Call: tools.ToolCall{
		Name:  tools.ToolReadFile,
		Input: map[string]any{"path": matches[0]},
	}}
}

// matchPaths reads match paths from either in-process or JSON-decoded results.
func matchPaths(v any) []string {
	var out []string
	switch ms := v.(type) {
	case []map[string]any:
		for _, m := range ms {
			if p, ok := m["path"].(string); ok {
				out = append(out, p)
			}
		}
	case []any:
		for _, m := range ms {
			if mm, ok := m.(map[string]any); ok {
				if p, ok := mm["path"].(string); ok {
					out = append(out, p)
				}
			}
		}
	}
	return out
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}
