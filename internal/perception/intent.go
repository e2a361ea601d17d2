package perception

import (
	"regexp"
	"strings"

	"codeassist/internal/logging"
	"codeassist/internal/tools"
)

// Intent is an explicit tool call recognized in free text.
type Intent struct {
	Tool    string
	Input   map[string]any
	Pattern string
}

// IntentStrategy maps free text to at most one tool call. Implementations
// are best-effort; a miss simply leaves the text to the model.
type IntentStrategy interface {
	Detect(text string) (Intent, bool)
}

// NoopIntent never recognizes anything.
type NoopIntent struct{}

// Detect always reports no intent.
func (NoopIntent) Detect(string) (Intent, bool) { return Intent{}, false }

// intentRule builds an intent from a regexp match.
type intentRule struct {
	re    *regexp.Regexp
	build func(m []string) (Intent, bool)
}

// RegexIntent is a cascade of phrase patterns; the first match wins.
type RegexIntent struct {
	rules []intentRule
}

var listPathClause = regexp.MustCompile(`(?i)\b(?:in|of)\s+(?:the\s+)?(?:directory|folder)?\s*([^\s,]+)`)

// NewRegexIntent builds the default phrase cascade: directory changes,
// file reads, listings, file searches and analysis requests.
func NewRegexIntent() *RegexIntent {
	ri := &RegexIntent{}

	workdir := func(m []string) (Intent, bool) {
		p := cleanPath(m[1])
		if p == "" {
			return Intent{}, false
		}
		return Intent{Tool: tools.ToolSetWorkingDirectory, Input: map[string]any{"path": p}}, true
	}
	for _, p := range []string{
		`(?i)\bset\s+(?:the\s+)?(?:working\s+directory|workingdir)\s+to\s+(\S+)`,
		`(?i)\bchange\s+(?:the\s+)?(?:working\s+)?(?:directory|workingdir)\s+to\s+(\S+)`,
		`(?i)\b(?:go|navigate)\s+to\s+(?:the\s+)?directory\s+(\S+)`,
		`(?i)\b(?:use|switch\s+to)\s+(?:the\s+)?directory\s+(\S+)`,
		`(?i)\bworking\s+directory\s+(?:should\s+be|is)\s+(\S+)`,
		`(?i)^\s*cd\s+(\S+)\s*$`,
	} {
		ri.add(p, workdir)
	}

	read := func(m []string) (Intent, bool) {
		p := cleanPath(m[1])
		if p == "" || isFiller(p) {
			return Intent{}, false
		}
		return Intent{Tool: tools.ToolReadFile, Input: map[string]any{"path": p}}, true
	}
	for _, p := range []string{
		`(?i)\bread\s+(?:the\s+)?file\s+(?:called\s+)?([^\s,]+)`,
		`(?i)\bshow\s+(?:me\s+)?(?:the\s+)?contents?\s+of\s+(?:the\s+)?(?:file\s+)?([^\s,]+)`,
		`(?i)\bopen\s+(?:the\s+)?file\s+([^\s,]+)`,
		`(?i)^\s*cat\s+([^\s,]+)\s*$`,
	} {
		ri.add(p, read)
	}

	list := func(m []string) (Intent, bool) {
		path := "."
		if len(m) > 1 && m[1] != "" {
			path = cleanPath(m[1])
		} else if pm := listPathClause.FindStringSubmatch(m[0]); pm != nil {
			if p := cleanPath(pm[1]); p != "" && !isFiller(p) {
				path = p
			}
		}
		return Intent{Tool: tools.ToolListDirectory, Input: map[string]any{"path": path}}, true
	}
	for _, p := range []string{
		`(?i)\b(?:list|show)\s+(?:the\s+)?(?:files|contents)(?:\s+(?:in|of)\s+(?:the\s+)?(?:directory|folder)?\s*[^\s,]*)?`,
		`(?i)\bwhat\s+files\s+(?:are|do\s+we\s+have)(?:\s+(?:in|of)\s+(?:the\s+)?(?:directory|folder)?\s*[^\s,]*)?`,
		`(?i)^\s*(?:ls|dir)(?:\s+(\S+))?\s*$`,
	} {
		ri.add(p, list)
	}

	ri.add(`(?i)\b(?:find|search\s+for|locate)\s+(?:the\s+)?(?:file\s+)?([\w.-]+\.\w+)(?:\s+in\s+(?:the\s+)?(?:(?:directory|folder)\s+)?([^\s,]+))?`, func(m []string) (Intent, bool) {
		name := cleanPath(m[1])
		dir := "."
		if d := cleanPath(m[2]); d != "" {
			dir = d
		}
		return Intent{Tool: tools.ToolFindFiles, Input: map[string]any{
			"path":      dir,
			"pattern":   "^" + regexp.QuoteMeta(name) + "$",
			"recursive": true,
		}}, true
	})

	ri.add(`(?i)\b(?:analy[sz]e|review|examine)\s+(?:the\s+)?(?:code\s+(?:in|of)\s+|file\s+)([^\s,]+)`, func(m []string) (Intent, bool) {
		p := cleanPath(m[1])
		if p == "" {
			return Intent{}, false
		}
		return Intent{Tool: tools.ToolAnalyzeCode, Input: map[string]any{"filepath": p, "analysis_type": "basic"}}, true
	})

	return ri
}

func (ri *RegexIntent) add(pattern string, build func([]string) (Intent, bool)) {
	ri.rules = append(ri.rules, intentRule{re: regexp.MustCompile(pattern), build: build})
}

// Detect returns the first rule's intent that matches text.
func (ri *RegexIntent) Detect(text string) (Intent, bool) {
	for _, r := range ri.rules {
		m := r.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		in, ok := r.build(m)
		if !ok {
			continue
		}
		in.Pattern = r.re.String()
		logging.PerceptionDebug("Intent %s detected via %s", in.Tool, in.Pattern)
		return in, true
	}
	return Intent{}, false
}

// cleanPath strips quotes and sentence punctuation. A trailing period is
// removed only after a name character, so "." and "src/." survive.
func cleanPath(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), ",;:!?")
	if n := len(s); n > 1 && s[n-1] == '.' && s[n-2] != '.' && s[n-2] != '/' {
		s = s[:n-1]
	}
	return strings.Trim(s, `"'`+"`")
}

func isFiller(s string) bool {
	switch strings.ToLower(s) {
	case "the", "directory", "folder", "here", "this", "current":
		return true
	}
	return false
}
