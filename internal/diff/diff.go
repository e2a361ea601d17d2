// Package diff computes line diffs with sergi/go-diff and renders them in
// unified format.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContext is the number of unchanged lines shown around each change.
const DefaultContext = 3

// LineType represents the type of diff line
type LineType int

const (
	LineContext LineType = iota // Unchanged context line
	LineAdded                   // Added line
	LineRemoved                 // Removed line
)

// Line represents a single line in the diff
type Line struct {
	LineNum int
	Content string
	Type    LineType
}

// Hunk represents a group of changes. Starts are 1-based.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// FileDiff represents changes to a single file
type FileDiff struct {
	OldPath  string
	NewPath  string
	Hunks    []Hunk
	IsNew    bool
	IsDelete bool
}

// Stats counts changed lines, excluding headers.
type Stats struct {
	Added   int
	Removed int
}

// Total returns added plus removed.
func (s Stats) Total() int { return s.Added + s.Removed }

// Engine computes line diffs. It is safe for concurrent use.
type Engine struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// NewEngine creates a new diff engine with optimal settings
func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0 // Disable timeout for accuracy
	return &Engine{dmp: dmp}
}

// DefaultEngine is a singleton engine for general use
var DefaultEngine = NewEngine()

// ComputeDiff creates a FileDiff with the default context width.
func (e *Engine) ComputeDiff(oldPath, newPath, oldContent, newContent string) *FileDiff {
	return e.ComputeDiffContext(oldPath, newPath, oldContent, newContent, DefaultContext)
}

// ComputeDiffContext creates a FileDiff showing contextLines unchanged lines
// around each change.
func (e *Engine) ComputeDiffContext(oldPath, newPath, oldContent, newContent string, contextLines int) *FileDiff {
	if contextLines < 0 {
		contextLines = 0
	}

	fileDiff := &FileDiff{
		OldPath:  oldPath,
		NewPath:  newPath,
		IsNew:    oldContent == "",
		IsDelete: newContent == "",
	}

	if oldContent != newContent {
		// A missing final newline would otherwise make the last line differ.
		// Lines are encoded one rune each.
		a, b, lineArray := e.dmp.DiffLinesToRunes(terminate(oldContent), terminate(newContent))
		diffs := e.dmp.DiffMainRunes(a, b, false)
		diffs = e.dmp.DiffCharsToLines(diffs, lineArray)
		fileDiff.Hunks = groupIntoHunks(diffsToOperations(diffs), contextLines)
	}
	return fileDiff
}

// Unified renders oldContent -> newContent as a unified diff with the given
// header names. Returns "" when the inputs are equal.
func Unified(oldName, newName, oldContent, newContent string, contextLines int) string {
	return DefaultEngine.ComputeDiffContext(oldName, newName, oldContent, newContent, contextLines).Unified()
}

func terminate(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// operation is one line with its position in both inputs (0-based).
type operation struct {
	typ     LineType
	oldPos  int
	newPos  int
	content string
}

func diffsToOperations(diffs []diffmatchpatch.Diff) []operation {
	ops := make([]operation, 0)
	oldPos, newPos := 0, 0

	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			op := operation{oldPos: oldPos, newPos: newPos, content: line}
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				op.typ = LineContext
				oldPos++
				newPos++
			case diffmatchpatch.DiffDelete:
				op.typ = LineRemoved
				oldPos++
			case diffmatchpatch.DiffInsert:
				op.typ = LineAdded
				newPos++
			}
			ops = append(ops, op)
		}
	}
	return ops
}

// groupIntoHunks merges changes separated by at most 2*contextLines
// unchanged lines into one hunk.
func groupIntoHunks(ops []operation, contextLines int) []Hunk {
	var changes []int
	for i, op := range ops {
		if op.typ != LineContext {
			changes = append(changes, i)
		}
	}
	if len(changes) == 0 {
		return nil
	}

	var hunks []Hunk
	first, last := changes[0], changes[0]
	flush := func() {
		start := first - contextLines
		if start < 0 {
			start = 0
		}
		end := last + contextLines
		if end > len(ops)-1 {
			end = len(ops) - 1
		}
		hunks = append(hunks, buildHunk(ops[start:end+1]))
	}

	for _, idx := range changes[1:] {
		if idx-last-1 > 2*contextLines {
			flush()
			first = idx
		}
		last = idx
	}
	flush()
	return hunks
}

func buildHunk(ops []operation) Hunk {
	h := Hunk{
		OldStart: ops[0].oldPos + 1,
		NewStart: ops[0].newPos + 1,
		Lines:    make([]Line, 0, len(ops)),
	}
	for _, op := range ops {
		num := op.oldPos + 1
		if op.typ == LineAdded {
			num = op.newPos + 1
		}
		h.Lines = append(h.Lines, Line{LineNum: num, Content: op.content, Type: op.typ})
	}
	computeHunkCounts(&h)
	return h
}

// computeHunkCounts calculates OldCount and NewCount for a hunk
func computeHunkCounts(hunk *Hunk) {
	for _, line := range hunk.Lines {
		if line.Type == LineRemoved || line.Type == LineContext {
			hunk.OldCount++
		}
		if line.Type == LineAdded || line.Type == LineContext {
			hunk.NewCount++
		}
	}
}

// HasChanges reports whether the diff contains any hunk.
func (d *FileDiff) HasChanges() bool {
	return len(d.Hunks) > 0
}

// Stats counts added and removed lines across all hunks.
func (d *FileDiff) Stats() Stats {
	var s Stats
	for _, h := range d.Hunks {
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				s.Added++
			case LineRemoved:
				s.Removed++
			}
		}
	}
	return s
}

// Unified renders the diff in unified format. Empty when there are no hunks.
func (d *FileDiff) Unified() string {
	if len(d.Hunks) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", d.OldPath, d.NewPath)
	for _, h := range d.Hunks {
		fmt.Fprintf(&sb, "@@ -%s +%s @@\n", formatRange(h.OldStart, h.OldCount), formatRange(h.NewStart, h.NewCount))
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				sb.WriteByte('+')
			case LineRemoved:
				sb.WriteByte('-')
			default:
				sb.WriteByte(' ')
			}
			sb.WriteString(l.Content)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// formatRange follows the GNU convention: a single line prints only its
// start, an empty range prints the line before it.
func formatRange(start, count int) string {
	switch count {
	case 1:
		return fmt.Sprintf("%d", start)
	case 0:
		return fmt.Sprintf("%d,0", start-1)
	default:
		return fmt.Sprintf("%d,%d", start, count)
	}
}

// Similarity is the fraction of positions at which a and b hold the same
// byte, relative to the longer string. Two empty strings are identical.
func Similarity(a, b string) float64 {
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	if longer == 0 {
		return 1.0
	}
	shorter := len(a) + len(b) - longer
	matches := 0
	for i := 0; i < shorter; i++ {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(longer)
}

// ComputeWordLevelDiff computes word-level differences within a line
// This is useful for highlighting specific changes within modified lines
func (e *Engine) ComputeWordLevelDiff(oldLine, newLine string) []diffmatchpatch.Diff {
	diffs := e.dmp.DiffMain(oldLine, newLine, false)
	diffs = e.dmp.DiffCleanupSemantic(diffs)
	return diffs
}
