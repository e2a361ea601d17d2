package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/sergi/go-diff/diffmatchpatch"

	"codeassist/internal/diff"
)

// Palette
var (
	colorPrimary = lipgloss.Color("#8BC34A")
	colorInfo    = lipgloss.Color("#2196F3")
	colorWarning = lipgloss.Color("#FFC107")
	colorError   = lipgloss.Color("#e53935")
	colorMuted   = lipgloss.Color("#6b7689")
	colorAdded   = lipgloss.Color("#4db6ac")
	colorRemoved = lipgloss.Color("#e57373")
)

// styles bundles the terminal styles. With colors off every style renders
// its input unchanged.
type styles struct {
	Title     lipgloss.Style
	Prompt    lipgloss.Style
	Assistant lipgloss.Style
	Info      lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Muted     lipgloss.Style
	Added     lipgloss.Style
	Removed   lipgloss.Style
	Box       lipgloss.Style

	colored bool
}

func newStyles(useColors bool) styles {
	if !useColors {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain, plain, plain, plain, plain, false}
	}
	return styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		Prompt:    lipgloss.NewStyle().Bold(true).Foreground(colorInfo),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		Info:      lipgloss.NewStyle().Foreground(colorInfo),
		Warning:   lipgloss.NewStyle().Foreground(colorWarning),
		Error:     lipgloss.NewStyle().Foreground(colorError),
		Muted:     lipgloss.NewStyle().Foreground(colorMuted),
		Added:     lipgloss.NewStyle().Foreground(colorAdded),
		Removed:   lipgloss.NewStyle().Foreground(colorRemoved),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1),
		colored: true,
	}
}

// colorDiff styles added and removed lines of a unified diff. A removed
// line directly followed by an added line is treated as an edit and its
// changed words are highlighted.
func (s styles) colorDiff(text string) string {
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		l := lines[i]
		switch {
		case strings.HasPrefix(l, "+++"), strings.HasPrefix(l, "---"):
			lines[i] = s.Muted.Render(l)
		case strings.HasPrefix(l, "-") && i+1 < len(lines) && isAddedLine(lines[i+1]):
			lines[i], lines[i+1] = s.wordDiff(l[1:], lines[i+1][1:])
			i++
		case strings.HasPrefix(l, "+"):
			lines[i] = s.Added.Render(l)
		case strings.HasPrefix(l, "-"):
			lines[i] = s.Removed.Render(l)
		case strings.HasPrefix(l, "@@"):
			lines[i] = s.Info.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}

func isAddedLine(l string) bool {
	return strings.HasPrefix(l, "+") && !strings.HasPrefix(l, "+++")
}

// wordDiff renders an edited line pair with the changed spans emphasized.
func (s styles) wordDiff(oldLine, newLine string) (string, string) {
	if !s.colored {
		return "-" + oldLine, "+" + newLine
	}
	var before, after strings.Builder
	before.WriteString(s.Removed.Render("-"))
	after.WriteString(s.Added.Render("+"))
	for _, d := range diff.DefaultEngine.ComputeWordLevelDiff(oldLine, newLine) {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			before.WriteString(s.Removed.Render(d.Text))
			after.WriteString(s.Added.Render(d.Text))
		case diffmatchpatch.DiffDelete:
			before.WriteString(s.Removed.Bold(true).Underline(true).Render(d.Text))
		case diffmatchpatch.DiffInsert:
			after.WriteString(s.Added.Bold(true).Underline(true).Render(d.Text))
		}
	}
	return before.String(), after.String()
}

// markdown renders final replies. A nil renderer passes text through.
type markdown struct {
	renderer *glamour.TermRenderer
}

func newMarkdown(enabled bool, wrap int) markdown {
	if !enabled {
		return markdown{}
	}
	if wrap <= 0 {
		wrap = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return markdown{}
	}
	return markdown{renderer: r}
}

func (m markdown) Render(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// typist writes streamed chunks one rune at a time with a fixed delay.
// Once ctx is done the remaining text is written without delay.
type typist struct {
	ctx   context.Context
	w     io.Writer
	delay time.Duration
}

func (t typist) Write(chunk string) {
	if t.delay <= 0 || t.ctx.Err() != nil {
		fmt.Fprint(t.w, chunk)
		return
	}
	timer := time.NewTimer(t.delay)
	defer timer.Stop()
	for i := 0; i < len(chunk); {
		_, size := utf8.DecodeRuneInString(chunk[i:])
		fmt.Fprint(t.w, chunk[i:i+size])
		i += size
		if i == len(chunk) {
			return
		}
		timer.Reset(t.delay)
		select {
		case <-t.ctx.Done():
			fmt.Fprint(t.w, chunk[i:])
			return
		case <-timer.C:
		}
	}
}
