package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeassist/internal/config"
	"codeassist/internal/types"
)

func newTestApp(t *testing.T) (*app, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.UX.UseColors = false
	cfg.UX.RenderMarkdown = false

	var out bytes.Buffer
	a, err := buildApp(cfg, dir, &out)
	require.NoError(t, err)
	return a, &out, dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestBuildAppSeedsSystemMessage(t *testing.T) {
	a, _, dir := newTestApp(t)
	msgs := a.exec.Context().Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, types.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, dir)
}

func TestSlashCommands(t *testing.T) {
	ctx := context.Background()
	a, out, _ := newTestApp(t)

	assert.False(t, a.handle(ctx, "/help"))
	assert.Contains(t, out.String(), "code:workdir:<dir>")

	out.Reset()
	assert.False(t, a.handle(ctx, "/tools"))
	assert.Contains(t, out.String(), "read_file")
	assert.Contains(t, out.String(), "parse_diff_suggestions")

	out.Reset()
	a.handle(ctx, "/status")
	assert.Contains(t, out.String(), "not connected")
	assert.Contains(t, out.String(), "Messages:       1")

	out.Reset()
	a.handle(ctx, "/debug")
	assert.True(t, a.debug)
	assert.Contains(t, out.String(), "Debug mode on")
	a.handle(ctx, "/debug")
	assert.False(t, a.debug)

	out.Reset()
	a.handle(ctx, "/nope")
	assert.Contains(t, out.String(), "Unknown command /nope")

	assert.True(t, a.handle(ctx, "/exit"))
}

func TestHistoryAndClear(t *testing.T) {
	ctx := context.Background()
	a, out, _ := newTestApp(t)
	a.exec.Context().AddMessage(types.RoleUser, strings.Repeat("x", 150))

	a.handle(ctx, "/history")
	assert.Contains(t, out.String(), "user")
	assert.Contains(t, out.String(), strings.Repeat("x", 100)+"...")

	a.handle(ctx, "/clear")
	msgs := a.exec.Context().Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, types.RoleSystem, msgs[0].Role)
}

func TestCodeReadAndMetrics(t *testing.T) {
	ctx := context.Background()
	a, out, dir := newTestApp(t)
	writeFile(t, dir, "main.py", "print('hi')\n")

	a.handle(ctx, "code:read:main.py")
	assert.Contains(t, out.String(), "print('hi')")
	assert.Equal(t, []string{filepath.Join(dir, "main.py")}, a.ws.LoadedPaths())

	out.Reset()
	a.handle(ctx, "/metrics")
	assert.Contains(t, out.String(), `codeassist_tool_calls_total{outcome="ok",tool="read_file"} 1`)
}

func TestCodeWorkdirChainsListing(t *testing.T) {
	ctx := context.Background()
	a, out, dir := newTestApp(t)
	sub := filepath.Join(dir, "pkg")
	require.NoError(t, os.Mkdir(sub, 0755))
	writeFile(t, sub, "util.go", "package pkg\n")

	a.handle(ctx, "code:workdir:pkg")
	assert.Equal(t, sub, a.ws.WorkDir())
	assert.Contains(t, out.String(), "list_directory (auto: list_after_workdir)")
	assert.Contains(t, out.String(), "util.go")
	assert.NotContains(t, out.String(), "Error:")
}

func TestCodeDiffAgainstDisk(t *testing.T) {
	ctx := context.Background()
	a, out, dir := newTestApp(t)

	a.handle(ctx, "code:diff:main.py")
	assert.Contains(t, out.String(), "not loaded")

	writeFile(t, dir, "main.py", "a = 1\n")
	a.handle(ctx, "code:read:main.py")
	writeFile(t, dir, "main.py", "a = 1\nb = 2\n")

	out.Reset()
	a.handle(ctx, "code:diff:main.py")
	assert.Contains(t, out.String(), "+b = 2")
}

func TestCodeApplySuggestions(t *testing.T) {
	ctx := context.Background()
	a, out, dir := newTestApp(t)
	writeFile(t, dir, "main.py", "x = 'a'\n")

	a.handle(ctx, "code:apply:main.py")
	assert.Contains(t, out.String(), "No assistant reply")

	a.exec.Context().AddMessage(types.RoleAssistant, "Nothing to change here.")
	out.Reset()
	a.handle(ctx, "code:apply:main.py")
	assert.Contains(t, out.String(), "No change suggestions")

	a.exec.Context().AddMessage(types.RoleAssistant, "Line 1: replace 'a' with 'b'")
	out.Reset()
	a.handle(ctx, "code:apply:main.py")
	assert.Contains(t, out.String(), "apply_changes")

	data, err := os.ReadFile(filepath.Join(dir, "main.py"))
	require.NoError(t, err)
	assert.Equal(t, "x = 'b'\n", string(data))
}

func TestCodeCommandError(t *testing.T) {
	a, out, _ := newTestApp(t)
	a.handle(context.Background(), "code:read:")
	assert.Contains(t, out.String(), "usage: code:read")
}

func TestModelTurnWithoutTransport(t *testing.T) {
	a, out, _ := newTestApp(t)
	a.handle(context.Background(), "hello there")
	assert.Contains(t, out.String(), "Error:")
}

func TestRunStopsOnExitAndEOF(t *testing.T) {
	a, out, _ := newTestApp(t)
	require.NoError(t, a.run(context.Background(), strings.NewReader("/status\n/exit\n")))
	assert.Contains(t, out.String(), "Goodbye.")

	a, _, _ = newTestApp(t)
	require.NoError(t, a.run(context.Background(), strings.NewReader("")))
}

func TestRunStopsWhenCancelled(t *testing.T) {
	a, _, _ := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()
	assert.NoError(t, a.run(ctx, r))
}
