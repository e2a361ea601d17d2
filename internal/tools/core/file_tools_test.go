package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeassist/internal/tools"
)

func newTestRegistry(t *testing.T) (*tools.Registry, *Workspace, string) {
	t.Helper()
	ws, root := newTestWorkspace(t)
	reg := tools.NewRegistry()
	require.NoError(t, RegisterAll(reg, ws))
	return reg, ws, root
}

func run(t *testing.T, reg *tools.Registry, name string, args map[string]any) tools.Result {
	t.Helper()
	tool := reg.Get(name)
	require.NotNil(t, tool, "tool %s not registered", name)
	res, err := tool.Execute(context.Background(), args)
	require.NoError(t, err)
	return res
}

func TestRegisterAll(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	assert.Equal(t, []string{
		tools.ToolFindFiles, tools.ToolGenerateDiff, tools.ToolListDirectory, tools.ToolListLoadedFiles,
		tools.ToolReadFile, tools.ToolSetWorkingDirectory, tools.ToolWriteFile,
	}, reg.Names())
	assert.ErrorIs(t, RegisterAll(reg, nil), tools.ErrToolAlreadyRegistered)
}

func TestSetWorkingDirectory(t *testing.T) {
	reg, ws, root := newTestRegistry(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "proj"), 0755))
	writeFile(t, filepath.Join(root, "f.txt"), "x")

	res := run(t, reg, tools.ToolSetWorkingDirectory, map[string]any{"path": "proj"})
	want := filepath.Join(root, "proj")
	assert.Equal(t, tools.Result{
		"success": true,
		"message": "Working directory set to: " + want,
		"path":    want,
		"exists":  true,
	}, res)
	assert.Equal(t, want, ws.WorkDir())

	res = run(t, reg, tools.ToolSetWorkingDirectory, map[string]any{"path": "/definitely/missing"})
	assert.Equal(t, false, res["success"])
	assert.Equal(t, "Error: Directory '/definitely/missing' does not exist", res["message"])
	assert.False(t, res.IsSuccess())

	res = run(t, reg, tools.ToolSetWorkingDirectory, map[string]any{"path": filepath.Join(root, "f.txt")})
	assert.Contains(t, res["message"], "is not a directory")
}

func TestReadFile(t *testing.T) {
	reg, ws, root := newTestRegistry(t)
	writeFile(t, filepath.Join(root, "app.py"), "print('hi')\n")

	res := run(t, reg, tools.ToolReadFile, map[string]any{"path": "app.py"})
	require.True(t, res.IsSuccess(), res.ErrorMessage())
	assert.Equal(t, "print('hi')\n", res["content"])
	assert.Equal(t, "utf-8", res["encoding"])
	assert.Equal(t, "app.py", res["path"])
	assert.Equal(t, filepath.Join(root, "app.py"), res["absolute_path"])
	assert.Equal(t, 12, res["size_bytes"])
	assert.Equal(t, []string{filepath.Join(root, "app.py")}, ws.LoadedPaths())

	res = run(t, reg, tools.ToolReadFile, map[string]any{"path": "nope.py"})
	assert.Equal(t, "File not found: nope.py", res.ErrorMessage())
	assert.Equal(t, root, res["working_dir"])
	assert.Equal(t, filepath.Join(root, "nope.py"), res["absolute_path"])
}

func TestWriteFile(t *testing.T) {
	reg, ws, root := newTestRegistry(t)

	res := run(t, reg, tools.ToolWriteFile, map[string]any{"path": "out/new.txt", "content": "héllo"})
	assert.Equal(t, tools.Result{"success": true, "path": "out/new.txt", "size_bytes": 6}, res)

	data, err := os.ReadFile(filepath.Join(root, "out", "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "héllo", string(data))

	cached, ok := ws.Cached("out/new.txt")
	assert.True(t, ok)
	assert.Equal(t, "héllo", cached)
}

func TestListLoadedFiles(t *testing.T) {
	reg, ws, root := newTestRegistry(t)

	res := run(t, reg, tools.ToolListLoadedFiles, map[string]any{})
	assert.Equal(t, 0, res["count"])
	assert.Equal(t, "No files loaded.", res["summary"])

	ws.Cache(filepath.Join(root, "a.go"), "package a\n")
	res = run(t, reg, tools.ToolListLoadedFiles, map[string]any{})
	assert.Equal(t, 1, res["count"])
	files := res["files"].([]map[string]any)
	assert.Equal(t, map[string]any{"path": filepath.Join(root, "a.go"), "lines": 2, "size_bytes": 10}, files[0])
}

func TestListDirectory(t *testing.T) {
	reg, _, root := newTestRegistry(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "pkg"), 0755))
	writeFile(t, filepath.Join(root, "main.go"), "package main")
	writeFile(t, filepath.Join(root, "README.md"), "# hi")
	writeFile(t, filepath.Join(root, ".env"), "SECRET=1")

	res := run(t, reg, tools.ToolListDirectory, map[string]any{"path": "."})
	require.True(t, res.IsSuccess(), res.ErrorMessage())
	assert.Equal(t, 3, res["total_entries"])
	dirs := res["directories"].([]map[string]any)
	require.Len(t, dirs, 1)
	assert.Equal(t, map[string]any{"name": "pkg", "type": "directory", "path": filepath.Join(root, "pkg")}, dirs[0])

	res = run(t, reg, tools.ToolListDirectory, map[string]any{"path": ".", "include_hidden": true})
	assert.Equal(t, 4, res["total_entries"])

	res = run(t, reg, tools.ToolListDirectory, map[string]any{"path": ".", "file_pattern": `\.go$`})
	files := res["files"].([]map[string]any)
	require.Len(t, files, 1)
	assert.Equal(t, "main.go", files[0]["name"])
	assert.Equal(t, int64(12), files[0]["size_bytes"])

	res = run(t, reg, tools.ToolListDirectory, map[string]any{"path": ".", "file_pattern": "("})
	assert.Equal(t, "Invalid regex pattern: (", res.ErrorMessage())

	res = run(t, reg, tools.ToolListDirectory, map[string]any{"path": "main.go"})
	assert.Contains(t, res.ErrorMessage(), "Not a directory")

	res = run(t, reg, tools.ToolListDirectory, map[string]any{"path": "missing"})
	assert.Contains(t, res.ErrorMessage(), "Directory not found")
}

func TestFindFiles(t *testing.T) {
	reg, _, root := newTestRegistry(t)
	writeFile(t, filepath.Join(root, "a.py"), "a")
	writeFile(t, filepath.Join(root, "l1", "b.py"), "bb")
	writeFile(t, filepath.Join(root, "l1", "l2", "c.py"), "ccc")
	writeFile(t, filepath.Join(root, "l1", "notes.txt"), "n")

	names := func(res tools.Result) []string {
		var out []string
		for _, m := range res["matches"].([]map[string]any) {
			out = append(out, m["name"].(string))
		}
		return out
	}

	res := run(t, reg, tools.ToolFindFiles, map[string]any{"path": ".", "pattern": `\.py$`})
	assert.ElementsMatch(t, []string{"a.py", "b.py", "c.py"}, names(res))
	assert.Equal(t, 3, res["total_matches"])
	assert.Equal(t, root, res["search_path"])
	assert.Equal(t, `\.py$`, res["pattern"])

	res = run(t, reg, tools.ToolFindFiles, map[string]any{"path": ".", "pattern": `\.py$`, "recursive": false})
	assert.Equal(t, []string{"a.py"}, names(res))

	res = run(t, reg, tools.ToolFindFiles, map[string]any{"path": ".", "pattern": `\.py$`, "max_depth": float64(1)})
	assert.ElementsMatch(t, []string{"a.py", "b.py"}, names(res))

	res = run(t, reg, tools.ToolFindFiles, map[string]any{"path": ".", "pattern": "c.py"})
	match := res["matches"].([]map[string]any)[0]
	assert.Equal(t, filepath.Join(root, "l1", "l2", "c.py"), match["path"])
	assert.Equal(t, int64(3), match["size_bytes"])

	res = run(t, reg, tools.ToolFindFiles, map[string]any{"path": ".", "pattern": "["})
	assert.Equal(t, "Invalid regex pattern: [", res.ErrorMessage())
}

func TestGenerateDiff(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	res := run(t, reg, tools.ToolGenerateDiff, map[string]any{
		"original": "a\nb\n",
		"modified": "a\nc\nd\n",
		"filename": "x.txt",
	})
	assert.Equal(t, "--- original/x.txt\n+++ modified/x.txt\n@@ -1,2 +1,3 @@\n a\n-b\n+c\n+d\n", res["diff"])
	assert.Equal(t, map[string]any{"added_lines": 2, "removed_lines": 1, "total_changes": 3}, res["changes"])
	assert.Equal(t, true, res["has_changes"])

	res = run(t, reg, tools.ToolGenerateDiff, map[string]any{"original": "same", "modified": "same"})
	assert.Equal(t, "", res["diff"])
	assert.Equal(t, false, res["has_changes"])
}
