package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"codeassist/internal/diff"
	"codeassist/internal/logging"
	"codeassist/internal/tools"
)

// fileTools binds the file executors to a workspace.
type fileTools struct {
	ws *Workspace
}

// SetWorkingDirectoryTool returns the tool that changes the working directory.
func SetWorkingDirectoryTool(ws *Workspace) *tools.Tool {
	ft := &fileTools{ws: ws}
	return &tools.Tool{
		Name:         tools.ToolSetWorkingDirectory,
		Description:  "Set the working directory for subsequent relative file paths",
		Category:     tools.CategoryFile,
		Execute:      ft.setWorkingDirectory,
		FileOriented: true,
		Schema: tools.ToolSchema{
			Required: []string{"path"},
			Properties: map[string]tools.Property{
				"path": {Type: "string", Description: "Directory to use as the working directory"},
			},
		},
	}
}

func (ft *fileTools) setWorkingDirectory(ctx context.Context, args map[string]any) (tools.Result, error) {
	path, err := tools.RequireString(args, "path")
	if err != nil {
		return nil, err
	}

	abs, err := ft.ws.SetWorkDir(path)
	if err != nil {
		msg := fmt.Sprintf("Error: %v", err)
		switch {
		case errors.Is(err, ErrNotFound):
			msg = fmt.Sprintf("Error: Directory '%s' does not exist", path)
		case errors.Is(err, ErrNotDirectory):
			msg = fmt.Sprintf("Error: '%s' is not a directory", path)
		}
		return tools.Result{"success": false, "message": msg, "path": path, "error": msg}, nil
	}
	return tools.Result{
		"success": true,
		"message": "Working directory set to: " + abs,
		"path":    abs,
		"exists":  true,
	}, nil
}

// ListLoadedFilesTool returns the tool that reports the loaded-file cache.
func ListLoadedFilesTool(ws *Workspace) *tools.Tool {
	ft := &fileTools{ws: ws}
	return &tools.Tool{
		Name:        tools.ToolListLoadedFiles,
		Description: "List the files currently loaded into the conversation",
		Category:    tools.CategoryFile,
		Execute:     ft.listLoadedFiles,
		Schema:      tools.ToolSchema{Properties: map[string]tools.Property{}},
	}
}

func (ft *fileTools) listLoadedFiles(ctx context.Context, args map[string]any) (tools.Result, error) {
	loaded := ft.ws.Loaded()
	files := make([]map[string]any, 0, len(loaded))
	for _, f := range loaded {
		files = append(files, map[string]any{"path": f.Path, "lines": f.Lines, "size_bytes": f.Size})
	}
	return tools.Result{"files": files, "count": len(files), "summary": ft.ws.LoadedSummary()}, nil
}

// ReadFileTool returns a tool for reading file contents.
func ReadFileTool(ws *Workspace) *tools.Tool {
	ft := &fileTools{ws: ws}
	return &tools.Tool{
		Name:         tools.ToolReadFile,
		Description:  "Read the contents of a file",
		Category:     tools.CategoryFile,
		Execute:      ft.readFile,
		FileOriented: true,
		Schema: tools.ToolSchema{
			Required: []string{"path"},
			Properties: map[string]tools.Property{
				"path":     {Type: "string", Description: "The file path to read, relative to the working directory"},
				"encoding": {Type: "string", Description: "Expected text encoding", Default: "utf-8"},
			},
		},
	}
}

func (ft *fileTools) readFile(ctx context.Context, args map[string]any) (tools.Result, error) {
	path, err := tools.RequireString(args, "path")
	if err != nil {
		return nil, err
	}

	abs, content, encoding, err := ft.ws.ReadFile(path)
	switch {
	case errors.Is(err, ErrNotFound):
		return tools.Result{
			"error":         "File not found: " + path,
			"absolute_path": abs,
			"working_dir":   ft.ws.WorkDir(),
		}, nil
	case errors.Is(err, ErrNotFile):
		return tools.Result{"error": "Path is not a file: " + path, "absolute_path": abs}, nil
	case err != nil:
		return tools.ErrorResult("Error reading file: %v", err), nil
	}

	return tools.Result{
		"content":       content,
		"encoding":      encoding,
		"path":          path,
		"absolute_path": abs,
		"size_bytes":    len(content),
	}, nil
}

// WriteFileTool returns a tool for writing content to a file.
func WriteFileTool(ws *Workspace) *tools.Tool {
	ft := &fileTools{ws: ws}
	return &tools.Tool{
		Name:        tools.ToolWriteFile,
		Description: "Write content to a file, creating it and its parent directories if needed",
		Category:    tools.CategoryFile,
		Execute:     ft.writeFile,
		Schema: tools.ToolSchema{
			Required: []string{"path", "content"},
			Properties: map[string]tools.Property{
				"path":     {Type: "string", Description: "The file path to write"},
				"content":  {Type: "string", Description: "The content to write"},
				"encoding": {Type: "string", Description: "Text encoding", Default: "utf-8"},
			},
		},
	}
}

func (ft *fileTools) writeFile(ctx context.Context, args map[string]any) (tools.Result, error) {
	path, err := tools.RequireString(args, "path")
	if err != nil {
		return nil, err
	}
	content, err := tools.RequireString(args, "content")
	if err != nil {
		return nil, err
	}

	if _, err := ft.ws.WriteFile(path, content); err != nil {
		return tools.ErrorResult("Error writing file: %v", err), nil
	}
	return tools.Result{"success": true, "path": path, "size_bytes": len(content)}, nil
}

// ListDirectoryTool returns a tool for listing directory contents.
func ListDirectoryTool(ws *Workspace) *tools.Tool {
	ft := &fileTools{ws: ws}
	return &tools.Tool{
		Name:         tools.ToolListDirectory,
		Description:  "List the files and subdirectories of a directory",
		Category:     tools.CategoryFile,
		Execute:      ft.listDirectory,
		FileOriented: true,
		Schema: tools.ToolSchema{
			Required: []string{"path"},
			Properties: map[string]tools.Property{
				"path":           {Type: "string", Description: "Directory to list"},
				"include_hidden": {Type: "boolean", Description: "Include dot entries", Default: false},
				"file_pattern":   {Type: "string", Description: "Regular expression entry names must match"},
			},
		},
	}
}

func (ft *fileTools) listDirectory(ctx context.Context, args map[string]any) (tools.Result, error) {
	path := ft.ws.Resolve(tools.StringArg(args, "path", "."))
	includeHidden := tools.BoolArg(args, "include_hidden", false)

	info, err := os.Stat(path)
	if err != nil {
		return tools.ErrorResult("Directory not found: %s", path), nil
	}
	if !info.IsDir() {
		return tools.ErrorResult("Not a directory: %s", path), nil
	}

	var pattern *regexp.Regexp
	if p := tools.StringArg(args, "file_pattern", ""); p != "" {
		if pattern, err = regexp.Compile(p); err != nil {
			return tools.ErrorResult("Invalid regex pattern: %s", p), nil
		}
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return tools.ErrorResult("Error listing directory: %v", err), nil
	}

	dirs := make([]map[string]any, 0)
	files := make([]map[string]any, 0)
	for _, entry := range entries {
		name := entry.Name()
		if !includeHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if pattern != nil && !pattern.MatchString(name) {
			continue
		}

		full := filepath.Join(path, name)
		if fi, err := os.Stat(full); err == nil && fi.IsDir() {
			dirs = append(dirs, map[string]any{"name": name, "type": "directory", "path": full})
			continue
		}
		var size int64
		if fi, err := entry.Info(); err == nil {
			size = fi.Size()
		}
		files = append(files, map[string]any{"name": name, "type": "file", "path": full, "size_bytes": size})
	}

	return tools.Result{
		"path":          path,
		"directories":   dirs,
		"files":         files,
		"total_entries": len(dirs) + len(files),
	}, nil
}

// FindFilesTool returns a tool that searches file names by regex.
func FindFilesTool(ws *Workspace) *tools.Tool {
	ft := &fileTools{ws: ws}
	return &tools.Tool{
		Name:        tools.ToolFindFiles,
		Description: "Find files whose names match a regular expression",
		Category:    tools.CategoryFile,
		Execute:     ft.findFiles,
		Schema: tools.ToolSchema{
			Required: []string{"path", "pattern"},
			Properties: map[string]tools.Property{
				"path":      {Type: "string", Description: "Directory to search from"},
				"pattern":   {Type: "string", Description: "Regular expression matched against file names"},
				"recursive": {Type: "boolean", Description: "Descend into subdirectories", Default: true},
				"max_depth": {Type: "integer", Description: "Maximum directory depth (0 = unlimited)", Default: 0},
			},
		},
	}
}

func (ft *fileTools) findFiles(ctx context.Context, args map[string]any) (tools.Result, error) {
	root := ft.ws.Resolve(tools.StringArg(args, "path", "."))
	patternStr := tools.StringArg(args, "pattern", "")
	recursive := tools.BoolArg(args, "recursive", true)
	maxDepth := tools.IntArg(args, "max_depth", 0)

	info, err := os.Stat(root)
	if err != nil {
		return tools.ErrorResult("Directory not found: %s", root), nil
	}
	if !info.IsDir() {
		return tools.ErrorResult("Not a directory: %s", root), nil
	}
	pattern, err := regexp.Compile(patternStr)
	if err != nil {
		return tools.ErrorResult("Invalid regex pattern: %s", patternStr), nil
	}

	matches := make([]map[string]any, 0)
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !recursive || (maxDepth > 0 && depth(root, path) > maxDepth) {
				return filepath.SkipDir
			}
			return nil
		}
		if !pattern.MatchString(d.Name()) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		matches = append(matches, map[string]any{"name": d.Name(), "path": path, "size_bytes": fi.Size()})
		return nil
	})
	if walkErr != nil {
		return tools.ErrorResult("Error finding files: %v", walkErr), nil
	}

	logging.ToolsDebug("find_files: %d matches for %q under %s", len(matches), patternStr, root)
	return tools.Result{
		"matches":       matches,
		"total_matches": len(matches),
		"search_path":   root,
		"pattern":       patternStr,
	}, nil
}

// depth is the number of path components of path below root.
func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// GenerateDiffTool returns a tool that diffs two texts.
func GenerateDiffTool() *tools.Tool {
	return &tools.Tool{
		Name:        tools.ToolGenerateDiff,
		Description: "Generate a unified diff between two versions of a text",
		Category:    tools.CategoryFile,
		Execute:     executeGenerateDiff,
		Schema: tools.ToolSchema{
			Required: []string{"original", "modified"},
			Properties: map[string]tools.Property{
				"original":      {Type: "string", Description: "Original text"},
				"modified":      {Type: "string", Description: "Modified text"},
				"filename":      {Type: "string", Description: "Name used in the diff headers", Default: "file.txt"},
				"context_lines": {Type: "integer", Description: "Unchanged lines around each change", Default: diff.DefaultContext},
			},
		},
	}
}

func executeGenerateDiff(ctx context.Context, args map[string]any) (tools.Result, error) {
	original := tools.StringArg(args, "original", "")
	modified := tools.StringArg(args, "modified", "")
	filename := tools.StringArg(args, "filename", "file.txt")
	contextLines := tools.IntArg(args, "context_lines", diff.DefaultContext)

	d := diff.DefaultEngine.ComputeDiffContext("original/"+filename, "modified/"+filename, original, modified, contextLines)
	stats := d.Stats()
	return tools.Result{
		"diff": d.Unified(),
		"changes": map[string]any{
			"added_lines":   stats.Added,
			"removed_lines": stats.Removed,
			"total_changes": stats.Total(),
		},
		"has_changes": stats.Total() > 0,
	}, nil
}
