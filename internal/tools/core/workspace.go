package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"codeassist/internal/logging"
)

var (
	// ErrNotFound is returned when a path does not exist.
	ErrNotFound = errors.New("path does not exist")

	// ErrNotDirectory is returned when a directory was required.
	ErrNotDirectory = errors.New("not a directory")

	// ErrNotFile is returned when a regular file was required.
	ErrNotFile = errors.New("not a regular file")
)

// LoadedFile describes one entry of the loaded-file cache.
type LoadedFile struct {
	Path  string `json:"path"`
	Lines int    `json:"lines"`
	Size  int    `json:"size_bytes"`
}

// Workspace owns the current working directory and the cache of files the
// assistant has read or written. The cache outlives conversation clears.
type Workspace struct {
	mu      sync.RWMutex
	workDir string
	files   map[string]string // absolute path -> content
	order   []string

	watcher *FileWatcher
}

// NewWorkspace creates a workspace rooted at dir ("" = process cwd).
func NewWorkspace(dir string) (*Workspace, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		dir = cwd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace %s is not a directory", abs)
	}
	return &Workspace{workDir: abs, files: make(map[string]string)}, nil
}

// WorkDir returns the current working directory.
func (w *Workspace) WorkDir() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.workDir
}

// Resolve makes path absolute against the working directory.
func (w *Workspace) Resolve(path string) string {
	if path == "" {
		return w.WorkDir()
	}
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(w.WorkDir(), path)
}

// SetWorkDir changes the working directory. The target must be an existing
// directory.
func (w *Workspace) SetWorkDir(path string) (string, error) {
	abs := w.Resolve(path)
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, fmt.Errorf("%w: %s", ErrNotFound, abs)
		}
		return abs, err
	}
	if !info.IsDir() {
		return abs, fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}

	w.mu.Lock()
	w.workDir = abs
	w.mu.Unlock()
	logging.Tools("Working directory set to %s", abs)
	return abs, nil
}

// IsDir reports whether path resolves to an existing directory.
func (w *Workspace) IsDir(path string) bool {
	info, err := os.Stat(w.Resolve(path))
	return err == nil && info.IsDir()
}

// IsFile reports whether path resolves to an existing regular file.
func (w *Workspace) IsFile(path string) bool {
	info, err := os.Stat(w.Resolve(path))
	return err == nil && info.Mode().IsRegular()
}

// ReadFile reads path (resolved against the working directory) and caches
// its content. Invalid UTF-8 is decoded as latin-1; the returned encoding
// names the decoding used.
func (w *Workspace) ReadFile(path string) (abs, content, encoding string, err error) {
	abs = w.Resolve(path)
	defer func() { logging.Audit().FileOp(false, abs, len(content), err) }()

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, "", "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return abs, "", "", err
	}
	if !info.Mode().IsRegular() {
		return abs, "", "", fmt.Errorf("%w: %s", ErrNotFile, path)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return abs, "", "", err
	}
	content, encoding = decode(data)
	w.Cache(abs, content)
	logging.ToolsDebug("Read %s (%d bytes, %s)", abs, len(data), encoding)
	return abs, content, encoding, nil
}

// WriteFile writes content to path, creating parent directories, and
// refreshes the cache.
func (w *Workspace) WriteFile(path, content string) (abs string, err error) {
	abs = w.Resolve(path)
	defer func() { logging.Audit().FileOp(true, abs, len(content), err) }()

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return abs, fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		return abs, err
	}
	w.Cache(abs, content)
	logging.Tools("Wrote %s (%d bytes)", abs, len(content))
	return abs, nil
}

func decode(data []byte) (string, string) {
	if utf8.Valid(data) {
		return string(data), "utf-8"
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes), "latin-1"
}

// =============================================================================
// Loaded-file cache
// =============================================================================

// Cache stores content for an absolute path and starts watching it when a
// watcher is attached.
func (w *Workspace) Cache(abs, content string) {
	w.mu.Lock()
	if _, ok := w.files[abs]; !ok {
		w.order = append(w.order, abs)
	}
	w.files[abs] = content
	watcher := w.watcher
	w.mu.Unlock()

	if watcher != nil {
		watcher.Watch(abs)
	}
}

// Cached returns cached content for path.
func (w *Workspace) Cached(path string) (string, bool) {
	abs := w.Resolve(path)
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.files[abs]
	return c, ok
}

// Forget evicts path from the cache.
func (w *Workspace) Forget(abs string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[abs]; !ok {
		return false
	}
	w.forgetLocked(abs)
	return true
}

func (w *Workspace) forgetLocked(abs string) {
	delete(w.files, abs)
	for i, p := range w.order {
		if p == abs {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

// Loaded lists cached files in load order.
func (w *Workspace) Loaded() []LoadedFile {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]LoadedFile, 0, len(w.order))
	for _, p := range w.order {
		c := w.files[p]
		out = append(out, LoadedFile{Path: p, Lines: strings.Count(c, "\n") + 1, Size: len(c)})
	}
	return out
}

// LoadedPaths returns cached paths sorted.
func (w *Workspace) LoadedPaths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, len(w.order))
	copy(out, w.order)
	sort.Strings(out)
	return out
}

// LoadedSummary renders the cache for humans and for tool results.
func (w *Workspace) LoadedSummary() string {
	files := w.Loaded()
	if len(files) == 0 {
		return "No files loaded."
	}
	var sb strings.Builder
	sb.WriteString("Loaded files:\n")
	for _, f := range files {
		fmt.Fprintf(&sb, "- %s (%d lines, %d bytes)\n", f.Path, f.Lines, f.Size)
	}
	return sb.String()
}

// AttachWatcher wires a file watcher that evicts externally changed entries.
func (w *Workspace) AttachWatcher(fw *FileWatcher) {
	w.mu.Lock()
	w.watcher = fw
	paths := make([]string, len(w.order))
	copy(paths, w.order)
	w.mu.Unlock()

	for _, p := range paths {
		fw.Watch(p)
	}
}

// forgetStale evicts abs unless the cache already holds disk.
func (w *Workspace) forgetStale(abs string, disk []byte) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.files[abs]
	if !ok || c == string(disk) {
		return false
	}
	w.forgetLocked(abs)
	return true
}
