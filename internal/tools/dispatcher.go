package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"codeassist/internal/logging"
)

// PathProber answers filesystem questions relative to the current working
// directory. The workspace implements it.
type PathProber interface {
	IsDir(path string) bool
	IsFile(path string) bool
}

// Dispatcher executes tool calls against a registry. It never returns Go
// errors: every failure is reported through Result's "error" key.
type Dispatcher struct {
	registry *Registry
	paths    PathProber

	onExecute func(name string, result Result, dur time.Duration)
}

// NewDispatcher creates a dispatcher. paths may be nil, in which case the
// read_file redirect relies on the extension check alone.
func NewDispatcher(registry *Registry, paths PathProber) *Dispatcher {
	return &Dispatcher{registry: registry, paths: paths}
}

// OnExecute registers a hook called after every executed call.
func (d *Dispatcher) OnExecute(fn func(name string, result Result, dur time.Duration)) {
	d.onExecute = fn
}

// Registry returns the underlying registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Paths returns the path prober, possibly nil.
func (d *Dispatcher) Paths() PathProber {
	return d.paths
}

// Execute runs one call. The call is updated in place with its normalized
// input and, when redirected, its effective tool name.
func (d *Dispatcher) Execute(ctx context.Context, call *ToolCall) Result {
	start := time.Now()

	tool := d.registry.Get(call.Name)
	if tool == nil {
		logging.ToolsWarn("No handler for tool %q", call.Name)
		return ErrorResult("no handler for tool %s", call.Name)
	}

	if err := normalizeInput(tool, call); err != nil {
		logging.ToolsWarn("Malformed input for %s: %v", call.Name, err)
		return ErrorResult("%v", err)
	}

	if redirected := d.redirect(call); redirected != nil {
		tool = redirected
	}

	if err := validateArgs(tool, call.Input); err != nil {
		return ErrorResult("%v", err)
	}

	logging.ToolsDebug("Executing tool: %s (id=%s origin=%s)", tool.Name, call.ID, call.Origin)
	result := invoke(ctx, tool, call.Input)
	dur := time.Since(start)

	if msg := result.ErrorMessage(); msg != "" {
		logging.Tools("Tool %s failed in %v: %s", tool.Name, dur, msg)
	} else {
		logging.ToolsDebug("Tool %s completed in %v", tool.Name, dur)
	}
	if d.onExecute != nil {
		d.onExecute(tool.Name, result, dur)
	}
	return result
}

// invoke runs the executor, converting panics and errors into results.
func invoke(ctx context.Context, tool *Tool, args map[string]any) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryTools).Error("Tool %s panicked: %v", tool.Name, r)
			result = ErrorResult("%v", r)
		}
	}()

	res, err := tool.Execute(ctx, args)
	if err != nil {
		if res == nil {
			res = Result{}
		}
		res["error"] = err.Error()
	}
	if res == nil {
		res = Result{}
	}
	return res
}

// normalizeInput turns RawInput into a structured map. One JSON parse is
// attempted; file-oriented tools then fall back to {"path": raw}.
func normalizeInput(tool *Tool, call *ToolCall) error {
	if call.Input != nil {
		call.RawInput = ""
		return nil
	}
	raw := strings.TrimSpace(call.RawInput)
	call.RawInput = ""
	if raw == "" {
		call.Input = map[string]any{}
		return nil
	}

	var parsed map[string]any
	err := json.Unmarshal([]byte(raw), &parsed)
	if err == nil && parsed != nil {
		call.Input = parsed
		return nil
	}

	if tool.FileOriented {
		var s string
		if json.Unmarshal([]byte(raw), &s) == nil {
			raw = s
		}
		call.Input = map[string]any{"path": strings.Trim(raw, `"'`)}
		return nil
	}
	if err == nil {
		err = fmt.Errorf("expected an object")
	}
	return fmt.Errorf("malformed input for tool %s: %w", tool.Name, err)
}

// redirect switches read_file to set_working_directory when the path is an
// existing directory, or has no extension and is not an existing file.
func (d *Dispatcher) redirect(call *ToolCall) *Tool {
	if call.Name != ToolReadFile {
		return nil
	}
	path, ok := call.Input["path"].(string)
	if !ok || path == "" {
		return nil
	}
	if !d.looksLikeDirectory(path) {
		return nil
	}
	target := d.registry.Get(ToolSetWorkingDirectory)
	if target == nil {
		return nil
	}

	logging.Tools("Redirecting read_file(%s) to %s", path, ToolSetWorkingDirectory)
	call.Name = target.Name
	call.Input = map[string]any{"path": path}
	return target
}

func (d *Dispatcher) looksLikeDirectory(path string) bool {
	if d.paths != nil {
		if d.paths.IsDir(path) {
			return true
		}
		if d.paths.IsFile(path) {
			return false
		}
	}
	trimmed := strings.TrimRight(path, `/\`)
	return filepath.Ext(trimmed) == "" && !strings.HasPrefix(filepath.Base(trimmed), ".")
}
