package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"codeassist/internal/config"
	ctxcompress "codeassist/internal/context"
	"codeassist/internal/logging"
	"codeassist/internal/perception"
	"codeassist/internal/session"
	"codeassist/internal/tools"
	"codeassist/internal/tools/chain"
	"codeassist/internal/tools/codedom"
	"codeassist/internal/tools/core"
	"codeassist/internal/types"
)

// app is one interactive session: the executor, its workspace and the
// terminal presentation.
type app struct {
	cfg     *config.Config
	ws      *core.Workspace
	watcher *core.FileWatcher
	exec    *session.Executor
	intents perception.IntentStrategy

	out    io.Writer
	styles styles
	md     markdown
	delay  time.Duration

	stream bool
	debug  bool

	stopWatcher context.CancelFunc
}

// appOptions are the command-line overrides.
type appOptions struct {
	Workspace  string
	ConfigPath string
	APIKey     string
	Debug      bool
	NoStream   bool
}

// loadConfig reads the configuration for opts and applies the flag
// overrides.
func loadConfig(opts appOptions) (*config.Config, string, error) {
	root := opts.Workspace
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("failed to resolve workspace: %w", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve workspace: %w", err)
	}

	path := opts.ConfigPath
	if path == "" {
		path = filepath.Join(root, config.DefaultConfigPath)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if opts.APIKey != "" {
		cfg.LLM.APIKey = opts.APIKey
	}
	if opts.Debug {
		cfg.Logging.DebugMode = true
		cfg.Logging.Level = "debug"
	}
	if opts.NoStream {
		cfg.LLM.Stream = false
	}
	return cfg, root, nil
}

// newApp loads configuration, boots logging and connects the transport.
// A transport that cannot be built leaves the session usable for code:
// and slash commands.
func newApp(ctx context.Context, opts appOptions, out io.Writer) (*app, error) {
	cfg, root, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	if err := logging.Initialize(root, cfg.Logging.ToLogging()); err != nil {
		logger.Warn("logging unavailable", zap.Error(err))
	}
	if err := logging.InitAudit(); err != nil {
		logger.Warn("audit log unavailable", zap.Error(err))
	}

	a, err := buildApp(cfg, root, out)
	if err != nil {
		return nil, err
	}
	a.debug = opts.Debug || cfg.Logging.DebugMode
	a.startWatcher(ctx)

	if err := cfg.Validate(); err != nil {
		logging.BootWarn("Model transport disabled: %v", err)
		a.warn("Model transport disabled: %v", err)
		return a, nil
	}
	t, err := perception.NewTransport(ctx, cfg.LLM)
	if err != nil {
		logging.BootWarn("Model transport disabled: %v", err)
		a.warn("Model transport disabled: %v", err)
		return a, nil
	}
	a.exec.SetTransport(t)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := t.Ping(pingCtx); err != nil {
		logging.BootWarn("Connection check failed: %v", err)
		a.warn("Connection check failed: %v", err)
	} else {
		logging.Boot("Connected to %s (%s)", t.Provider(), t.Model())
	}
	return a, nil
}

// buildApp wires the executor for root without a model transport.
func buildApp(cfg *config.Config, root string, out io.Writer) (*app, error) {
	ws, err := core.NewWorkspace(root)
	if err != nil {
		return nil, err
	}

	reg := tools.NewRegistry()
	if err := core.RegisterAll(reg, ws); err != nil {
		return nil, fmt.Errorf("failed to register file tools: %w", err)
	}
	if err := codedom.RegisterAll(reg, ws); err != nil {
		return nil, fmt.Errorf("failed to register code tools: %w", err)
	}

	history := ctxcompress.NewManager(ctxcompress.ManagerConfig{
		MaxTokens:          cfg.Context.MaxTokens,
		CompactThreshold:   cfg.Context.CompactThreshold,
		CompactTarget:      cfg.Context.CompactTarget,
		RecentWindow:       cfg.Context.RecentWindow,
		SummaryMaxMessages: cfg.Context.SummaryMaxMessages,
	}, ctxcompress.NewTokenCounter())

	exec := session.NewExecutor(session.Deps{
		Context:    history,
		Dispatcher: tools.NewDispatcher(reg, ws),
		Chain: chain.NewEngine(chain.Config{
			Window:           cfg.Tools.ChainWindow,
			SourceExtensions: cfg.Tools.SourceExtensions,
		}),
	}, session.ExecutorConfigFrom(cfg))

	a := &app{
		cfg:     cfg,
		ws:      ws,
		exec:    exec,
		intents: perception.NewRegexIntent(),
		out:     out,
		styles:  newStyles(cfg.UX.UseColors),
		md:      newMarkdown(cfg.UX.RenderMarkdown, cfg.UX.WordWrap),
		delay:   cfg.GetTypingDelay(),
		stream:  cfg.LLM.Stream,
	}
	a.seedSystemMessage()
	logging.Boot("Session ready in %s with %d tools", ws.WorkDir(), reg.Count())
	return a, nil
}

// seedSystemMessage records the workspace and budget so the model sees them
// until the first tool notice replaces them.
func (a *app) seedSystemMessage() {
	a.exec.Context().AddMessage(types.RoleSystem, fmt.Sprintf(
		"Working directory: %s\nContext budget: %d tokens. Read files before changing them and prefer the file tools over guessing contents.",
		a.ws.WorkDir(), a.cfg.Context.MaxTokens))
}

func (a *app) startWatcher(ctx context.Context) {
	fw, err := core.NewFileWatcher(a.ws)
	if err != nil {
		logging.BootWarn("File watcher unavailable: %v", err)
		return
	}
	wctx, cancel := context.WithCancel(ctx)
	fw.Start(wctx)
	a.watcher, a.stopWatcher = fw, cancel
}

// Close stops the watcher and flushes the logs.
func (a *app) Close() {
	if a.stopWatcher != nil {
		a.stopWatcher()
	}
	if a.watcher != nil {
		a.watcher.Stop()
	}
	logging.CloseAudit()
	logging.CloseAll()
}

func (a *app) warn(format string, args ...any) {
	fmt.Fprintln(a.out, a.styles.Warning.Render(fmt.Sprintf(format, args...)))
}

func (a *app) errorf(format string, args ...any) {
	fmt.Fprintln(a.out, a.styles.Error.Render(fmt.Sprintf(format, args...)))
}

func (a *app) info(format string, args ...any) {
	fmt.Fprintln(a.out, a.styles.Info.Render(fmt.Sprintf(format, args...)))
}
