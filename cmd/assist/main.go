package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"codeassist/internal/config"
	"codeassist/internal/perception"
)

var (
	// Global flags
	verbose    bool
	debugFlag  bool
	noStream   bool
	apiKey     string
	workspace  string
	configPath string

	// Process logger for CLI-level events
	logger = zap.NewNop()
)

// rootCmd starts the interactive session.
var rootCmd = &cobra.Command{
	Use:   "assist",
	Short: "codeassist - terminal coding assistant",
	Long: `codeassist is a conversational coding assistant for the terminal.

The model reads, searches, analyzes and edits files in the workspace through
a fixed tool set. Tool calls can trigger one automatic follow-up (a read
before an edit, a listing after a directory change) and long conversations
are summarized to stay within the context budget.

Run without arguments to start the interactive session.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The interactive session owns the terminal unless asked otherwise.
		if cmd == cmd.Root() && !verbose {
			return nil
		}
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		l, err := cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	RunE: runInteractive,
}

// askCmd runs a single turn
var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Send one prompt and print the reply",
	Long: `Runs a single conversational turn, tool calls included, and prints the
reply. Inputs starting with "code:" run the matching code command instead.

Example:
  assist ask "list the python files in src and summarize them"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// toolsCmd lists the registered tools
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools the model can call",
	RunE:  runTools,
}

// statusCmd shows configuration and connectivity
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and model connectivity",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", config.DefaultConfig().Name, config.DefaultConfig().Version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose process logging")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logs under .assist/logs and tool details")
	rootCmd.PersistentFlags().BoolVar(&noStream, "no-stream", false, "Wait for complete replies instead of streaming")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Model API key (or set ANTHROPIC_API_KEY / GEMINI_API_KEY)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <workspace>/"+config.DefaultConfigPath+")")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func flagOptions() appOptions {
	return appOptions{
		Workspace:  workspace,
		ConfigPath: configPath,
		APIKey:     apiKey,
		Debug:      debugFlag,
		NoStream:   noStream,
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func runInteractive(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, flagOptions(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Debug("Interactive session started", zap.String("workspace", a.ws.WorkDir()))
	return a.run(ctx, cmd.InOrStdin())
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, flagOptions(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	prompt := strings.Join(args, " ")
	logger.Info("Processing prompt", zap.Int("chars", len(prompt)))
	if strings.HasPrefix(strings.ToLower(prompt), "code:") {
		a.code(ctx, prompt)
		return nil
	}
	if a.exec.Transport() == nil {
		return fmt.Errorf("no model transport: %w", config.ErrAPIKeyMissing)
	}
	a.turn(ctx, prompt)
	return nil
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, root, err := loadConfig(flagOptions())
	if err != nil {
		return err
	}
	a, err := buildApp(cfg, root, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	a.listTools()
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, root, err := loadConfig(flagOptions())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Workspace:   %s\n", root)
	fmt.Fprintf(out, "Provider:    %s\n", cfg.LLM.Provider)
	fmt.Fprintf(out, "Model:       %s\n", cfg.LLM.Model)
	fmt.Fprintf(out, "Streaming:   %s\n", onOff(cfg.LLM.Stream))
	fmt.Fprintf(out, "Follow-up:   %s\n", onOff(cfg.LLM.FollowUp))
	fmt.Fprintf(out, "Budget:      %d tokens (compact at %.0f%%)\n", cfg.Context.MaxTokens, cfg.Context.CompactThreshold*100)

	cats := make([]string, 0, len(cfg.Logging.Categories))
	for c, on := range cfg.Logging.Categories {
		if on {
			cats = append(cats, c)
		}
	}
	sort.Strings(cats)
	if len(cats) == 0 {
		cats = []string{"all"}
	}
	fmt.Fprintf(out, "Debug logs:  %s (%s)\n", onOff(cfg.Logging.DebugMode), strings.Join(cats, ", "))

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(out, "Connection:  unavailable (%v)\n", err)
		return nil
	}
	ctx, cancel := signalContext()
	defer cancel()
	t, err := perception.NewTransport(ctx, cfg.LLM)
	if err != nil {
		fmt.Fprintf(out, "Connection:  unavailable (%v)\n", err)
		return nil
	}
	pingCtx, stop := context.WithTimeout(ctx, 10*time.Second)
	defer stop()
	if err := t.Ping(pingCtx); err != nil {
		fmt.Fprintf(out, "Connection:  failed (%v)\n", err)
		return nil
	}
	fmt.Fprintln(out, "Connection:  ok")
	return nil
}
