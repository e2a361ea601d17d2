// Package session implements the turn loop for codeassist.
//
// One Executor owns a conversation: the context manager, the tool dispatcher,
// the chain engine and the audit log. A turn moves through
//
//	Idle → AwaitingModel → StreamingOrUnary → ToolPhase → Finalizing → Idle
//
// and only one turn may run at a time. Tool calls within a turn run
// sequentially: the parent call, then at most one chained call.
package session

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	ctxcompress "codeassist/internal/context"
	"codeassist/internal/config"
	"codeassist/internal/logging"
	"codeassist/internal/perception"
	"codeassist/internal/tools"
	"codeassist/internal/tools/chain"
	"codeassist/internal/usage"
)

var (
	// ErrTurnInProgress is returned when a turn is requested while another
	// one still holds the conversation.
	ErrTurnInProgress = errors.New("a turn is already in progress")

	// ErrNoTransport is returned when no model transport is configured.
	ErrNoTransport = errors.New("no model transport configured")
)

// State is the turn state machine position.
type State int

const (
	StateIdle State = iota
	StateAwaitingModel
	StateStreamingOrUnary
	StateToolPhase
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateStreamingOrUnary:
		return "streaming_or_unary"
	case StateToolPhase:
		return "tool_phase"
	case StateFinalizing:
		return "finalizing"
	}
	return "unknown"
}

// ExecutorConfig holds turn policy.
type ExecutorConfig struct {
	// SystemPrompt is the base instruction. The latest system message in
	// history is appended to it.
	SystemPrompt string

	MaxResponseTokens int

	// FollowUp requests a second, tool-less round-trip after a tool phase.
	FollowUp bool

	// Timeout bounds a whole turn. Zero means no timeout.
	Timeout time.Duration

	// NoticeMaxChars caps the result JSON embedded in a tool notice.
	NoticeMaxChars int
}

// DefaultExecutorConfig returns sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		SystemPrompt:      config.DefaultSystemPrompt,
		MaxResponseTokens: 4096,
		FollowUp:          true,
		NoticeMaxChars:    16000,
	}
}

// ExecutorConfigFrom derives turn policy from the loaded configuration.
func ExecutorConfigFrom(cfg *config.Config) ExecutorConfig {
	ec := DefaultExecutorConfig()
	if cfg.LLM.SystemPrompt != "" {
		ec.SystemPrompt = cfg.LLM.SystemPrompt
	}
	if cfg.LLM.MaxResponseTokens > 0 {
		ec.MaxResponseTokens = cfg.LLM.MaxResponseTokens
	}
	ec.FollowUp = cfg.LLM.FollowUp
	ec.Timeout = cfg.GetLLMTimeout()
	if cfg.Tools.NoticeMaxChars > 0 {
		ec.NoticeMaxChars = cfg.Tools.NoticeMaxChars
	}
	return ec
}

// Deps are the collaborators an Executor drives. Transport may be nil and
// set later; Usage may be nil.
type Deps struct {
	Transport  perception.Transport
	Context    *ctxcompress.Manager
	Dispatcher *tools.Dispatcher
	Chain      *chain.Engine
	CallLog    *tools.CallLog
	Usage      *usage.Tracker
}

// Executor drives conversational turns.
type Executor struct {
	gate *semaphore.Weighted

	mu        sync.RWMutex
	transport perception.Transport
	state     State

	history    *ctxcompress.Manager
	dispatcher *tools.Dispatcher
	chains     *chain.Engine
	calls      *tools.CallLog
	usage      *usage.Tracker

	config ExecutorConfig
}

// NewExecutor wires the collaborators together. Compaction and tool
// execution hooks feed the usage tracker and the audit log.
func NewExecutor(deps Deps, cfg ExecutorConfig) *Executor {
	logging.Session("Creating new Executor")

	if deps.Chain == nil {
		deps.Chain = chain.NewEngine(chain.DefaultConfig())
	}
	if deps.CallLog == nil {
		deps.CallLog = tools.NewCallLog()
	}
	if deps.Usage == nil {
		deps.Usage = usage.NewTracker()
	}

	e := &Executor{
		gate:       semaphore.NewWeighted(1),
		transport:  deps.Transport,
		history:    deps.Context,
		dispatcher: deps.Dispatcher,
		chains:     deps.Chain,
		calls:      deps.CallLog,
		usage:      deps.Usage,
		config:     cfg,
	}

	e.history.OnCompact(func(st ctxcompress.CompactionStats) {
		e.usage.Compaction()
		logging.Audit().Compaction(st.TokensBefore, st.TokensAfter, st.RemovedMessages)
	})
	e.dispatcher.OnExecute(func(name string, res tools.Result, dur time.Duration) {
		e.usage.ToolCall(name, res.IsSuccess(), dur)
	})
	return e
}

// SetTransport replaces the model transport.
func (e *Executor) SetTransport(t perception.Transport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transport = t
}

// Transport returns the current model transport, possibly nil.
func (e *Executor) Transport() perception.Transport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.transport
}

// State reports where the current turn is.
func (e *Executor) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Executor) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	logging.SessionDebug("Turn state -> %s", s)
}

// Context returns the conversation history manager.
func (e *Executor) Context() *ctxcompress.Manager { return e.history }

// CallLog returns the tool-call audit log.
func (e *Executor) CallLog() *tools.CallLog { return e.calls }

// Registry returns the tool registry.
func (e *Executor) Registry() *tools.Registry { return e.dispatcher.Registry() }

// Usage returns the session counters.
func (e *Executor) Usage() *usage.Tracker { return e.usage }

// Config returns the turn policy.
func (e *Executor) Config() ExecutorConfig { return e.config }

// Clear resets the conversation. The audit log and loaded files are kept.
func (e *Executor) Clear() error {
	if !e.gate.TryAcquire(1) {
		return ErrTurnInProgress
	}
	defer e.gate.Release(1)
	e.history.Clear()
	return nil
}
