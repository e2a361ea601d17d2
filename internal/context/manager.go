package context

import (
	"fmt"
	"strings"
	"sync"

	"codeassist/internal/logging"
	"codeassist/internal/types"
)

// Manager owns the ordered message history and its running token total.
// It is safe for concurrent readers; writes are expected from a single turn
// at a time.
type Manager struct {
	mu sync.RWMutex

	config  ManagerConfig
	counter Estimator

	messages []Message
	total    int
	summary  string

	onCompact func(CompactionStats)
}

// NewManager creates a manager with the given policy and estimator.
// A nil estimator selects the default byte heuristic.
func NewManager(cfg ManagerConfig, counter Estimator) *Manager {
	def := DefaultConfig()
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.CompactThreshold <= 0 {
		cfg.CompactThreshold = def.CompactThreshold
	}
	if cfg.CompactTarget <= 0 {
		cfg.CompactTarget = def.CompactTarget
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = def.RecentWindow
	}
	if cfg.SummaryMaxMessages <= 0 {
		cfg.SummaryMaxMessages = def.SummaryMaxMessages
	}
	if counter == nil {
		counter = NewTokenCounter()
	}
	return &Manager{config: cfg, counter: counter}
}

// OnCompact registers a callback invoked after each committed compaction.
func (m *Manager) OnCompact(fn func(CompactionStats)) {
	m.mu.Lock()
	m.onCompact = fn
	m.mu.Unlock()
}

// =============================================================================
// Mutation
// =============================================================================

// AddMessage appends a message, updates the running total and compacts when
// the total exceeds the threshold.
func (m *Manager) AddMessage(role types.Role, content string) {
	m.mu.Lock()
	tokens := m.counter.CountString(content)
	m.messages = append(m.messages, Message{Role: role, Content: content, Tokens: tokens})
	m.total += tokens
	logging.ContextDebug("AddMessage: role=%s tokens=%d total=%d/%d", role, tokens, m.total, m.config.MaxTokens)

	var stats *CompactionStats
	if float64(m.total) > float64(m.config.MaxTokens)*m.config.CompactThreshold {
		stats = m.compactLocked()
	}
	hook := m.onCompact
	m.mu.Unlock()

	if stats != nil && hook != nil {
		hook(*stats)
	}
}

// Clear resets history, token total and summary.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
	m.total = 0
	m.summary = ""
	logging.Context("History cleared")
}

// compactLocked replaces everything before the recent window with one system
// summary message, but only when that sheds tokens. Caller holds mu.
func (m *Manager) compactLocked() *CompactionStats {
	keep := m.config.RecentWindow
	if len(m.messages) <= keep {
		return nil
	}

	targetReduction := m.total - int(float64(m.config.MaxTokens)*m.config.CompactTarget)
	if targetReduction <= 0 {
		return nil
	}

	candidates := m.messages[:len(m.messages)-keep]
	recent := m.messages[len(m.messages)-keep:]

	summary := m.buildSummary(candidates)
	removed := 0
	for _, c := range candidates {
		removed += c.Tokens
	}
	summaryTokens := m.counter.CountString(summary)

	if removed <= summaryTokens {
		logging.ContextDebug("Compaction skipped: removed=%d summary=%d", removed, summaryTokens)
		return nil
	}

	before := m.total
	next := make([]Message, 0, keep+1)
	next = append(next, Message{Role: types.RoleSystem, Content: summary, Tokens: summaryTokens})
	next = append(next, recent...)
	m.messages = next
	m.summary = summary

	m.total = 0
	for _, msg := range m.messages {
		m.total += msg.Tokens
	}

	logging.Context("Compacted history: %d messages summarized, tokens %d -> %d (wanted -%d)",
		len(candidates), before, m.total, targetReduction)

	return &CompactionStats{
		TokensBefore:    before,
		TokensAfter:     m.total,
		RemovedMessages: len(candidates),
		SummaryTokens:   summaryTokens,
	}
}

// buildSummary renders candidates into the synthetic summary, extending any
// prior summary.
func (m *Manager) buildSummary(candidates []Message) string {
	var parts []string
	if m.summary != "" {
		parts = append(parts, "PREVIOUS CONVERSATION HISTORY: "+m.summary)
	}
	parts = append(parts, "SUMMARY OF OLDER MESSAGES:")

	limit := m.config.SummaryMaxMessages
	for i, msg := range candidates {
		if i >= limit {
			parts = append(parts, fmt.Sprintf("... plus %d older messages.", len(candidates)-limit))
			break
		}
		parts = append(parts, fmt.Sprintf("%s: %s...", strings.ToUpper(string(msg.Role)), excerpt(msg.Content)))
	}
	return strings.Join(parts, "\n")
}

// excerpt cuts long content to a head+tail window, then to its first 100 bytes.
func excerpt(content string) string {
	if len(content) > 500 {
		content = content[:250] + "..." + content[len(content)-250:]
	}
	if len(content) > 100 {
		content = content[:100]
	}
	return strings.ToValidUTF8(content, "")
}

// =============================================================================
// Read accessors
// =============================================================================

// ExtractSystemMessage returns the content of the last system message (empty
// when none) and the non-system messages in order.
func (m *Manager) ExtractSystemMessage() (string, []Message) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var system string
	regular := make([]Message, 0, len(m.messages))
	for _, msg := range m.messages {
		if msg.Role == types.RoleSystem {
			system = msg.Content
			continue
		}
		regular = append(regular, msg)
	}
	return system, regular
}

// FormatForTransport wraps each message's content in a text block.
func FormatForTransport(msgs []Message) []types.WireMessage {
	out := make([]types.WireMessage, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, types.WireMessage{
			Role:    msg.Role,
			Content: []types.ContentBlock{types.TextBlock(msg.Content)},
		})
	}
	return out
}

// Messages returns a copy of the retained history.
func (m *Manager) Messages() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Len returns the number of retained messages.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// LastAssistantText returns the most recent assistant message, if any.
func (m *Manager) LastAssistantText() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Role == types.RoleAssistant {
			return m.messages[i].Content
		}
	}
	return ""
}

// Summary returns the current compaction summary.
func (m *Manager) Summary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summary
}

// TokenUsage returns the running token total.
func (m *Manager) TokenUsage() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// TokenPercentage returns usage as a percentage of MaxTokens.
func (m *Manager) TokenPercentage() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.total) / float64(m.config.MaxTokens) * 100
}

// MaxTokens returns the configured budget.
func (m *Manager) MaxTokens() int {
	return m.config.MaxTokens
}
