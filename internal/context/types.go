// Package context owns the conversation history and its token budget.
//
// The Manager appends messages, keeps a running token total and compacts
// older history into a synthetic system summary once the total crosses a
// fraction of the budget. Loaded file contents are not held here; they
// belong to the tool workspace and survive Clear.
package context

import "codeassist/internal/types"

// =============================================================================
// SECTION 1: Configuration Types
// =============================================================================

// ManagerConfig defines the token budget and compaction policy.
type ManagerConfig struct {
	MaxTokens int

	// Compaction triggers when the running total exceeds
	// CompactThreshold*MaxTokens and aims to shed tokens down toward
	// CompactTarget*MaxTokens.
	CompactThreshold float64
	CompactTarget    float64

	// RecentWindow is the number of trailing messages always kept verbatim.
	// History at or below this length is never compacted.
	RecentWindow int

	// SummaryMaxMessages caps how many candidates are rendered into a summary.
	SummaryMaxMessages int
}

// DefaultConfig returns the standard policy for a 200k window.
func DefaultConfig() ManagerConfig {
	return ManagerConfig{
		MaxTokens:          200000,
		CompactThreshold:   0.9,
		CompactTarget:      0.7,
		RecentWindow:       6,
		SummaryMaxMessages: 10,
	}
}

// =============================================================================
// SECTION 2: Messages
// =============================================================================

// Message is one retained history entry with its cached token estimate.
type Message struct {
	Role    types.Role
	Content string
	Tokens  int
}

// CompactionStats describes a committed compaction.
type CompactionStats struct {
	TokensBefore    int
	TokensAfter     int
	RemovedMessages int
	SummaryTokens   int
}

// Estimator estimates the token cost of text.
type Estimator interface {
	CountString(s string) int
}
