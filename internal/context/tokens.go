package context

// =============================================================================
// Token Counting Utilities
// =============================================================================
// The heuristic is calibrated for Claude's tokenizer (~4 characters per token).
// Counting bytes instead of runes over-estimates for non-ASCII text, which keeps
// the budget conservative.

// TokenCounter provides token counting functionality.
type TokenCounter struct {
	// Calibration factor (bytes per token)
	bytesPerToken int
}

// NewTokenCounter creates a new token counter with default calibration.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{bytesPerToken: 4}
}

// CountString estimates tokens in a string. Empty text costs nothing; any
// other text costs at least one token.
func (tc *TokenCounter) CountString(s string) int {
	if s == "" {
		return 0
	}
	return len(s)/tc.bytesPerToken + 1
}

// CountMessages sums the estimates for a slice of messages.
func (tc *TokenCounter) CountMessages(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += tc.CountString(m.Content)
	}
	return total
}
