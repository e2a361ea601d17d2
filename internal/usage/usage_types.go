package usage

// Turn outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Token directions.
const (
	DirectionInput  = "input"
	DirectionOutput = "output"
)

// TokenCounts holds input/output sums.
type TokenCounts struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
	Total  int64 `json:"total"`
}

// Add accumulates one call's usage.
func (tc *TokenCounts) Add(input, output int) {
	tc.Input += int64(input)
	tc.Output += int64(output)
	tc.Total += int64(input + output)
}

// Snapshot is a point-in-time read of the session counters.
type Snapshot struct {
	Turns       map[string]int `json:"turns"` // by outcome
	ToolCalls   int            `json:"tool_calls"`
	ToolErrors  int            `json:"tool_errors"`
	ByTool      map[string]int `json:"by_tool"`
	ChainHops   map[string]int `json:"chain_hops"` // by rule
	Compactions int            `json:"compactions"`
	Tokens      TokenCounts    `json:"tokens"`
}

// TotalTurns sums turns across outcomes.
func (s Snapshot) TotalTurns() int {
	n := 0
	for _, v := range s.Turns {
		n += v
	}
	return n
}

// TotalChainHops sums hops across rules.
func (s Snapshot) TotalChainHops() int {
	n := 0
	for _, v := range s.ChainHops {
		n += v
	}
	return n
}
