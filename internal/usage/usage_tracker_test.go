package usage

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Counters(t *testing.T) {
	tr := NewTracker()

	tr.TurnCompleted(OutcomeOK)
	tr.TurnCompleted(OutcomeOK)
	tr.TurnCompleted(OutcomeError)
	tr.ToolCall("read_file", true, 10*time.Millisecond)
	tr.ToolCall("read_file", false, time.Millisecond)
	tr.ToolCall("list_directory", true, time.Millisecond)
	tr.ChainHop("workdir_list")
	tr.Compaction()
	tr.Tokens(120, 30)

	assert.Equal(t, 2.0, testutil.ToFloat64(tr.turns.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(tr.toolCalls.WithLabelValues("read_file", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(tr.compactions))
	assert.Equal(t, 120.0, testutil.ToFloat64(tr.tokens.WithLabelValues(DirectionInput)))
	assert.Equal(t, 2, testutil.CollectAndCount(tr.toolDuration))
}

func TestTracker_Snapshot(t *testing.T) {
	tr := NewTracker()
	tr.TurnCompleted(OutcomeOK)
	tr.TurnCompleted(OutcomeCancelled)
	tr.ToolCall("read_file", true, 0)
	tr.ToolCall("read_file", false, 0)
	tr.ChainHop("find_read")
	tr.ChainHop("find_read")
	tr.Compaction()
	tr.Tokens(10, 5)
	tr.Tokens(0, 2)

	s := tr.Snapshot()
	assert.Equal(t, 2, s.TotalTurns())
	assert.Equal(t, 1, s.Turns[OutcomeCancelled])
	assert.Equal(t, 2, s.ToolCalls)
	assert.Equal(t, 1, s.ToolErrors)
	assert.Equal(t, 2, s.ByTool["read_file"])
	assert.Equal(t, 2, s.TotalChainHops())
	assert.Equal(t, 1, s.Compactions)
	assert.Equal(t, TokenCounts{Input: 10, Output: 7, Total: 17}, s.Tokens)
}

func TestTracker_Isolated(t *testing.T) {
	a, b := NewTracker(), NewTracker()
	a.Compaction()
	assert.Equal(t, 0, b.Snapshot().Compactions)
}

func TestTracker_WriteText(t *testing.T) {
	tr := NewTracker()
	tr.TurnCompleted(OutcomeOK)
	tr.ToolCall("find_files", true, 5*time.Millisecond)

	var buf bytes.Buffer
	require.NoError(t, tr.WriteText(&buf))
	out := buf.String()
	assert.Contains(t, out, `codeassist_turns_total{outcome="ok"} 1`)
	assert.Contains(t, out, `codeassist_tool_calls_total{outcome="ok",tool="find_files"} 1`)
	assert.Contains(t, out, "codeassist_tool_duration_seconds_bucket")
}

func TestTokenCounts_Add(t *testing.T) {
	var tc TokenCounts
	tc.Add(3, 4)
	tc.Add(1, 0)
	assert.Equal(t, TokenCounts{Input: 4, Output: 4, Total: 8}, tc)
}
