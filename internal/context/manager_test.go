package context

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeassist/internal/types"
)

func smallConfig(max int) ManagerConfig {
	cfg := DefaultConfig()
	cfg.MaxTokens = max
	return cfg
}

func role(i int) types.Role {
	if i%2 == 0 {
		return types.RoleUser
	}
	return types.RoleAssistant
}

func sumRetained(m *Manager) int {
	tc := NewTokenCounter()
	total := 0
	for _, msg := range m.Messages() {
		total += tc.CountString(msg.Content)
	}
	return total
}

func TestAddMessage_TracksTokens(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	m.AddMessage(types.RoleUser, "hello there")
	m.AddMessage(types.RoleAssistant, "")

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 3, m.TokenUsage())
	assert.InDelta(t, 3.0/200000*100, m.TokenPercentage(), 1e-9)
}

func TestCompaction_CommitsSummary(t *testing.T) {
	m := NewManager(smallConfig(1000), nil)
	var got []CompactionStats
	m.OnCompact(func(s CompactionStats) { got = append(got, s) })

	body := strings.Repeat("x", 400) // 101 tokens
	for i := 0; i < 9; i++ {
		m.AddMessage(role(i), fmt.Sprintf("%d%s", i, body[1:]))
	}

	require.Len(t, got, 1)
	msgs := m.Messages()
	require.Len(t, msgs, 7)
	assert.Equal(t, types.RoleSystem, msgs[0].Role)
	assert.True(t, strings.HasPrefix(msgs[0].Content, "SUMMARY OF OLDER MESSAGES:\nUSER: 0"))
	assert.Equal(t, "3"+body[1:], msgs[1].Content, "recent window starts at message 3")
	assert.Equal(t, sumRetained(m), m.TokenUsage())
	assert.Equal(t, 909, got[0].TokensBefore)
	assert.Equal(t, m.TokenUsage(), got[0].TokensAfter)
	assert.Equal(t, 3, got[0].RemovedMessages)
	assert.Equal(t, msgs[0].Content, m.Summary())
}

func TestCompaction_SummaryFormat(t *testing.T) {
	m := NewManager(smallConfig(1000), nil)
	long := "H" + strings.Repeat("a", 600) + "T"
	out := m.buildSummary([]Message{
		{Role: types.RoleUser, Content: long},
		{Role: types.RoleSystem, Content: "short"},
	})

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "SUMMARY OF OLDER MESSAGES:", lines[0])
	assert.Equal(t, "USER: H"+strings.Repeat("a", 99)+"...", lines[1])
	assert.Equal(t, "SYSTEM: short...", lines[2])
}

func TestCompaction_SummaryCapsCandidates(t *testing.T) {
	m := NewManager(smallConfig(1000), nil)
	var candidates []Message
	for i := 0; i < 14; i++ {
		candidates = append(candidates, Message{Role: types.RoleUser, Content: fmt.Sprintf("m%d", i)})
	}
	m.summary = "earlier"
	out := m.buildSummary(candidates)

	lines := strings.Split(out, "\n")
	assert.Equal(t, "PREVIOUS CONVERSATION HISTORY: earlier", lines[0])
	assert.Equal(t, "... plus 4 older messages.", lines[len(lines)-1])
	assert.Len(t, lines, 1+1+10+1)
}

func TestCompaction_NoNetLoss(t *testing.T) {
	m := NewManager(smallConfig(100), nil)
	for i := 0; i < 3; i++ {
		m.AddMessage(role(i), "hi")
	}
	for i := 0; i < 6; i++ {
		m.AddMessage(role(i), strings.Repeat("y", 60))
	}

	assert.Equal(t, 9, m.Len(), "summary would cost more than it removes")
	assert.Greater(t, m.TokenPercentage(), 90.0)
	assert.Equal(t, sumRetained(m), m.TokenUsage())
	assert.Empty(t, m.Summary())
}

func TestCompaction_FloorOfRecentWindow(t *testing.T) {
	m := NewManager(smallConfig(100), nil)
	for i := 0; i < 6; i++ {
		m.AddMessage(role(i), strings.Repeat("z", 200))
	}
	assert.Equal(t, 6, m.Len(), "six messages are never compacted")
}

func TestCompaction_HoldsUnderLoad(t *testing.T) {
	m := NewManager(smallConfig(2000), nil)
	for i := 0; i < 200; i++ {
		m.AddMessage(role(i), strings.Repeat("w", 50+(i*37)%700))

		require.Equal(t, sumRetained(m), m.TokenUsage(), "after message %d", i)
		require.GreaterOrEqual(t, m.Len(), min(i+1, 7), "after message %d", i)
	}
	assert.NotEmpty(t, m.Summary())
	assert.True(t, strings.HasPrefix(m.Summary(), "PREVIOUS CONVERSATION HISTORY: "))
}

func TestExtractSystemMessage_LastWins(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	m.AddMessage(types.RoleSystem, "first")
	m.AddMessage(types.RoleUser, "q1")
	m.AddMessage(types.RoleSystem, "second")
	m.AddMessage(types.RoleAssistant, "a1")

	system, regular := m.ExtractSystemMessage()
	assert.Equal(t, "second", system)
	require.Len(t, regular, 2)
	assert.Equal(t, "q1", regular[0].Content)
	assert.Equal(t, "a1", regular[1].Content)
	assert.Equal(t, 4, m.Len(), "earlier system messages are retained")
}

func TestFormatForTransport(t *testing.T) {
	got := FormatForTransport([]Message{
		{Role: types.RoleUser, Content: "hi"},
		{Role: types.RoleAssistant, Content: "hello"},
	})
	want := []types.WireMessage{
		{Role: types.RoleUser, Content: []types.ContentBlock{{Type: "text", Text: "hi"}}},
		{Role: types.RoleAssistant, Content: []types.ContentBlock{{Type: "text", Text: "hello"}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FormatForTransport mismatch (-want +got):\n%s", diff)
	}
}

func TestClear(t *testing.T) {
	m := NewManager(smallConfig(1000), nil)
	for i := 0; i < 9; i++ {
		m.AddMessage(role(i), strings.Repeat("c", 400))
	}
	require.NotEmpty(t, m.Summary())

	m.Clear()
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, m.TokenUsage())
	assert.Empty(t, m.Summary())
}

func TestLastAssistantText(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	assert.Empty(t, m.LastAssistantText())
	m.AddMessage(types.RoleAssistant, "one")
	m.AddMessage(types.RoleUser, "q")
	assert.Equal(t, "one", m.LastAssistantText())
}
