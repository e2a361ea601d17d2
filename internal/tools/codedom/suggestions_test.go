package codedom

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSuggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []Change
	}{
		{
			name: "line notation",
			text: "Line 3: replace 'foo()' with 'bar()'\nline 7: change 'x' to 'y'",
			want: []Change{{Line: 3, OldCode: "foo()", NewCode: "bar()"}, {Line: 7, OldCode: "x", NewCode: "y"}},
		},
		{
			name: "plain fenced pairs",
			text: "Try this:\n```python\nx = 1\n-y = 2\n+y = 3\n```\n",
			want: []Change{{Line: 1, OldCode: "y = 2", NewCode: "y = 3"}},
		},
		{
			name: "git hunk",
			text: "```diff\n--- a/app.py\n+++ b/app.py\n@@ -10,3 +10,3 @@\n def f():\n-    return 1\n+    return 2\n```",
			want: []Change{{Line: 11, OldCode: "return 1", NewCode: "return 2"}},
		},
		{
			name: "replace this with this",
			text: "Replace this:\n```python\nold()\n```\nWith this:\n```python\nnew()\n```",
			want: []Change{{Line: 0, OldCode: "old()", NewCode: "new()"}},
		},
		{
			name: "unpaired deletion ignored",
			text: "```\n-gone\nkept\n```",
			want: []Change{},
		},
		{
			name: "no suggestions",
			text: "Looks good to me.",
			want: []Change{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSuggestions(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseSuggestions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseSuggestions_NotationOrder(t *testing.T) {
	t.Parallel()
	text := "Replace this:\n```\na\n```\nwith this:\n```\nb\n```\n" +
		"Line 2: replace 'c' with 'd'\n" +
		"```\n-e\n+f\n```"

	got := ParseSuggestions(text)
	require.Len(t, got, 3)
	assert.Equal(t, 2, got[0].Line, "line notation first")
	assert.Equal(t, "e", got[1].OldCode, "fenced pairs second")
	assert.Equal(t, "a", got[2].OldCode, "replace-this last")
}

func TestParseSuggestionsTool(t *testing.T) {
	t.Parallel()
	tool := ParseSuggestionsTool()

	res, err := tool.Execute(context.Background(), map[string]any{"suggestion_text": "Line 1: replace 'a' with 'b'"})
	require.NoError(t, err)
	assert.Equal(t, 1, res["count"])
	assert.Equal(t, []map[string]any{{"line": 1, "old_code": "a", "new_code": "b"}}, res["changes"])

	res, err = tool.Execute(context.Background(), map[string]any{"suggestion_text": ""})
	require.NoError(t, err)
	assert.False(t, res.IsSuccess())
}

func TestDecodeChanges(t *testing.T) {
	t.Parallel()

	typed := []Change{{Line: 1, OldCode: "a", NewCode: "b"}}
	got, err := decodeChanges(typed)
	require.NoError(t, err)
	assert.Equal(t, typed, got)

	got, err = decodeChanges([]map[string]any{{"line": 2, "old_code": "x", "new_code": "y"}})
	require.NoError(t, err)
	assert.Equal(t, []Change{{Line: 2, OldCode: "x", NewCode: "y"}}, got)

	_, err = decodeChanges([]any{"not an object"})
	assert.Error(t, err)
}
