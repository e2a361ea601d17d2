package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopExec(ctx context.Context, args map[string]any) (Result, error) {
	return Result{"ok": true}, nil
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NotNil(t, reg)
	assert.Equal(t, 0, reg.Count())
}

func TestRegisterAndDescribe(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Tool{Name: "b_tool", Category: CategoryFile, Execute: nopExec})
	reg.MustRegister(&Tool{Name: "a_tool", Category: CategoryCode, Execute: nopExec})

	got, err := reg.Describe("b_tool")
	require.NoError(t, err)
	assert.Equal(t, "b_tool", got.Name)

	_, err = reg.Describe("missing")
	assert.True(t, errors.Is(err, ErrToolNotFound))

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "b_tool", list[0].Name, "List keeps registration order")
	assert.Equal(t, []string{"a_tool", "b_tool"}, reg.Names())
	assert.Len(t, reg.GetByCategory(CategoryCode), 1)
}

func TestRegisterDuplicate(t *testing.T) {
	reg := NewRegistry()
	tool := &Tool{Name: "dupe", Execute: nopExec}
	require.NoError(t, reg.Register(tool))

	err := reg.Register(tool)
	assert.True(t, errors.Is(err, ErrToolAlreadyRegistered))
}

func TestRegisterValidation(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name    string
		tool    *Tool
		wantErr error
	}{
		{name: "empty name", tool: &Tool{Name: "", Execute: nopExec}, wantErr: ErrToolNameEmpty},
		{name: "nil execute", tool: &Tool{Name: "test", Execute: nil}, wantErr: ErrToolExecuteNil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.tool)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestDefinitions(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Tool{
		Name:        "find_files",
		Description: "Find files",
		Execute:     nopExec,
		Schema: ToolSchema{
			Required: []string{"path", "pattern"},
			Properties: map[string]Property{
				"path":      {Type: "string", Description: "Directory"},
				"pattern":   {Type: "string"},
				"recursive": {Type: "boolean", Default: true},
			},
		},
	})

	defs := reg.Definitions()
	require.Len(t, defs, 1)
	schema := defs[0].InputSchema
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"path", "pattern"}, schema["required"])
	props := schema["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "boolean", "default": true}, props["recursive"])
}

func TestResultHelpers(t *testing.T) {
	assert.True(t, Result{"content": "x"}.IsSuccess())
	assert.False(t, ErrorResult("boom %d", 1).IsSuccess())
	assert.Equal(t, "boom 1", ErrorResult("boom %d", 1).ErrorMessage())
	assert.Equal(t, "", Result(nil).ErrorMessage())
	assert.Equal(t, []string{"a", "b"}, Result{"b": 1, "a": 2}.Keys())
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{"s": "v", "b": "true", "n": float64(3)}
	assert.Equal(t, "v", StringArg(args, "s", "d"))
	assert.Equal(t, "d", StringArg(args, "missing", "d"))
	assert.True(t, BoolArg(args, "b", false))
	assert.Equal(t, 3, IntArg(args, "n", 0))

	_, err := RequireString(args, "n")
	assert.True(t, errors.Is(err, ErrInvalidArgType))
	_, err = RequireString(args, "nope")
	assert.True(t, errors.Is(err, ErrMissingRequiredArg))
}
