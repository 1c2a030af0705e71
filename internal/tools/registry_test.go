package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlabs/lumen/internal/ai"
)

// fakeTool is a programmable tool for registry tests
type fakeTool struct {
	name string
	fn   func(ctx context.Context, input json.RawMessage, ec *ExecContext) (*ToolResult, error)
}

func (f *fakeTool) Name() string            { return f.name }
func (f *fakeTool) Description() string     { return "fake " + f.name }
func (f *fakeTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (f *fakeTool) Execute(ctx context.Context, input json.RawMessage, ec *ExecContext) (*ToolResult, error) {
	if f.fn != nil {
		return f.fn(ctx, input, ec)
	}
	return &ToolResult{Content: f.name + " ok"}, nil
}

func newTestRegistry(names ...string) *Registry {
	r := NewRegistry(DefaultTruncateOptions())
	for _, name := range names {
		r.Register(&fakeTool{name: name})
	}
	return r
}

func TestResolveExact(t *testing.T) {
	r := newTestRegistry("terminal", "file")
	tool, res := r.Resolve("terminal")
	require.NotNil(t, tool)
	assert.False(t, res.Repaired)
}

func TestResolveRepairsCase(t *testing.T) {
	r := newTestRegistry("terminal")
	tool, res := r.Resolve("Terminal")
	require.NotNil(t, tool)
	assert.Equal(t, "terminal", tool.Name())
	assert.True(t, res.Repaired)
}

func TestResolveSuggestions(t *testing.T) {
	r := newTestRegistry("terminal", "file", "web", "calendar")
	tool, res := r.Resolve("termnal")
	assert.Nil(t, tool)
	require.NotEmpty(t, res.Suggestions)
	assert.Equal(t, "terminal", res.Suggestions[0])
	assert.LessOrEqual(t, len(res.Suggestions), 3)
}

func TestExecuteUnknownToolIsErrorResult(t *testing.T) {
	r := newTestRegistry("terminal")
	res := r.Execute(context.Background(), &ai.ToolCall{ID: "c1", Name: "telescope"},
		&SecurityContext{Policy: FullPolicy()}, nil)

	require.NotNil(t, res)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "telescope")
}

func TestExecuteDenialIsResultNotError(t *testing.T) {
	r := newTestRegistry("terminal")
	res := r.Execute(context.Background(), &ai.ToolCall{ID: "c1", Name: "terminal"},
		&SecurityContext{Policy: &Policy{Deny: []string{"terminal"}}}, nil)

	require.NotNil(t, res)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "not permitted")
}

func TestExecuteHandlerErrorBecomesResult(t *testing.T) {
	r := NewRegistry(DefaultTruncateOptions())
	r.Register(&fakeTool{name: "boom", fn: func(context.Context, json.RawMessage, *ExecContext) (*ToolResult, error) {
		return nil, errors.New("kaput")
	}})

	res := r.Execute(context.Background(), &ai.ToolCall{ID: "c1", Name: "boom"},
		&SecurityContext{Policy: &Policy{}}, nil)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "kaput")
}

func TestExecuteRecoversPanic(t *testing.T) {
	r := NewRegistry(DefaultTruncateOptions())
	r.Register(&fakeTool{name: "panicky", fn: func(context.Context, json.RawMessage, *ExecContext) (*ToolResult, error) {
		panic("lost it")
	}})

	res := r.Execute(context.Background(), &ai.ToolCall{ID: "c1", Name: "panicky"},
		&SecurityContext{Policy: &Policy{}}, nil)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "lost it")
}

func TestDefinitionsHonorPolicy(t *testing.T) {
	r := newTestRegistry("terminal", "file", "web")
	defs := r.Definitions(&Policy{Allow: []string{"file"}})
	require.Len(t, defs, 1)
	assert.Equal(t, "file", defs[0].Name)
}
