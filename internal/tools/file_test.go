package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWriteReadList(t *testing.T) {
	dir := t.TempDir()
	ft := NewFileTool(dir)
	ctx := context.Background()

	res, err := ft.Execute(ctx, json.RawMessage(`{"action":"write","path":"notes/todo.txt","content":"milk"}`), nil)
	require.NoError(t, err)
	require.False(t, res.IsError, res.Content)

	res, err = ft.Execute(ctx, json.RawMessage(`{"action":"read","path":"notes/todo.txt"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "milk", res.Content)

	res, err = ft.Execute(ctx, json.RawMessage(`{"action":"list","path":"notes"}`), nil)
	require.NoError(t, err)
	assert.Contains(t, res.Content, "todo.txt")
}

func TestFileRejectsEscapingPaths(t *testing.T) {
	ft := NewFileTool(t.TempDir())
	res, err := ft.Execute(context.Background(), json.RawMessage(`{"action":"read","path":"../../etc/passwd"}`), nil)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "escapes the workspace")
}

func TestFileUnknownAction(t *testing.T) {
	ft := NewFileTool(t.TempDir())
	res, err := ft.Execute(context.Background(), json.RawMessage(`{"action":"chmod","path":"x"}`), nil)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
