package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileTool reads, writes, and lists files inside the agent workspace
type FileTool struct {
	workDir string
}

// NewFileTool creates a file tool rooted at workDir
func NewFileTool(workDir string) *FileTool {
	return &FileTool{workDir: workDir}
}

func (t *FileTool) Name() string { return "file" }

func (t *FileTool) Description() string {
	return "Read, write, append, delete, and list files in the agent workspace. Paths are relative to the workspace root."
}

func (t *FileTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {"type": "string", "enum": ["read", "write", "append", "delete", "list"]},
			"path": {"type": "string", "description": "File or directory path relative to the workspace"},
			"content": {"type": "string", "description": "Content for write and append"}
		},
		"required": ["action", "path"]
	}`)
}

func (t *FileTool) Execute(ctx context.Context, input json.RawMessage, ec *ExecContext) (*ToolResult, error) {
	var args struct {
		Action  string `json:"action"`
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return Errorf("invalid file input: %v", err), nil
	}

	path := resolveWithin(t.workDir, args.Path)
	if path == "" {
		return Errorf("path %q escapes the workspace", args.Path), nil
	}

	switch args.Action {
	case "read":
		data, err := os.ReadFile(path)
		if err != nil {
			return Errorf("read %s: %v", args.Path, err), nil
		}
		return &ToolResult{Content: string(data)}, nil

	case "write":
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return Errorf("write %s: %v", args.Path, err), nil
		}
		if err := os.WriteFile(path, []byte(args.Content), 0o644); err != nil {
			return Errorf("write %s: %v", args.Path, err), nil
		}
		return &ToolResult{Content: fmt.Sprintf("wrote %d bytes to %s", len(args.Content), args.Path)}, nil

	case "append":
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return Errorf("append %s: %v", args.Path, err), nil
		}
		defer f.Close()
		if _, err := f.WriteString(args.Content); err != nil {
			return Errorf("append %s: %v", args.Path, err), nil
		}
		return &ToolResult{Content: fmt.Sprintf("appended %d bytes to %s", len(args.Content), args.Path)}, nil

	case "delete":
		if err := os.Remove(path); err != nil {
			return Errorf("delete %s: %v", args.Path, err), nil
		}
		return &ToolResult{Content: "deleted " + args.Path}, nil

	case "list":
		entries, err := os.ReadDir(path)
		if err != nil {
			return Errorf("list %s: %v", args.Path, err), nil
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() {
				name += "/"
			}
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) == 0 {
			return &ToolResult{Content: "(empty directory)"}, nil
		}
		return &ToolResult{Content: strings.Join(names, "\n")}, nil

	default:
		return Errorf("unknown file action %q", args.Action), nil
	}
}

// resolveWithin joins rel onto root and rejects traversal outside it.
// Returns "" when the resolved path escapes.
func resolveWithin(root, rel string) string {
	if root == "" {
		return rel
	}
	joined := filepath.Join(root, rel)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return ""
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return ""
	}
	if abs != rootAbs && !strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) {
		return ""
	}
	return abs
}
