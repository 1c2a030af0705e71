package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lumenlabs/lumen/internal/memory"
)

// MemoryTool lets the model remember and recall durable facts
type MemoryTool struct {
	store *memory.Store
}

// NewMemoryTool wraps the memory store
func NewMemoryTool(store *memory.Store) *MemoryTool {
	return &MemoryTool{store: store}
}

func (t *MemoryTool) Name() string { return "memory" }

func (t *MemoryTool) Description() string {
	return "Remember, recall, list, and forget durable facts about the user and past work. Remembered facts appear in future conversations."
}

func (t *MemoryTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {"type": "string", "enum": ["remember", "recall", "list", "forget"]},
			"key": {"type": "string", "description": "Short stable name for the fact"},
			"value": {"type": "string", "description": "The fact to remember"}
		},
		"required": ["action"]
	}`)
}

func (t *MemoryTool) Execute(ctx context.Context, input json.RawMessage, ec *ExecContext) (*ToolResult, error) {
	var args struct {
		Action string `json:"action"`
		Key    string `json:"key"`
		Value  string `json:"value"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return Errorf("invalid memory input: %v", err), nil
	}

	switch args.Action {
	case "remember":
		if err := t.store.Set(args.Key, args.Value); err != nil {
			return Errorf("remember: %v", err), nil
		}
		return &ToolResult{Content: "remembered " + args.Key}, nil

	case "recall":
		value, err := t.store.Get(args.Key)
		if errors.Is(err, memory.ErrNotFound) {
			return &ToolResult{Content: "nothing remembered under " + args.Key}, nil
		}
		if err != nil {
			return Errorf("recall: %v", err), nil
		}
		return &ToolResult{Content: value}, nil

	case "list":
		entries, err := t.store.List()
		if err != nil {
			return Errorf("list memories: %v", err), nil
		}
		if len(entries) == 0 {
			return &ToolResult{Content: "no memories"}, nil
		}
		var b strings.Builder
		for _, e := range entries {
			fmt.Fprintf(&b, "%s: %s\n", e.Key, e.Value)
		}
		return &ToolResult{Content: strings.TrimRight(b.String(), "\n")}, nil

	case "forget":
		if err := t.store.Delete(args.Key); err != nil {
			if errors.Is(err, memory.ErrNotFound) {
				return &ToolResult{Content: "nothing remembered under " + args.Key}, nil
			}
			return Errorf("forget: %v", err), nil
		}
		return &ToolResult{Content: "forgot " + args.Key}, nil

	default:
		return Errorf("unknown memory action %q", args.Action), nil
	}
}
