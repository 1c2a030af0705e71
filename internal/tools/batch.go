package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lumenlabs/lumen/internal/ai"
)

// batchConcurrency caps how many sub-calls run at once
const batchConcurrency = 8

// BatchTool fans independent tool calls out concurrently within one round
// and joins their results in submission order. It refuses to dispatch
// itself.
type BatchTool struct {
	registry *Registry
}

// NewBatchTool creates a batch tool over the registry it dispatches through
func NewBatchTool(r *Registry) *BatchTool {
	return &BatchTool{registry: r}
}

func (t *BatchTool) Name() string { return "batch" }

func (t *BatchTool) Description() string {
	return "Run several independent tool calls concurrently and return their results in order. Cannot invoke itself."
}

func (t *BatchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"calls": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"tool": {"type": "string"},
						"input": {"type": "object"}
					},
					"required": ["tool"]
				}
			}
		},
		"required": ["calls"]
	}`)
}

func (t *BatchTool) Execute(ctx context.Context, input json.RawMessage, ec *ExecContext) (*ToolResult, error) {
	var args struct {
		Calls []struct {
			Tool  string          `json:"tool"`
			Input json.RawMessage `json:"input"`
		} `json:"calls"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return Errorf("invalid batch input: %v", err), nil
	}
	if len(args.Calls) == 0 {
		return Errorf("batch requires at least one call"), nil
	}
	if ec != nil && ec.InBatch {
		return Errorf("batch cannot be called from inside a batch"), nil
	}

	sub := &ExecContext{InBatch: true}
	if ec != nil {
		sub.SessionID = ec.SessionID
		sub.Channel = ec.Channel
		sub.Security = ec.Security
		sub.Emit = ec.Emit
	}
	var sec *SecurityContext
	if sub.Security != nil {
		sec = sub.Security
	}

	results := make([]*ToolResult, len(args.Calls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, call := range args.Calls {
		if call.Tool == "batch" {
			results[i] = Errorf("batch cannot be called from inside a batch")
			continue
		}
		input := call.Input
		if len(input) == 0 {
			input = json.RawMessage(`{}`)
		}
		i, call := i, call
		g.Go(func() error {
			results[i] = t.registry.Execute(gctx, &ai.ToolCall{
				ID:    fmt.Sprintf("batch-%d", i),
				Name:  call.Tool,
				Input: input,
			}, sec, sub)
			return nil
		})
	}
	// sub-calls never return errors, so this only waits for the join
	_ = g.Wait()

	var b strings.Builder
	anyError := false
	for i, res := range results {
		status := "ok"
		if res.IsError {
			status = "error"
			anyError = true
		}
		fmt.Fprintf(&b, "[%d] %s (%s):\n%s\n", i+1, args.Calls[i].Tool, status, res.Content)
	}
	return &ToolResult{Content: strings.TrimRight(b.String(), "\n"), IsError: anyError}, nil
}
