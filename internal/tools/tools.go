// Package tools holds the pluggable capability registry, the security gate,
// the output truncation engine, and the built-in tools. Tools share one
// polymorphic contract so new capabilities plug in without orchestrator
// changes.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolResult represents the result of a tool execution
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Errorf builds an error ToolResult from a format string
func Errorf(format string, args ...any) *ToolResult {
	return &ToolResult{Content: fmt.Sprintf(format, args...), IsError: true}
}

// Tool is the interface all capabilities implement
type Tool interface {
	// Name returns the tool's unique name
	Name() string

	// Description returns a description for the model
	Description() string

	// Schema returns the JSON schema for the tool's input
	Schema() json.RawMessage

	// Execute runs the tool with parsed arguments and the per-call context
	Execute(ctx context.Context, input json.RawMessage, ec *ExecContext) (*ToolResult, error)
}

// SecurityContext carries the policy governing a conversation's tool use
type SecurityContext struct {
	AgentID   string
	SessionID string
	Policy    *Policy
}

// ExecContext is the per-call execution context handed to tool handlers
type ExecContext struct {
	// SessionID is the conversation the call runs on behalf of
	SessionID string

	// Channel is the external channel the conversation last spoke on,
	// used by delivery-context resolution
	Channel string

	// Security is the active security context, forwarded so tools that
	// dispatch further calls (batch) can re-check policy
	Security *SecurityContext

	// Emit publishes a progress event to the caller's sink. May be nil;
	// failures are the sink's problem, not the tool's.
	Emit func(event any)

	// InBatch marks calls dispatched by the batch tool, which must not
	// recurse into itself
	InBatch bool
}
