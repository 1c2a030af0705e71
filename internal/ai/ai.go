// Package ai defines the model capability boundary. Concrete vendor clients
// live outside the engine and plug in through the Provider interface.
package ai

import (
	"context"
	"encoding/json"

	"github.com/lumenlabs/lumen/internal/session"
)

// ToolCall is a tool invocation requested by the model
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolDefinition describes a tool schema offered to the model
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Usage carries the provider's token counters for one call
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input + output tokens
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// ChatRequest is one request to the model capability
type ChatRequest struct {
	Messages    []session.Message `json:"messages"`
	Tools       []ToolDefinition  `json:"tools,omitempty"`
	System      string            `json:"system,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
}

// ChatResponse is the model's reply: text and/or tool-call requests
type ChatResponse struct {
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

// Provider is the pluggable model capability
type Provider interface {
	// ID returns the provider identifier (e.g., "anthropic", "openai")
	ID() string

	// Complete sends a request and returns the model's response
	Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}
