package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lumenlabs/lumen/internal/ai"
	"github.com/lumenlabs/lumen/internal/logging"
)

// Resolution describes how a tool name was matched
type Resolution struct {
	// Repaired is true when the name matched only after case normalization
	Repaired bool

	// Suggestions holds up to three close names when no match was found
	Suggestions []string
}

// Registry manages the available tools and dispatches calls through the
// security gate and the truncation engine
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	truncate TruncateOptions
}

// NewRegistry creates an empty registry with the given truncation budgets
func NewRegistry(opts TruncateOptions) *Registry {
	return &Registry{tools: make(map[string]Tool), truncate: opts}
}

// Register adds a tool, replacing any prior tool with the same name
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Unregister removes a tool by name
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a tool by exact name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the model-facing definitions of all tools the given
// policy allows
func (r *Registry) Definitions(policy *Policy) []ai.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]ai.ToolDefinition, 0, len(r.tools))
	for name, t := range r.tools {
		if !policy.IsAllowed(name) {
			continue
		}
		defs = append(defs, ai.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Schema(),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Resolve finds a tool by name. An exact hit resolves directly. A hit after
// lowercasing both sides resolves with Repaired set, so callers can log the
// repair. Anything else fails with up to three ranked suggestions.
func (r *Registry) Resolve(name string) (Tool, Resolution) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.tools[name]; ok {
		return t, Resolution{}
	}

	lower := strings.ToLower(name)
	for candidate, t := range r.tools {
		if strings.ToLower(candidate) == lower {
			return t, Resolution{Repaired: true}
		}
	}

	type scored struct {
		name  string
		score float64
	}
	var ranked []scored
	for candidate := range r.tools {
		s := matchScore(lower, strings.ToLower(candidate))
		if s > 0 {
			ranked = append(ranked, scored{candidate, s})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].name < ranked[j].name
	})
	res := Resolution{}
	for i := 0; i < len(ranked) && i < 3; i++ {
		res.Suggestions = append(res.Suggestions, ranked[i].name)
	}
	return nil, res
}

// matchScore ranks candidate against a lowercased requested name. Prefix and
// substring containment outrank raw positional character overlap.
func matchScore(requested, candidate string) float64 {
	if requested == candidate {
		return 1
	}
	if strings.HasPrefix(candidate, requested) || strings.HasPrefix(requested, candidate) {
		return 0.9
	}
	if strings.Contains(candidate, requested) || strings.Contains(requested, candidate) {
		return 0.8
	}
	longest := len(requested)
	if len(candidate) > longest {
		longest = len(candidate)
	}
	if longest == 0 {
		return 0
	}
	matches := 0
	for i := 0; i < len(requested) && i < len(candidate); i++ {
		if requested[i] == candidate[i] {
			matches++
		}
	}
	return 0.7 * float64(matches) / float64(longest)
}

// Execute dispatches a model-issued call through resolution, the security
// gate, the handler, and truncation. It always returns a result the model
// can read; failures become error results, never Go errors.
func (r *Registry) Execute(ctx context.Context, call *ai.ToolCall, sec *SecurityContext, ec *ExecContext) *ToolResult {
	tool, res := r.Resolve(call.Name)
	if tool == nil {
		msg := fmt.Sprintf("Unknown tool %q.", call.Name)
		if len(res.Suggestions) > 0 {
			msg += " Did you mean: " + strings.Join(res.Suggestions, ", ") + "?"
		} else {
			msg += " Available tools: " + strings.Join(r.Names(), ", ")
		}
		return &ToolResult{Content: msg, IsError: true}
	}
	if res.Repaired {
		logging.Warnf("[Tools] repaired tool name %q -> %q", call.Name, tool.Name())
	}

	if sec == nil || !sec.Policy.IsAllowed(tool.Name()) {
		return &ToolResult{Content: fmt.Sprintf("Tool %q is not permitted by the current security policy.", tool.Name()), IsError: true}
	}

	if ec == nil {
		ec = &ExecContext{}
	}
	if ec.Security == nil {
		ec.Security = sec
	}

	result := r.run(ctx, tool, call, ec)

	out := Truncate(result.Content, r.truncate)
	if out.Truncated {
		result.Content = out.Text
	}
	return result
}

// run invokes the handler with panic recovery. A panicking tool yields an
// error result instead of taking the turn down.
func (r *Registry) run(ctx context.Context, tool Tool, call *ai.ToolCall, ec *ExecContext) (result *ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Errorf("[Tools] %s panicked: %v", tool.Name(), rec)
			result = Errorf("Tool %q failed: %v", tool.Name(), rec)
		}
	}()

	result, err := tool.Execute(ctx, call.Input, ec)
	if err != nil {
		return Errorf("Tool %q failed: %v", tool.Name(), err)
	}
	if result == nil {
		return &ToolResult{Content: "(no output)"}
	}
	return result
}
