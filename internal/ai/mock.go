package ai

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a scripted Provider for tests. Each Complete call consumes the
// next queued response (or error) in order.
type Mock struct {
	mu        sync.Mutex
	responses []mockStep
	calls     []*ChatRequest
}

type mockStep struct {
	resp *ChatResponse
	err  error
}

// NewMock creates an empty scripted provider
func NewMock() *Mock {
	return &Mock{}
}

// ID implements Provider
func (m *Mock) ID() string { return "mock" }

// Queue appends a scripted response
func (m *Mock) Queue(resp *ChatResponse) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockStep{resp: resp})
	return m
}

// QueueError appends a scripted failure
func (m *Mock) QueueError(err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockStep{err: err})
	return m
}

// Complete implements Provider by replaying the script
func (m *Mock) Complete(_ context.Context, req *ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)
	if len(m.responses) == 0 {
		return nil, fmt.Errorf("mock provider: no scripted response for call %d", len(m.calls))
	}
	step := m.responses[0]
	m.responses = m.responses[1:]
	if step.err != nil {
		return nil, step.err
	}
	return step.resp, nil
}

// Calls returns every request seen so far
func (m *Mock) Calls() []*ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ChatRequest, len(m.calls))
	copy(out, m.calls)
	return out
}
