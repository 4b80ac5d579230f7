package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockChat is a scripted Chat for tests. Responses are returned in order;
// when the script runs out, the last response repeats. A non-nil Err is
// returned for every call instead.
type MockChat struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Requests  []CompletionRequest
	calls     int
}

// Complete replays the scripted responses and records every request.
func (m *MockChat) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	m.calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return nil, fmt.Errorf("mock chat has no scripted responses")
	}
	idx := m.calls - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return &Completion{
		Text:  m.Responses[idx],
		Usage: Usage{InputTokens: 100, OutputTokens: 50},
	}, nil
}

// Calls returns how many completions were requested.
func (m *MockChat) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
