package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// MockResponse is one scripted answer: either Content or Err.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
}

// TextResponse scripts a plain-text answer.
func TextResponse(text string) MockResponse {
	return MockResponse{Content: json.RawMessage(text)}
}

// MockProvider plays back scripted answers in order and records every
// request it sees. When the script runs out it repeats Fallback, and
// without a Fallback it reports the provider as unavailable. It backs
// both the tests and the "mock" provider setting for offline runs.
type MockProvider struct {
	Calls    []Request
	Fallback *MockResponse

	mu     sync.Mutex
	script []MockResponse
}

func NewMockProvider(script ...MockResponse) *MockProvider {
	return &MockProvider{script: script}
}

func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	next, ok := m.next()
	if !ok {
		return nil, &ErrProviderUnavailable{}
	}
	if next.Err != nil {
		return nil, next.Err
	}
	return &Response{Content: next.Content, Usage: next.Usage, Model: m.ModelID(), StopReason: StopEnd}, nil
}

func (m *MockProvider) next() (MockResponse, bool) {
	if len(m.script) > 0 {
		r := m.script[0]
		m.script = m.script[1:]
		return r, true
	}
	if m.Fallback != nil {
		return *m.Fallback, true
	}
	return MockResponse{}, false
}

func (m *MockProvider) ModelID() string { return "mock" }

// AddResponse appends to the script.
func (m *MockProvider) AddResponse(r MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, r)
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
