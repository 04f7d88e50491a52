package llm

import (
	"context"
	"strings"
	"sync"

	"curator/internal/core"
)

// MockGenerator returns canned responses for tests and dry runs.
type MockGenerator struct {
	mu        sync.Mutex
	responses []string
	err       error
	// Respond, when set, computes the reply from the request.
	Respond func(req Request) (string, error)
	calls   []Request
}

// NewMockGenerator cycles through responses in order, repeating the last one.
func NewMockGenerator(responses ...string) *MockGenerator {
	return &MockGenerator{responses: responses}
}

// SetError makes every following call fail with err.
func (m *MockGenerator) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Name returns "mock".
func (m *MockGenerator) Name() string { return "mock" }

// Generate records the request and returns the next response.
func (m *MockGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.calls)
	m.calls = append(m.calls, req)

	if m.err != nil {
		return "", m.err
	}
	if m.Respond != nil {
		return m.Respond(req)
	}
	if len(m.responses) == 0 {
		return "", &core.GenerationError{Backend: "mock", Reason: "no responses configured"}
	}
	if n >= len(m.responses) {
		n = len(m.responses) - 1
	}
	text := strings.TrimSpace(m.responses[n])
	if text == "" {
		return "", &core.GenerationError{Backend: "mock", Reason: "empty response from model"}
	}
	return text, nil
}

// Calls returns the requests seen so far.
func (m *MockGenerator) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}
