// Package testutil provides shared test helpers and mocks for labeler tests.
package testutil

import (
	"context"
	"sync"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/llm"
)

// MockProvider implements llm.Provider for tests without live API calls.
// Responses are returned in sequence; call N past the end repeats the last
// one. Set ErrOnCall (1-based) and Err to fail a specific call.
type MockProvider struct {
	mu           sync.Mutex
	ProviderName string   // provider identifier, e.g. "openai"
	Responses    []string // canned response contents
	CallCount    int      // incremented on each Generate call
	Models       []string // model name of each received request
	ErrOnCall    int      // 1-based; 0 = never
	Err          error    // error returned when ErrOnCall is hit
}

// Name returns the provider identifier (implements llm.Provider).
func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "openai"
	}
	return m.ProviderName
}

// Generate returns the next canned response or the configured error.
func (m *MockProvider) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.CallCount++
	m.Models = append(m.Models, req.Model)
	call := m.CallCount
	m.mu.Unlock()

	if m.ErrOnCall > 0 && call == m.ErrOnCall && m.Err != nil {
		return nil, m.Err
	}

	content := "mock response"
	if len(m.Responses) > 0 {
		idx := call - 1
		if idx >= len(m.Responses) {
			idx = len(m.Responses) - 1
		}
		content = m.Responses[idx]
	}
	return &llm.Response{
		Content:      content,
		FinishReason: "stop",
		InputTokens:  100,
		OutputTokens: 40,
		Model:        req.Model,
	}, nil
}

// EstimateCost returns a fixed cost for tests.
func (m *MockProvider) EstimateCost(_ string, _, _ int) float64 { return 0.001 }
