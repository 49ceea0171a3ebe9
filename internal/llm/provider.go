// Package llm provides the model transport: a Provider interface with
// OpenAI and Ollama implementations, plus a router that picks the provider
// for a model name. The transport contract is deliberately thin, text in
// and text out, so the classifier owns all parsing and repair.
package llm

import (
	"context"
	"errors"
	"time"
)

// Timeouts for LLM operations.
const (
	TimeoutLLMCall = 60 * time.Second
)

// Domain errors for the LLM package.
var (
	ErrProviderNotAvailable = errors.New("provider not available")
	ErrNoAPIKey             = errors.New("no API key configured")
)

// Provider is the interface all LLM providers must implement.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai", "ollama").
	Name() string
	// Generate sends a completion request to the LLM and returns the response.
	Generate(ctx context.Context, req *Request) (*Response, error)
	// EstimateCost estimates the cost in EUR for the given model and token counts.
	EstimateCost(model string, inputTokens, outputTokens int) float64
}

// Request represents an LLM generation request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Message represents a chat message.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Response represents an LLM generation response.
type Response struct {
	Content      string
	FinishReason string
	InputTokens  int
	OutputTokens int
	Model        string
}
