package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{ name string }

func (p *stubProvider) Name() string { return p.name }
func (p *stubProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	return &Response{Content: "stub"}, nil
}
func (p *stubProvider) EstimateCost(model string, in, out int) float64 { return 0 }

func TestRoute_DefaultsToOpenAI(t *testing.T) {
	openaiStub := &stubProvider{name: "openai"}
	router := NewRouter(openaiStub, &stubProvider{name: "ollama"})

	p, model, err := router.Route("gpt-4o-mini")
	require.NoError(t, err)
	assert.Same(t, Provider(openaiStub), p)
	assert.Equal(t, "gpt-4o-mini", model)
}

func TestRoute_OllamaPrefixStripped(t *testing.T) {
	ollamaStub := &stubProvider{name: "ollama"}
	router := NewRouter(&stubProvider{name: "openai"}, ollamaStub)

	p, model, err := router.Route("ollama:llama3.1")
	require.NoError(t, err)
	assert.Same(t, Provider(ollamaStub), p)
	assert.Equal(t, "llama3.1", model)
}

func TestRoute_MissingProvider(t *testing.T) {
	router := NewRouter(&stubProvider{name: "openai"})

	_, _, err := router.Route("ollama:llama3.1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderNotAvailable)
}

func TestIsOllamaModel(t *testing.T) {
	assert.True(t, IsOllamaModel("ollama:qwen2.5"))
	assert.False(t, IsOllamaModel("gpt-4o-mini"))
	assert.False(t, IsOllamaModel(""))
}

func TestCheckCredentials(t *testing.T) {
	assert.NoError(t, CheckCredentials("gpt-4o-mini", "sk-test"))
	assert.NoError(t, CheckCredentials("ollama:llama3.1", ""))

	err := CheckCredentials("gpt-4o-mini", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.Contains(t, err.Error(), "gpt-4o-mini")
}
