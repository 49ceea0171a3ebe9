package llm

import (
	"fmt"
	"strings"
)

// ollamaPrefix routes a model name to the local Ollama provider.
// "ollama:llama3.1" resolves to model "llama3.1" on the ollama provider;
// every other model name routes to OpenAI.
const ollamaPrefix = "ollama:"

// Router resolves model names to providers.
type Router struct {
	providers map[string]Provider
}

// NewRouter creates a router over the given providers, keyed by Name().
func NewRouter(providers ...Provider) *Router {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Router{providers: m}
}

// IsOllamaModel reports whether a model name routes to the local Ollama
// provider (no API key required).
func IsOllamaModel(model string) bool {
	return strings.HasPrefix(model, ollamaPrefix)
}

// CheckCredentials verifies the configured model can be called with the
// given API key. Ollama models need none; everything else routes to OpenAI
// and fails with ErrNoAPIKey when the key is empty.
func CheckCredentials(model, apiKey string) error {
	if apiKey == "" && !IsOllamaModel(model) {
		return fmt.Errorf("model %q: %w", model, ErrNoAPIKey)
	}
	return nil
}

// Route returns the provider and effective model name for a configured model.
func (r *Router) Route(model string) (Provider, string, error) {
	providerName := "openai"
	effectiveModel := model
	if strings.HasPrefix(model, ollamaPrefix) {
		providerName = "ollama"
		effectiveModel = strings.TrimPrefix(model, ollamaPrefix)
	}

	p, ok := r.providers[providerName]
	if !ok {
		return nil, "", fmt.Errorf("routing model %q: %w: %s", model, ErrProviderNotAvailable, providerName)
	}
	return p, effectiveModel, nil
}
