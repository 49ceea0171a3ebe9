package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/trace"

	labelerotel "github.com/ghelleks/email-labeler-agent-sub001/internal/otel"
)

var tracer = labelerotel.Tracer("github.com/ghelleks/email-labeler-agent-sub001/internal/llm")

// OpenAIProvider implements the Provider interface for OpenAI.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates an OpenAI provider with the given API key.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
	}
}

// NewOpenAIProviderWithBaseURL creates an OpenAI provider with a custom base
// URL (e.g. for tests pointing at a mock server). baseURL should be the
// scheme+host without path; the client appends /v1 as needed.
func NewOpenAIProviderWithBaseURL(apiKey, baseURL string) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL + "/v1"
	return &OpenAIProvider{client: openai.NewClientWithConfig(config)}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Generate sends a chat completion request to OpenAI.
func (p *OpenAIProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "gen_ai.generate",
		trace.WithAttributes(
			labelerotel.GenAISystem.String("openai"),
			labelerotel.GenAIRequestModel.String(req.Model),
			labelerotel.GenAIRequestTemperature.Float64(req.Temperature),
			labelerotel.GenAIRequestMaxTokens.Int(req.MaxTokens),
		))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, TimeoutLLMCall)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("openai api call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	span.SetAttributes(
		labelerotel.GenAIUsageInputTokens.Int(resp.Usage.PromptTokens),
		labelerotel.GenAIUsageOutputTokens.Int(resp.Usage.CompletionTokens),
		labelerotel.GenAIResponseFinishReason.String(string(resp.Choices[0].FinishReason)),
	)

	return &Response{
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Model:        resp.Model,
	}, nil
}

// openAICostPerMTok maps model prefixes to (input, output) EUR per million tokens.
// Approximate; used for audit records and the budget CLI, never for control flow.
var openAICostPerMTok = []struct {
	prefix  string
	input   float64
	output  float64
}{
	{"gpt-4o-mini", 0.14, 0.55},
	{"gpt-4o", 2.30, 9.20},
	{"gpt-4.1-mini", 0.37, 1.47},
	{"gpt-4.1", 1.84, 7.36},
}

// EstimateCost estimates the EUR cost of a call from token counts.
func (p *OpenAIProvider) EstimateCost(model string, inputTokens, outputTokens int) float64 {
	for _, c := range openAICostPerMTok {
		if strings.HasPrefix(model, c.prefix) {
			return (float64(inputTokens)*c.input + float64(outputTokens)*c.output) / 1_000_000
		}
	}
	return 0
}
