package classify

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/budget"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/llm"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/mailbox"
	labelerotel "github.com/ghelleks/email-labeler-agent-sub001/internal/otel"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/policy"
)

var tracer = labelerotel.Tracer("github.com/ghelleks/email-labeler-agent-sub001/internal/classify")

// Config holds classifier tuning knobs, resolved once per cycle from the
// operator config.
type Config struct {
	BatchSize   int
	Model       string  // primary model
	RetryModel  string  // model for the single retry; "" reuses Model
	Temperature float64 // 0 keeps decisions stable across retries
	MaxTokens   int
}

// Classifier drives the model transport per batch and guarantees a valid
// category for every input item.
type Classifier struct {
	router  *llm.Router
	tracker *budget.Tracker
	pol     *policy.Policy
	cfg     Config
}

// NewClassifier creates a classifier over the given transport, budget
// tracker, and policy.
func NewClassifier(router *llm.Router, tracker *budget.Tracker, pol *policy.Policy, cfg Config) *Classifier {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &Classifier{router: router, tracker: tracker, pol: pol, cfg: cfg}
}

// Classify returns exactly one valid-category Result per input item, in
// input order. It never returns an error: budget exhaustion, transport
// failures, and malformed output all degrade to the policy's fallback
// category.
func (c *Classifier) Classify(ctx context.Context, items []mailbox.Summary, globalKnow, categoryKnow string) []Result {
	ctx, span := tracer.Start(ctx, "classify.batch_pipeline",
		trace.WithAttributes(attribute.Int("classify.item_count", len(items))))
	defer span.End()

	results := make([]Result, 0, len(items))
	for start := 0; start < len(items); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(items) {
			end = len(items)
		}
		results = append(results, c.classifyBatch(ctx, items[start:end], globalKnow, categoryKnow)...)
	}

	// Postcondition: one result per input id, input order preserved.
	if !coversExactly(items, results) {
		log.Error().Int("items", len(items)).Int("results", len(results)).
			Msg("classify_postcondition_violated")
		span.SetAttributes(attribute.Bool("classify.postcondition_violated", true))
		results = c.fallbackAll(items, ReasonFallbackOnError)
	}

	return results
}

// classifyBatch runs one batch through budget gate → model call → parse,
// with a single retry (optionally on a stronger model) before degrading the
// whole batch to fallback.
func (c *Classifier) classifyBatch(ctx context.Context, batch []mailbox.Summary, globalKnow, categoryKnow string) []Result {
	ctx, span := tracer.Start(ctx, "classify.batch",
		trace.WithAttributes(attribute.Int("classify.batch_size", len(batch))))
	defer span.End()

	if !c.tracker.TryConsume(ctx, budget.CounterModelCall, 1) {
		log.Warn().Int("batch_size", len(batch)).Msg("classify_budget_exceeded")
		return c.fallbackAll(batch, ReasonBudgetExceeded)
	}

	prompt := BuildPrompt(PromptInput{
		Instructions:      c.pol.Instructions,
		GlobalKnowledge:   globalKnow,
		CategoryKnowledge: categoryKnow,
		Categories:        c.pol.Categories,
		Batch:             batch,
	})

	parsed, ok := c.attempt(ctx, c.cfg.Model, prompt, batch, false)
	if !ok {
		retryModel := c.cfg.RetryModel
		if retryModel == "" {
			retryModel = c.cfg.Model
		}
		// The retry is a second model call and spends budget like the first.
		if !c.tracker.TryConsume(ctx, budget.CounterModelCall, 1) {
			log.Warn().Msg("classify_retry_budget_exceeded")
			return c.fallbackAll(batch, ReasonBudgetExceeded)
		}
		log.Info().Str("retry_model", retryModel).Msg("classify_retrying")
		parsed, ok = c.attempt(ctx, retryModel, prompt, batch, true)
	}
	if !ok {
		return c.fallbackAll(batch, ReasonFallbackOnError)
	}

	return c.validate(batch, parsed)
}

// attempt performs one model call and parse. ok requires a parseable
// response that covers every id in the batch; partial coverage triggers the
// caller's retry path per the batch contract.
func (c *Classifier) attempt(ctx context.Context, model, prompt string, batch []mailbox.Summary, retry bool) (map[string]Result, bool) {
	provider, effectiveModel, err := c.router.Route(model)
	if err != nil {
		log.Error().Err(err).Str("model", model).Msg("classify_routing_failed")
		return nil, false
	}

	resp, err := provider.Generate(ctx, &llm.Request{
		Model:       effectiveModel,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		log.Warn().Err(err).Str("model", model).Bool("retry", retry).Msg("classify_model_call_failed")
		return nil, false
	}

	cost := provider.EstimateCost(effectiveModel, resp.InputTokens, resp.OutputTokens)
	llm.RecordCallMetrics(ctx, cost, effectiveModel, resp.InputTokens, resp.OutputTokens, retry)

	parsed, err := ParseResponse(resp.Content)
	if err != nil {
		log.Warn().Err(err).Bool("retry", retry).Msg("classify_parse_failed")
		return nil, false
	}

	byID := make(map[string]Result, len(parsed))
	for _, r := range parsed {
		byID[r.ID] = r
	}
	for _, item := range batch {
		if _, ok := byID[item.ID]; !ok {
			log.Warn().Str("item_id", item.ID).Bool("retry", retry).Msg("classify_incomplete_coverage")
			return nil, false
		}
	}
	return byID, true
}

// validate maps model output onto the batch, substituting the fallback
// category wherever the model returned something outside the closed set.
func (c *Classifier) validate(batch []mailbox.Summary, byID map[string]Result) []Result {
	out := make([]Result, 0, len(batch))
	for _, item := range batch {
		r, ok := byID[item.ID]
		if !ok || !c.pol.ValidCategory(r.Category) {
			if ok {
				log.Warn().Str("item_id", item.ID).Str("category", r.Category).
					Msg("classify_invalid_category")
			}
			out = append(out, Result{ID: item.ID, Category: c.pol.Fallback, Reason: ReasonInvalidOrMissing})
			continue
		}
		out = append(out, Result{ID: item.ID, Category: r.Category, Reason: r.Reason})
	}
	return out
}

func (c *Classifier) fallbackAll(batch []mailbox.Summary, reason string) []Result {
	out := make([]Result, len(batch))
	for i, item := range batch {
		out[i] = Result{ID: item.ID, Category: c.pol.Fallback, Reason: reason}
	}
	return out
}

// coversExactly checks that results carry exactly the input ids in order.
func coversExactly(items []mailbox.Summary, results []Result) bool {
	if len(items) != len(results) {
		return false
	}
	for i := range items {
		if items[i].ID != results[i].ID {
			return false
		}
	}
	return true
}
