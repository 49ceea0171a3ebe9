package classify

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/budget"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/llm"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/mailbox"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/policy"
)

// scriptedProvider returns canned responses (or errors) in sequence and
// records every request it sees.
type scriptedProvider struct {
	responses []string
	errs      []error
	calls     int
	models    []string
}

func (p *scriptedProvider) Name() string { return "openai" }

func (p *scriptedProvider) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	i := p.calls
	p.calls++
	p.models = append(p.models, req.Model)
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	content := ""
	if i < len(p.responses) {
		content = p.responses[i]
	}
	return &llm.Response{Content: content, FinishReason: "stop", InputTokens: 100, OutputTokens: 50, Model: req.Model}, nil
}

func (p *scriptedProvider) EstimateCost(model string, in, out int) float64 { return 0 }

func testPolicy() *policy.Policy {
	return &policy.Policy{
		Name:         "triage",
		Instructions: "Classify each thread.",
		Fallback:     "review",
		Categories: []policy.Category{
			{Name: "needs-reply", Description: "awaiting a response from me"},
			{Name: "review", Description: "worth reading, no action"},
			{Name: "todo", Description: "contains a task"},
			{Name: "digest", Description: "newsletters and automated mail"},
		},
	}
}

func testBatch(n int) []mailbox.Summary {
	batch := make([]mailbox.Summary, n)
	for i := range batch {
		batch[i] = mailbox.Summary{ID: fmt.Sprintf("item-%d", i+1), Subject: fmt.Sprintf("subject %d", i+1)}
	}
	return batch
}

func newTestClassifier(provider llm.Provider, limit int64) (*Classifier, *budget.Tracker) {
	tracker := budget.NewTracker(budget.NewMemoryStore(), map[string]int64{
		budget.CounterModelCall: limit,
	})
	c := NewClassifier(llm.NewRouter(provider), tracker, testPolicy(), Config{
		BatchSize: 10,
		Model:     "gpt-4o-mini",
	})
	return c, tracker
}

func resultsJSON(categories map[string]string) string {
	s := `{"results": [`
	first := true
	for id, cat := range categories {
		if !first {
			s += ","
		}
		first = false
		s += fmt.Sprintf(`{"id": %q, "category": %q, "reason": "model"}`, id, cat)
	}
	return s + `]}`
}

func TestClassify_ValidResponse(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"results": [
			{"id": "item-1", "category": "needs-reply", "reason": "direct question"},
			{"id": "item-2", "category": "digest", "reason": "newsletter"},
			{"id": "item-3", "category": "todo", "reason": "action item"}
		]}`,
	}}
	c, tracker := newTestClassifier(provider, 10)

	results := c.Classify(context.Background(), testBatch(3), "", "")

	require.Len(t, results, 3)
	assert.Equal(t, "item-1", results[0].ID)
	assert.Equal(t, "needs-reply", results[0].Category)
	assert.Equal(t, "digest", results[1].Category)
	assert.Equal(t, "todo", results[2].Category)
	assert.Equal(t, 1, provider.calls)

	used, _, err := tracker.Usage(context.Background(), budget.CounterModelCall)
	require.NoError(t, err)
	assert.Equal(t, int64(1), used)
}

func TestClassify_RetrySucceeds(t *testing.T) {
	good := resultsJSON(map[string]string{"item-1": "todo", "item-2": "review"})
	provider := &scriptedProvider{
		responses: []string{"I could not produce JSON, sorry.", good},
	}
	c, tracker := newTestClassifier(provider, 10)
	c.cfg.RetryModel = "gpt-4o"

	results := c.Classify(context.Background(), testBatch(2), "", "")

	require.Len(t, results, 2)
	assert.Equal(t, "todo", results[0].Category)
	assert.Equal(t, "review", results[1].Category)

	// Both attempts are real model calls and both count against the budget.
	assert.Equal(t, 2, provider.calls)
	assert.Equal(t, []string{"gpt-4o-mini", "gpt-4o"}, provider.models)

	used, _, err := tracker.Usage(context.Background(), budget.CounterModelCall)
	require.NoError(t, err)
	assert.Equal(t, int64(2), used)
}

func TestClassify_RetryFailsFallsBack(t *testing.T) {
	provider := &scriptedProvider{
		errs: []error{fmt.Errorf("boom"), fmt.Errorf("boom again")},
	}
	c, _ := newTestClassifier(provider, 10)

	results := c.Classify(context.Background(), testBatch(2), "", "")

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "review", r.Category)
		assert.Equal(t, ReasonFallbackOnError, r.Reason)
	}
	assert.Equal(t, 2, provider.calls)
}

func TestClassify_BudgetExhausted(t *testing.T) {
	provider := &scriptedProvider{}
	c, _ := newTestClassifier(provider, 0)

	results := c.Classify(context.Background(), testBatch(5), "", "")

	require.Len(t, results, 5)
	for _, r := range results {
		assert.Equal(t, "review", r.Category)
		assert.Equal(t, ReasonBudgetExceeded, r.Reason)
	}
	// No model call is ever made once the budget rejects the batch.
	assert.Equal(t, 0, provider.calls)
}

func TestClassify_RetryDeniedByBudget(t *testing.T) {
	provider := &scriptedProvider{
		errs: []error{fmt.Errorf("transient failure")},
	}
	c, _ := newTestClassifier(provider, 1)

	results := c.Classify(context.Background(), testBatch(2), "", "")

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "review", r.Category)
		assert.Equal(t, ReasonBudgetExceeded, r.Reason)
	}
	assert.Equal(t, 1, provider.calls)
}

func TestClassify_InvalidCategorySubstituted(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"results": [
			{"id": "item-1", "category": "todo", "reason": "fine"},
			{"id": "item-2", "category": "spam", "reason": "not in the set"}
		]}`,
	}}
	c, _ := newTestClassifier(provider, 10)

	results := c.Classify(context.Background(), testBatch(2), "", "")

	require.Len(t, results, 2)
	assert.Equal(t, "todo", results[0].Category)
	assert.Equal(t, "review", results[1].Category)
	assert.Equal(t, ReasonInvalidOrMissing, results[1].Reason)
}

func TestClassify_IncompleteCoverageRetries(t *testing.T) {
	// First response covers only one of two items; second covers both.
	partial := resultsJSON(map[string]string{"item-1": "todo"})
	full := resultsJSON(map[string]string{"item-1": "todo", "item-2": "digest"})
	provider := &scriptedProvider{responses: []string{partial, full}}
	c, _ := newTestClassifier(provider, 10)

	results := c.Classify(context.Background(), testBatch(2), "", "")

	require.Len(t, results, 2)
	assert.Equal(t, "todo", results[0].Category)
	assert.Equal(t, "digest", results[1].Category)
	assert.Equal(t, 2, provider.calls)
}

func TestClassify_BatchSplitting(t *testing.T) {
	// 25 items with batch size 10 means 3 model calls.
	provider := &scriptedProvider{}
	c, _ := newTestClassifier(provider, 100)

	batch := testBatch(25)
	responses := make([]string, 3)
	for b := 0; b < 3; b++ {
		lo, hi := b*10, (b+1)*10
		if hi > 25 {
			hi = 25
		}
		m := make(map[string]string, hi-lo)
		for _, item := range batch[lo:hi] {
			m[item.ID] = "digest"
		}
		responses[b] = resultsJSON(m)
	}
	provider.responses = responses

	results := c.Classify(context.Background(), batch, "", "")

	require.Len(t, results, 25)
	assert.Equal(t, 3, provider.calls)
	for i, r := range results {
		assert.Equal(t, batch[i].ID, r.ID)
		assert.Equal(t, "digest", r.Category)
	}
}

func TestClassify_EmptyInput(t *testing.T) {
	provider := &scriptedProvider{}
	c, _ := newTestClassifier(provider, 10)

	results := c.Classify(context.Background(), nil, "", "")

	assert.Empty(t, results)
	assert.Equal(t, 0, provider.calls)
}
