//go:build integration

package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/agents"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/audit"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/budget"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/classify"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/config"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/label"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/llm"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/mailbox"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/orchestrator"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/policy"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/testutil"
)

// buildPipeline wires the full stack over SQLite-backed stores, the way
// `labeler run` does, with a mock LLM provider.
func buildPipeline(t *testing.T, provider llm.Provider, dailyCalls int64) (*orchestrator.Orchestrator, *mailbox.LocalStore, *audit.Store, *budget.Tracker) {
	t.Helper()
	dir := t.TempDir()

	pol, err := policy.Load(context.Background(), testutil.WriteTriagePolicyFile(t, dir))
	require.NoError(t, err)

	cfg := &config.Config{
		DataDir:         dir,
		BatchSize:       10,
		MaxPerCycle:     50,
		ExcerptChars:    500,
		DailyModelCalls: dailyCalls,
		AgentRunsPerRun: 40,
		StaleAfterDays:  14,
		Model:           "gpt-4o-mini",
	}

	counters, err := budget.NewSQLiteStore(cfg.CountersDBPath())
	require.NoError(t, err)
	t.Cleanup(func() { counters.Close() })
	tracker := budget.NewTracker(counters, map[string]int64{budget.CounterModelCall: dailyCalls})

	store, err := mailbox.NewLocalStore(cfg.MailboxDBPath())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	audits, err := audit.NewStore(cfg.AuditDBPath(), "0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	t.Cleanup(func() { audits.Close() })

	classifier := classify.NewClassifier(llm.NewRouter(provider), tracker, pol, classify.Config{
		BatchSize: cfg.BatchSize,
		Model:     cfg.Model,
	})

	registry := agents.NewRegistry()
	require.NoError(t, agents.Bootstrap(registry, agents.Builtins(cfg, store)))

	orch, err := orchestrator.New(orchestrator.Deps{
		Store:      store,
		Drafts:     store,
		Classifier: classifier,
		Applier:    label.NewApplier(store, pol),
		Registry:   registry,
		Audit:      audits,
		Policy:     pol,
		Config:     cfg,
	})
	require.NoError(t, err)
	return orch, store, audits, tracker
}

func seedThread(t *testing.T, store *mailbox.LocalStore, id, subject, body string, age time.Duration) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), mailbox.Item{
		ID:      id,
		Subject: subject,
		Messages: []mailbox.Message{
			{From: "sender@example.com", SentAt: time.Now().UTC().Add(-age), Body: body},
		},
	}))
}

// TestFullCycle simulates `labeler run` end to end:
//
//	fetch unlabeled threads → classify in one batch → label → dispatch
//	agents → scan agents → signed audit record
func TestFullCycle(t *testing.T) {
	ctx := context.Background()
	provider := &testutil.MockProvider{Responses: []string{
		`{"results": [
			{"id": "t1", "category": "needs-reply", "reason": "direct question"},
			{"id": "t2", "category": "todo", "reason": "action requested"},
			{"id": "t3", "category": "digest", "reason": "newsletter"}
		]}`,
	}}
	orch, store, audits, tracker := buildPipeline(t, provider, 100)

	seedThread(t, store, "t1", "Can you confirm the offsite date?", "<p>Let me know by Friday.</p>", 2*time.Hour)
	seedThread(t, store, "t2", "Renew the TLS certificate", "expires next week", 4*time.Hour)
	seedThread(t, store, "t3", "Engineering weekly", "<h1>This week</h1>", 6*time.Hour)

	summary, err := orch.RunCycle(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Candidates)
	assert.Equal(t, 3, summary.Labeled)
	assert.Equal(t, 0, summary.Errors)

	// Labels landed in the store
	labels, err := store.Labels(ctx, "t1")
	require.NoError(t, err)
	assert.Contains(t, labels, "needs-reply")

	// The needs-reply agent left a draft
	hasDraft, err := store.HasDraft(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, hasDraft)

	// One model call spent
	used, _, err := tracker.Usage(ctx, budget.CounterModelCall)
	require.NoError(t, err)
	assert.Equal(t, int64(1), used)

	// A signed audit record exists and verifies
	records, err := audits.List(ctx, time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	ok, err := audits.Verify(ctx, records[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second cycle finds nothing to do and stays idempotent
	summary, err = orch.RunCycle(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Candidates)

	hasDraft, err = store.HasDraft(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, hasDraft)
}

// TestFullCycle_BudgetExhaustion drains the daily budget and checks that
// classification degrades to the fallback category without model calls.
func TestFullCycle_BudgetExhaustion(t *testing.T) {
	ctx := context.Background()
	provider := &testutil.MockProvider{}
	orch, store, _, _ := buildPipeline(t, provider, 0)

	for i := 1; i <= 5; i++ {
		seedThread(t, store, fmt.Sprintf("t%d", i), fmt.Sprintf("thread %d", i), "body", time.Hour)
	}

	summary, err := orch.RunCycle(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Labeled)
	assert.Equal(t, 5, summary.Fallbacks)
	assert.Equal(t, 0, provider.CallCount)

	for i := 1; i <= 5; i++ {
		labels, err := store.Labels(ctx, fmt.Sprintf("t%d", i))
		require.NoError(t, err)
		assert.Contains(t, labels, "review")
	}
}

// TestFullCycle_RetryOnModelFailure fails the first model call and checks
// the retry completes the batch, spending two budget units.
func TestFullCycle_RetryOnModelFailure(t *testing.T) {
	ctx := context.Background()
	provider := &testutil.MockProvider{
		Responses: []string{
			"unused",
			`{"results": [{"id": "t1", "category": "todo", "reason": "task"}]}`,
		},
		ErrOnCall: 1,
		Err:       fmt.Errorf("upstream 500"),
	}
	orch, store, _, tracker := buildPipeline(t, provider, 100)
	seedThread(t, store, "t1", "Fix the build", "it is red", time.Hour)

	summary, err := orch.RunCycle(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Labeled)
	assert.Equal(t, 0, summary.Fallbacks)
	assert.Equal(t, 2, provider.CallCount)

	used, _, err := tracker.Usage(ctx, budget.CounterModelCall)
	require.NoError(t, err)
	assert.Equal(t, int64(2), used)
}

// TestFullCycle_DryRun verifies a dry-run cycle mutates nothing but still
// produces an audit record.
func TestFullCycle_DryRun(t *testing.T) {
	ctx := context.Background()
	provider := &testutil.MockProvider{Responses: []string{
		`{"results": [{"id": "t1", "category": "needs-reply", "reason": "ask"}]}`,
	}}
	orch, store, audits, _ := buildPipeline(t, provider, 100)
	seedThread(t, store, "t1", "Question", "what do you think?", time.Hour)

	summary, err := orch.RunCycle(ctx, true)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.WouldLabel)
	assert.Equal(t, 0, summary.Labeled)

	labels, err := store.Labels(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, labels)

	hasDraft, err := store.HasDraft(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, hasDraft)

	records, err := audits.List(ctx, time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].DryRun)
}
