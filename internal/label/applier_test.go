package label

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/mailbox"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/policy"
)

// memStore is a minimal in-memory mailbox.Store with error injection.
type memStore struct {
	labels     map[string][]string
	readErr    error
	addErr     error
	addedCalls int
}

func newMemStore() *memStore {
	return &memStore{labels: make(map[string][]string)}
}

func (s *memStore) FindUnlabeled(ctx context.Context, categories []string, max int) ([]mailbox.Item, error) {
	return nil, nil
}

func (s *memStore) Labels(ctx context.Context, itemID string) ([]string, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.labels[itemID], nil
}

func (s *memStore) AddLabel(ctx context.Context, itemID, label string) error {
	s.addedCalls++
	if s.addErr != nil {
		return s.addErr
	}
	s.labels[itemID] = append(s.labels[itemID], label)
	return nil
}

func (s *memStore) FindByLabel(ctx context.Context, label string, maxAgeDays, max int) ([]mailbox.Item, error) {
	return nil, nil
}

func testPolicy() *policy.Policy {
	return &policy.Policy{
		Instructions: "classify",
		Fallback:     "review",
		Categories: []policy.Category{
			{Name: "needs-reply"}, {Name: "review"}, {Name: "todo"}, {Name: "digest"},
		},
	}
}

func TestApply_Labels(t *testing.T) {
	store := newMemStore()
	applier := NewApplier(store, testPolicy())

	outcome := applier.Apply(context.Background(), mailbox.Item{ID: "m1"}, "todo", false)

	assert.Equal(t, OutcomeLabeled, outcome)
	assert.Equal(t, []string{"todo"}, store.labels["m1"])
}

func TestApply_SkipsAlreadyLabeled(t *testing.T) {
	store := newMemStore()
	store.labels["m1"] = []string{"inbox", "todo"}
	applier := NewApplier(store, testPolicy())

	outcome := applier.Apply(context.Background(), mailbox.Item{ID: "m1"}, "needs-reply", false)

	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Equal(t, 0, store.addedCalls)
	// The existing category survives untouched
	assert.Equal(t, []string{"inbox", "todo"}, store.labels["m1"])
}

func TestApply_NonCategoryLabelsDoNotBlock(t *testing.T) {
	store := newMemStore()
	store.labels["m1"] = []string{"inbox", "starred"}
	applier := NewApplier(store, testPolicy())

	outcome := applier.Apply(context.Background(), mailbox.Item{ID: "m1"}, "digest", false)

	assert.Equal(t, OutcomeLabeled, outcome)
	assert.Contains(t, store.labels["m1"], "digest")
}

func TestApply_DryRun(t *testing.T) {
	store := newMemStore()
	applier := NewApplier(store, testPolicy())

	outcome := applier.Apply(context.Background(), mailbox.Item{ID: "m1"}, "todo", true)

	assert.Equal(t, OutcomeWouldLabel, outcome)
	assert.Equal(t, 0, store.addedCalls)
	assert.Empty(t, store.labels["m1"])
}

func TestApply_ReadFailure(t *testing.T) {
	store := newMemStore()
	store.readErr = fmt.Errorf("store offline")
	applier := NewApplier(store, testPolicy())

	outcome := applier.Apply(context.Background(), mailbox.Item{ID: "m1"}, "todo", false)

	assert.Equal(t, OutcomeError, outcome)
	assert.Equal(t, 0, store.addedCalls)
}

func TestApply_WriteFailure(t *testing.T) {
	store := newMemStore()
	store.addErr = fmt.Errorf("write rejected")
	applier := NewApplier(store, testPolicy())

	outcome := applier.Apply(context.Background(), mailbox.Item{ID: "m1"}, "todo", false)

	assert.Equal(t, OutcomeError, outcome)
	assert.Empty(t, store.labels["m1"])
}

func TestApply_StaleSnapshotStillSkips(t *testing.T) {
	// The item snapshot claims no labels, but the store has since gained one.
	// Apply trusts the store, not the snapshot.
	store := newMemStore()
	applier := NewApplier(store, testPolicy())

	item := mailbox.Item{ID: "m1"}
	require.Equal(t, OutcomeLabeled, applier.Apply(context.Background(), item, "todo", false))
	assert.Equal(t, OutcomeSkipped, applier.Apply(context.Background(), item, "review", false))
}
