package mailbox

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(filepath.Join(t.TempDir(), "mailbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedItem(t *testing.T, store *LocalStore, id, subject string, age time.Duration, labels ...string) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), Item{
		ID:      id,
		Subject: subject,
		Labels:  labels,
		Messages: []Message{
			{From: "sender@example.com", SentAt: time.Now().UTC().Add(-age), Body: "body of " + id},
		},
	}))
}

func TestLocalStore_PutAndGet(t *testing.T) {
	store := newTestLocalStore(t)
	seedItem(t, store, "m1", "Hello", time.Hour, "inbox")

	it, err := store.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "Hello", it.Subject)
	assert.Equal(t, []string{"inbox"}, it.Labels)
	require.Len(t, it.Messages, 1)
	assert.Equal(t, "body of m1", it.Messages[0].Body)
}

func TestLocalStore_FindUnlabeled(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()
	categories := []string{"needs-reply", "review", "todo", "digest"}

	seedItem(t, store, "old", "oldest", 72*time.Hour)
	seedItem(t, store, "labeled", "already done", 48*time.Hour, "todo")
	seedItem(t, store, "tagged", "non-category label", 24*time.Hour, "inbox")
	seedItem(t, store, "fresh", "newest", time.Hour)

	items, err := store.FindUnlabeled(ctx, categories, 10)
	require.NoError(t, err)

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	// Category-labeled item excluded; oldest first
	assert.Equal(t, []string{"old", "tagged", "fresh"}, ids)

	// max caps the result
	items, err = store.FindUnlabeled(ctx, categories, 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestLocalStore_AddLabel(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()
	seedItem(t, store, "m1", "x", time.Hour)

	require.NoError(t, store.AddLabel(ctx, "m1", "todo"))
	// Re-adding is a no-op, not an error
	require.NoError(t, store.AddLabel(ctx, "m1", "todo"))

	labels, err := store.Labels(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"todo"}, labels)

	err = store.AddLabel(ctx, "ghost", "todo")
	assert.ErrorContains(t, err, "item ghost not found")
}

func TestLocalStore_FindByLabel(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	seedItem(t, store, "recent", "new digest", 24*time.Hour, "digest")
	seedItem(t, store, "ancient", "old digest", 20*24*time.Hour, "digest")
	seedItem(t, store, "other", "not digest", time.Hour, "todo")

	items, err := store.FindByLabel(ctx, "digest", 0, 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	// Age filter drops the 20-day-old item
	items, err = store.FindByLabel(ctx, "digest", 7, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "recent", items[0].ID)
}

func TestLocalStore_Drafts(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()
	seedItem(t, store, "m1", "x", time.Hour)

	has, err := store.HasDraft(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, store.CreateDraft(ctx, "m1", "Hi,\n\nthanks."))

	has, err = store.HasDraft(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, has)
}
