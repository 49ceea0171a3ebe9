package mailbox

import "context"

// Store is the item-store contract consumed by the labeling stage and by
// scan agents. Production deployments inject an adapter for their mail
// system; LocalStore implements the same contract over SQLite.
type Store interface {
	// FindUnlabeled returns up to max items carrying none of the given
	// category labels, oldest first.
	FindUnlabeled(ctx context.Context, categories []string, max int) ([]Item, error)
	// Labels returns the current label set for an item.
	Labels(ctx context.Context, itemID string) ([]string, error)
	// AddLabel attaches a label to an item. Adding an existing label is a no-op.
	AddLabel(ctx context.Context, itemID, label string) error
	// FindByLabel returns up to max items carrying the label whose last
	// message is at most maxAgeDays old (0 = no age filter), oldest first.
	FindByLabel(ctx context.Context, label string, maxAgeDays, max int) ([]Item, error)
}

// DraftWriter is an optional store capability used by the reply-draft agent.
// Agents must check HasDraft before creating one; draft presence is the
// observable state that makes the agent idempotent across cycles.
type DraftWriter interface {
	HasDraft(ctx context.Context, itemID string) (bool, error)
	CreateDraft(ctx context.Context, itemID, body string) error
}
