// Package label applies category decisions to items. The applier is the
// single serialization point for per-item state: an item that already
// carries a category label is never relabeled, which makes partially
// completed cycles safe to resume.
package label

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/mailbox"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/policy"
)

// Outcome is the result of one Apply call.
type Outcome string

const (
	// OutcomeLabeled means the category label was attached.
	OutcomeLabeled Outcome = "labeled"
	// OutcomeSkipped means the item already carried a category label.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeWouldLabel means dry-run mode suppressed the mutation.
	OutcomeWouldLabel Outcome = "would-label"
	// OutcomeError means the item store rejected the read or mutation.
	OutcomeError Outcome = "error"
)

// Applier attaches exactly one category label per item.
type Applier struct {
	store      mailbox.Store
	categories []string
}

// NewApplier creates an applier enforcing the policy's category set.
func NewApplier(store mailbox.Store, pol *policy.Policy) *Applier {
	return &Applier{store: store, categories: pol.CategoryNames()}
}

// Apply attaches category to the item unless it already carries any
// category label. Store failures are logged and reported as OutcomeError;
// they never abort the caller's cycle.
func (a *Applier) Apply(ctx context.Context, item mailbox.Item, category string, dryRun bool) Outcome {
	// Re-read labels from the store rather than trusting the snapshot taken
	// at fetch time; the gap between fetch and apply is where double
	// classification is possible, and this check bounds it.
	labels, err := a.store.Labels(ctx, item.ID)
	if err != nil {
		log.Error().Err(err).Str("item_id", item.ID).Msg("label_read_failed")
		return OutcomeError
	}

	for _, l := range labels {
		for _, c := range a.categories {
			if l == c {
				log.Debug().Str("item_id", item.ID).Str("existing", l).Msg("label_skipped")
				return OutcomeSkipped
			}
		}
	}

	if dryRun {
		log.Info().Str("item_id", item.ID).Str("category", category).Msg("label_would_apply")
		return OutcomeWouldLabel
	}

	if err := a.store.AddLabel(ctx, item.ID, category); err != nil {
		log.Error().Err(err).Str("item_id", item.ID).Str("category", category).
			Msg("label_apply_failed")
		return OutcomeError
	}

	log.Info().Str("item_id", item.ID).Str("category", category).Msg("label_applied")
	return OutcomeLabeled
}
