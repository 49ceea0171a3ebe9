package agents

import (
	"context"
	"fmt"
	"time"
)

// StaleLabel is the non-category label the archiver attaches. Its presence
// is also the archiver's idempotency marker: already-marked items are
// filtered out before any mutation.
const StaleLabel = "stale"

// archiverMaxItems caps the per-cycle archive sweep.
const archiverMaxItems = 200

// NewStaleArchiver returns the stale-archiver scan agent: once per cycle it
// marks items in the watched category whose last message is older than
// staleAfterDays.
func NewStaleArchiver(category string, staleAfterDays int, enabled bool) Registration {
	return Registration{
		Category: category,
		Name:     "stale-archiver",
		// RunWhenAlways: the hook checks DryRun itself so dry-run cycles
		// still report what would be archived.
		Options: Options{Enabled: enabled, RunWhen: RunWhenAlways},
		Hooks: Hooks{
			Scan: func(ctx context.Context, sc *ScanContext) (*Result, error) {
				items, err := sc.Store.FindByLabel(ctx, category, 0, archiverMaxItems)
				if err != nil {
					return nil, fmt.Errorf("querying %s items: %w", category, err)
				}

				now := time.Now()
				marked := 0
				for _, it := range items {
					if it.HasLabel(StaleLabel) {
						continue
					}
					if it.AgeDays(now) < staleAfterDays {
						continue
					}
					if sc.DryRun {
						sc.Log.Info().Str("item_id", it.ID).Msg("archiver_would_mark_stale")
						continue
					}
					if err := sc.Store.AddLabel(ctx, it.ID, StaleLabel); err != nil {
						return nil, fmt.Errorf("marking %s stale: %w", it.ID, err)
					}
					sc.Log.Info().Str("item_id", it.ID).Int("age_days", it.AgeDays(now)).
						Msg("archiver_marked_stale")
					marked++
				}

				return &Result{Status: StatusOK, Info: fmt.Sprintf("%d items marked stale", marked)}, nil
			},
		},
	}
}
