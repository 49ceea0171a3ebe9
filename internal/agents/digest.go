package agents

import (
	"context"
	"fmt"
	"strings"
)

// digestWindowDays bounds how far back the digest looks.
const digestWindowDays = 7

// digestMaxItems caps the per-cycle digest query.
const digestMaxItems = 100

// NewDigestReport returns the digest-report scan agent: once per cycle it
// queries the store for recent items in the digest category and logs a
// one-line summary. Read-only, so it is safe under dry-run.
func NewDigestReport(category string, enabled bool) Registration {
	return Registration{
		Category: category,
		Name:     "digest-report",
		Options:  Options{Enabled: enabled, RunWhen: RunWhenAlways},
		Hooks: Hooks{
			Scan: func(ctx context.Context, sc *ScanContext) (*Result, error) {
				items, err := sc.Store.FindByLabel(ctx, category, digestWindowDays, digestMaxItems)
				if err != nil {
					return nil, fmt.Errorf("querying digest items: %w", err)
				}

				subjects := make([]string, 0, len(items))
				for _, it := range items {
					subjects = append(subjects, it.Subject)
				}
				sc.Log.Info().
					Int("count", len(items)).
					Str("subjects", strings.Join(subjects, "; ")).
					Msg("digest_report")

				return &Result{Status: StatusOK, Info: fmt.Sprintf("%d items in digest", len(items))}, nil
			},
		},
	}
}
