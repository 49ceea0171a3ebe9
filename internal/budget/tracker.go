package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	labelerotel "github.com/ghelleks/email-labeler-agent-sub001/internal/otel"
)

var tracer = labelerotel.Tracer("github.com/ghelleks/email-labeler-agent-sub001/internal/budget")

// Counter types tracked against daily limits.
const (
	CounterModelCall = "model-call"
)

// casAttempts bounds the CAS retry loop. With a single-threaded cycle the
// first attempt always wins; the retries only matter under overlapping cycles.
const casAttempts = 4

// Tracker enforces day-scoped call budgets on top of a CounterStore.
type Tracker struct {
	store  CounterStore
	limits map[string]int64
	now    func() time.Time
}

// NewTracker creates a tracker with per-counter-type daily limits.
func NewTracker(store CounterStore, limits map[string]int64) *Tracker {
	return &Tracker{
		store:  store,
		limits: limits,
		now:    time.Now,
	}
}

// dayKey derives today's counter key from the local calendar date. Day
// rollover is an implicit key change; stale keys are simply never read again.
func (t *Tracker) dayKey(counterType string) string {
	return fmt.Sprintf("%s:%s", t.now().Format("2006-01-02"), counterType)
}

// TryConsume atomically reads today's counter for counterType and, if
// current + n stays within the limit, increments it and returns true.
// A rejected consume leaves the counter untouched. Store errors are treated
// as rejection so a broken counter store can never overspend the budget.
func (t *Tracker) TryConsume(ctx context.Context, counterType string, n int64) bool {
	ctx, span := tracer.Start(ctx, "budget.try_consume")
	defer span.End()

	limit, ok := t.limits[counterType]
	if !ok {
		log.Warn().Str("counter_type", counterType).Msg("budget_unknown_counter_type")
		return false
	}

	key := t.dayKey(counterType)
	for attempt := 0; attempt < casAttempts; attempt++ {
		current, err := t.store.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("budget_counter_read_failed")
			return false
		}
		if current+n > limit {
			log.Debug().
				Str("counter_type", counterType).
				Int64("current", current).
				Int64("limit", limit).
				Msg("budget_exhausted")
			return false
		}
		ok, err := t.store.CompareAndSet(ctx, key, current, current+n)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("budget_counter_cas_failed")
			return false
		}
		if ok {
			return true
		}
	}
	return false
}

// Usage returns today's consumed count and the configured limit for a
// counter type. Used by the budget CLI command and the HTTP API.
func (t *Tracker) Usage(ctx context.Context, counterType string) (used, limit int64, err error) {
	limit = t.limits[counterType]
	used, err = t.store.Get(ctx, t.dayKey(counterType))
	if err != nil {
		return 0, limit, fmt.Errorf("reading usage for %s: %w", counterType, err)
	}
	return used, limit, nil
}

// CounterTypes returns the counter types this tracker enforces.
func (t *Tracker) CounterTypes() []string {
	types := make([]string, 0, len(t.limits))
	for ct := range t.limits {
		types = append(types, ct)
	}
	return types
}
