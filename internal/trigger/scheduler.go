// Package trigger implements cron scheduling for classification cycles.
package trigger

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/orchestrator"
)

// cycleTimeout bounds a scheduled cycle; the self-limiting batch and run
// budgets normally finish well inside it.
const cycleTimeout = 10 * time.Minute

// CycleRunner is the interface for executing cycles from triggers.
type CycleRunner interface {
	RunCycle(ctx context.Context, dryRun bool) (*orchestrator.Summary, error)
}

// Scheduler manages cron-based cycle execution. Cycles must not overlap;
// the scheduler enforces this with a skip-if-running guard rather than
// queueing, since the next tick will pick up whatever is left.
type Scheduler struct {
	cron    *cron.Cron
	runner  CycleRunner
	running atomic.Bool
}

// NewScheduler creates a scheduler backed by the given runner.
// Cron expressions use the standard 5-field format: minute hour day-of-month
// month day-of-week (e.g. "*/15 * * * *" for every 15 minutes).
func NewScheduler(runner CycleRunner) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
	}
}

// RegisterSchedule adds a cron entry that runs a live cycle.
func (s *Scheduler) RegisterSchedule(expr string) error {
	_, err := s.cron.AddFunc(expr, func() {
		if !s.running.CompareAndSwap(false, true) {
			log.Warn().Msg("scheduled_cycle_skipped_previous_still_running")
			return
		}
		defer s.running.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
		defer cancel()

		log.Info().Msg("scheduled_cycle_fired")
		if _, err := s.runner.RunCycle(ctx, false); err != nil {
			log.Error().Err(err).Msg("scheduled_cycle_failed")
		}
	})
	if err != nil {
		return fmt.Errorf("registering cron %q: %w", expr, err)
	}
	return nil
}

// Start begins executing registered cron jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to complete.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Entries returns the number of registered cron entries (for testing).
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
