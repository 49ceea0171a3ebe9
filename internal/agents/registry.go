// Package agents implements the pluggable post-processing registry. An
// agent registers for one category with up to two hook kinds: OnClassify
// (per item, fired right after labeling) and Scan (once per cycle, the
// agent queries the item store itself). Agents are isolated from each
// other: a panicking handler becomes an error result, nothing more.
package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/classify"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/config"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/mailbox"
)

// Hook result statuses.
const (
	StatusOK             = "ok"
	StatusError          = "error"
	StatusDisabled       = "disabled"
	StatusBudgetExceeded = "budget-exceeded"
	StatusDryRun         = "dry-run"
)

// RunWhenAlways marks an agent as safe to run in dry-run cycles (it must
// perform no observable mutation, or handle DryRun itself).
const RunWhenAlways = "always"

// ExecContext is the per-item context passed to OnClassify hooks.
type ExecContext struct {
	Category string
	Decision classify.Result
	Item     mailbox.Item
	Config   *config.Config
	DryRun   bool
	Log      zerolog.Logger
}

// ScanContext is the cycle context passed to Scan hooks. Scan hooks receive
// no item; they query the store by category themselves.
type ScanContext struct {
	Store  mailbox.Store
	Config *config.Config
	DryRun bool
	Log    zerolog.Logger
}

// Result is the normalized outcome of one hook invocation.
type Result struct {
	Agent      string        `json:"agent"`
	Category   string        `json:"category"`
	Hook       string        `json:"hook"` // "on_classify" or "scan"
	Status     string        `json:"status"`
	Info       string        `json:"info,omitempty"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Hooks holds an agent's handlers; at least one must be set.
type Hooks struct {
	OnClassify func(ctx context.Context, ec *ExecContext) (*Result, error)
	Scan       func(ctx context.Context, sc *ScanContext) (*Result, error)
}

// Options configures dispatch behavior for one agent.
type Options struct {
	Enabled     bool
	RunWhen     string        // RunWhenAlways to run during dry-run cycles
	SoftTimeout time.Duration // advisory; overruns are logged, not cancelled
}

// Registration binds an agent to a category.
type Registration struct {
	Category string
	Name     string
	Hooks    Hooks
	Options  Options
}

// RunBudget is the cycle-wide OnClassify dispatch budget, shared across all
// agents. Cycles are single-threaded, so a plain countdown suffices. Scan
// hooks are cycle-scoped and do not draw from it.
type RunBudget struct {
	remaining int
}

// NewRunBudget creates a budget of n dispatches.
func NewRunBudget(n int) *RunBudget {
	return &RunBudget{remaining: n}
}

// take consumes one dispatch; returns false when exhausted.
func (b *RunBudget) take() bool {
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// exhausted reports whether any dispatches remain, without consuming one.
func (b *RunBudget) exhausted() bool { return b.remaining <= 0 }

// Remaining returns the dispatches left in this cycle.
func (b *RunBudget) Remaining() int { return b.remaining }

// Registry holds agent registrations in registration order.
type Registry struct {
	order      []Registration
	byCategory map[string][]int // indexes into order
	seen       map[string]bool  // category/name uniqueness
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byCategory: make(map[string][]int),
		seen:       make(map[string]bool),
	}
}

// Register adds an agent. A registration must name a category and an agent
// and carry at least one hook; duplicate names under the same category are a
// configuration error caught here, at startup.
func (r *Registry) Register(reg Registration) error {
	if reg.Category == "" {
		return fmt.Errorf("registering agent %q: category must not be empty", reg.Name)
	}
	if reg.Name == "" {
		return fmt.Errorf("registering agent for %q: name must not be empty", reg.Category)
	}
	if reg.Hooks.OnClassify == nil && reg.Hooks.Scan == nil {
		return fmt.Errorf("registering agent %s/%s: at least one hook is required", reg.Category, reg.Name)
	}
	key := reg.Category + "/" + reg.Name
	if r.seen[key] {
		return fmt.Errorf("registering agent %s: duplicate name", key)
	}
	r.seen[key] = true
	r.order = append(r.order, reg)
	r.byCategory[reg.Category] = append(r.byCategory[reg.Category], len(r.order)-1)
	return nil
}

// List returns all registrations in registration order.
func (r *Registry) List() []Registration {
	return append([]Registration(nil), r.order...)
}

// RunOnClassify dispatches every OnClassify hook registered for the
// category, in registration order. Per agent: disabled wins over budget,
// budget over dry-run. Only an actual invocation consumes a unit of the run
// budget, so a dry-run cycle previews exactly what a live cycle would
// dispatch. Panics and errors become error results and never propagate.
func (r *Registry) RunOnClassify(ctx context.Context, category string, ec *ExecContext, budget *RunBudget) []Result {
	var results []Result
	for _, idx := range r.byCategory[category] {
		reg := r.order[idx]
		if reg.Hooks.OnClassify == nil {
			continue
		}
		if !reg.Options.Enabled {
			results = append(results, Result{
				Agent: reg.Name, Category: category, Hook: "on_classify", Status: StatusDisabled,
			})
			continue
		}
		if budget.exhausted() {
			log.Warn().Str("agent", reg.Name).Str("item_id", ec.Item.ID).
				Msg("agent_run_budget_exceeded")
			results = append(results, Result{
				Agent: reg.Name, Category: category, Hook: "on_classify", Status: StatusBudgetExceeded,
			})
			continue
		}
		if ec.DryRun && reg.Options.RunWhen != RunWhenAlways {
			results = append(results, Result{
				Agent: reg.Name, Category: category, Hook: "on_classify", Status: StatusDryRun,
			})
			continue
		}
		budget.take()
		results = append(results, r.invoke(reg, "on_classify", func() (*Result, error) {
			return reg.Hooks.OnClassify(ctx, ec)
		}))
	}
	return results
}

// RunScan dispatches every Scan hook across all categories, in registration
// order. Called exactly once per cycle, after all OnClassify dispatch.
func (r *Registry) RunScan(ctx context.Context, sc *ScanContext) []Result {
	var results []Result
	for _, reg := range r.order {
		if reg.Hooks.Scan == nil {
			continue
		}
		if !reg.Options.Enabled {
			results = append(results, Result{
				Agent: reg.Name, Category: reg.Category, Hook: "scan", Status: StatusDisabled,
			})
			continue
		}
		if sc.DryRun && reg.Options.RunWhen != RunWhenAlways {
			results = append(results, Result{
				Agent: reg.Name, Category: reg.Category, Hook: "scan", Status: StatusDryRun,
			})
			continue
		}
		reg := reg
		results = append(results, r.invoke(reg, "scan", func() (*Result, error) {
			return reg.Hooks.Scan(ctx, sc)
		}))
	}
	return results
}

// invoke runs one hook with panic recovery, soft-timeout measurement, and
// result normalization. A nil result from a successful hook becomes ok.
func (r *Registry) invoke(reg Registration, hook string, fn func() (*Result, error)) (out Result) {
	started := time.Now()

	defer func() {
		out.Agent = reg.Name
		out.Category = reg.Category
		out.Hook = hook
		out.Duration = time.Since(started)
		if rec := recover(); rec != nil {
			log.Error().Str("agent", reg.Name).Interface("panic", rec).Msg("agent_panicked")
			out.Status = StatusError
			out.Info = fmt.Sprintf("panic: %v", rec)
		}
		if reg.Options.SoftTimeout > 0 && out.Duration > reg.Options.SoftTimeout {
			log.Warn().Str("agent", reg.Name).
				Dur("duration", out.Duration).
				Dur("soft_timeout", reg.Options.SoftTimeout).
				Msg("agent_soft_timeout_exceeded")
		}
	}()

	res, err := fn()
	if err != nil {
		log.Error().Err(err).Str("agent", reg.Name).Str("hook", hook).Msg("agent_failed")
		return Result{Status: StatusError, Info: err.Error()}
	}
	if res == nil {
		return Result{Status: StatusOK}
	}
	if res.Status == "" {
		res.Status = StatusOK
	}
	return *res
}
