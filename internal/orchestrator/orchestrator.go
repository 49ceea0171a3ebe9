// Package orchestrator drives one classification cycle: fetch candidates,
// classify, apply labels, dispatch per-item agents, run scan agents, and
// always produce a cycle summary. Nothing inside a cycle is fatal: the
// next scheduled cycle is the retry mechanism, so every failure path
// degrades to a counted error in the summary.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/agents"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/audit"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/classify"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/config"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/knowledge"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/label"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/mailbox"
	labelerotel "github.com/ghelleks/email-labeler-agent-sub001/internal/otel"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/policy"
)

var tracer = labelerotel.Tracer("github.com/ghelleks/email-labeler-agent-sub001/internal/orchestrator")

// Summary is the always-produced outcome of one cycle.
type Summary struct {
	CycleID      string          `json:"cycle_id"`
	Started      time.Time       `json:"started"`
	DryRun       bool            `json:"dry_run"`
	Candidates   int             `json:"candidates"`
	Labeled      int             `json:"labeled"`
	Skipped      int             `json:"skipped"`
	WouldLabel   int             `json:"would_label"`
	Errors       int             `json:"errors"`
	Fallbacks    int             `json:"fallbacks"`
	AgentResults []agents.Result `json:"agent_results,omitempty"`
	DurationMS   int64           `json:"duration_ms"`
}

// Deps holds the orchestrator's collaborators.
type Deps struct {
	Store      mailbox.Store
	Drafts     mailbox.DraftWriter // optional; nil disables the reply-draft agent
	Classifier *classify.Classifier
	Applier    *label.Applier
	Registry   *agents.Registry
	Knowledge  knowledge.Provider
	Audit      *audit.Store // optional; nil disables audit records
	Policy     *policy.Policy
	Config     *config.Config
}

// Orchestrator runs classification cycles.
type Orchestrator struct {
	deps Deps
	now  func() time.Time
}

// New validates required dependencies and creates an orchestrator. Missing
// configuration is the one condition that aborts before any cycle runs.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("item store is required")
	}
	if deps.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if deps.Applier == nil {
		return nil, fmt.Errorf("label applier is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("agent registry is required")
	}
	if deps.Policy == nil || deps.Policy.Instructions == "" {
		return nil, fmt.Errorf("classification policy is required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Knowledge == nil {
		deps.Knowledge = knowledge.NewFileProvider("", 0)
	}
	return &Orchestrator{deps: deps, now: time.Now}, nil
}

// RunCycle executes one full cycle and always returns a summary. The error
// return exists for interface symmetry with triggers; it is nil in every
// path that produces a summary.
func (o *Orchestrator) RunCycle(ctx context.Context, dryRun bool) (*Summary, error) {
	started := o.now()
	cycleID := "cyc_" + uuid.New().String()[:12]

	ctx, span := tracer.Start(ctx, "orchestrator.cycle",
		trace.WithAttributes(
			attribute.String("cycle_id", cycleID),
			attribute.Bool("dry_run", dryRun),
		))
	defer span.End()

	summary := &Summary{CycleID: cycleID, Started: started, DryRun: dryRun}

	log.Info().Str("cycle_id", cycleID).Bool("dry_run", dryRun).Msg("cycle_started")

	items, err := o.deps.Store.FindUnlabeled(ctx, o.deps.Policy.CategoryNames(), o.deps.Config.MaxPerCycle)
	if err != nil {
		log.Error().Err(err).Str("cycle_id", cycleID).Msg("cycle_fetch_failed")
		summary.Errors++
		o.finish(ctx, summary)
		return summary, nil
	}
	summary.Candidates = len(items)

	if len(items) > 0 {
		o.classifyAndDispatch(ctx, cycleID, items, dryRun, summary)
	}

	// Scan hooks run exactly once, after all per-item dispatch.
	scanResults := o.deps.Registry.RunScan(ctx, &agents.ScanContext{
		Store:  o.deps.Store,
		Config: o.deps.Config,
		DryRun: dryRun,
		Log:    log.With().Str("cycle_id", cycleID).Logger(),
	})
	summary.AgentResults = append(summary.AgentResults, scanResults...)
	for _, r := range scanResults {
		if r.Status == agents.StatusError {
			summary.Errors++
		}
	}

	o.finish(ctx, summary)
	return summary, nil
}

// classifyAndDispatch covers classify → collapse → label → per-item agents.
func (o *Orchestrator) classifyAndDispatch(ctx context.Context, cycleID string, items []mailbox.Item, dryRun bool, summary *Summary) {
	now := o.now()
	summaries := make([]mailbox.Summary, len(items))
	byID := make(map[string]mailbox.Item, len(items))
	for i, it := range items {
		summaries[i] = mailbox.Summarize(it, o.deps.Config.ExcerptChars, now)
		byID[it.ID] = it
	}

	globalKnow, categoryKnow := o.fetchKnowledge(ctx)

	results := o.deps.Classifier.Classify(ctx, summaries, globalKnow, categoryKnow)

	// Collapse duplicate decisions per item: last write wins, dispatch
	// order follows first appearance.
	decisions := make(map[string]classify.Result, len(results))
	var order []string
	for _, r := range results {
		if _, seen := decisions[r.ID]; !seen {
			order = append(order, r.ID)
		}
		decisions[r.ID] = r
	}

	runBudget := agents.NewRunBudget(o.deps.Config.AgentRunsPerRun)

	for _, id := range order {
		decision := decisions[id]
		item := byID[id]
		if isFallbackReason(decision.Reason) {
			summary.Fallbacks++
		}

		outcome := o.deps.Applier.Apply(ctx, item, decision.Category, dryRun)
		switch outcome {
		case label.OutcomeLabeled:
			summary.Labeled++
		case label.OutcomeSkipped:
			summary.Skipped++
			// Already labeled in a prior cycle: agents fired then, not now.
			continue
		case label.OutcomeWouldLabel:
			summary.WouldLabel++
		case label.OutcomeError:
			summary.Errors++
			continue
		}

		agentResults := o.deps.Registry.RunOnClassify(ctx, decision.Category, &agents.ExecContext{
			Category: decision.Category,
			Decision: decision,
			Item:     item,
			Config:   o.deps.Config,
			DryRun:   dryRun,
			Log:      log.With().Str("cycle_id", cycleID).Str("item_id", id).Logger(),
		}, runBudget)
		summary.AgentResults = append(summary.AgentResults, agentResults...)
		for _, r := range agentResults {
			if r.Status == agents.StatusError {
				summary.Errors++
			}
		}
	}
}

// fetchKnowledge resolves the policy's knowledge refs. Global first, then
// every category ref in category declaration order. Unconfigured refs
// contribute nothing.
func (o *Orchestrator) fetchKnowledge(ctx context.Context) (global, category string) {
	know, err := o.deps.Knowledge.Fetch(ctx, o.deps.Policy.GlobalRef())
	if err != nil {
		log.Warn().Err(err).Msg("knowledge_global_fetch_failed")
	} else if know.Configured {
		global = know.Text
		log.Debug().Int("docs", know.DocCount).Int("est_tokens", know.EstimatedTokens).
			Msg("knowledge_global_loaded")
	}

	for _, cat := range o.deps.Policy.Categories {
		ref := o.deps.Policy.CategoryRef(cat.Name)
		if ref == "" {
			continue
		}
		know, err := o.deps.Knowledge.Fetch(ctx, ref)
		if err != nil {
			log.Warn().Err(err).Str("category", cat.Name).Msg("knowledge_category_fetch_failed")
			continue
		}
		if !know.Configured {
			continue
		}
		if category != "" {
			category += "\n\n"
		}
		category += fmt.Sprintf("### %s\n\n%s", cat.Name, know.Text)
	}
	return global, category
}

// finish logs the summary and writes the audit record.
func (o *Orchestrator) finish(ctx context.Context, summary *Summary) {
	summary.DurationMS = o.now().Sub(summary.Started).Milliseconds()

	log.Info().
		Str("cycle_id", summary.CycleID).
		Int("candidates", summary.Candidates).
		Int("labeled", summary.Labeled).
		Int("skipped", summary.Skipped).
		Int("would_label", summary.WouldLabel).
		Int("errors", summary.Errors).
		Int("fallbacks", summary.Fallbacks).
		Int64("duration_ms", summary.DurationMS).
		Msg("cycle_completed")

	if o.deps.Audit == nil {
		return
	}
	rec := &audit.Record{
		ID:           "aud_" + uuid.New().String()[:12],
		CycleID:      summary.CycleID,
		Timestamp:    summary.Started,
		DryRun:       summary.DryRun,
		Candidates:   summary.Candidates,
		Labeled:      summary.Labeled,
		Skipped:      summary.Skipped,
		WouldLabel:   summary.WouldLabel,
		Errors:       summary.Errors,
		Fallbacks:    summary.Fallbacks,
		AgentResults: summary.AgentResults,
		DurationMS:   summary.DurationMS,
	}
	if err := o.deps.Audit.Save(ctx, rec); err != nil {
		log.Error().Err(err).Str("cycle_id", summary.CycleID).Msg("audit_save_failed")
	}
}

func isFallbackReason(reason string) bool {
	switch reason {
	case classify.ReasonBudgetExceeded, classify.ReasonFallbackOnError, classify.ReasonInvalidOrMissing:
		return true
	}
	return false
}
