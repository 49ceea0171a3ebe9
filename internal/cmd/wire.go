package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/agents"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/audit"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/budget"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/classify"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/config"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/knowledge"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/label"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/llm"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/mailbox"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/orchestrator"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/policy"
)

// app bundles everything a command needs to run cycles. Close releases the
// SQLite handles in reverse construction order.
type app struct {
	cfg          *config.Config
	pol          *policy.Policy
	tracker      *budget.Tracker
	orchestrator *orchestrator.Orchestrator
	audits       *audit.Store

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close_failed")
		}
	}
}

// buildApp loads config and policy, then wires stores, providers, classifier,
// agents, and the orchestrator. Missing configuration aborts here, before any
// cycle runs.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	if cfg.UsingDefaultSigningKey() {
		log.Warn().Msg("signing_key not set, using derived per-machine key. Set LABELER_SIGNING_KEY for production.")
	}

	pol, err := policy.Load(ctx, cfg.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}

	if err := llm.CheckCredentials(cfg.Model, cfg.OpenAIAPIKey); err != nil {
		return nil, fmt.Errorf("%w; set LABELER_OPENAI_API_KEY or use an ollama: model", err)
	}

	a := &app{cfg: cfg, pol: pol}

	counters, err := budget.NewSQLiteStore(cfg.CountersDBPath())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initializing budget counters: %w", err)
	}
	a.closers = append(a.closers, counters.Close)
	a.tracker = budget.NewTracker(counters, map[string]int64{
		budget.CounterModelCall: cfg.DailyModelCalls,
	})

	store, err := mailbox.NewLocalStore(cfg.MailboxDBPath())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initializing mailbox store: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	audits, err := audit.NewStore(cfg.AuditDBPath(), cfg.SigningKey)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initializing audit store: %w", err)
	}
	a.closers = append(a.closers, audits.Close)
	a.audits = audits

	router := llm.NewRouter(
		llm.NewOpenAIProvider(cfg.OpenAIAPIKey),
		llm.NewOllamaProvider(cfg.OllamaBaseURL),
	)

	classifier := classify.NewClassifier(router, a.tracker, pol, classify.Config{
		BatchSize:  cfg.BatchSize,
		Model:      cfg.Model,
		RetryModel: cfg.RetryModel,
	})

	registry := agents.NewRegistry()
	if err := agents.Bootstrap(registry, agents.Builtins(cfg, store)); err != nil {
		a.Close()
		return nil, fmt.Errorf("registering agents: %w", err)
	}

	var know knowledge.Provider
	if cfg.KnowledgeDir != "" {
		know = knowledge.NewFileProvider(cfg.KnowledgeDir, knowledgeTTL(cfg))
	}

	orch, err := orchestrator.New(orchestrator.Deps{
		Store:      store,
		Drafts:     store,
		Classifier: classifier,
		Applier:    label.NewApplier(store, pol),
		Registry:   registry,
		Knowledge:  know,
		Audit:      audits,
		Policy:     pol,
		Config:     cfg,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("building orchestrator: %w", err)
	}
	a.orchestrator = orch

	log.Debug().
		Str("policy", pol.Name).
		Str("model", cfg.Model).
		Int("categories", len(pol.Categories)).
		Int("registered_agents", len(registry.List())).
		Msg("app_wired")

	return a, nil
}

func knowledgeTTL(cfg *config.Config) time.Duration {
	return time.Duration(cfg.KnowledgeTTLMin) * time.Minute
}
