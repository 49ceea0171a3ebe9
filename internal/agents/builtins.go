package agents

import (
	"fmt"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/config"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/mailbox"
)

// Categories the built-in agents bind to. These match the reference policy;
// an agent bound to a category absent from the loaded policy simply never
// fires.
const (
	CategoryNeedsReply = "needs-reply"
	CategoryReview     = "review"
	CategoryTodo       = "todo"
	CategoryDigest     = "digest"
)

// Builtins returns the built-in agent registrations in their fixed
// bootstrap order. drafts may be nil when the injected item store has no
// draft capability; the reply-draft agent is then left out.
func Builtins(cfg *config.Config, drafts mailbox.DraftWriter) []Registration {
	var regs []Registration
	if drafts != nil {
		regs = append(regs, NewReplyDraft(drafts, CategoryNeedsReply, !cfg.AgentDisabled("reply-draft")))
	}
	regs = append(regs,
		NewWebhookNotify(cfg.WebhookURL, cfg.WebhookRPM, CategoryTodo, !cfg.AgentDisabled("webhook-notify")),
		NewDigestReport(CategoryDigest, !cfg.AgentDisabled("digest-report")),
		NewStaleArchiver(CategoryReview, cfg.StaleAfterDays, !cfg.AgentDisabled("stale-archiver")),
	)
	return regs
}

// Bootstrap registers a fixed slice of agents, failing fast on the first
// invalid registration. Registration order is dispatch order.
func Bootstrap(registry *Registry, regs []Registration) error {
	for _, reg := range regs {
		if err := registry.Register(reg); err != nil {
			return fmt.Errorf("bootstrapping agents: %w", err)
		}
	}
	return nil
}
