package agents

import (
	"context"
	"fmt"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/mailbox"
)

// NewReplyDraft returns the reply-draft agent: for every item classified
// needs-reply it creates a reply draft in the mailbox. Idempotency comes
// from observable state: an existing draft on the thread means the work is
// already done, so re-running a cycle never produces duplicates.
func NewReplyDraft(drafts mailbox.DraftWriter, category string, enabled bool) Registration {
	return Registration{
		Category: category,
		Name:     "reply-draft",
		Options:  Options{Enabled: enabled},
		Hooks: Hooks{
			OnClassify: func(ctx context.Context, ec *ExecContext) (*Result, error) {
				has, err := drafts.HasDraft(ctx, ec.Item.ID)
				if err != nil {
					return nil, fmt.Errorf("checking draft for %s: %w", ec.Item.ID, err)
				}
				if has {
					ec.Log.Debug().Str("item_id", ec.Item.ID).Msg("reply_draft_exists")
					return &Result{Status: StatusOK, Info: "draft already exists"}, nil
				}

				body := draftBody(ec.Item)
				if err := drafts.CreateDraft(ctx, ec.Item.ID, body); err != nil {
					return nil, fmt.Errorf("creating draft for %s: %w", ec.Item.ID, err)
				}
				ec.Log.Info().Str("item_id", ec.Item.ID).Msg("reply_draft_created")
				return &Result{Status: StatusOK, Info: "draft created"}, nil
			},
		},
	}
}

func draftBody(it mailbox.Item) string {
	last := it.LastMessage()
	return fmt.Sprintf(
		"Hi,\n\nThanks for your message%s. I'll get back to you with a full answer shortly.\n\nBest regards\n",
		replySubjectClause(last.From, it.Subject))
}

func replySubjectClause(from, subject string) string {
	if subject == "" {
		return ""
	}
	return fmt.Sprintf(" about %q", subject)
}
