package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/mailbox"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/policy"
)

// PromptInput is everything BuildPrompt needs. Knowledge strings may be
// empty, in which case their sections are omitted entirely.
type PromptInput struct {
	Instructions      string
	GlobalKnowledge   string
	CategoryKnowledge string
	Categories        []policy.Category
	Batch             []mailbox.Summary
}

// BuildPrompt renders the classifier input text. Pure function: no I/O, no
// state. The output is structured as task framing, optional knowledge
// sections, the machine-readable output schema, the batch payload as JSON,
// and an explicit instruction to return one result per item.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString("You are an email triage classifier. Assign each email thread below to exactly one category.\n\n")
	b.WriteString(in.Instructions)
	b.WriteString("\n\nCategories:\n")
	for _, c := range in.Categories {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Description)
	}

	if in.GlobalKnowledge != "" {
		b.WriteString("\n[KNOWLEDGE]\n")
		b.WriteString(in.GlobalKnowledge)
		b.WriteString("\n[END KNOWLEDGE]\n")
	}
	if in.CategoryKnowledge != "" {
		b.WriteString("\n[CATEGORY KNOWLEDGE]\n")
		b.WriteString(in.CategoryKnowledge)
		b.WriteString("\n[END CATEGORY KNOWLEDGE]\n")
	}

	b.WriteString("\nRespond with a single JSON object matching this schema exactly:\n")
	b.WriteString(`{"results": [{"id": "<item id>", "category": "<one category name>", "reason": "<short justification>"}]}`)
	b.WriteString("\n\nEmail threads:\n")

	payload, _ := json.MarshalIndent(in.Batch, "", "  ")
	b.Write(payload)

	fmt.Fprintf(&b, "\n\nReturn exactly %d results, one for every item id above. Do not omit any item.\n", len(in.Batch))

	return b.String()
}
