// Package classify implements the batch classification pipeline: prompt
// construction, tolerant response parsing, and the retry-then-fallback
// policy under a daily model-call budget. Classify is total: every input
// item receives exactly one valid category, no matter what the transport
// returns.
package classify

// Result is one classification decision. Reason is a short rationale used
// only for logging and audit, never for control flow.
type Result struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

// Reasons for synthesized fallback results.
const (
	ReasonBudgetExceeded   = "budget-exceeded"
	ReasonFallbackOnError  = "fallback-on-error"
	ReasonInvalidOrMissing = "invalid-or-missing"
)
