package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// webhookEvent is the payload posted for every item classified into the
// watched category. EventID lets receivers deduplicate retried deliveries.
type webhookEvent struct {
	EventID  string `json:"event_id"`
	ItemID   string `json:"item_id"`
	Category string `json:"category"`
	Subject  string `json:"subject"`
	Reason   string `json:"reason"`
}

// NewWebhookNotify returns the webhook-notify agent: POSTs item metadata to
// the configured endpoint for every item classified into category. Outbound
// calls are rate-limited; when the bucket is empty the dispatch fails with a
// retry hint instead of blocking the cycle.
func NewWebhookNotify(url string, rpm int, category string, enabled bool) Registration {
	limit := rate.Limit(float64(rpm) / 60.0)
	burst := rpm
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)
	client := &http.Client{Timeout: 10 * time.Second}

	return Registration{
		Category: category,
		Name:     "webhook-notify",
		Options:  Options{Enabled: enabled && url != "", SoftTimeout: 15 * time.Second},
		Hooks: Hooks{
			OnClassify: func(ctx context.Context, ec *ExecContext) (*Result, error) {
				if !limiter.Allow() {
					return &Result{
						Status:     StatusError,
						Info:       "webhook rate limit exceeded",
						RetryAfter: time.Minute,
					}, nil
				}

				event := webhookEvent{
					EventID:  uuid.New().String(),
					ItemID:   ec.Item.ID,
					Category: ec.Category,
					Subject:  ec.Item.Subject,
					Reason:   ec.Decision.Reason,
				}
				body, err := json.Marshal(event)
				if err != nil {
					return nil, fmt.Errorf("marshalling webhook event: %w", err)
				}

				req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
				if err != nil {
					return nil, fmt.Errorf("creating webhook request: %w", err)
				}
				req.Header.Set("Content-Type", "application/json")

				resp, err := client.Do(req)
				if err != nil {
					return nil, fmt.Errorf("posting webhook: %w", err)
				}
				defer resp.Body.Close()

				if resp.StatusCode >= 300 {
					return nil, fmt.Errorf("webhook returned %d", resp.StatusCode)
				}
				ec.Log.Info().Str("item_id", ec.Item.ID).Str("event_id", event.EventID).
					Msg("webhook_delivered")
				return &Result{Status: StatusOK, Info: "delivered " + event.EventID}, nil
			},
		},
	}
}
