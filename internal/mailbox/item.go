// Package mailbox defines the item model and the item-store contract the
// pipeline runs against. The store is an external collaborator in production
// (a mail system); this package also ships a SQLite-backed local store for
// development and integration testing.
package mailbox

import "time"

// Message is one message within an item (an email thread).
type Message struct {
	From   string
	SentAt time.Time
	Body   string
}

// Item is the unit of work being classified. Labels holds the item's full
// label set: at most one category label plus arbitrary other labels.
type Item struct {
	ID       string
	Subject  string
	Labels   []string
	Messages []Message
}

// LastMessage returns the most recent message, or a zero Message when empty.
func (it *Item) LastMessage() Message {
	if len(it.Messages) == 0 {
		return Message{}
	}
	return it.Messages[len(it.Messages)-1]
}

// AgeDays returns whole days since the last message, never negative.
func (it *Item) AgeDays(now time.Time) int {
	last := it.LastMessage().SentAt
	if last.IsZero() || last.After(now) {
		return 0
	}
	return int(now.Sub(last).Hours() / 24)
}

// HasLabel reports whether the item carries the given label.
func (it *Item) HasLabel(label string) bool {
	for _, l := range it.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// HasAnyLabel reports whether the item carries any of the given labels.
func (it *Item) HasAnyLabel(labels []string) bool {
	for _, l := range labels {
		if it.HasLabel(l) {
			return true
		}
	}
	return false
}
