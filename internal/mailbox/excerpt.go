package mailbox

import (
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Summary is the per-item view handed to the classifier. Excerpt is already
// truncated to the configured character budget. Raw bodies never leave this
// package.
type Summary struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	From    string `json:"from"`
	Date    string `json:"date"`
	AgeDays int    `json:"age_days"`
	Excerpt string `json:"excerpt"`
}

// stripper removes all HTML, leaving text content only.
var stripper = bluemonday.StrictPolicy()

// Summarize projects an item into a classifier Summary. The last message's
// body is HTML-stripped, whitespace-collapsed, and truncated to excerptChars.
func Summarize(it Item, excerptChars int, now time.Time) Summary {
	last := it.LastMessage()
	date := ""
	if !last.SentAt.IsZero() {
		date = last.SentAt.Format("2006-01-02")
	}
	return Summary{
		ID:      it.ID,
		Subject: it.Subject,
		From:    last.From,
		Date:    date,
		AgeDays: it.AgeDays(now),
		Excerpt: Excerpt(last.Body, excerptChars),
	}
}

// Excerpt converts a possibly-HTML message body into a plain-text excerpt of
// at most maxChars runes.
func Excerpt(body string, maxChars int) string {
	text := stripper.Sanitize(body)
	text = html.UnescapeString(text)
	text = strings.Join(strings.Fields(text), " ")
	return truncateRunes(text, maxChars)
}

// truncateRunes cuts s to at most n runes, never splitting a rune.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
