package mailbox

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExcerpt_StripsHTML(t *testing.T) {
	got := Excerpt("<div><p>Hello <b>there</b>,</p>\n<script>alert(1)</script>\n<p>see attached.</p></div>", 200)
	assert.Equal(t, "Hello there, see attached.", got)
}

func TestExcerpt_UnescapesEntities(t *testing.T) {
	got := Excerpt("Q1 &amp; Q2 budgets &gt; last year", 200)
	assert.Equal(t, "Q1 & Q2 budgets > last year", got)
}

func TestExcerpt_CollapsesWhitespace(t *testing.T) {
	got := Excerpt("line one\n\n\n   line\ttwo  ", 200)
	assert.Equal(t, "line one line two", got)
}

func TestExcerpt_TruncatesRunes(t *testing.T) {
	got := Excerpt(strings.Repeat("a", 50), 10)
	assert.Equal(t, strings.Repeat("a", 10), got)

	// Multibyte content is never split mid-rune
	got = Excerpt("héllo wörld ünïcode", 7)
	assert.Equal(t, "héllo w", got)
}

func TestExcerpt_ShortBodyUntouched(t *testing.T) {
	assert.Equal(t, "short", Excerpt("short", 100))
	assert.Equal(t, "", Excerpt("", 100))
}

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	it := Item{
		ID:      "m1",
		Subject: "Contract renewal",
		Messages: []Message{
			{From: "old@example.com", SentAt: now.AddDate(0, 0, -9), Body: "first message"},
			{From: "new@example.com", SentAt: now.AddDate(0, 0, -3), Body: "<p>latest reply</p>"},
		},
	}

	sum := Summarize(it, 100, now)

	assert.Equal(t, "m1", sum.ID)
	assert.Equal(t, "Contract renewal", sum.Subject)
	// The last message, not the first, feeds the summary
	assert.Equal(t, "new@example.com", sum.From)
	assert.Equal(t, "2026-03-07", sum.Date)
	assert.Equal(t, 3, sum.AgeDays)
	assert.Equal(t, "latest reply", sum.Excerpt)
}

func TestSummarize_EmptyThread(t *testing.T) {
	sum := Summarize(Item{ID: "m1", Subject: "empty"}, 100, time.Now())
	assert.Equal(t, "", sum.From)
	assert.Equal(t, "", sum.Date)
	assert.Equal(t, 0, sum.AgeDays)
	assert.Equal(t, "", sum.Excerpt)
}

func TestItemAgeDays(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	it := Item{Messages: []Message{{SentAt: now.Add(-36 * time.Hour)}}}
	assert.Equal(t, 1, it.AgeDays(now))

	// A clock-skewed future message never yields a negative age
	it = Item{Messages: []Message{{SentAt: now.Add(2 * time.Hour)}}}
	assert.Equal(t, 0, it.AgeDays(now))
}
