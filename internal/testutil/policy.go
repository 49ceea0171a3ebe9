package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TriagePolicyYAML is a minimal valid labeler.policy.yaml with the four
// reference categories and review as fallback.
const TriagePolicyYAML = `name: triage
version: "test"
instructions: |
  Classify each email thread by what the reader should do with it.
fallback: review
categories:
  - name: needs-reply
    description: The sender is waiting for a response from me.
  - name: review
    description: Worth reading, no action needed.
  - name: todo
    description: Contains a task I need to track.
  - name: digest
    description: Newsletters and automated notifications.
`

// WriteTriagePolicyFile creates the reference policy in dir and returns its path.
func WriteTriagePolicyFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "labeler.policy.yaml")
	if err := os.WriteFile(path, []byte(TriagePolicyYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
