package core

import "fmt"

// Email is one incoming message handed to the workflow. It is immutable
// input: nothing downstream mutates it, nodes only read from it.
type Email struct {
	// Sender is the author's address, optionally with a display name
	// (e.g. "Alice Smith <alice@example.com>").
	Sender string `json:"sender"`

	// Recipients are the To addresses.
	Recipients []string `json:"recipients"`

	// Subject is the subject line.
	Subject string `json:"subject"`

	// Body is the full message content, including any quoted thread.
	Body string `json:"body"`

	// ThreadID groups messages belonging to the same conversation.
	ThreadID string `json:"thread_id,omitempty"`
}

// Summary returns a one-line description used in logs and episodic memory.
func (e Email) Summary() string {
	return fmt.Sprintf("from=%s subject=%q", e.Sender, e.Subject)
}
