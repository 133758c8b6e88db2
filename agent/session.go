package agent

import (
	"github.com/google/uuid"

	"github.com/mailmind/mailmind/core"
)

// Session holds the conversation state of one agent run. The message
// history is append-only; resuming a run means restoring the history and
// continuing the loop.
type Session struct {
	ID        string
	TurnCount int

	messages []core.Message
}

// NewSession creates a session. An empty id gets a fresh UUID.
func NewSession(id string) *Session {
	if id == "" {
		id = uuid.New().String()
	}
	return &Session{ID: id}
}

// Restore replaces the history with a previously persisted one.
func (s *Session) Restore(messages []core.Message) {
	s.messages = append([]core.Message(nil), messages...)
}

// Messages returns a copy of the history.
func (s *Session) Messages() []core.Message {
	return append([]core.Message(nil), s.messages...)
}

// AddUser appends a user message.
func (s *Session) AddUser(text string) {
	s.messages = append(s.messages, core.UserMessage(text))
}

// AddAssistant appends the model's turn, including any tool calls.
func (s *Session) AddAssistant(text string, calls []core.ToolCall) {
	s.messages = append(s.messages, core.Message{
		Role:      core.RoleAssistant,
		Text:      text,
		ToolCalls: calls,
	})
}

// AddObservations appends one tool message per observation.
func (s *Session) AddObservations(observations ...core.ToolObservation) {
	for _, obs := range observations {
		s.messages = append(s.messages, core.ObservationMessage(obs))
	}
}
