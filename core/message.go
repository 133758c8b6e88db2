package core

import "encoding/json"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model request to invoke one registered tool.
type ToolCall struct {
	// ID correlates the call with its result message.
	ID string `json:"id"`

	// Name is the registered tool name.
	Name string `json:"name"`

	// Input is the raw JSON arguments as produced by the model.
	Input json.RawMessage `json:"input"`
}

// ToolObservation is the outcome of a tool call, fed back to the model
// on the next turn.
type ToolObservation struct {
	// CallID matches ToolCall.ID.
	CallID string `json:"call_id"`

	// Name is the tool that produced this observation.
	Name string `json:"name"`

	// Content is the observation text (result data or error description).
	Content string `json:"content"`

	// IsError marks failed executions. Failures are observations, not
	// fatal errors: the model sees them and decides what to do next.
	IsError bool `json:"is_error,omitempty"`
}

// Message is one entry in a workflow's conversation history. The history
// is append-only; messages are never edited after the fact.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text,omitempty"`

	// ToolCalls is set on assistant messages that request tool use.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Observation is set on tool messages.
	Observation *ToolObservation `json:"observation,omitempty"`
}

// UserMessage builds a plain user message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// AssistantMessage builds a plain assistant message.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Text: text}
}

// ObservationMessage builds a tool message carrying one observation.
func ObservationMessage(obs ToolObservation) Message {
	return Message{Role: RoleTool, Observation: &obs}
}
