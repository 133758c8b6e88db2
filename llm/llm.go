// Package llm defines the provider-neutral language model client consumed
// by the triage router, the response agent and the prompt optimizer.
//
// The interface is deliberately small: one Complete call that takes a
// conversation plus optional tool definitions and returns either text or
// tool call requests. Provider adapters (Anthropic, OpenAI-compatible)
// translate to their SDK's wire types; the Retrying decorator adds
// bounded-backoff retry on top of any Client.
package llm

import (
	"context"

	"github.com/mailmind/mailmind/core"
)

// Request is one completion request.
type Request struct {
	// Model overrides the adapter's default model when set.
	Model string

	// System is the system prompt.
	System string

	// Messages is the conversation so far, oldest first.
	Messages []core.Message

	// Tools are the definitions the model may call. Empty means text-only.
	Tools []core.ToolDefinition

	// MaxTokens caps the response length. Zero means adapter default.
	MaxTokens int64

	// JSONOnly constrains the response to a single JSON object. Used by
	// the triage router's structured classification output.
	JSONOnly bool
}

// StopReason indicates why the model stopped.
type StopReason string

const (
	// StopEnd means the model produced a final text response.
	StopEnd StopReason = "end"

	// StopToolUse means the model requested one or more tool calls.
	StopToolUse StopReason = "tool_use"
)

// Response is the model's reply.
type Response struct {
	// Text is the concatenated text content.
	Text string

	// ToolCalls holds requested tool invocations, in order.
	ToolCalls []core.ToolCall

	// Stop is the stop reason.
	Stop StopReason
}

// Client is the language model interface. Implementations must be safe
// for concurrent use; workflow instances for different users share one
// client.
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}
