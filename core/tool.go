package core

import (
	"context"
	"encoding/json"
)

// BaseInput provides common fields for all tool inputs.
// Tools embed this struct to automatically include thought support.
type BaseInput struct {
	// Thought contains the agent's reasoning about why it's using this tool.
	// Optional for read operations, required for write operations.
	Thought string `json:"thought,omitempty"`
}

// ToolDefinition describes one tool exposed to the response agent.
type ToolDefinition struct {
	// ToolName is the unique name the model uses to select this tool.
	ToolName string

	// ToolDescription tells the model what the tool does and when to use it.
	ToolDescription string

	// InputSchema is a JSON Schema object describing the parameters.
	InputSchema map[string]interface{}

	// RequiresThought enforces a non-empty "thought" field on invocation.
	// Set for write operations so the trace explains the decision.
	RequiresThought bool

	// Terminal marks tools whose successful execution ends the agent loop
	// (e.g. send_reply).
	Terminal bool
}

// ToolParams carries the execution context for one tool invocation.
// The namespace is explicit on every call; handlers never reach for an
// ambient store.
type ToolParams struct {
	// Namespace is the memory isolation boundary, typically the user ID.
	Namespace string

	// Input is the raw JSON input from the model.
	Input json.RawMessage

	// RequestID identifies the workflow run for logging.
	RequestID string
}

// ToolResult is the outcome of a tool execution.
type ToolResult struct {
	// Success indicates whether the operation completed.
	Success bool

	// Data is the result payload, serialized into the observation.
	Data interface{}

	// Error holds the failure description when Success is false.
	Error string
}

// Tool is the closed interface every registered tool implements.
type Tool interface {
	// Definition returns the tool's name, description and schema.
	Definition() ToolDefinition

	// Execute runs the tool. A returned error means the handler itself
	// failed; a *ToolResult with Success=false means the operation was
	// attempted and refused (e.g. calendar conflict). Both surface to the
	// agent as observations.
	Execute(ctx context.Context, params *ToolParams) (*ToolResult, error)
}

// FuncTool adapts a plain function into a Tool.
type FuncTool struct {
	Def     ToolDefinition
	Handler func(ctx context.Context, params *ToolParams) (*ToolResult, error)
}

func (t *FuncTool) Definition() ToolDefinition { return t.Def }

func (t *FuncTool) Execute(ctx context.Context, params *ToolParams) (*ToolResult, error) {
	return t.Handler(ctx, params)
}
