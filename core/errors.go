package core

import "fmt"

// Error taxonomy for the workflow. Every failure path maps onto one of
// these types so callers can branch with errors.As and the workflow can
// record a reason before returning.

// ExternalServiceError wraps a language model or memory store failure
// that survived retry.
type ExternalServiceError struct {
	// Service names the collaborator ("llm", "memory", "rules").
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// InvalidClassificationError reports a model output outside the triage
// enum. The router re-prompts once before surfacing this.
type InvalidClassificationError struct {
	Got string
}

func (e *InvalidClassificationError) Error() string {
	return fmt.Sprintf("invalid classification %q (want ignore, notify or respond)", e.Got)
}

// ToolExecutionError wraps a tool handler failure. It is reported to the
// agent's next turn as an observation, never propagated as fatal.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// IterationBoundError reports a response agent loop that hit its turn
// limit without reaching a terminal action. State is preserved for
// inspection.
type IterationBoundError struct {
	Limit int
}

func (e *IterationBoundError) Error() string {
	return fmt.Sprintf("exceeded maximum turns (%d) without a terminal action", e.Limit)
}
