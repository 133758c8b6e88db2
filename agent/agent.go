// Package agent runs the response loop for emails classified as respond.
// Each turn the model either calls tools and observes their results, or
// produces plain text and stops. Sending a reply ends the run.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mailmind/mailmind/core"
	"github.com/mailmind/mailmind/llm"
	"github.com/mailmind/mailmind/memory"
	"github.com/mailmind/mailmind/tools"
)

const missingThoughtMessage = `Error: missing or empty "thought" field. This tool changes state and requires explicit reasoning.
Explain what you verified, why this action is right, and what you expect to happen, then call the tool again.`

// Outcome is the result of a completed agent run.
type Outcome struct {
	// ReplySent is true when the run ended by sending a reply.
	ReplySent bool

	// FinalText is the terminal tool's confirmation, or the model's
	// closing text when it stopped without sending.
	FinalText string

	// ToolsUsed lists tool names in invocation order.
	ToolsUsed []string
}

// Agent drives the tool loop. Safe for concurrent use; per-run state
// lives in the Session.
type Agent struct {
	client    llm.Client
	profile   core.Profile
	maxTurns  int
	factLimit int
}

// Option configures the agent.
type Option func(*Agent)

// WithProfile sets the user profile embedded in the system prompt.
func WithProfile(p core.Profile) Option {
	return func(a *Agent) { a.profile = p }
}

// WithMaxTurns bounds the number of model turns per run.
func WithMaxTurns(n int) Option {
	return func(a *Agent) { a.maxTurns = n }
}

// WithFactLimit caps how many semantic facts enrich the system prompt.
func WithFactLimit(n int) Option {
	return func(a *Agent) { a.factLimit = n }
}

// New creates a response agent.
func New(client llm.Client, opts ...Option) *Agent {
	a := &Agent{
		client:    client,
		profile:   core.DefaultProfile,
		maxTurns:  20,
		factLimit: 5,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Respond starts a fresh run for the given email and drives it to
// completion.
func (a *Agent) Respond(ctx context.Context, scope *memory.Scope, registry *tools.Registry, session *Session, email core.Email) (*Outcome, error) {
	session.AddUser(taskPrompt(email))
	return a.Run(ctx, scope, registry, session, email.Summary())
}

// Run drives the loop over an existing session until the model sends a
// reply, stops with plain text, or the turn bound is hit. The session
// survives an IterationBoundError so the caller can inspect or resume it.
func (a *Agent) Run(ctx context.Context, scope *memory.Scope, registry *tools.Registry, session *Session, query string) (*Outcome, error) {
	facts, err := scope.SimilarFacts(ctx, query, a.factLimit)
	if err != nil {
		// Non-fatal. The agent can answer without enrichment.
		log.Printf("[AGENT] fact retrieval failed: %v", err)
		facts = nil
	}

	instructions, err := scope.Rule(ctx, RuleInstructions, DefaultInstructions)
	if err != nil {
		return nil, err
	}

	system := buildSystemPrompt(a.profile, instructions.Text, facts)
	defs := registry.Definitions()

	var toolsUsed []string
	for {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("agent run interrupted: %w", ctx.Err())
		}
		if session.TurnCount >= a.maxTurns {
			return nil, &core.IterationBoundError{Limit: a.maxTurns}
		}
		session.TurnCount++

		resp, err := a.client.Complete(ctx, &llm.Request{
			System:   system,
			Messages: session.Messages(),
			Tools:    defs,
		})
		if err != nil {
			return nil, err
		}

		if len(resp.ToolCalls) == 0 {
			// Plain text is an explicit stop without sending a reply.
			session.AddAssistant(resp.Text, nil)
			log.Printf("[AGENT] session %s stopped without a reply after %d turns", session.ID, session.TurnCount)
			return &Outcome{FinalText: resp.Text, ToolsUsed: toolsUsed}, nil
		}

		session.AddAssistant(resp.Text, resp.ToolCalls)

		var observations []core.ToolObservation
		var terminal *core.ToolObservation
		for _, call := range resp.ToolCalls {
			obs := a.execute(ctx, scope, registry, session, call)
			observations = append(observations, obs)
			if !obs.IsError {
				toolsUsed = append(toolsUsed, call.Name)
				if tool, ok := registry.Get(call.Name); ok && tool.Definition().Terminal {
					terminal = &obs
				}
			}
		}
		session.AddObservations(observations...)

		if terminal != nil {
			log.Printf("[AGENT] session %s reply sent after %d turns", session.ID, session.TurnCount)
			return &Outcome{
				ReplySent: true,
				FinalText: terminal.Content,
				ToolsUsed: toolsUsed,
			}, nil
		}
	}
}

// execute runs one tool call and formats the observation. Failures become
// error observations the model sees on the next turn; they never abort
// the run.
func (a *Agent) execute(ctx context.Context, scope *memory.Scope, registry *tools.Registry, session *Session, call core.ToolCall) core.ToolObservation {
	errObs := func(content string) core.ToolObservation {
		log.Printf("[AGENT] tool %s failed: %s", call.Name, content)
		return core.ToolObservation{CallID: call.ID, Name: call.Name, Content: content, IsError: true}
	}

	var base core.BaseInput
	if err := json.Unmarshal(call.Input, &base); err != nil {
		return errObs(fmt.Sprintf("invalid tool input JSON: %v", err))
	}

	tool, ok := registry.Get(call.Name)
	if !ok {
		return errObs(fmt.Sprintf("unknown tool: %s", call.Name))
	}

	if tool.Definition().RequiresThought && strings.TrimSpace(base.Thought) == "" {
		return errObs(missingThoughtMessage)
	}

	result, err := tool.Execute(ctx, &core.ToolParams{
		Namespace: scope.Namespace(),
		Input:     call.Input,
		RequestID: session.ID,
	})
	if err != nil {
		toolErr := &core.ToolExecutionError{Tool: call.Name, Err: err}
		return errObs(toolErr.Error())
	}
	if !result.Success {
		return errObs(result.Error)
	}

	log.Printf("[AGENT] tool %s ok (session %s turn %d)", call.Name, session.ID, session.TurnCount)
	return core.ToolObservation{
		CallID:  call.ID,
		Name:    call.Name,
		Content: formatObservation(result.Data),
	}
}

// formatObservation renders tool output as text for the model.
func formatObservation(data interface{}) string {
	switch v := data.(type) {
	case nil:
		return "ok"
	case string:
		return v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
