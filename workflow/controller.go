// Package workflow wires triage and the response agent into a
// checkpointed run per email. Node routing goes through an explicit
// transition table and the state is persisted after every transition.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mailmind/mailmind/agent"
	"github.com/mailmind/mailmind/core"
	"github.com/mailmind/mailmind/memory"
	"github.com/mailmind/mailmind/tools"
	"github.com/mailmind/mailmind/triage"
)

// Config carries the controller's collaborators. All fields are required.
type Config struct {
	Router      *triage.Router
	Agent       *agent.Agent
	Store       memory.Store
	Rules       memory.RuleStore
	Checkpoints *CheckpointStore
	Mailer      tools.Mailer
	Calendar    tools.Calendar
}

// Controller runs emails through the workflow graph.
type Controller struct {
	cfg      Config
	observer func(State)
}

// Option configures the controller.
type Option func(*Controller)

// WithObserver registers a callback invoked with a snapshot after every
// persisted transition. Used by the demo server to stream run progress.
func WithObserver(fn func(State)) Option {
	return func(c *Controller) { c.observer = fn }
}

// New creates a workflow controller.
func New(cfg Config, opts ...Option) *Controller {
	c := &Controller{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleEmail runs one email through triage and, when classified respond,
// the response agent. The returned state is terminal unless the run hit
// its turn bound, in which case it can be resumed.
func (c *Controller) HandleEmail(ctx context.Context, namespace string, email core.Email) (*State, error) {
	state := &State{
		RunID:     uuid.New().String(),
		Namespace: namespace,
		Email:     email,
		Node:      NodeTriage,
		CreatedAt: time.Now().UTC(),
	}
	log.Printf("[WORKFLOW] run %s started: %s", state.RunID, email.Summary())
	return c.run(ctx, state)
}

// Resume continues a run from its last checkpoint. A finished run is
// returned as-is. The turn bound applies per attempt, so a run stopped on
// IterationBoundError gets a fresh budget.
func (c *Controller) Resume(ctx context.Context, runID string) (*State, error) {
	state, ok, err := c.cfg.Checkpoints.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("unknown run %s", runID)
	}
	if state.Done() {
		return state, nil
	}

	log.Printf("[WORKFLOW] run %s resuming at node %s", state.RunID, state.Node)
	state.TurnCount = 0
	state.FailureReason = ""
	return c.run(ctx, state)
}

func (c *Controller) run(ctx context.Context, state *State) (*State, error) {
	if err := c.save(ctx, state); err != nil {
		return state, err
	}

	for !state.Done() {
		var err error
		switch state.Node {
		case NodeTriage:
			err = c.runTriage(ctx, state)
		case NodeRespond:
			err = c.runRespond(ctx, state)
		default:
			state.fail(fmt.Sprintf("unknown node %s", state.Node))
			err = fmt.Errorf("unknown node %s", state.Node)
		}

		if saveErr := c.save(ctx, state); saveErr != nil && err == nil {
			err = saveErr
		}
		if err != nil {
			return state, err
		}
	}

	log.Printf("[WORKFLOW] run %s done: classification=%s reply_sent=%t",
		state.RunID, state.Classification, state.ReplySent)
	return state, nil
}

func (c *Controller) runTriage(ctx context.Context, state *State) error {
	scope := c.scope(state.Namespace)

	decision, err := c.cfg.Router.Classify(ctx, scope, state.Email)
	if err != nil {
		state.fail(err.Error())
		return err
	}
	state.Classification = decision.Classification
	state.Rationale = decision.Rationale

	// Outcome recording feeds future few-shot retrieval. Losing one
	// example does not fail the run.
	if err := c.cfg.Router.RecordOutcome(ctx, scope, state.Email, decision); err != nil {
		log.Printf("[WORKFLOW] run %s: recording triage outcome failed: %v", state.RunID, err)
	}

	switch decision.Classification {
	case core.ClassifyRespond:
		return state.advance(NodeRespond)
	case core.ClassifyNotify:
		log.Printf("[WORKFLOW] run %s notify: %s", state.RunID, decision.Rationale)
		state.FinalText = decision.Rationale
		return state.advance(NodeDone)
	default:
		state.FinalText = decision.Rationale
		return state.advance(NodeDone)
	}
}

func (c *Controller) runRespond(ctx context.Context, state *State) error {
	scope := c.scope(state.Namespace)
	registry := tools.NewMailRegistry(tools.Deps{
		Memory:   scope,
		Mailer:   c.cfg.Mailer,
		Calendar: c.cfg.Calendar,
	})

	session := agent.NewSession(state.RunID)
	var outcome *agent.Outcome
	var err error
	if len(state.Messages) == 0 {
		outcome, err = c.cfg.Agent.Respond(ctx, scope, registry, session, state.Email)
	} else {
		session.Restore(state.Messages)
		session.TurnCount = state.TurnCount
		outcome, err = c.cfg.Agent.Run(ctx, scope, registry, session, state.Email.Summary())
	}

	state.Messages = session.Messages()
	state.TurnCount = session.TurnCount
	if err != nil {
		var bound *core.IterationBoundError
		if errors.As(err, &bound) {
			// Resumable: the node stays at respond with history intact.
			state.FailureReason = err.Error()
		} else {
			state.fail(err.Error())
		}
		return err
	}

	state.ReplySent = outcome.ReplySent
	state.FinalText = outcome.FinalText
	return state.advance(NodeDone)
}

func (c *Controller) scope(namespace string) *memory.Scope {
	return memory.NewScope(namespace, c.cfg.Store, c.cfg.Rules)
}

func (c *Controller) save(ctx context.Context, state *State) error {
	if err := c.cfg.Checkpoints.Save(ctx, state); err != nil {
		return err
	}
	if c.observer != nil {
		c.observer(*state)
	}
	return nil
}
