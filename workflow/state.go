package workflow

import (
	"fmt"
	"time"

	"github.com/mailmind/mailmind/core"
)

// Node identifies a workflow stage.
type Node string

const (
	// NodeTriage classifies the incoming email.
	NodeTriage Node = "triage"

	// NodeRespond runs the response agent.
	NodeRespond Node = "respond"

	// NodeDone is the single terminal node.
	NodeDone Node = "done"
)

// transitions is the closed set of legal node transitions. Routing goes
// through advance, never through ad hoc assignments, so an illegal hop is
// a programming error caught at the boundary.
var transitions = map[Node][]Node{
	NodeTriage:  {NodeRespond, NodeDone},
	NodeRespond: {NodeDone},
	NodeDone:    {},
}

// State is the full record of one email run. It is persisted after every
// node transition so a run can be inspected or resumed.
type State struct {
	RunID     string     `json:"run_id"`
	Namespace string     `json:"namespace"`
	Email     core.Email `json:"email"`
	Node      Node       `json:"node"`

	Classification core.Classification `json:"classification,omitempty"`
	Rationale      string              `json:"rationale,omitempty"`

	// Messages is the response agent's conversation history.
	Messages  []core.Message `json:"messages,omitempty"`
	TurnCount int            `json:"turn_count,omitempty"`

	ReplySent bool   `json:"reply_sent"`
	FinalText string `json:"final_text,omitempty"`

	// FailureReason is set whenever a run ends abnormally.
	FailureReason string `json:"failure_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// advance moves the state to the next node, rejecting transitions outside
// the table.
func (s *State) advance(next Node) error {
	for _, allowed := range transitions[s.Node] {
		if allowed == next {
			s.Node = next
			return nil
		}
	}
	return fmt.Errorf("illegal transition %s -> %s", s.Node, next)
}

// Done reports whether the run reached the terminal node.
func (s *State) Done() bool { return s.Node == NodeDone }

// fail records the reason and moves to done regardless of the current
// node. Failures are always terminal.
func (s *State) fail(reason string) {
	s.FailureReason = reason
	s.Node = NodeDone
}
