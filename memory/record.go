package memory

import (
	"fmt"
	"time"
)

// Kind tags the variant held by a Record.
type Kind string

const (
	KindSemantic   Kind = "semantic"
	KindEpisodic   Kind = "episodic"
	KindProcedural Kind = "procedural"
)

// SemanticFact is a stored fact or preference, retrieved by meaning.
type SemanticFact struct {
	// Key is a short subject, e.g. "jim@company.com role".
	Key string `json:"key"`

	// Value is the fact text.
	Value string `json:"value"`

	// Source records where the fact came from (a thread ID, "user", ...).
	Source string `json:"source,omitempty"`
}

// EpisodicExample is a past situation→action pair used as few-shot
// guidance for triage.
type EpisodicExample struct {
	// Situation summarizes the email that was handled.
	Situation string `json:"situation"`

	// Action is what the agent did, e.g. the triage label.
	Action string `json:"action"`

	// Outcome optionally records how it went.
	Outcome string `json:"outcome,omitempty"`
}

// ProceduralRule is one version of an instruction text governing agent
// behavior. Versions are immutable once written.
type ProceduralRule struct {
	// Name identifies the rule slot, e.g. "triage_ignore".
	Name string `json:"name"`

	// Text is the rule content.
	Text string `json:"text"`

	// Version increases monotonically per (namespace, name).
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
}

// Record is the tagged union stored in and returned by the memory store.
// Exactly one variant field is set, matching Kind.
type Record struct {
	Kind    Kind             `json:"kind"`
	Fact    *SemanticFact    `json:"fact,omitempty"`
	Example *EpisodicExample `json:"example,omitempty"`
	Rule    *ProceduralRule  `json:"rule,omitempty"`
}

// FactRecord wraps a semantic fact.
func FactRecord(fact SemanticFact) Record {
	return Record{Kind: KindSemantic, Fact: &fact}
}

// ExampleRecord wraps an episodic example.
func ExampleRecord(ex EpisodicExample) Record {
	return Record{Kind: KindEpisodic, Example: &ex}
}

// Validate checks that the variant matches the kind.
func (r Record) Validate() error {
	switch r.Kind {
	case KindSemantic:
		if r.Fact == nil {
			return fmt.Errorf("semantic record without fact")
		}
	case KindEpisodic:
		if r.Example == nil {
			return fmt.Errorf("episodic record without example")
		}
	case KindProcedural:
		if r.Rule == nil {
			return fmt.Errorf("procedural record without rule")
		}
	default:
		return fmt.Errorf("unknown record kind %q", r.Kind)
	}
	return nil
}

// EmbeddingText returns the text representation embedded for similarity
// search.
func (r Record) EmbeddingText() string {
	switch r.Kind {
	case KindSemantic:
		return fmt.Sprintf("%s: %s", r.Fact.Key, r.Fact.Value)
	case KindEpisodic:
		return fmt.Sprintf("Situation: %s\nAction: %s\nOutcome: %s",
			r.Example.Situation, r.Example.Action, r.Example.Outcome)
	case KindProcedural:
		return r.Rule.Text
	}
	return ""
}
