// Package triage classifies incoming email into ignore, notify or
// respond using procedural rules and episodic examples retrieved from
// memory.
package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mailmind/mailmind/core"
	"github.com/mailmind/mailmind/llm"
	"github.com/mailmind/mailmind/memory"
)

// Decision is the router's output: one of the three classifications plus
// the model's rationale.
type Decision struct {
	Classification core.Classification `json:"classification"`
	Rationale      string              `json:"rationale"`
}

// Router classifies emails. Safe for concurrent use; per-run state lives
// in the arguments.
type Router struct {
	client       llm.Client
	profile      core.Profile
	exampleLimit int
}

// Option configures the router.
type Option func(*Router)

// WithProfile sets the user profile embedded in the decision prompt.
func WithProfile(p core.Profile) Option {
	return func(r *Router) { r.profile = p }
}

// WithExampleLimit caps how many episodic examples the prompt includes.
func WithExampleLimit(n int) Option {
	return func(r *Router) { r.exampleLimit = n }
}

// NewRouter creates a triage router.
func NewRouter(client llm.Client, opts ...Option) *Router {
	r := &Router{
		client:       client,
		profile:      core.DefaultProfile,
		exampleLimit: 5,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// routerOutput is the constrained schema the model must produce.
type routerOutput struct {
	Reasoning      string `json:"reasoning"`
	Classification string `json:"classification"`
}

// Classify retrieves memory context, asks the model for a classification
// and validates it against the enum. An out-of-enum answer gets exactly
// one corrective re-prompt before surfacing InvalidClassificationError.
func (r *Router) Classify(ctx context.Context, scope *memory.Scope, email core.Email) (*Decision, error) {
	examples, err := scope.SimilarExamples(ctx, situationSummary(email), r.exampleLimit)
	if err != nil {
		return nil, fmt.Errorf("retrieve examples: %w", err)
	}

	ignore, err := scope.Rule(ctx, RuleIgnore, DefaultIgnoreRule)
	if err != nil {
		return nil, err
	}
	notify, err := scope.Rule(ctx, RuleNotify, DefaultNotifyRule)
	if err != nil {
		return nil, err
	}
	respond, err := scope.Rule(ctx, RuleRespond, DefaultRespondRule)
	if err != nil {
		return nil, err
	}

	system := buildSystemPrompt(r.profile, ignore.Text, notify.Text, respond.Text, examples)
	messages := []core.Message{core.UserMessage(buildUserPrompt(email))}

	resp, err := r.client.Complete(ctx, &llm.Request{
		System:   system,
		Messages: messages,
		JSONOnly: true,
	})
	if err != nil {
		return nil, err
	}

	decision, parseErr := parseDecision(resp.Text)
	if parseErr == nil {
		log.Printf("[TRIAGE] %s -> %s", email.Summary(), decision.Classification)
		return decision, nil
	}

	// One corrective re-prompt, then fail. Guessing a category would be
	// worse than reporting the bad output.
	log.Printf("[TRIAGE] invalid model output, re-prompting once: %v", parseErr)
	messages = append(messages,
		core.AssistantMessage(resp.Text),
		core.UserMessage(`That response was not a valid classification. Reply with a single JSON object `+
			`{"reasoning": "...", "classification": "..."} where classification is exactly one of `+
			`"ignore", "notify" or "respond".`),
	)
	resp, err = r.client.Complete(ctx, &llm.Request{
		System:   system,
		Messages: messages,
		JSONOnly: true,
	})
	if err != nil {
		return nil, err
	}

	decision, parseErr = parseDecision(resp.Text)
	if parseErr != nil {
		return nil, parseErr
	}
	log.Printf("[TRIAGE] %s -> %s (after re-prompt)", email.Summary(), decision.Classification)
	return decision, nil
}

// RecordOutcome stores the (email, classification) pair as an episodic
// example for future few-shot retrieval.
func (r *Router) RecordOutcome(ctx context.Context, scope *memory.Scope, email core.Email, decision *Decision) error {
	return scope.RecordExample(ctx, memory.EpisodicExample{
		Situation: situationSummary(email),
		Action:    string(decision.Classification),
	})
}

// parseDecision extracts and validates the model's JSON output.
func parseDecision(text string) (*Decision, error) {
	payload := extractJSON(text)
	var out routerOutput
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, &core.InvalidClassificationError{Got: strings.TrimSpace(text)}
	}
	classification, err := core.ParseClassification(strings.ToLower(strings.TrimSpace(out.Classification)))
	if err != nil {
		return nil, err
	}
	return &Decision{Classification: classification, Rationale: out.Reasoning}, nil
}

// extractJSON strips code fences and surrounding prose, keeping the
// outermost object. Models occasionally wrap JSON despite instructions.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			return text[start : end+1]
		}
	}
	return text
}
