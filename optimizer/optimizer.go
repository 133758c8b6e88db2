// Package optimizer rewrites the procedural rules from user feedback.
// It runs in the background and communicates with the rest of the system
// only through append-versioned rule writes: readers always see either
// the old or the new version, never a partial edit.
package optimizer

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/mailmind/mailmind/agent"
	"github.com/mailmind/mailmind/core"
	"github.com/mailmind/mailmind/llm"
	"github.com/mailmind/mailmind/memory"
	"github.com/mailmind/mailmind/triage"
)

// Feedback is one user correction on a finished run.
type Feedback struct {
	Namespace string `json:"namespace"`

	// Email and Classification identify what the assistant did.
	Email          core.Email          `json:"email"`
	Classification core.Classification `json:"classification,omitempty"`

	// Comment is the user's free-text correction, e.g. "this was spam,
	// you should have ignored it".
	Comment string `json:"comment"`
}

// slot pairs a rule name with its seed text so the rewrite always has a
// current version to start from.
type slot struct {
	name     string
	fallback string
}

// slots are the four prompts under optimization: the three triage rules
// and the response agent's instructions.
var slots = []slot{
	{triage.RuleIgnore, triage.DefaultIgnoreRule},
	{triage.RuleNotify, triage.DefaultNotifyRule},
	{triage.RuleRespond, triage.DefaultRespondRule},
	{agent.RuleInstructions, agent.DefaultInstructions},
}

// Optimizer consumes feedback and periodically rewrites rules.
type Optimizer struct {
	client llm.Client
	store  memory.Store
	rules  memory.RuleStore

	queue     chan Feedback
	batchSize int
	interval  time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

// Option configures the optimizer.
type Option func(*Optimizer)

// WithQueueSize sets the feedback queue capacity.
func WithQueueSize(n int) Option {
	return func(o *Optimizer) { o.queue = make(chan Feedback, n) }
}

// WithBatchSize sets how many feedback items trigger an early flush.
func WithBatchSize(n int) Option {
	return func(o *Optimizer) { o.batchSize = n }
}

// WithInterval sets the periodic flush interval.
func WithInterval(d time.Duration) Option {
	return func(o *Optimizer) { o.interval = d }
}

// New creates an optimizer. Call Start to begin processing.
func New(client llm.Client, store memory.Store, rules memory.RuleStore, opts ...Option) *Optimizer {
	o := &Optimizer{
		client:    client,
		store:     store,
		rules:     rules,
		queue:     make(chan Feedback, 64),
		batchSize: 8,
		interval:  time.Minute,
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit enqueues feedback without blocking. A full queue drops the item
// and returns false: losing feedback is acceptable, stalling the caller
// is not.
func (o *Optimizer) Submit(fb Feedback) bool {
	select {
	case o.queue <- fb:
		return true
	default:
		log.Printf("[OPTIMIZER] queue full, dropping feedback for namespace %s", fb.Namespace)
		return false
	}
}

// Start launches the background loop. The context bounds every rewrite
// call made by the loop.
func (o *Optimizer) Start(ctx context.Context) {
	o.wg.Add(1)
	go o.loop(ctx)
}

// Close drains the queue, flushes once more and stops the loop.
func (o *Optimizer) Close() {
	close(o.stop)
	o.wg.Wait()
}

func (o *Optimizer) loop(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	var batch []Feedback
	for {
		select {
		case fb := <-o.queue:
			batch = append(batch, fb)
			if len(batch) >= o.batchSize {
				o.flush(ctx, batch)
				batch = nil
			}
		case <-ticker.C:
			if len(batch) > 0 {
				o.flush(ctx, batch)
				batch = nil
			}
		case <-ctx.Done():
			return
		case <-o.stop:
			batch = append(batch, o.drain()...)
			if len(batch) > 0 {
				o.flush(ctx, batch)
			}
			return
		}
	}
}

func (o *Optimizer) drain() []Feedback {
	var out []Feedback
	for {
		select {
		case fb := <-o.queue:
			out = append(out, fb)
		default:
			return out
		}
	}
}

// flush groups the batch by namespace and rewrites each namespace's
// rules once per slot. Rewrite failures are logged and skipped; the next
// batch gets another chance.
func (o *Optimizer) flush(ctx context.Context, batch []Feedback) {
	byNamespace := make(map[string][]Feedback)
	var order []string
	for _, fb := range batch {
		if _, ok := byNamespace[fb.Namespace]; !ok {
			order = append(order, fb.Namespace)
		}
		byNamespace[fb.Namespace] = append(byNamespace[fb.Namespace], fb)
	}

	for _, namespace := range order {
		items := byNamespace[namespace]
		scope := memory.NewScope(namespace, o.store, o.rules)
		log.Printf("[OPTIMIZER] flushing %d feedback items for namespace %s", len(items), namespace)

		for _, s := range slots {
			if err := o.rewrite(ctx, scope, s, items); err != nil {
				log.Printf("[OPTIMIZER] rewrite of %s failed: %v", s.name, err)
			}
		}
	}
}

// rewrite asks the model to revise one rule against the feedback and
// appends a new version only when the text actually changed.
func (o *Optimizer) rewrite(ctx context.Context, scope *memory.Scope, s slot, items []Feedback) error {
	current, err := scope.Rule(ctx, s.name, s.fallback)
	if err != nil {
		return err
	}

	resp, err := o.client.Complete(ctx, &llm.Request{
		System:   rewriteSystemPrompt,
		Messages: []core.Message{core.UserMessage(buildRewritePrompt(s.name, current.Text, items))},
		JSONOnly: true,
	})
	if err != nil {
		return err
	}

	revised, err := parseRewrite(resp.Text)
	if err != nil {
		return err
	}
	if revised == "" || revised == strings.TrimSpace(current.Text) {
		return nil
	}

	rule, err := scope.AppendRule(ctx, s.name, revised)
	if err != nil {
		return err
	}
	log.Printf("[OPTIMIZER] %s updated to version %d for namespace %s", s.name, rule.Version, scope.Namespace())
	return nil
}
