package memory

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/mailmind/mailmind/core"
)

// Scope is a namespace-bound handle over the memory tiers. Every
// component receives a Scope rather than raw stores, so the namespace is
// fixed once at the workflow boundary and cannot drift mid-run.
type Scope struct {
	namespace string
	store     Store
	rules     RuleStore
}

// NewScope binds the stores to one namespace.
func NewScope(namespace string, store Store, rules RuleStore) *Scope {
	return &Scope{namespace: namespace, store: store, rules: rules}
}

// Namespace returns the bound namespace.
func (s *Scope) Namespace() string { return s.namespace }

// Put stores a record under a key.
func (s *Scope) Put(ctx context.Context, key string, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := s.store.Put(ctx, s.namespace, key, rec); err != nil {
		return &core.ExternalServiceError{Service: "memory", Err: err}
	}
	return nil
}

// Search retrieves records by similarity, most similar first.
func (s *Scope) Search(ctx context.Context, query string, limit int) ([]Record, error) {
	recs, err := s.store.Search(ctx, s.namespace, query, limit)
	if err != nil {
		return nil, &core.ExternalServiceError{Service: "memory", Err: err}
	}
	return recs, nil
}

// Get retrieves a record by key.
func (s *Scope) Get(ctx context.Context, key string) (Record, bool, error) {
	rec, ok, err := s.store.Get(ctx, s.namespace, key)
	if err != nil {
		return Record{}, false, &core.ExternalServiceError{Service: "memory", Err: err}
	}
	return rec, ok, nil
}

// RecordExample stores an episodic example under a fresh key.
func (s *Scope) RecordExample(ctx context.Context, ex EpisodicExample) error {
	key := fmt.Sprintf("example_%s", uuid.New().String())
	return s.Put(ctx, key, ExampleRecord(ex))
}

// SimilarExamples retrieves episodic examples resembling the query.
func (s *Scope) SimilarExamples(ctx context.Context, query string, limit int) ([]EpisodicExample, error) {
	recs, err := s.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	var out []EpisodicExample
	for _, rec := range recs {
		if rec.Kind == KindEpisodic && rec.Example != nil {
			out = append(out, *rec.Example)
		}
	}
	return out, nil
}

// SimilarFacts retrieves semantic facts resembling the query.
func (s *Scope) SimilarFacts(ctx context.Context, query string, limit int) ([]SemanticFact, error) {
	recs, err := s.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	var out []SemanticFact
	for _, rec := range recs {
		if rec.Kind == KindSemantic && rec.Fact != nil {
			out = append(out, *rec.Fact)
		}
	}
	return out, nil
}

// Rule returns the latest version of the named rule, seeding the fallback
// text as version 1 when the rule has never been written. Seeding on
// first read keeps defaults out of the optimizer's way: they are ordinary
// version-1 rules once created.
func (s *Scope) Rule(ctx context.Context, name, fallback string) (*ProceduralRule, error) {
	rule, ok, err := s.rules.Latest(ctx, s.namespace, name)
	if err != nil {
		return nil, &core.ExternalServiceError{Service: "rules", Err: err}
	}
	if ok {
		return rule, nil
	}

	log.Printf("[MEMORY] seeding default rule %s for namespace %s", name, s.namespace)
	rule, err = s.rules.Append(ctx, s.namespace, name, fallback)
	if err != nil {
		return nil, &core.ExternalServiceError{Service: "rules", Err: err}
	}
	return rule, nil
}

// AppendRule writes a new version of the named rule.
func (s *Scope) AppendRule(ctx context.Context, name, text string) (*ProceduralRule, error) {
	rule, err := s.rules.Append(ctx, s.namespace, name, text)
	if err != nil {
		return nil, &core.ExternalServiceError{Service: "rules", Err: err}
	}
	return rule, nil
}

// RuleHistory returns all versions of the named rule, oldest first.
func (s *Scope) RuleHistory(ctx context.Context, name string) ([]ProceduralRule, error) {
	history, err := s.rules.History(ctx, s.namespace, name)
	if err != nil {
		return nil, &core.ExternalServiceError{Service: "rules", Err: err}
	}
	return history, nil
}
