// Package chromem implements the vector memory store on chromem-go, a
// pure Go embedded vector database.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/mailmind/mailmind/memory"
)

// Store keeps one chromem collection per namespace. The collection split
// is the isolation boundary: a query can only ever see documents from the
// collection it targets.
type Store struct {
	db          *chromem.DB
	embedder    memory.Embedder
	collections map[string]*chromem.Collection
	records     map[string]memory.Record // namespace+"\x00"+key -> record, for keyed Get
	mu          sync.RWMutex
}

// New creates an in-process store using the given embedder.
func New(embedder memory.Embedder) (*Store, error) {
	return &Store{
		db:          chromem.NewDB(),
		embedder:    embedder,
		collections: make(map[string]*chromem.Collection),
		records:     make(map[string]memory.Record),
	}, nil
}

func (s *Store) getOrCreateCollection(namespace string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, exists := s.collections[namespace]
	s.mu.RUnlock()
	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, exists := s.collections[namespace]; exists {
		return col, nil
	}

	name := fmt.Sprintf("ns_%s", namespace)
	col, err := s.db.CreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.collections[namespace] = col
	return col, nil
}

// Put saves a record under a key.
func (s *Store) Put(ctx context.Context, namespace, key string, rec memory.Record) error {
	col, err := s.getOrCreateCollection(namespace)
	if err != nil {
		return err
	}

	embedding, err := s.embedder.Embed(ctx, rec.EmbeddingText())
	if err != nil {
		return fmt.Errorf("embed record: %w", err)
	}

	content, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	doc := chromem.Document{
		ID:        key,
		Content:   string(content),
		Embedding: embedding,
		Metadata: map[string]string{
			"kind":      string(rec.Kind),
			"namespace": namespace,
			"key":       key,
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	s.mu.Lock()
	s.records[recordKey(namespace, key)] = rec
	s.mu.Unlock()

	log.Printf("[CHROMEM] stored %s record key=%s namespace=%s", rec.Kind, key, namespace)
	return nil
}

// Search retrieves records by similarity to the query text.
func (s *Store) Search(ctx context.Context, namespace, query string, limit int) ([]memory.Record, error) {
	col, err := s.getOrCreateCollection(namespace)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// chromem requires nResults <= collection size; shrink until it fits.
	var results []chromem.Result
	for n := limit; n >= 1; n-- {
		results, err = col.QueryEmbedding(ctx, embedding, n, nil, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if n == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]memory.Record, 0, len(results))
	for i, result := range results {
		var rec memory.Record
		if err := json.Unmarshal([]byte(result.Content), &rec); err != nil {
			log.Printf("[CHROMEM] skipping result #%d: %v", i+1, err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get retrieves a record by key.
func (s *Store) Get(ctx context.Context, namespace, key string) (memory.Record, bool, error) {
	s.mu.RLock()
	rec, ok := s.records[recordKey(namespace, key)]
	s.mu.RUnlock()
	return rec, ok, nil
}

// Close releases resources. chromem keeps everything in memory, so there
// is nothing to flush.
func (s *Store) Close() error { return nil }

func recordKey(namespace, key string) string {
	return namespace + "\x00" + key
}

func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
