package memory

import "context"

// Store is the vector storage backend for semantic facts and episodic
// examples. Implementations must guarantee per-namespace isolation and
// read-your-writes consistency within a namespace.
type Store interface {
	// Put saves a record under a key. Writing an existing key replaces
	// the record.
	Put(ctx context.Context, namespace, key string, rec Record) error

	// Search retrieves up to limit records by similarity to the query
	// text, most similar first.
	Search(ctx context.Context, namespace, query string, limit int) ([]Record, error)

	// Get retrieves a record by key. Returns ok=false when absent.
	Get(ctx context.Context, namespace, key string) (Record, bool, error)

	// Close releases resources.
	Close() error
}

// RuleStore holds procedural rules as append-only versions. Appending
// never touches prior versions; readers always observe the highest
// version present at read time. The prompt optimizer is the only writer
// on the request path's behalf, so no locking is needed beyond what the
// backend provides.
type RuleStore interface {
	// Append writes a new version of the named rule and returns it.
	Append(ctx context.Context, namespace, name, text string) (*ProceduralRule, error)

	// Latest returns the highest version of the named rule, or ok=false
	// when the rule has never been written.
	Latest(ctx context.Context, namespace, name string) (*ProceduralRule, bool, error)

	// History returns all versions of the named rule, oldest first.
	History(ctx context.Context, namespace, name string) ([]ProceduralRule, error)

	// Close releases resources.
	Close() error
}

// Embedder converts text to vector embeddings. It is an implementation
// detail of the vector store; nothing above the store sees it.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
