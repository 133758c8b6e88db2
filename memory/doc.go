// Package memory provides the three-tier memory store backing the email
// agent: semantic facts, episodic examples and procedural rules.
//
// Memories are namespaced per end user; no read or write crosses a
// namespace. Facts and examples live in a vector store and are retrieved
// by meaning. Procedural rules are append-versioned text: writers create
// new versions, readers always observe the latest, and no version is ever
// mutated in place.
//
// Architecture:
//   - Store: vector storage backend (chromem-go embedded database)
//   - RuleStore: versioned rule storage (SQLite, ristretto read cache)
//   - Embedder: text-to-vector conversion (provider API or mock)
//   - Scope: a namespace-bound handle combining the three; the only way
//     components touch memory
package memory
