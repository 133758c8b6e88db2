// Package rules implements the procedural rule store on SQLite.
//
// Rules are append-only: every write creates a new (namespace, name,
// version) row and prior rows are never updated or deleted. A ristretto
// cache fronts the latest-version read, which sits on the request path of
// every triage and response call.
package rules

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	_ "modernc.org/sqlite"

	"github.com/mailmind/mailmind/memory"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

const schema = `
CREATE TABLE IF NOT EXISTS rules (
	namespace  TEXT    NOT NULL,
	name       TEXT    NOT NULL,
	version    INTEGER NOT NULL,
	text       TEXT    NOT NULL,
	created_at TEXT    NOT NULL,
	PRIMARY KEY (namespace, name, version)
);
`

// SQLiteStore is the RuleStore implementation.
type SQLiteStore struct {
	db    *sql.DB
	cache *ristretto.Cache
}

// Open creates (or opens) the rule database at path.
func Open(path string) (*SQLiteStore, error) {
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open rule db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create rules table: %w", err)
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 22, // 4 MiB of rule text
		BufferItems: 64,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create rule cache: %w", err)
	}

	return &SQLiteStore{db: db, cache: cache}, nil
}

// Append writes a new version of the named rule.
func (s *SQLiteStore) Append(ctx context.Context, namespace, name, text string) (*memory.ProceduralRule, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var version int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM rules WHERE namespace = ? AND name = ?`,
		namespace, name,
	).Scan(&version)
	if err != nil {
		return nil, fmt.Errorf("next version: %w", err)
	}

	createdAt := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO rules (namespace, name, version, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		namespace, name, version, text, createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert rule version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}

	rule := &memory.ProceduralRule{
		Name:      name,
		Text:      text,
		Version:   version,
		CreatedAt: createdAt,
	}

	// Refresh the cache synchronously so a Latest immediately after
	// Append observes the new version.
	s.cache.Set(cacheKey(namespace, name), rule, int64(len(text)))
	s.cache.Wait()

	return rule, nil
}

// Latest returns the highest version of the named rule.
func (s *SQLiteStore) Latest(ctx context.Context, namespace, name string) (*memory.ProceduralRule, bool, error) {
	if cached, ok := s.cache.Get(cacheKey(namespace, name)); ok {
		if rule, ok := cached.(*memory.ProceduralRule); ok {
			return rule, true, nil
		}
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT version, text, created_at FROM rules
		 WHERE namespace = ? AND name = ?
		 ORDER BY version DESC LIMIT 1`,
		namespace, name,
	)

	var (
		rule      memory.ProceduralRule
		createdAt string
	)
	err := row.Scan(&rule.Version, &rule.Text, &createdAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query latest rule: %w", err)
	}
	rule.Name = name
	rule.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	s.cache.Set(cacheKey(namespace, name), &rule, int64(len(rule.Text)))
	return &rule, true, nil
}

// History returns all versions of the named rule, oldest first.
func (s *SQLiteStore) History(ctx context.Context, namespace, name string) ([]memory.ProceduralRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, text, created_at FROM rules
		 WHERE namespace = ? AND name = ?
		 ORDER BY version ASC`,
		namespace, name,
	)
	if err != nil {
		return nil, fmt.Errorf("query rule history: %w", err)
	}
	defer rows.Close()

	var out []memory.ProceduralRule
	for rows.Next() {
		var (
			rule      memory.ProceduralRule
			createdAt string
		)
		if err := rows.Scan(&rule.Version, &rule.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan rule version: %w", err)
		}
		rule.Name = name
		rule.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, rule)
	}
	return out, rows.Err()
}

// Close releases the database and cache.
func (s *SQLiteStore) Close() error {
	s.cache.Close()
	return s.db.Close()
}

func cacheKey(namespace, name string) string {
	return namespace + "\x00" + name
}
