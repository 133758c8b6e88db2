package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

const checkpointSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT NOT NULL PRIMARY KEY,
	namespace  TEXT NOT NULL,
	node       TEXT NOT NULL,
	state      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// CheckpointStore persists run state on SQLite. One row per run; every
// save overwrites the previous snapshot.
type CheckpointStore struct {
	db *sql.DB
}

// OpenCheckpoints creates (or opens) the run database at path.
func OpenCheckpoints(path string) (*CheckpointStore, error) {
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run db: %w", err)
	}
	if _, err := db.Exec(checkpointSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return &CheckpointStore{db: db}, nil
}

// Save writes the current snapshot of a run.
func (s *CheckpointStore) Save(ctx context.Context, state *State) error {
	state.UpdatedAt = time.Now().UTC()
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode run state: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, namespace, node, state, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (run_id) DO UPDATE SET
		   namespace = excluded.namespace,
		   node = excluded.node,
		   state = excluded.state,
		   updated_at = excluded.updated_at`,
		state.RunID, state.Namespace, string(state.Node), string(encoded),
		state.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", state.RunID, err)
	}
	return nil
}

// Load returns the latest snapshot of a run.
func (s *CheckpointStore) Load(ctx context.Context, runID string) (*State, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT state FROM runs WHERE run_id = ?`, runID)

	var encoded string
	err := row.Scan(&encoded)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load run %s: %w", runID, err)
	}

	var state State
	if err := json.Unmarshal([]byte(encoded), &state); err != nil {
		return nil, false, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &state, true, nil
}

// Recent returns the most recently updated runs for a namespace.
func (s *CheckpointStore) Recent(ctx context.Context, namespace string, limit int) ([]State, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state FROM runs WHERE namespace = ? ORDER BY updated_at DESC LIMIT ?`,
		namespace, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []State
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		var state State
		if err := json.Unmarshal([]byte(encoded), &state); err != nil {
			return nil, fmt.Errorf("decode run: %w", err)
		}
		out = append(out, state)
	}
	return out, rows.Err()
}

// Close releases the database.
func (s *CheckpointStore) Close() error {
	return s.db.Close()
}
