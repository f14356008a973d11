package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const initSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    user_id INTEGER PRIMARY KEY,
    state_json TEXT NOT NULL DEFAULT '{}',
    updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
`

// SQLiteStore persists states in a local SQLite database, one JSON document
// per user.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and runs the
// schema migration.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, initSQL); err != nil {
		return fmt.Errorf("run migration: %w", err)
	}
	return nil
}

// Load reads and decodes the state for userID, returning an empty state for
// unknown users.
func (s *SQLiteStore) Load(ctx context.Context, userID int64) (*State, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM sessions WHERE user_id = ?`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	state := &State{}
	if err := json.Unmarshal([]byte(raw), state); err != nil {
		return nil, fmt.Errorf("decode state for user %d: %w", userID, err)
	}
	return state, nil
}

// Save upserts the JSON encoding of state for userID.
func (s *SQLiteStore) Save(ctx context.Context, userID int64, state *State) error {
	if state == nil {
		state = &State{}
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state for user %d: %w", userID, err)
	}

	_, err = s.db.ExecContext(ctx, `
	INSERT INTO sessions(user_id, state_json, updated_at)
	VALUES(?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
	state_json=excluded.state_json,
	updated_at=excluded.updated_at`,
		userID, string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close(context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
